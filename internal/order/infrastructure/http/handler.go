package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	payment "github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/auth"
	"github.com/dmehra2102/storefront/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	auth    *auth.Verifier
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, verifier *auth.Verifier) *Handler {
	return &Handler{
		log:     log,
		service: service,
		auth:    verifier,
		tracer:  otel.Tracer("order-http"),
	}
}

type addressReq struct {
	FullName   string `json:"fullName" validate:"required,min=2,max=100"`
	Street     string `json:"street" validate:"required,min=5"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone" validate:"required,phone"`
}

type createOrderReq struct {
	Address       *addressReq `json:"address" validate:"required"`
	Status        string      `json:"status" validate:"omitempty,oneof=pending confirmed"`
	PaymentStatus string      `json:"paymentStatus" validate:"omitempty,oneof=unpaid"`
	Coupon        string      `json:"coupon"`
}

type verifyReq struct {
	RazorpayOrderID   string `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
	PaymentGatewayID  string `json:"paymentGatewayId"`
}

type itemStatusReq struct {
	OrderID   string `json:"orderId" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

type refundStatusReq struct {
	OrderID      string `json:"orderId" validate:"required"`
	ProductID    string `json:"productId" validate:"required"`
	RefundStatus string `json:"refundStatus" validate:"required"`
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type itemResp struct {
	OrderID       string    `json:"orderId"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	UnitPrice     int64     `json:"unitPrice"`
	RawPrice      int64     `json:"rawPrice"`
	Discount      int64     `json:"discount"`
	TotalPrice    int64     `json:"totalPrice"`
	AppliedCoupon string    `json:"appliedCoupon"`
	Status        string    `json:"status"`
	RefundStatus  string    `json:"refundStatus"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type orderResp struct {
	OrderID        string         `json:"orderId"`
	UserID         string         `json:"userId"`
	Address        domain.Address `json:"address"`
	Status         string         `json:"status"`
	PaymentStatus  string         `json:"paymentStatus"`
	RefundStatus   string         `json:"refundStatus"`
	RawPrice       int64          `json:"rawPrice"`
	Discount       int64          `json:"discount"`
	TotalPrice     int64          `json:"totalPrice"`
	AppliedCoupon  string         `json:"appliedCoupon"`
	PaymentOrderID string         `json:"paymentOrderId,omitempty"`
	TransactionID  string         `json:"transactionId,omitempty"`
	Items          []itemResp     `json:"items,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type paymentResp struct {
	RazorpayOrderID string  `json:"razorpayOrderId"`
	Reference       string  `json:"reference"`
	Currency        string  `json:"currency"`
	Paid            float64 `json:"paid"`
	Due             float64 `json:"due"`
}

type createOrderResp struct {
	Order      orderResp   `json:"order"`
	OrderItems []itemResp  `json:"orderItems"`
	Payment    paymentResp `json:"payment"`
}

type listResp struct {
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
	Data       []orderResp `json:"data"`
}

type analyticsResp struct {
	TotalOrders int64            `json:"totalOrders"`
	ByStatus    map[string]int64 `json:"byStatus"`
	Revenue     int64            `json:"revenue"`
}

func toItemResp(it domain.Item) itemResp {
	return itemResp{
		OrderID:       it.OrderID,
		ProductID:     it.ProductID,
		Quantity:      it.Quantity,
		UnitPrice:     it.UnitPrice,
		RawPrice:      it.RawPrice,
		Discount:      it.Discount,
		TotalPrice:    it.TotalPrice,
		AppliedCoupon: it.AppliedCoupon,
		Status:        string(it.Status),
		RefundStatus:  string(it.RefundStatus),
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}
}

func toItemsResp(items []domain.Item) []itemResp {
	out := make([]itemResp, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResp(it))
	}
	return out
}

func toOrderResp(o domain.Order) orderResp {
	return orderResp{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Address:        o.Address,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		RefundStatus:   string(o.RefundStatus),
		RawPrice:       o.RawPrice,
		Discount:       o.Discount,
		TotalPrice:     o.TotalPrice,
		AppliedCoupon:  o.AppliedCoupon,
		PaymentOrderID: o.PaymentOrderID,
		TransactionID:  o.TransactionID,
		Items:          toItemsResp(o.Items),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrdersResp(orders []domain.Order) []orderResp {
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResp(o))
	}
	return out
}

func toPaymentResp(in payment.Intent) paymentResp {
	return paymentResp{
		RazorpayOrderID: in.GatewayOrderID,
		Reference:       in.GatewayOrderID,
		Currency:        in.Currency,
		Paid:            float64(in.AmountPaid) / 100,
		Due:             float64(in.AmountDue) / 100,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// The gateway signature authenticates the callback.
	r.Put("/verify", h.verify)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Post("/create", h.create)
		r.Get("/user-orders", h.userOrders)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireAdmin)
			r.Get("/", h.list)
			r.Get("/analytics", h.analytics)
			r.Post("/orderitems", h.itemsByStatus)
			r.Put("/orderitem", h.updateItemStatus)
			r.Put("/refund", h.updateRefundStatus)
			r.Put("/update/{orderId}", h.updateStatus)
		})

		r.Get("/{orderId}", h.get)
	})
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	user, _ := auth.UserFrom(ctx)
	var req createOrderReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	buyNow, _ := strconv.ParseBool(r.URL.Query().Get("buyNow"))
	span.SetAttributes(attribute.Bool("order.buy_now", buyNow))

	res, err := h.service.CreateOrder(ctx, application.CreateOrderInput{
		UserID: user.ID,
		Address: domain.Address{
			FullName:   req.Address.FullName,
			Street:     req.Address.Street,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
			Phone:      req.Address.Phone,
		},
		Coupon:        req.Coupon,
		BuyNow:        buyNow,
		Status:        domain.Status(req.Status),
		PaymentStatus: domain.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", res.Order.ID))

	order := toOrderResp(res.Order)
	order.Items = nil
	httpx.WriteOK(w, http.StatusCreated, "Order created successfully", createOrderResp{
		Order:      order,
		OrderItems: toItemsResp(res.Order.Items),
		Payment:    toPaymentResp(res.Payment),
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	var req verifyReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("payment.gateway_order_id", req.RazorpayOrderID))

	o, err := h.service.VerifyPayment(ctx, application.VerifyPaymentInput{
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
		PaymentGatewayID: req.PaymentGatewayID,
	})
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Payment verified successfully", toOrderResp(o))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "orderId"), user.ID, user.IsAdmin())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Order fetched successfully", toOrderResp(o))
}

func (h *Handler) userOrders(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	orders, err := h.service.ListByUser(r.Context(), user.ID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Orders fetched successfully", toOrdersResp(orders))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	p, err := h.service.List(r.Context(), domain.Status(q.Get("status")), page, limit)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Orders fetched successfully", listResp{
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
		Data:       toOrdersResp(p.Orders),
	})
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Analytics(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	byStatus := make(map[string]int64, len(a.ByStatus))
	for s, n := range a.ByStatus {
		byStatus[string(s)] = n
	}
	httpx.WriteOK(w, http.StatusOK, "Analytics fetched successfully", analyticsResp{
		TotalOrders: a.TotalOrders,
		ByStatus:    byStatus,
		Revenue:     a.Revenue,
	})
}

func (h *Handler) itemsByStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	items, err := h.service.ItemsByStatus(r.Context(), domain.ItemStatus(req.Status))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Order items fetched successfully", toItemsResp(items))
}

func (h *Handler) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderItemStatus")
	defer span.End()

	var req itemStatusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	it, err := h.service.UpdateItemStatus(ctx, req.OrderID, req.ProductID, domain.ItemStatus(req.Status))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Order item status updated", toItemResp(it))
}

func (h *Handler) updateRefundStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderRefundStatus")
	defer span.End()

	var req refundStatusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	it, err := h.service.UpdateRefundStatus(ctx, req.OrderID, req.ProductID, domain.RefundStatus(req.RefundStatus))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Refund status updated", toItemResp(it))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	id := chi.URLParam(r, "orderId")
	if id == "" {
		httpx.WriteError(w, r, h.log, apperr.Validation(`"orderId" is required`))
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), id, domain.Status(req.Status))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Order status updated", toOrderResp(o))
}
