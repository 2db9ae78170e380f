package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmehra2102/storefront/internal/cart/application"
	"github.com/dmehra2102/storefront/internal/cart/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/auth"
	"github.com/dmehra2102/storefront/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log    *slog.Logger
	carts  *application.Service
	buyNow *application.BuyNowService
	auth   *auth.Verifier
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, carts *application.Service, buyNow *application.BuyNowService, verifier *auth.Verifier) *Handler {
	return &Handler{
		log:    log,
		carts:  carts,
		buyNow: buyNow,
		auth:   verifier,
		tracer: otel.Tracer("cart-http"),
	}
}

type addItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type updateItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

type removeItemReq struct {
	ProductID string `json:"productId" validate:"required"`
}

type buyNowQuantityReq struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type itemResp struct {
	ID          int64     `json:"id"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	LineTotal   float64   `json:"lineTotal"`
	AddedAt     time.Time `json:"addedAt"`
}

type cartResp struct {
	Items      []itemResp `json:"items"`
	TotalPrice float64    `json:"totalPrice"`
}

type buyNowResp struct {
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice,omitempty"`
	LineTotal   float64   `json:"lineTotal,omitempty"`
	Version     string    `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toItemResp(it domain.Item) itemResp {
	return itemResp{
		ID:          it.ID,
		ProductID:   it.ProductID,
		ProductName: it.ProductName,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice.InexactFloat64(),
		LineTotal:   it.LineTotal().InexactFloat64(),
		AddedAt:     it.AddedAt,
	}
}

func toBuyNowResp(sel domain.BuyNowSelection) buyNowResp {
	return buyNowResp{ProductID: sel.ProductID, Quantity: sel.Quantity, Version: sel.Version, UpdatedAt: sel.UpdatedAt}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.auth.Require)

	r.Post("/add", h.addItem)
	r.Put("/update", h.updateItem)
	r.Delete("/remove", h.removeItem)
	r.Delete("/clear", h.clear)
	r.Get("/", h.list)

	r.Put("/buynow", h.setBuyNow)
	r.Patch("/buynow", h.updateBuyNow)
	r.Get("/buynow", h.getBuyNow)
	return r
}

func userID(r *http.Request) (string, error) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		return "", apperr.Unauthorized("User is not authenticated")
	}
	return u.ID, nil
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddCartItem")
	defer span.End()

	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	var req addItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	item, err := h.carts.AddItem(ctx, uid, req.ProductID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Item added to cart", toItemResp(item))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateCartItem")
	defer span.End()

	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	var req updateItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	item, err := h.carts.UpdateItem(ctx, uid, req.ProductID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Updated successfull", toItemResp(item))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	var req removeItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if err := h.carts.RemoveItem(r.Context(), uid, req.ProductID); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Item removed from cart", map[string]string{"productId": req.ProductID})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	n, err := h.carts.Clear(r.Context(), uid)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Cart cleared", map[string]int64{"deletedCount": n})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	sum, err := h.carts.List(r.Context(), uid)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	resp := cartResp{Items: make([]itemResp, 0, len(sum.Items)), TotalPrice: sum.TotalPrice.InexactFloat64()}
	for _, it := range sum.Items {
		resp.Items = append(resp.Items, toItemResp(it))
	}
	httpx.WriteOK(w, http.StatusOK, "Cart items fetched successfull", resp)
}

func (h *Handler) setBuyNow(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	var req addItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	sel, err := h.buyNow.Set(r.Context(), uid, req.ProductID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Buy now updated successfull", toBuyNowResp(sel))
}

func (h *Handler) updateBuyNow(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	var req buyNowQuantityReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	sel, err := h.buyNow.UpdateQuantity(r.Context(), uid, req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Buy now updated successfull", toBuyNowResp(sel))
}

func (h *Handler) getBuyNow(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	view, err := h.buyNow.Get(r.Context(), uid)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	resp := toBuyNowResp(view.Selection)
	resp.ProductName = view.Product.Name
	resp.UnitPrice = view.Product.Price.InexactFloat64()
	resp.LineTotal = view.LineTotal.InexactFloat64()
	httpx.WriteOK(w, http.StatusOK, "Buy now fetched successfull", resp)
}
