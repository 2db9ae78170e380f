package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmehra2102/storefront/internal/coupon/application"
	"github.com/dmehra2102/storefront/pkg/auth"
	"github.com/dmehra2102/storefront/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
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
		tracer:  otel.Tracer("coupon-http"),
	}
}

type createCouponReq struct {
	Coupon   string `json:"coupon" validate:"required,max=64"`
	Discount int    `json:"discount" validate:"required,min=1,max=100"`
}

type updateCouponReq struct {
	Coupon   *string `json:"coupon" validate:"omitempty,min=1,max=64"`
	Discount *int    `json:"discount" validate:"omitempty,min=1,max=100"`
}

type applyCouponReq struct {
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"couponCode" validate:"required"`
}

type appliedResp struct {
	Discount   float64 `json:"discount"`
	FinalTotal float64 `json:"finalTotal"`
	CouponCode string  `json:"couponCode"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.auth.Require)

	r.Post("/apply", h.apply)
	r.Get("/{couponId}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAdmin)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Put("/{couponId}", h.update)
		r.Delete("/{couponId}", h.delete)
	})
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCoupon")
	defer span.End()

	var req createCouponReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	c, err := h.service.Create(ctx, req.Coupon, req.Discount)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusCreated, "Coupon created", c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "couponId"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Coupon fetched", c)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	res, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Coupons fetched", res)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateCouponReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	c, err := h.service.Update(r.Context(), chi.URLParam(r, "couponId"), application.UpdateInput{
		Code:    req.Coupon,
		Percent: req.Discount,
	})
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Coupon updated", c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "couponId")); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Coupon deleted", nil)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ApplyCoupon")
	defer span.End()

	var req applyCouponReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	res, err := h.service.Apply(ctx, req.Total, req.CouponCode)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Coupon applied", appliedResp{
		Discount:   res.Discount.InexactFloat64(),
		FinalTotal: res.FinalTotal.InexactFloat64(),
		CouponCode: res.CouponCode,
	})
}
