package application

import (
	"context"
	"errors"
	"time"

	"github.com/dmehra2102/storefront/internal/coupon/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	repo CouponRepository
	now  func() time.Time
}

func NewService(repo CouponRepository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, code string, percent int) (domain.Coupon, error) {
	c, err := domain.New(uuid.NewString(), code, percent, s.now())
	if err != nil {
		return domain.Coupon{}, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return domain.Coupon{}, translate(err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Coupon, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Coupon{}, translate(err)
	}
	return c, nil
}

// Resolve looks up a code case-insensitively.
func (s *Service) Resolve(ctx context.Context, code string) (domain.Coupon, error) {
	c, err := s.repo.GetByCode(ctx, domain.NormalizeCode(code))
	if err != nil {
		if errors.Is(err, domain.ErrCouponNotFound) {
			return domain.Coupon{}, apperr.Wrap(apperr.KindNotFound, "Invalid coupon", err)
		}
		return domain.Coupon{}, translate(err)
	}
	return c, nil
}

type Page struct {
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
	Data       []domain.Coupon `json:"data"`
}

func (s *Service) List(ctx context.Context, page, limit int) (Page, error) {
	page = max(page, 1)
	if limit < 1 {
		limit = 10
	}
	items, total, err := s.repo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return Page{}, translate(err)
	}
	if items == nil {
		items = []domain.Coupon{}
	}
	return Page{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
		Data:       items,
	}, nil
}

type UpdateInput struct {
	Code    *string
	Percent *int
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (domain.Coupon, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Coupon{}, translate(err)
	}
	if in.Code != nil {
		c.Code = domain.NormalizeCode(*in.Code)
	}
	if in.Percent != nil {
		c.DiscountPercent = *in.Percent
	}
	if err := c.Validate(); err != nil {
		return domain.Coupon{}, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return domain.Coupon{}, translate(err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return translate(s.repo.Delete(ctx, id))
}

type Applied struct {
	Discount   decimal.Decimal
	FinalTotal decimal.Decimal
	CouponCode string
}

// Apply previews a coupon against an arbitrary total; the result never goes
// below zero.
func (s *Service) Apply(ctx context.Context, total decimal.Decimal, code string) (Applied, error) {
	c, err := s.Resolve(ctx, code)
	if err != nil {
		return Applied{}, err
	}
	discount := c.Discount(total)
	return Applied{
		Discount:   discount,
		FinalTotal: decimal.Max(total.Sub(discount), decimal.Zero),
		CouponCode: c.Code,
	}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrCouponNotFound):
		return apperr.Wrap(apperr.KindNotFound, "Coupon not found", err)
	case errors.Is(err, domain.ErrCouponExists):
		return apperr.Wrap(apperr.KindConflict, "Coupon Already Exists", err)
	default:
		return apperr.Internal("coupon store", err)
	}
}
