package application

import (
	"context"

	"github.com/dmehra2102/storefront/internal/coupon/domain"
)

type CouponRepository interface {
	Create(ctx context.Context, c domain.Coupon) error
	Get(ctx context.Context, id string) (domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, limit, offset int) ([]domain.Coupon, int, error)
	Update(ctx context.Context, c domain.Coupon) error
	Delete(ctx context.Context, id string) error
}
