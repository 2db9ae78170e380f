package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/storefront/internal/coupon/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, c domain.Coupon) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO coupons (id, code, discount_percent, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.Code, c.DiscountPercent, c.CreatedAt, c.UpdatedAt)
	return mapErr(err)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Coupon, error) {
	return r.one(ctx, `SELECT id, code, discount_percent, created_at, updated_at FROM coupons WHERE id=$1`, id)
}

func (r *Repository) GetByCode(ctx context.Context, code string) (domain.Coupon, error) {
	return r.one(ctx, `SELECT id, code, discount_percent, created_at, updated_at FROM coupons WHERE code=$1`, code)
}

func (r *Repository) one(ctx context.Context, sql string, arg string) (domain.Coupon, error) {
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&c.ID, &c.Code, &c.DiscountPercent, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Coupon{}, mapErr(err)
	}
	return c, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]domain.Coupon, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, code, discount_percent, created_at, updated_at FROM coupons
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.DiscountPercent, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *Repository) Update(ctx context.Context, c domain.Coupon) error {
	ct, err := r.pool.Exec(ctx, `UPDATE coupons SET code=$2, discount_percent=$3, updated_at=$4 WHERE id=$1`,
		c.ID, c.Code, c.DiscountPercent, c.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrCouponNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrCouponNotFound
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrCouponNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrCouponExists
	}
	return err
}
