package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Ensure(ctx context.Context, userID string) (domain.Cart, error) {
	var c domain.Cart
	err := r.pool.QueryRow(ctx, `
		INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
		RETURNING id, user_id, created_at, updated_at`, uuid.NewString(), userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repository) Find(ctx context.Context, userID string) (domain.Cart, error) {
	var c domain.Cart
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id=$1`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return c, err
}

const itemColumns = `id, cart_id, product_id, quantity, unit_price::text, added_at`

// AddItem is a single upsert so concurrent adds of the same product never
// lose an increment. The unit price snapshot is kept from the first add.
func (r *Repository) AddItem(ctx context.Context, cartID, productID string, quantity int, unitPrice decimal.Decimal) (domain.Item, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4::text::numeric)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING `+itemColumns, cartID, productID, quantity, unitPrice.String())
	return scanItem(row)
}

func (r *Repository) AdjustItem(ctx context.Context, cartID, productID string, delta int) (domain.Item, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE cart_items SET quantity = quantity + $3, updated_at = now()
		WHERE cart_id = $1 AND product_id = $2 AND quantity + $3 >= 1
		RETURNING `+itemColumns, cartID, productID, delta)
	item, err := scanItem(row)
	if !errors.Is(err, pgx.ErrNoRows) {
		return item, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cart_items WHERE cart_id=$1 AND product_id=$2)`, cartID, productID).Scan(&exists); err != nil {
		return domain.Item{}, err
	}
	if exists {
		return domain.Item{}, domain.ErrQuantityFloor
	}
	return domain.Item{}, domain.ErrItemNotFound
}

func (r *Repository) RemoveItem(ctx context.Context, cartID, productID string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context, cartID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *Repository) Items(ctx context.Context, cartID string) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price::text, ci.added_at, COALESCE(p.name, '')
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at, ci.id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var (
			it    domain.Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &price, &it.AddedAt, &it.ProductName); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("cart item %d price %q: %w", it.ID, price, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var (
		it    domain.Item
		price string
	)
	if err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &price, &it.AddedAt); err != nil {
		return domain.Item{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Item{}, fmt.Errorf("cart item %d price %q: %w", it.ID, price, err)
	}
	it.UnitPrice = d
	return it, nil
}
