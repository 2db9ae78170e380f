package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the payment side of the orders table: it reads and attaches
// gateway references but never touches order status.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) PaymentRef(ctx context.Context, orderID string) (string, error) {
	var ref *string
	err := r.pool.QueryRow(ctx, `SELECT payment_order_id FROM orders WHERE id=$1`, orderID).Scan(&ref)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	if ref == nil {
		return "", nil
	}
	return *ref, nil
}

func (r *Repository) AttachPaymentRef(ctx context.Context, orderID, ref string, msg outbox.Message) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE orders SET payment_order_id=$2, updated_at=now()
		WHERE id=$1 AND payment_order_id IS NULL`, orderID, ref)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}
	if err := outbox.Insert(ctx, tx, msg); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Orphaned(ctx context.Context, cutoff time.Time, limit int) ([]domain.IntentTarget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, total_price
		FROM orders
		WHERE payment_order_id IS NULL AND payment_status = 'unpaid' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IntentTarget
	for rows.Next() {
		var t domain.IntentTarget
		if err := rows.Scan(&t.OrderID, &t.UserID, &t.Amount); err != nil {
			return nil, err
		}
		t.Note = "Order " + t.OrderID
		out = append(out, t)
	}
	return out, rows.Err()
}
