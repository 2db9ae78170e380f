package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const orderColumns = `id, user_id, address, status, payment_status, refund_status,
	raw_price, discount, total_price, applied_coupon,
	COALESCE(payment_order_id, ''), COALESCE(transaction_id, ''), signature_failures,
	created_at, updated_at`

const itemColumns = `id, order_id, product_id, quantity, unit_price, raw_price, discount, total_price,
	applied_coupon, status, refund_status, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Address, &o.Status, &o.PaymentStatus, &o.RefundStatus,
		&o.RawPrice, &o.Discount, &o.TotalPrice, &o.AppliedCoupon,
		&o.PaymentOrderID, &o.TransactionID, &o.SignatureFailures,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.RawPrice, &it.Discount, &it.TotalPrice,
		&it.AppliedCoupon, &it.Status, &it.RefundStatus, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// Place writes the order, its items, the cart cleanup and msg atomically.
func (r *Repository) Place(ctx context.Context, o domain.Order, consumed *application.ConsumedCart, msg outbox.Message) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, user_id, address, status, payment_status, refund_status,
				raw_price, discount, total_price, applied_coupon, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		o.ID, o.UserID, o.Address, o.Status, o.PaymentStatus, o.RefundStatus,
		o.RawPrice, o.Discount, o.TotalPrice, o.AppliedCoupon, o.CreatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity, unit_price, raw_price, discount, total_price,
				applied_coupon, status, refund_status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
			o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.RawPrice, it.Discount, it.TotalPrice,
			it.AppliedCoupon, it.Status, it.RefundStatus, o.CreatedAt)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if consumed != nil && len(consumed.Lines) > 0 {
		ids := make([]string, 0, len(consumed.Lines))
		qty := make([]int32, 0, len(consumed.Lines))
		for _, l := range consumed.Lines {
			ids = append(ids, l.ProductID)
			qty = append(qty, int32(l.Quantity))
		}
		// A concurrent add that changed a line's quantity leaves it behind
		// and aborts the checkout.
		tag, err := tx.Exec(ctx, `DELETE FROM cart_items c
			USING unnest($2::text[], $3::int[]) AS l(product_id, quantity)
			WHERE c.cart_id = $1 AND c.product_id = l.product_id AND c.quantity = l.quantity`,
			consumed.CartID, ids, qty)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != int64(len(consumed.Lines)) {
			return domain.ErrCartChanged
		}
	}

	if err = outbox.Insert(ctx, tx, msg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	byOrder, err := itemsFor(ctx, r.pool, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = byOrder[o.ID]
	return o, nil
}

func itemsFor(ctx context.Context, q querier, orderIDs []string) (map[string][]domain.Item, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Item, len(orderIDs))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateOrder(ctx context.Context, id string, mutate application.OrderMutation) (domain.Order, error) {
	return r.update(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id, mutate)
}

func (r *Repository) UpdateByPaymentRef(ctx context.Context, paymentOrderID string, mutate application.OrderMutation) (domain.Order, error) {
	return r.update(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_order_id=$1 FOR UPDATE`, paymentOrderID, mutate)
}

// update locks one order row, applies mutate and persists the mutable
// header fields together with the returned event.
func (r *Repository) update(ctx context.Context, lockQuery, key string, mutate application.OrderMutation) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := scanOrder(tx.QueryRow(ctx, lockQuery, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	byOrder, err := itemsFor(ctx, tx, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = byOrder[o.ID]

	snapshot := o
	msg, err := mutate(&o)
	if err != nil {
		return snapshot, err
	}

	err = tx.QueryRow(ctx, `UPDATE orders
		SET status=$2, payment_status=$3, refund_status=$4, transaction_id=NULLIF($5, ''),
			signature_failures=$6, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		o.ID, o.Status, o.PaymentStatus, o.RefundStatus, o.TransactionID, o.SignatureFailures).Scan(&o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if msg != nil {
		if err := outbox.Insert(ctx, tx, *msg); err != nil {
			return domain.Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) UpdateItem(ctx context.Context, orderID, productID string, mutate application.ItemMutation) (domain.Item, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Item{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	it, err := scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE order_id=$1 AND product_id=$2 FOR UPDATE`, orderID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, err
	}

	msg, err := mutate(&it)
	if err != nil {
		return domain.Item{}, err
	}

	err = tx.QueryRow(ctx, `UPDATE order_items SET status=$2, refund_status=$3, updated_at=now()
		WHERE id=$1 RETURNING updated_at`, it.ID, it.Status, it.RefundStatus).Scan(&it.UpdatedAt)
	if err != nil {
		return domain.Item{}, err
	}
	if msg != nil {
		if err := outbox.Insert(ctx, tx, *msg); err != nil {
			return domain.Item{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *Repository) List(ctx context.Context, f application.ListFilter) ([]domain.Order, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE ($1 = '' OR status = $1)`, string(f.Status)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	orders, err := r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	byOrder, err := itemsFor(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) ItemsByStatus(ctx context.Context, status domain.ItemStatus) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE status=$1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) Analytics(ctx context.Context) (domain.Analytics, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*),
			COALESCE(sum(total_price) FILTER (WHERE payment_status = 'paid'), 0)::bigint
		FROM orders GROUP BY status`)
	if err != nil {
		return domain.Analytics{}, err
	}
	defer rows.Close()

	a := domain.Analytics{ByStatus: map[domain.Status]int64{}}
	for rows.Next() {
		var (
			status  domain.Status
			count   int64
			revenue int64
		)
		if err := rows.Scan(&status, &count, &revenue); err != nil {
			return domain.Analytics{}, err
		}
		a.ByStatus[status] = count
		a.TotalOrders += count
		a.Revenue += revenue
	}
	return a, rows.Err()
}
