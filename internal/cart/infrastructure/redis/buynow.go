package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	"github.com/redis/go-redis/v9"
)

var clearIfVersion = redis.NewScript(`
if redis.call("HGET", KEYS[1], "version") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BuyNowStore keeps one selection per user as a hash with an idle TTL.
type BuyNowStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewBuyNowStore(rdb redis.UniversalClient, ttl time.Duration) *BuyNowStore {
	return &BuyNowStore{rdb: rdb, ttl: ttl}
}

func key(userID string) string { return "buynow:" + userID }

func (s *BuyNowStore) Put(ctx context.Context, userID string, sel domain.BuyNowSelection) error {
	k := key(userID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k,
			"product_id", sel.ProductID,
			"quantity", sel.Quantity,
			"version", sel.Version,
			"updated_at", sel.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	return err
}

// Get returns the active selection and refreshes its idle TTL.
func (s *BuyNowStore) Get(ctx context.Context, userID string) (domain.BuyNowSelection, error) {
	k := key(userID)
	vals, err := s.rdb.HGetAll(ctx, k).Result()
	if err != nil {
		return domain.BuyNowSelection{}, err
	}
	if len(vals) == 0 {
		return domain.BuyNowSelection{}, domain.ErrNoSelection
	}

	qty, err := strconv.Atoi(vals["quantity"])
	if err != nil {
		return domain.BuyNowSelection{}, fmt.Errorf("buy-now quantity %q: %w", vals["quantity"], err)
	}
	sel := domain.BuyNowSelection{
		ProductID: vals["product_id"],
		Quantity:  qty,
		Version:   vals["version"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, vals["updated_at"]); err == nil {
		sel.UpdatedAt = ts
	}
	if !sel.Complete() {
		return domain.BuyNowSelection{}, domain.ErrNoSelection
	}

	if err := s.rdb.Expire(ctx, k, s.ttl).Err(); err != nil {
		return domain.BuyNowSelection{}, err
	}
	return sel, nil
}

func (s *BuyNowStore) ClearIfVersion(ctx context.Context, userID, version string) (bool, error) {
	n, err := clearIfVersion.Run(ctx, s.rdb, []string{key(userID)}, version).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
