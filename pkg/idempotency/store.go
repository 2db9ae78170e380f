package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// Seen marks key as processed and reports whether it had been marked before.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget removes a processed marker so the message can be handled again.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

type Lock struct {
	key   string
	token string
}

// Acquire takes a short-lived exclusive lock on name. ok is false when another
// holder owns it.
func (s *Store) Acquire(ctx context.Context, name string, ttl time.Duration) (Lock, bool, error) {
	l := Lock{key: "lock:" + name, token: uuid.NewString()}
	ok, err := s.rdb.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return Lock{}, false, err
	}
	return l, ok, nil
}

func (s *Store) Release(ctx context.Context, l Lock) error {
	if l.key == "" {
		return nil
	}
	return releaseScript.Run(ctx, s.rdb, []string{l.key}, l.token).Err()
}
