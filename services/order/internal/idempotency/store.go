package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// idem:order:create:{user_id}:{key} -> "pending" | order_id
	keyOrderCreate = "idem:order:create:%s:%s"
	pendingValue   = "pending"

	DefaultTTL        = 24 * time.Hour
	DefaultPendingTTL = time.Minute
)

var ErrInProgress = errors.New("idempotency key is held by a request in flight")

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Store binds client supplied keys to order ids in Redis. Keys are scoped to
// the user so two users can never collide. A reservation lives for
// PendingTTL; a key bound to an order lives for TTL.
type Store struct {
	RDB        *redis.Client
	TTL        time.Duration
	PendingTTL time.Duration
}

func (s *Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

func (s *Store) pendingTTL() time.Duration {
	if s.PendingTTL <= 0 {
		return DefaultPendingTTL
	}
	return s.PendingTTL
}

func key(userID uuid.UUID, k string) string {
	return fmt.Sprintf(keyOrderCreate, userID, k)
}

// Reserve claims key for a new submission. It returns reserved=true when the
// caller owns the key, or the order id bound by an earlier completed request.
// A key still held by a running request yields ErrInProgress.
func (s *Store) Reserve(ctx context.Context, userID uuid.UUID, k string) (uuid.UUID, bool, error) {
	rk := key(userID, k)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.RDB.SetNX(ctx, rk, pendingValue, s.pendingTTL()).Result()
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("redis setnx %s: %w", rk, err)
		}
		if ok {
			return uuid.Nil, true, nil
		}

		v, err := s.RDB.Get(ctx, rk).Result()
		if errors.Is(err, redis.Nil) {
			// expired between the two calls
			continue
		}
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("redis get %s: %w", rk, err)
		}
		if v == pendingValue {
			return uuid.Nil, false, ErrInProgress
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("redis %s holds %q: %w", rk, v, err)
		}
		return id, false, nil
	}
	return uuid.Nil, false, ErrInProgress
}

func (s *Store) Complete(ctx context.Context, userID uuid.UUID, k string, orderID uuid.UUID) error {
	return s.RDB.Set(ctx, key(userID, k), orderID.String(), s.ttl()).Err()
}

func (s *Store) Release(ctx context.Context, userID uuid.UUID, k string) error {
	return s.RDB.Del(ctx, key(userID, k)).Err()
}
