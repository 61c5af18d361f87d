package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned by Claim when another request holds the key and has
// not finished yet.
var ErrInFlight = errors.New("idempotency key in flight")

// OrderIdempotency remembers which order a client's Idempotency-Key produced.
type OrderIdempotency struct {
	rdb *redis.Client
}

func NewOrderIdempotency(rdb *redis.Client) *OrderIdempotency {
	return &OrderIdempotency{rdb: rdb}
}

func idemKey(customerID, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, customerID, key)
}

// Claim reserves key for customerID. It returns ("", true, nil) when the
// caller owns the key, (orderID, false, nil) when an earlier request already
// completed, and ErrInFlight when one is still running.
func (s *OrderIdempotency) Claim(ctx context.Context, customerID, key string) (string, bool, error) {
	k := idemKey(customerID, key)

	ok, err := s.rdb.SetNX(ctx, k, idemPending, TTLIdempotencyPending).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}

	existing, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; try once more
		ok, err = s.rdb.SetNX(ctx, k, idemPending, TTLIdempotencyPending).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return "", true, nil
		}
		return "", false, ErrInFlight
	}
	if err != nil {
		return "", false, err
	}
	if existing == idemPending {
		return "", false, ErrInFlight
	}
	return existing, false, nil
}

// Complete stores the order id produced for a claimed key and extends it to
// the full replay window.
func (s *OrderIdempotency) Complete(ctx context.Context, customerID, key, orderID string) error {
	return s.rdb.Set(ctx, idemKey(customerID, key), orderID, TTLIdempotency).Err()
}

// Release drops a claim so the client can retry after a failure.
func (s *OrderIdempotency) Release(ctx context.Context, customerID, key string) error {
	return s.rdb.Del(ctx, idemKey(customerID, key)).Err()
}
