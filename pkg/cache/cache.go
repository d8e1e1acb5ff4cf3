package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface. TryLock/Unlock back
// single-flight guards; a lock is a plain entry that expires on its own if
// the holder dies.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Envelope wraps a cached value with its freshness deadline. The entry itself
// expires at the stale TTL, so a read between fresh_until and expiry returns
// stale-but-servable data.
type Envelope struct {
	Value      json.RawMessage `json:"value"`
	FreshUntil time.Time       `json:"fresh_until"`
}

// Fresh reports whether the envelope is still within its fresh window.
func (e *Envelope) Fresh() bool {
	return time.Now().Before(e.FreshUntil)
}

// SetWithFreshness stores value with a two-tier TTL: readers see it as fresh
// for freshTTL and as stale-but-servable until staleTTL. staleTTL below
// freshTTL is treated as freshTTL.
func SetWithFreshness(ctx context.Context, c Service, key string, value interface{}, freshTTL, staleTTL time.Duration) error {
	if staleTTL < freshTTL {
		staleTTL = freshTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal envelope value: %w", err)
	}

	env := Envelope{
		Value:      raw,
		FreshUntil: time.Now().Add(freshTTL),
	}
	return c.Set(ctx, key, env, staleTTL)
}

// GetWithFreshness reads a value written by SetWithFreshness into dest and
// reports whether it is still fresh. A missing key returns ErrCacheMiss.
func GetWithFreshness(ctx context.Context, c Service, key string, dest interface{}) (bool, error) {
	var env Envelope
	if err := c.Get(ctx, key, &env); err != nil {
		return false, err
	}

	if dest != nil && len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, dest); err != nil {
			return false, fmt.Errorf("unmarshal envelope value: %w", err)
		}
	}
	return env.Fresh(), nil
}
