package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/example/post-scheduler/internal/internaltypes"
)

// Breaker stops hammering a dead backend. While open every call fails fast
// with ErrStoreUnavailable; it never substitutes an empty value.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker[[]byte]
}

func NewBreaker(name string, next Store) *Breaker {
	return NewBreakerWithSettings(next, gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// NewBreakerWithSettings lets tests tune the trip threshold. A missing key
// is always counted as success.
func NewBreakerWithSettings(next Store, st gobreaker.Settings) *Breaker {
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, internaltypes.ErrNotFound)
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[[]byte](st)}
}

func (b *Breaker) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	v, err := b.cb.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, namespace, key)
	})
	return v, b.translate(err)
}

func (b *Breaker) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Put(ctx, namespace, key, value)
	})
	return b.translate(err)
}

// State exposes the breaker state for health reporting.
func (b *Breaker) State() string { return b.cb.State().String() }

func (b *Breaker) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %w", internaltypes.ErrStoreUnavailable, b.cb.Name(), err)
	}
	return err
}
