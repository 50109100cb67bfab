// Package slots persists the reserved posting slots of every tier.
//
// The whole mapping lives under one key and is overwritten wholesale on
// every Put. There is no merge and no version check: two processes doing
// Get/Put concurrently can lose each other's reservation. Callers that run
// more than one scheduler must serialise the cycle externally.
package slots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/post-scheduler/internal/internaltypes"
	"github.com/example/post-scheduler/internal/kv"
)

const (
	Namespace = "taken_schedule_dates"
	Key       = "dates"
)

type Store struct {
	kv kv.Store
}

func NewStore(backend kv.Store) *Store {
	return &Store{kv: backend}
}

// Get returns the persisted dates, or empty sequences if nothing was ever
// written. A corrupt payload is an error, never an empty result.
func (s *Store) Get(ctx context.Context) (TakenScheduleDates, error) {
	if s == nil || s.kv == nil {
		return nil, fmt.Errorf("%w: no backend configured", internaltypes.ErrStoreUnavailable)
	}
	b, err := s.kv.Get(ctx, Namespace, Key)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return Empty(), nil
	}
	if err != nil {
		return nil, wrapUnavailable("read taken slots", err)
	}

	var d TakenScheduleDates
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode taken slots: %w", err)
	}
	return d, nil
}

func (s *Store) Put(ctx context.Context, d TakenScheduleDates) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("%w: no backend configured", internaltypes.ErrStoreUnavailable)
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode taken slots: %w", err)
	}
	if err := s.kv.Put(ctx, Namespace, Key, b); err != nil {
		return wrapUnavailable("write taken slots", err)
	}
	return nil
}

func wrapUnavailable(op string, err error) error {
	if errors.Is(err, internaltypes.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", internaltypes.ErrStoreUnavailable, op, err)
}
