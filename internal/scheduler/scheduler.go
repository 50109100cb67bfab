// Package scheduler turns a scheduling request into a delay for the
// downstream publisher, reserving a tier slot on the way.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/post-scheduler/internal/allocator"
	"github.com/example/post-scheduler/internal/calendar"
	"github.com/example/post-scheduler/internal/internaltypes"
	"github.com/example/post-scheduler/internal/slots"
	"github.com/example/post-scheduler/internal/telemetry"
)

// TakenStore is the read/write pair the scheduler persists through.
type TakenStore interface {
	Get(ctx context.Context) (slots.TakenScheduleDates, error)
	Put(ctx context.Context, d slots.TakenScheduleDates) error
}

// Locker guards the read-compute-write cycle. The returned func releases
// the guard.
type Locker interface {
	Lock(ctx context.Context) (func(context.Context) error, error)
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// Request is either an explicit date or a tier. Build one with AtDate or
// ForTier.
type Request struct {
	tier calendar.Tier
	at   time.Time
}

func AtDate(t time.Time) Request      { return Request{at: t.UTC()} }
func ForTier(t calendar.Tier) Request { return Request{tier: t} }

func (r Request) Explicit() bool      { return r.tier == "" }
func (r Request) Tier() calendar.Tier { return r.tier }
func (r Request) Date() time.Time     { return r.at }

// ParseRequest builds a Request from user input. Exactly one of priority
// and date must be set; date is RFC 3339.
func ParseRequest(priority, date string) (Request, error) {
	priority, date = strings.TrimSpace(priority), strings.TrimSpace(date)
	switch {
	case priority != "" && date != "":
		return Request{}, fmt.Errorf("%w: priority and date are mutually exclusive", internaltypes.ErrInvalidInput)
	case priority != "":
		tier, err := calendar.ParseTier(priority)
		if err != nil {
			return Request{}, err
		}
		return ForTier(tier), nil
	case date != "":
		t, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return Request{}, fmt.Errorf("%w: date %q: %v", internaltypes.ErrInvalidInput, date, err)
		}
		return AtDate(t), nil
	}
	return Request{}, fmt.Errorf("%w: priority or date is required", internaltypes.ErrInvalidInput)
}

// Decision is the outcome of one Schedule call.
type Decision struct {
	Tier     calendar.Tier
	Slot     time.Time
	Seconds  int64
	Explicit bool
}

// Scheduler is the public entry point of the allocator. It performs at
// most one store read and one store write per call. Within a process,
// reservations run one at a time; the Locker extends that across processes.
type Scheduler struct {
	mu sync.Mutex

	store   TakenStore
	locker  Locker
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

type Option func(*Scheduler)

func WithLocker(l Locker) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l.With().Str("component", "scheduler").Logger() }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func New(store TakenStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		locker: nopLocker{},
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SecondsUntil returns how long the caller should wait before publishing.
func (s *Scheduler) SecondsUntil(ctx context.Context, req Request, now time.Time) (int64, error) {
	d, err := s.Schedule(ctx, req, now)
	if err != nil {
		return 0, err
	}
	return d.Seconds, nil
}

// Schedule validates an explicit date, or reserves the next free slot of
// the requested tier. Nothing is written unless every step succeeded.
func (s *Scheduler) Schedule(ctx context.Context, req Request, now time.Time) (Decision, error) {
	now = now.UTC()

	if req.Explicit() {
		secs, err := secondsUntil(req.at, now)
		if err != nil {
			s.fail(err)
			return Decision{}, err
		}
		s.metrics.ObserveAllocation("explicit", secs)
		return Decision{Slot: req.at, Seconds: secs, Explicit: true}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		s.fail(err)
		return Decision{}, fmt.Errorf("lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("release schedule lock")
		}
	}()

	taken, err := s.store.Get(ctx)
	if err != nil {
		s.fail(err)
		return Decision{}, err
	}

	slot, err := allocator.NextSlot(req.tier, now, taken)
	if err != nil {
		s.fail(err)
		return Decision{}, err
	}
	secs, err := secondsUntil(slot, now)
	if err != nil {
		s.fail(err)
		return Decision{}, err
	}

	taken.Append(req.tier, slot)
	if err := s.store.Put(ctx, taken); err != nil {
		s.fail(err)
		return Decision{}, err
	}

	s.logger.Info().
		Str("tier", string(req.tier)).
		Time("slot", slot).
		Int64("seconds", secs).
		Int("taken", len(taken[req.tier])).
		Msg("slot reserved")
	s.metrics.ObserveAllocation(string(req.tier), secs)

	return Decision{Tier: req.tier, Slot: slot, Seconds: secs}, nil
}

// Preview computes the slot Schedule would reserve without writing it.
func (s *Scheduler) Preview(ctx context.Context, tier calendar.Tier, now time.Time) (time.Time, error) {
	taken, err := s.store.Get(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return allocator.NextSlot(tier, now.UTC(), taken)
}

// Taken returns the persisted reservations.
func (s *Scheduler) Taken(ctx context.Context) (slots.TakenScheduleDates, error) {
	return s.store.Get(ctx)
}

// Prune forgets reservations at or before cutoff, keeping each tier's
// latest slot.
func (s *Scheduler) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return 0, fmt.Errorf("lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("release schedule lock")
		}
	}()

	taken, err := s.store.Get(ctx)
	if err != nil {
		return 0, err
	}
	removed := taken.Prune(cutoff)
	if removed == 0 {
		return 0, nil
	}
	if err := s.store.Put(ctx, taken); err != nil {
		return 0, err
	}
	s.logger.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("pruned taken slots")
	return removed, nil
}

// SecondsBetween returns the whole seconds from now to at, truncated
// toward zero. Unlike time.Sub it does not saturate for distant dates.
func SecondsBetween(at, now time.Time) int64 {
	secs := at.Unix() - now.Unix()
	switch {
	case secs > 0 && at.Nanosecond() < now.Nanosecond():
		secs--
	case secs < 0 && at.Nanosecond() > now.Nanosecond():
		secs++
	}
	return secs
}

func secondsUntil(at, now time.Time) (int64, error) {
	secs := SecondsBetween(at, now)
	if secs <= 0 {
		return 0, fmt.Errorf("%w: %s is not after %s",
			internaltypes.ErrNotInFuture, at.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return secs, nil
}

// Reason maps an error onto a short label for metrics and API responses.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, internaltypes.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, internaltypes.ErrLockBusy):
		return "lock_busy"
	case errors.Is(err, internaltypes.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, internaltypes.ErrAllocationExhausted):
		return "allocation_exhausted"
	default:
		return "internal"
	}
}

func (s *Scheduler) fail(err error) {
	s.metrics.ObserveFailure(Reason(err))
	s.logger.Error().Err(err).Str("reason", Reason(err)).Msg("schedule failed")
}
