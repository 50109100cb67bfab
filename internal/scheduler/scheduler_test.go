package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/post-scheduler/internal/calendar"
	"github.com/example/post-scheduler/internal/internaltypes"
	"github.com/example/post-scheduler/internal/kv"
	"github.com/example/post-scheduler/internal/slots"
	"github.com/example/post-scheduler/internal/telemetry"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

var monday = ts("2024-01-01T10:00:00Z")

type countingStore struct {
	inner  TakenStore
	gets   int
	puts   int
	getErr error
	putErr error
}

func (c *countingStore) Get(ctx context.Context) (slots.TakenScheduleDates, error) {
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.inner.Get(ctx)
}

func (c *countingStore) Put(ctx context.Context, d slots.TakenScheduleDates) error {
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	return c.inner.Put(ctx, d)
}

type recordingLocker struct {
	locks, unlocks int
	err            error
}

func (l *recordingLocker) Lock(context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks++
	return func(context.Context) error {
		l.unlocks++
		return nil
	}, nil
}

func newStore() *countingStore {
	return &countingStore{inner: slots.NewStore(kv.NewMemory())}
}

func TestScheduleTierReservesSequentialSlots(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	s := New(store)

	want := []string{
		"2024-01-06T16:00:00Z",
		"2024-01-06T17:00:00Z",
		"2024-01-06T18:00:00Z",
		"2024-01-07T16:00:00Z",
	}
	for i, w := range want {
		d, err := s.Schedule(ctx, ForTier(calendar.P1), monday)
		require.NoError(t, err)
		assert.Equal(t, ts(w), d.Slot, "call %d", i)
		assert.Equal(t, int64(ts(w).Sub(monday)/time.Second), d.Seconds)
		assert.Equal(t, calendar.P1, d.Tier)
		assert.False(t, d.Explicit)
	}
	assert.Equal(t, len(want), store.gets)
	assert.Equal(t, len(want), store.puts)

	taken, err := s.Taken(ctx)
	require.NoError(t, err)
	assert.Len(t, taken[calendar.P1], len(want))
	assert.Empty(t, taken[calendar.P2])
}

func TestSecondsUntilFirstP1Slot(t *testing.T) {
	s := New(newStore())
	secs, err := s.SecondsUntil(context.Background(), ForTier(calendar.P1), monday)
	require.NoError(t, err)
	// Monday 10:00 -> Saturday 16:00
	assert.Equal(t, int64((5*24+6)*3600), secs)
}

func TestScheduleExplicitDate(t *testing.T) {
	store := newStore()
	s := New(store)

	secs, err := s.SecondsUntil(context.Background(), AtDate(monday.Add(90*time.Minute)), monday)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), secs)
	assert.Zero(t, store.gets)
	assert.Zero(t, store.puts)
}

func TestScheduleExplicitDateMustBeInFuture(t *testing.T) {
	s := New(newStore())
	for _, at := range []time.Time{monday.Add(-time.Second), monday, monday.Add(500 * time.Millisecond)} {
		_, err := s.SecondsUntil(context.Background(), AtDate(at), monday)
		assert.ErrorIs(t, err, internaltypes.ErrNotInFuture, at)
		assert.ErrorIs(t, err, internaltypes.ErrInvalidInput, at)
	}
}

func TestScheduleDoesNotWriteOnReadFailure(t *testing.T) {
	store := newStore()
	store.getErr = fmt.Errorf("%w: boom", internaltypes.ErrStoreUnavailable)
	locker := &recordingLocker{}
	reg := prometheus.NewRegistry()
	s := New(store, WithLocker(locker), WithMetrics(telemetry.NewMetrics(reg)))

	_, err := s.Schedule(context.Background(), ForTier(calendar.P2), monday)
	assert.ErrorIs(t, err, internaltypes.ErrStoreUnavailable)
	assert.Equal(t, 1, store.gets)
	assert.Zero(t, store.puts)
	assert.Equal(t, 1, locker.locks)
	assert.Equal(t, 1, locker.unlocks)
}

func TestSchedulePropagatesWriteFailure(t *testing.T) {
	store := newStore()
	store.putErr = fmt.Errorf("%w: boom", internaltypes.ErrStoreUnavailable)
	s := New(store)

	_, err := s.Schedule(context.Background(), ForTier(calendar.P3), monday)
	assert.ErrorIs(t, err, internaltypes.ErrStoreUnavailable)

	store.putErr = nil
	d, err := s.Schedule(context.Background(), ForTier(calendar.P3), monday)
	require.NoError(t, err)
	assert.Equal(t, ts("2024-01-06T21:00:00Z"), d.Slot, "failed write must not reserve anything")
}

func TestScheduleLockFailure(t *testing.T) {
	store := newStore()
	s := New(store, WithLocker(&recordingLocker{err: internaltypes.ErrLockBusy}))

	_, err := s.Schedule(context.Background(), ForTier(calendar.P1), monday)
	assert.ErrorIs(t, err, internaltypes.ErrLockBusy)
	assert.Zero(t, store.gets)
	assert.Equal(t, "lock_busy", Reason(err))
}

func TestPreviewDoesNotWrite(t *testing.T) {
	store := newStore()
	s := New(store)

	for i := 0; i < 2; i++ {
		slot, err := s.Preview(context.Background(), calendar.P2, monday)
		require.NoError(t, err)
		assert.Equal(t, ts("2024-01-01T16:00:00Z"), slot)
	}
	assert.Zero(t, store.puts)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	s := New(store)
	for i := 0; i < 3; i++ {
		_, err := s.Schedule(ctx, ForTier(calendar.P1), monday)
		require.NoError(t, err)
	}

	removed, err := s.Prune(ctx, ts("2024-01-06T17:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	d, err := s.Schedule(ctx, ForTier(calendar.P1), monday)
	require.NoError(t, err)
	assert.Equal(t, ts("2024-01-07T16:00:00Z"), d.Slot)

	puts := store.puts
	removed, err = s.Prune(ctx, ts("2024-01-01T00:00:00Z"))
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, puts, store.puts)
}

func TestParseRequest(t *testing.T) {
	r, err := ParseRequest("p2", "")
	require.NoError(t, err)
	assert.False(t, r.Explicit())
	assert.Equal(t, calendar.P2, r.Tier())

	r, err = ParseRequest("", "2024-01-06T16:00:00+01:00")
	require.NoError(t, err)
	assert.True(t, r.Explicit())
	assert.Equal(t, ts("2024-01-06T15:00:00Z"), r.Date())

	for _, in := range [][2]string{{"", ""}, {"P1", "2024-01-06T16:00:00Z"}, {"P5", ""}, {"", "saturday"}} {
		_, err := ParseRequest(in[0], in[1])
		assert.ErrorIs(t, err, internaltypes.ErrInvalidInput, in)
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "invalid_input", Reason(internaltypes.ErrUnknownPriority))
	assert.Equal(t, "store_unavailable", Reason(fmt.Errorf("x: %w", internaltypes.ErrStoreUnavailable)))
	assert.Equal(t, "allocation_exhausted", Reason(internaltypes.ErrAllocationExhausted))
	assert.Equal(t, "internal", Reason(errors.New("other")))
}

type slowStore struct {
	TakenStore
	delay time.Duration
}

func (s slowStore) Get(ctx context.Context) (slots.TakenScheduleDates, error) {
	d, err := s.TakenStore.Get(ctx)
	time.Sleep(s.delay)
	return d, err
}

func TestConcurrentScheduleReservesDistinctSlots(t *testing.T) {
	const n = 4
	inner := slots.NewStore(kv.NewMemory())
	s := New(slowStore{TakenStore: inner, delay: 20 * time.Millisecond})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[time.Time]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := s.Schedule(context.Background(), ForTier(calendar.P1), monday)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[d.Slot]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	taken, err := inner.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, taken[calendar.P1], n)
}

func TestSecondsUntilDistantDate(t *testing.T) {
	s := New(newStore())
	secs, err := s.SecondsUntil(context.Background(), AtDate(ts("2500-01-01T00:00:00Z")), monday)
	require.NoError(t, err)
	assert.Equal(t, int64(15021122400), secs)
}

func TestSecondsBetweenTruncates(t *testing.T) {
	base := monday.Add(500 * time.Millisecond)
	tests := []struct {
		at   time.Time
		want int64
	}{
		{base.Add(700 * time.Millisecond), 0},
		{base.Add(1200 * time.Millisecond), 1},
		{base.Add(-700 * time.Millisecond), 0},
		{base.Add(-1200 * time.Millisecond), -1},
		{base.Add(90 * time.Minute), 5400},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecondsBetween(tt.at, base), tt.at)
	}
}
