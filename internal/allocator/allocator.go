// Package allocator picks the next free posting slot of a tier. It is pure:
// it reads a snapshot of taken slots and never writes anything.
package allocator

import (
	"fmt"
	"time"

	"github.com/example/post-scheduler/internal/calendar"
	"github.com/example/post-scheduler/internal/internaltypes"
	"github.com/example/post-scheduler/internal/slots"
)

// NextSlot returns the next legal slot of tier that is strictly after now
// and after every slot already taken for that tier.
//
// With nothing taken (or only slots older than now) the search starts from
// now. Otherwise it continues from the last taken slot so posts of a tier
// are packed one per hour without gaps.
func NextSlot(tier calendar.Tier, now time.Time, taken slots.TakenScheduleDates) (time.Time, error) {
	rules, err := calendar.For(tier)
	if err != nil {
		return time.Time{}, err
	}
	now = now.UTC()

	var slot time.Time
	anchor, ok := taken.Last(tier)
	if !ok || anchor.Before(now) {
		slot, err = coldStart(rules, now)
	} else {
		slot, err = continueFrom(rules, anchor.UTC())
	}
	if err != nil {
		return time.Time{}, err
	}

	if !slot.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s slot %s is not after %s",
			internaltypes.ErrNotInFuture, tier, slot.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return slot, nil
}

// Normalize moves now to the start of the tier's next legal day when
// today is not a legal day or its last legal hour has already begun.
func Normalize(rules calendar.Rules, now time.Time) (time.Time, error) {
	now = now.UTC()
	day := calendar.StartOfDay(now)
	if cutoff, ok := rules.Cutoff(day.Weekday()); ok && calendar.At(day, cutoff).After(now) {
		return now, nil
	}
	return rules.Successor(day)
}

func coldStart(rules calendar.Rules, now time.Time) (time.Time, error) {
	from, err := Normalize(rules, now)
	if err != nil {
		return time.Time{}, err
	}
	day := calendar.StartOfDay(from)
	for _, h := range rules.Hours(day.Weekday()) {
		slot := calendar.At(day, h)
		if !slot.Before(from) && slot.After(now) {
			return slot, nil
		}
	}
	// Normalize guarantees a remaining hour.
	return time.Time{}, fmt.Errorf("%w: %s has no hour left on %s",
		internaltypes.ErrAllocationExhausted, rules.Tier, day.Format(time.DateOnly))
}

func continueFrom(rules calendar.Rules, anchor time.Time) (time.Time, error) {
	day := calendar.StartOfDay(anchor)
	for _, h := range rules.Hours(day.Weekday()) {
		if h > anchor.Hour() {
			return calendar.At(day, h), nil
		}
	}

	next, err := rules.Successor(day)
	if err != nil {
		return time.Time{}, err
	}
	return calendar.At(next, rules.Hours(next.Weekday())[0]), nil
}
