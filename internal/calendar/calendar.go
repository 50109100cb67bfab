// Package calendar holds the weekly posting windows for each priority tier.
// All hours are UTC hours-of-day; slots always start on the hour.
package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/post-scheduler/internal/internaltypes"
)

type Tier string

const (
	P1 Tier = "P1"
	P2 Tier = "P2"
	P3 Tier = "P3"
)

// Tiers lists every tier in priority order.
var Tiers = []Tier{P1, P2, P3}

// ParseTier accepts "P1".."P3" in any case, or the bare digit.
func ParseTier(s string) (Tier, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if len(v) == 1 {
		v = "P" + v
	}
	switch Tier(v) {
	case P1, P2, P3:
		return Tier(v), nil
	}
	return "", fmt.Errorf("%w: %q", internaltypes.ErrUnknownPriority, s)
}

// SlotRule marks one legal (weekday, hour) pair.
type SlotRule struct {
	Weekday time.Weekday
	Hour    int
}

func hours(day time.Weekday, hs ...int) []SlotRule {
	out := make([]SlotRule, 0, len(hs))
	for _, h := range hs {
		out = append(out, SlotRule{Weekday: day, Hour: h})
	}
	return out
}

func concat(groups ...[]SlotRule) []SlotRule {
	var out []SlotRule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var table = map[Tier][]SlotRule{
	P1: concat(
		hours(time.Saturday, 16, 17, 18),
		hours(time.Sunday, 16, 17, 18),
	),
	P2: concat(
		hours(time.Monday, 16, 17, 18),
		hours(time.Friday, 16, 17, 18),
		hours(time.Saturday, 19, 20, 21),
		hours(time.Sunday, 19, 20, 21),
	),
	// Wraps from Saturday night into early Monday.
	P3: concat(
		hours(time.Saturday, 21, 22, 23),
		hours(time.Sunday, 0, 1),
		hours(time.Sunday, 21, 22, 23),
		hours(time.Monday, 0, 1),
	),
}

// Table returns a copy of the rule list for tier in insertion order.
func Table(t Tier) []SlotRule {
	return append([]SlotRule(nil), table[t]...)
}

func IsWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func IsMondayOrFriday(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Monday || wd == time.Friday
}

// StartOfDay truncates t to 00:00 UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextSaturday returns 00:00 of the first Saturday strictly after t's day.
func NextSaturday(t time.Time) time.Time { return nextWeekday(t, time.Saturday) }

// NextFriday returns 00:00 of the first Friday strictly after t's day.
func NextFriday(t time.Time) time.Time { return nextWeekday(t, time.Friday) }

// NextMonday returns 00:00 of the first Monday strictly after t's day.
func NextMonday(t time.Time) time.Time { return nextWeekday(t, time.Monday) }

func nextWeekday(t time.Time, wd time.Weekday) time.Time {
	day := StartOfDay(t)
	delta := (int(wd) - int(day.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return day.AddDate(0, 0, delta)
}

// MaxScanDays bounds the day-by-day successor search.
const MaxScanDays = 14

// Rules is the per-tier strategy: legal hours per weekday, the successor
// legal day and the cutoff hour of a day.
type Rules struct {
	Tier Tier

	slots     []SlotRule
	successor func(day time.Time) time.Time
}

// For returns the rules of tier t.
func For(t Tier) (Rules, error) {
	switch t {
	case P1:
		return Rules{Tier: t, slots: table[t], successor: weekendSuccessor}, nil
	case P2:
		return Rules{Tier: t, slots: table[t], successor: splitWeekSuccessor}, nil
	case P3:
		// irregular table: successor found by bounded scan
		return Rules{Tier: t, slots: table[t]}, nil
	}
	return Rules{}, fmt.Errorf("%w: %q", internaltypes.ErrUnknownPriority, string(t))
}

// Saturday runs into Sunday, everything else waits for the next weekend.
func weekendSuccessor(day time.Time) time.Time {
	if day.Weekday() == time.Saturday {
		return day.AddDate(0, 0, 1)
	}
	return NextSaturday(day)
}

func splitWeekSuccessor(day time.Time) time.Time {
	switch day.Weekday() {
	case time.Monday:
		return NextFriday(day)
	case time.Friday:
		return NextSaturday(day)
	case time.Saturday:
		return day.AddDate(0, 0, 1)
	case time.Sunday:
		return NextMonday(day)
	default:
		return NextFriday(day)
	}
}

// Hours returns the legal hours of wd sorted ascending.
func (r Rules) Hours(wd time.Weekday) []int {
	var out []int
	for _, s := range r.slots {
		if s.Weekday == wd {
			out = append(out, s.Hour)
		}
	}
	sort.Ints(out)
	return out
}

func (r Rules) IsLegalDay(wd time.Weekday) bool {
	for _, s := range r.slots {
		if s.Weekday == wd {
			return true
		}
	}
	return false
}

// Cutoff is the last legal hour of wd. Once that hour has started the
// day has nothing left to offer.
func (r Rules) Cutoff(wd time.Weekday) (int, bool) {
	hs := r.Hours(wd)
	if len(hs) == 0 {
		return 0, false
	}
	return hs[len(hs)-1], true
}

// Allows reports whether t is exactly a legal slot of the tier.
func (r Rules) Allows(t time.Time) bool {
	t = t.UTC()
	if t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	for _, s := range r.slots {
		if s.Weekday == t.Weekday() && s.Hour == t.Hour() {
			return true
		}
	}
	return false
}

// Successor returns 00:00 of the next legal day strictly after day.
func (r Rules) Successor(day time.Time) (time.Time, error) {
	day = StartOfDay(day)
	if r.successor != nil {
		next := r.successor(day)
		if !r.IsLegalDay(next.Weekday()) {
			return time.Time{}, fmt.Errorf("%w: %s successor of %s has no hours", internaltypes.ErrAllocationExhausted, r.Tier, day.Weekday())
		}
		return next, nil
	}
	for i := 1; i <= MaxScanDays; i++ {
		next := day.AddDate(0, 0, i)
		if r.IsLegalDay(next.Weekday()) {
			return next, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s has no slot within %d days of %s",
		internaltypes.ErrAllocationExhausted, r.Tier, MaxScanDays, day.Format(time.DateOnly))
}

// At returns the slot starting at hour h on day.
func At(day time.Time, h int) time.Time {
	return StartOfDay(day).Add(time.Duration(h) * time.Hour)
}
