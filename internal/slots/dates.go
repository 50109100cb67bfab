package slots

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/post-scheduler/internal/calendar"
)

// TakenScheduleDates holds the reserved slots of every tier in
// chronological order.
type TakenScheduleDates map[calendar.Tier][]time.Time

// Empty returns dates with an empty sequence for every tier.
func Empty() TakenScheduleDates {
	d := make(TakenScheduleDates, len(calendar.Tiers))
	for _, t := range calendar.Tiers {
		d[t] = []time.Time{}
	}
	return d
}

// Last returns the most recently reserved slot of tier.
func (d TakenScheduleDates) Last(tier calendar.Tier) (time.Time, bool) {
	seq := d[tier]
	if len(seq) == 0 {
		return time.Time{}, false
	}
	return seq[len(seq)-1], true
}

func (d TakenScheduleDates) Append(tier calendar.Tier, slot time.Time) {
	d[tier] = append(d[tier], slot.UTC())
}

// Clone returns a deep copy.
func (d TakenScheduleDates) Clone() TakenScheduleDates {
	out := Empty()
	for t, seq := range d {
		out[t] = append([]time.Time{}, seq...)
	}
	return out
}

// Prune drops slots at or before cutoff but keeps each tier's latest entry,
// which anchors the next allocation. It returns how many entries were removed.
func (d TakenScheduleDates) Prune(cutoff time.Time) int {
	removed := 0
	for t, seq := range d {
		if len(seq) < 2 {
			continue
		}
		kept := make([]time.Time, 0, len(seq))
		for _, s := range seq[:len(seq)-1] {
			if s.After(cutoff) {
				kept = append(kept, s)
			}
		}
		kept = append(kept, seq[len(seq)-1])
		removed += len(seq) - len(kept)
		d[t] = kept
	}
	return removed
}

func (d TakenScheduleDates) MarshalJSON() ([]byte, error) {
	raw := make(map[string][]string, len(d))
	for _, t := range calendar.Tiers {
		raw[string(t)] = []string{}
	}
	for t, seq := range d {
		out := make([]string, 0, len(seq))
		for _, s := range seq {
			out = append(out, s.UTC().Format(time.RFC3339))
		}
		raw[string(t)] = out
	}
	return json.Marshal(raw)
}

func (d *TakenScheduleDates) UnmarshalJSON(b []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := Empty()
	for k, vals := range raw {
		tier := calendar.Tier(k)
		if _, ok := out[tier]; !ok {
			return fmt.Errorf("taken dates: unknown tier key %q", k)
		}
		seq := make([]time.Time, 0, len(vals))
		for _, v := range vals {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return fmt.Errorf("taken dates %s: %w", tier, err)
			}
			seq = append(seq, ts.UTC())
		}
		out[tier] = seq
	}
	*d = out
	return nil
}
