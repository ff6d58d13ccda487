package align

import (
	"fmt"
	"sort"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/table"
)

// EmptyReferenceError means the primary table has no usable timestamps left
// after parsing and cutoff filtering.
type EmptyReferenceError struct {
	Reason string
}

func (e *EmptyReferenceError) Error() string {
	return fmt.Sprintf("empty reference clock: %s", e.Reason)
}

// ReferenceClock is the sorted, duplicate-free timestamp sequence that defines
// the merged rows. It is immutable once built.
type ReferenceClock struct {
	times []time.Time
}

// Len returns the number of reference rows.
func (c ReferenceClock) Len() int { return len(c.times) }

// At returns the i-th reference timestamp.
func (c ReferenceClock) At(i int) time.Time { return c.times[i] }

// Times returns a copy of the reference timestamps.
func (c ReferenceClock) Times() []time.Time {
	return append([]time.Time(nil), c.times...)
}

// NewReferenceClock builds the clock from the primary table's timestamps and
// returns, alongside it, the primary row index backing each reference row.
// Rows before cutoff are dropped; duplicate timestamps keep the first row.
func NewReferenceClock(primary *table.SourceTable, cutoff *time.Time) (ReferenceClock, []int, error) {
	if primary == nil || primary.Len() == 0 {
		return ReferenceClock{}, nil, &EmptyReferenceError{Reason: "primary table has no valid timestamps"}
	}
	idx := make([]int, 0, primary.Len())
	for i, ts := range primary.Times {
		if cutoff != nil && ts.Before(*cutoff) {
			continue
		}
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return ReferenceClock{}, nil, &EmptyReferenceError{
			Reason: fmt.Sprintf("no primary rows at or after cutoff %s", cutoff.UTC().Format(time.RFC3339)),
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return primary.Times[idx[a]].Before(primary.Times[idx[b]]) })
	kept := idx[:1]
	for _, i := range idx[1:] {
		if primary.Times[i].Equal(primary.Times[kept[len(kept)-1]]) {
			continue
		}
		kept = append(kept, i)
	}
	clock := ReferenceClock{times: make([]time.Time, len(kept))}
	for j, i := range kept {
		clock.times[j] = primary.Times[i]
	}
	return clock, kept, nil
}
