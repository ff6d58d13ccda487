package align

import (
	"sort"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/table"
)

// CellState tells how an aligned cell got its value.
type CellState uint8

const (
	// Absent cells carry no value.
	Absent CellState = iota
	// Native cells come straight from the primary table.
	Native
	// Matched cells hold the nearest secondary sample within tolerance.
	Matched
	// Filled cells carry the last matched value forward.
	Filled
)

func (s CellState) String() string {
	switch s {
	case Native:
		return "native"
	case Matched:
		return "matched"
	case Filled:
		return "filled"
	default:
		return "absent"
	}
}

// nearest returns the sample closest to target within tol. The series must be
// sorted ascending. On an exact tie the earlier sample wins.
func nearest(s table.Series, target time.Time, tol time.Duration) (table.Sample, bool) {
	idx := sort.Search(len(s), func(i int) bool { return !s[i].T.Before(target) })
	var (
		best    table.Sample
		minDiff time.Duration
		found   bool
	)
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(s) {
			continue
		}
		diff := absDuration(s[i].T.Sub(target))
		if diff > tol || (found && diff >= minDiff) {
			continue
		}
		best, minDiff, found = s[i], diff, true
	}
	return best, found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// MatchNearest aligns s onto the clock. Cells without a sample within tol are Absent.
func MatchNearest(clock ReferenceClock, s table.Series, tol time.Duration) ([]float64, []CellState) {
	if !sort.SliceIsSorted(s, func(i, j int) bool { return s[i].T.Before(s[j].T) }) {
		s = append(table.Series(nil), s...)
		sort.SliceStable(s, func(i, j int) bool { return s[i].T.Before(s[j].T) })
	}
	values := make([]float64, clock.Len())
	states := make([]CellState, clock.Len())
	for i, ts := range clock.times {
		if smp, ok := nearest(s, ts, tol); ok {
			values[i] = smp.V
			states[i] = Matched
		}
	}
	return values, states
}

// ForwardFill carries the last Matched or Filled value into later Absent
// cells. Cells before the first value stay Absent.
func ForwardFill(values []float64, states []CellState) {
	var carry float64
	carrying := false
	for i, st := range states {
		switch st {
		case Absent:
			if carrying {
				values[i] = carry
				states[i] = Filled
			}
		default:
			carry = values[i]
			carrying = true
		}
	}
}
