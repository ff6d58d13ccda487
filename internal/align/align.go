// Package align merges secondary trend tables onto the primary table's clock
// by nearest-timestamp matching within a tolerance, then forward-fills gaps.
package align

import (
	"errors"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/table"
)

// Options controls one alignment.
type Options struct {
	// Tolerance is the largest accepted |reference - sample| distance. Zero
	// accepts exact matches only.
	Tolerance time.Duration
	// Cutoff, when set, drops reference rows before it.
	Cutoff *time.Time
}

// AlignedColumn is one output column, index-aligned with the ReferenceClock.
type AlignedColumn struct {
	Name    string
	RawName string
	// Source is the name of the input table the column came from.
	Source string
	Kind   table.Kind
	Values []float64
	Texts  []string
	State  []CellState
}

// Present reports whether row i carries a value.
func (c *AlignedColumn) Present(i int) bool { return c.State[i] != Absent }

// Value returns the numeric value at row i.
func (c *AlignedColumn) Value(i int) (float64, bool) {
	if c.Kind != table.KindNumeric || !c.Present(i) {
		return 0, false
	}
	return c.Values[i], true
}

// Cell renders row i as text; absent cells are "".
func (c *AlignedColumn) Cell(i int) string {
	if !c.Present(i) {
		return ""
	}
	if c.Kind == table.KindNumeric {
		return table.FormatNumber(c.Values[i])
	}
	return c.Texts[i]
}

// Count returns how many rows are in state st.
func (c *AlignedColumn) Count(st CellState) int {
	n := 0
	for _, s := range c.State {
		if s == st {
			n++
		}
	}
	return n
}

// SkippedColumn is a secondary column that was not carried into the output.
type SkippedColumn struct {
	Source string
	Name   string
	Reason string
}

// AlignedTable has one row per ReferenceClock entry.
type AlignedTable struct {
	TimeColumn string
	Clock      ReferenceClock
	Columns    []AlignedColumn
	Skipped    []SkippedColumn
}

// Len returns the number of rows.
func (t *AlignedTable) Len() int { return t.Clock.Len() }

// Lookup finds a column by name.
func (t *AlignedTable) Lookup(name string) (*AlignedColumn, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Names returns the column names in output order.
func (t *AlignedTable) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Align builds the reference clock from primary and merges every numeric
// column of each secondary onto it. Secondary name collisions are suffixed
// against the columns already placed.
func Align(primary *table.SourceTable, secondaries []*table.SourceTable, opt Options) (*AlignedTable, error) {
	if opt.Tolerance < 0 {
		return nil, errors.New("tolerance must not be negative")
	}
	clock, rows, err := NewReferenceClock(primary, opt.Cutoff)
	if err != nil {
		return nil, err
	}
	out := &AlignedTable{TimeColumn: primary.TimeColumn, Clock: clock}
	names := table.NewNameSet(primary.TimeColumn)

	base := primary.Reindex(rows)
	for _, col := range base.Columns {
		ac := AlignedColumn{
			Name:    names.Claim(col.Name),
			RawName: col.RawName,
			Source:  primary.Name,
			Kind:    col.Kind,
			Values:  col.Nums,
			Texts:   col.Texts,
			State:   make([]CellState, clock.Len()),
		}
		for i, ok := range col.Present {
			if ok {
				ac.State[i] = Native
			}
		}
		out.Columns = append(out.Columns, ac)
	}

	for _, sec := range secondaries {
		if sec == nil {
			continue
		}
		for k := range sec.Columns {
			col := &sec.Columns[k]
			if col.Kind != table.KindNumeric {
				out.Skipped = append(out.Skipped, SkippedColumn{Source: sec.Name, Name: col.Name, Reason: "not numeric"})
				continue
			}
			series := col.Series(sec.Times)
			if len(series) == 0 {
				out.Skipped = append(out.Skipped, SkippedColumn{Source: sec.Name, Name: col.Name, Reason: "no values"})
				continue
			}
			values, states := MatchNearest(clock, series, opt.Tolerance)
			ForwardFill(values, states)
			out.Columns = append(out.Columns, AlignedColumn{
				Name:    names.Claim(col.Name),
				RawName: col.RawName,
				Source:  sec.Name,
				Kind:    table.KindNumeric,
				Values:  values,
				State:   states,
			})
		}
	}
	return out, nil
}
