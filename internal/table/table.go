package table

import (
	"time"
)

// Kind tags the value type carried by a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// RawTable is a decoded, untyped table as read from one input. Headers are not
// necessarily unique; every row has exactly len(Headers) cells.
type RawTable struct {
	Headers []string
	Rows    [][]string
	// Decoding details, kept for diagnostics.
	Encoding  string
	Delimiter rune
	Sheet     string
	// SkippedRows counts malformed records dropped while reading.
	SkippedRows int
}

// NumRows returns the number of data rows.
func (t *RawTable) NumRows() int { return len(t.Rows) }

// Column returns the cells of column i in row order.
func (t *RawTable) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// Column is a typed column. For numeric columns Nums holds values, for text
// columns Texts does; Present marks cells that carry a value.
type Column struct {
	Name    string
	RawName string
	Kind    Kind
	Nums    []float64
	Texts   []string
	Present []bool
}

// Len returns the number of cells in the column.
func (c *Column) Len() int { return len(c.Present) }

// Count returns how many cells carry a value.
func (c *Column) Count() int {
	n := 0
	for _, ok := range c.Present {
		if ok {
			n++
		}
	}
	return n
}

// Cell renders cell i as text; absent cells render as "".
func (c *Column) Cell(i int) string {
	if i < 0 || i >= len(c.Present) || !c.Present[i] {
		return ""
	}
	if c.Kind == KindNumeric {
		return FormatNumber(c.Nums[i])
	}
	return c.Texts[i]
}

// Series pairs the present numeric cells with their timestamps. times must be
// index-aligned with the column.
func (c *Column) Series(times []time.Time) Series {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make(Series, 0, len(times))
	for i, ok := range c.Present {
		if ok && i < len(times) {
			out = append(out, Sample{T: times[i], V: c.Nums[i]})
		}
	}
	return out
}

// subset keeps the cells at the given row indexes, in that order.
func (c *Column) subset(idx []int) Column {
	out := Column{Name: c.Name, RawName: c.RawName, Kind: c.Kind, Present: make([]bool, len(idx))}
	if c.Kind == KindNumeric {
		out.Nums = make([]float64, len(idx))
	} else {
		out.Texts = make([]string, len(idx))
	}
	for j, i := range idx {
		out.Present[j] = c.Present[i]
		if c.Kind == KindNumeric {
			out.Nums[j] = c.Nums[i]
		} else {
			out.Texts[j] = c.Texts[i]
		}
	}
	return out
}

// Sample is one (timestamp, value) observation.
type Sample struct {
	T time.Time
	V float64
}

// Series is a timestamped signal sorted strictly ascending by time.
type Series []Sample

// SourceTable is one input after timestamp resolution and sanitization. Row i of
// every column belongs to Times[i]; Times is sorted ascending without duplicates.
type SourceTable struct {
	Name       string
	TimeColumn string
	Times      []time.Time
	Columns    []Column
}

// Len returns the number of timestamped rows.
func (s *SourceTable) Len() int { return len(s.Times) }

// Lookup finds a column by its sanitized name.
func (s *SourceTable) Lookup(name string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// Reindex keeps only the rows listed in idx (in that order) for every column.
func (s *SourceTable) Reindex(idx []int) *SourceTable {
	out := &SourceTable{Name: s.Name, TimeColumn: s.TimeColumn, Times: make([]time.Time, len(idx))}
	for j, i := range idx {
		out.Times[j] = s.Times[i]
	}
	out.Columns = make([]Column, len(s.Columns))
	for k := range s.Columns {
		out.Columns[k] = s.Columns[k].subset(idx)
	}
	return out
}
