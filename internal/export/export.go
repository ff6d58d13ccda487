// Package export turns an aligned table and its axis assignment into a
// row-major merged table and chart-ready traces.
package export

import (
	"time"

	"github.com/KaramelBytes/trendmerge/internal/align"
	"github.com/KaramelBytes/trendmerge/internal/axis"
	"github.com/KaramelBytes/trendmerge/internal/table"
)

// TimeLayout renders timestamps in the merged table.
const TimeLayout = "2006-01-02 15:04:05.999999999"

// MergedTable is the serializable output: the timestamp column first, then
// every aligned column. Absent cells are "".
type MergedTable struct {
	Header []string
	Times  []time.Time
	Rows   [][]string
}

// Trace is one plottable series. Y is nil where the aligned cell is absent.
type Trace struct {
	Name string
	Axis axis.Axis
	X    []time.Time
	Y    []*float64
}

// Assembly is everything the rendering layer consumes.
type Assembly struct {
	TimeColumn string
	Table      MergedTable
	Traces     []Trace
	Axes       axis.Assignment
}

// Secondary returns the secondary-axis trace name, if any.
func (a *Assembly) Secondary() (string, bool) { return a.Axes.Secondary() }

// Assemble builds the merged table and traces. Only numeric columns become traces.
func Assemble(t *align.AlignedTable, axes axis.Assignment) *Assembly {
	n := t.Len()
	times := t.Clock.Times()
	out := &Assembly{
		TimeColumn: t.TimeColumn,
		Axes:       axes,
		Table: MergedTable{
			Header: append([]string{t.TimeColumn}, t.Names()...),
			Times:  times,
			Rows:   make([][]string, n),
		},
	}
	for i := 0; i < n; i++ {
		row := make([]string, 0, len(t.Columns)+1)
		row = append(row, times[i].Format(TimeLayout))
		for k := range t.Columns {
			row = append(row, t.Columns[k].Cell(i))
		}
		out.Table.Rows[i] = row
	}
	for k := range t.Columns {
		c := &t.Columns[k]
		if c.Kind != table.KindNumeric {
			continue
		}
		tr := Trace{Name: c.Name, Axis: axes.Of(c.Name), X: times, Y: make([]*float64, n)}
		for i := 0; i < n; i++ {
			if v, ok := c.Value(i); ok {
				v := v
				tr.Y[i] = &v
			}
		}
		out.Traces = append(out.Traces, tr)
	}
	return out
}
