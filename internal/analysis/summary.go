// Package analysis summarizes a merged table: per-column coverage (how many
// cells were native, matched or forward-filled) and numeric statistics with
// robust outlier counts.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/align"
	"github.com/KaramelBytes/trendmerge/internal/table"
)

// Options controls the summary.
type Options struct {
	Outliers bool
	// OutlierThreshold is the robust |z| above which a value counts as an outlier.
	OutlierThreshold float64
}

// DefaultOptions returns MAD-based outlier detection at |z| > 3.5.
func DefaultOptions() Options {
	return Options{Outliers: true, OutlierThreshold: 3.5}
}

// Report is a markdown-friendly summary of a merged table.
type Report struct {
	Title      string
	TimeColumn string
	Rows       int
	Start, End time.Time
	Cols       []ColumnSummary
	Warnings   []string
}

// ColumnSummary captures coverage and statistics per column.
type ColumnSummary struct {
	Name   string
	Source string
	Kind   string
	// Coverage by cell state.
	Native  int
	Matched int
	Filled  int
	Absent  int
	// Numeric stats over present cells
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
}

// Coverage is the fraction of rows carrying a value.
func (c ColumnSummary) Coverage() float64 {
	total := c.Native + c.Matched + c.Filled + c.Absent
	if total == 0 {
		return 0
	}
	return float64(total-c.Absent) / float64(total)
}

// Summarize builds a report for t.
func Summarize(title string, t *align.AlignedTable, opt Options) *Report {
	r := &Report{Title: title, TimeColumn: t.TimeColumn, Rows: t.Len()}
	if r.Rows > 0 {
		r.Start = t.Clock.At(0)
		r.End = t.Clock.At(r.Rows - 1)
	}
	for i := range t.Columns {
		col := &t.Columns[i]
		cs := ColumnSummary{
			Name:    col.Name,
			Source:  col.Source,
			Kind:    col.Kind.String(),
			Native:  col.Count(align.Native),
			Matched: col.Count(align.Matched),
			Filled:  col.Count(align.Filled),
			Absent:  col.Count(align.Absent),
		}
		if col.Kind == table.KindNumeric {
			numericStats(&cs, col, opt)
		}
		if cs.Absent == r.Rows && r.Rows > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("column %q has no values inside the tolerance window", col.Name))
		}
		r.Cols = append(r.Cols, cs)
	}
	for _, s := range t.Skipped {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: column %q skipped (%s)", s.Source, s.Name, s.Reason))
	}
	return r
}

func numericStats(cs *ColumnSummary, col *align.AlignedColumn, opt Options) {
	vals := make([]float64, 0, len(col.Values))
	for i := range col.State {
		if v, ok := col.Value(i); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return
	}
	cs.Min, cs.Max = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		cs.Min = math.Min(cs.Min, v)
		cs.Max = math.Max(cs.Max, v)
		sum += v
	}
	cs.Mean = sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := v - cs.Mean
		ss += d * d
	}
	if len(vals) > 1 {
		cs.Std = math.Sqrt(ss / float64(len(vals)-1))
	}

	if !opt.Outliers || opt.OutlierThreshold <= 0 {
		return
	}
	cs.OutlierThreshold = opt.OutlierThreshold
	med, mad := medianMAD(vals)
	if mad == 0 {
		return
	}
	// 0.6745 scales MAD to a standard deviation under normality.
	for _, v := range vals {
		z := math.Abs(0.6745 * (v - med) / mad)
		if z > opt.OutlierThreshold {
			cs.OutliersCount++
		}
		if z > cs.OutliersMaxAbsZ {
			cs.OutliersMaxAbsZ = z
		}
	}
}

// Markdown renders a compact report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[MERGE SUMMARY]\n")
	if r.Title != "" {
		b.WriteString(fmt.Sprintf("Title: %s\n", r.Title))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	if r.Rows > 0 {
		b.WriteString(fmt.Sprintf("Span: %s to %s (%s)\n",
			r.Start.Format("2006-01-02 15:04:05"), r.End.Format("2006-01-02 15:04:05"), r.End.Sub(r.Start)))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[COLUMNS]\n")
	for _, c := range r.Cols {
		b.WriteString(fmt.Sprintf("- %s (%s, from %s): coverage %.1f%%", safeName(c.Name), c.Kind, c.Source, c.Coverage()*100))
		switch {
		case c.Native > 0:
			b.WriteString(fmt.Sprintf(" [native %d]", c.Native))
		case c.Matched+c.Filled > 0:
			b.WriteString(fmt.Sprintf(" [matched %d, filled %d]", c.Matched, c.Filled))
		}
		if c.Kind == "numeric" && c.Absent < c.Native+c.Matched+c.Filled+c.Absent {
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
			if c.OutlierThreshold > 0 && c.OutliersCount > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f (max |z|≈%.2f)", c.OutliersCount, c.OutlierThreshold, c.OutliersMaxAbsZ))
			}
		}
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		ws := append([]string(nil), r.Warnings...)
		sort.Strings(ws)
		for _, w := range ws {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func safeName(s string) string { return strings.ReplaceAll(s, "\n", " ") }

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
