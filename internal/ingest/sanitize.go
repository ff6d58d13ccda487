package ingest

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/table"
)

// DroppedColumn records a column removed by the Sanitizer.
type DroppedColumn struct {
	Header string `json:"header"`
	Reason string `json:"reason"`
}

// Report summarizes what sanitization removed.
type Report struct {
	Dropped       []DroppedColumn
	InvalidRows   int
	DuplicateRows int
}

// A dropRule removes a column by name. Rules run against both the
// prefix-stripped and the raw header so "Device.Sequence" is caught too.
type dropRule struct {
	reason string
	match  func(name string) bool
}

var (
	anonymousHeader = regexp.MustCompile(`(?i)^(unnamed.*|column\s*\d+|field\s*\d+|\d+)$`)
	sequenceHeader  = regexp.MustCompile(`(?i)^(sequence|seq|index|idx)(\s*(#|no\.?|num(ber)?|id))?$`)
	rowHeader       = regexp.MustCompile(`(?i)^(row|sample|record)(\s*(#|no\.?|num(ber)?|id))?$`)
)

var dropRules = []dropRule{
	{"anonymous header", func(n string) bool { return n == "" || anonymousHeader.MatchString(n) }},
	{"sequence column", sequenceHeader.MatchString},
	{"row counter", rowHeader.MatchString},
}

func dropReason(raw string) (string, bool) {
	names := []string{table.StripDevicePrefix(raw), strings.TrimSpace(raw)}
	for _, r := range dropRules {
		for _, n := range names {
			if r.match(n) {
				return r.reason, true
			}
		}
	}
	return "", false
}

// Sanitize turns a RawTable and its resolved timestamp column into a
// SourceTable: rows without a valid timestamp are dropped, rows are sorted by
// time with duplicate timestamps removed (first wins), sequence and empty
// columns are removed, device prefixes are stripped and name collisions are
// suffixed.
func Sanitize(name string, t *table.RawTable, res *Resolution, nf table.NumberFormat) (*table.SourceTable, Report) {
	var rep Report

	rows := make([]int, 0, len(t.Rows))
	for r := range t.Rows {
		if res.Valid[r] {
			rows = append(rows, r)
		} else {
			rep.InvalidRows++
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return res.Times[rows[i]].Before(res.Times[rows[j]]) })
	kept := rows[:0]
	for i, r := range rows {
		if i > 0 && res.Times[r].Equal(res.Times[kept[len(kept)-1]]) {
			rep.DuplicateRows++
			continue
		}
		kept = append(kept, r)
	}

	timeName := strings.TrimSpace(res.Name)
	src := &table.SourceTable{
		Name:       name,
		TimeColumn: timeName,
		Times:      make([]time.Time, len(kept)),
	}
	for i, r := range kept {
		src.Times[i] = res.Times[r]
	}

	names := table.NewNameSet(timeName)
	cells := make([]string, len(kept))
	for c, header := range t.Headers {
		if c == res.Index {
			continue
		}
		if reason, drop := dropReason(header); drop {
			rep.Dropped = append(rep.Dropped, DroppedColumn{Header: header, Reason: reason})
			continue
		}
		for i, r := range kept {
			cells[i] = t.Rows[r][c]
		}
		col := table.Coerce(table.StripDevicePrefix(header), strings.TrimSpace(header), cells, nf)
		if col.Count() == 0 {
			rep.Dropped = append(rep.Dropped, DroppedColumn{Header: header, Reason: "empty"})
			continue
		}
		col.Name = names.Claim(col.Name)
		src.Columns = append(src.Columns, col)
	}
	return src, rep
}
