package ingest

import (
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/table"
)

// DefaultTimestampThreshold is the minimum fraction of non-empty cells that
// must parse for a column to be accepted as the timestamp column.
const DefaultTimestampThreshold = 0.8

// TimestampLabels are the header names tried first, in priority order.
var TimestampLabels = []string{
	"Time Stamp",
	"Timestamp",
	"Date Time",
	"DateTime",
	"Date/Time",
	"Date",
	"Time",
}

// ResolverOptions tunes the Timestamp Resolver.
type ResolverOptions struct {
	Threshold float64
}

// Resolution is the outcome of timestamp resolution for one table.
type Resolution struct {
	Index int
	Name  string
	// Times and Valid are index-aligned with the table rows.
	Times    []time.Time
	Valid    []bool
	Parsed   int
	NonEmpty int
	// Rule names the rule that selected the column.
	Rule string
}

// Ratio is the parsed fraction of non-empty cells.
func (r *Resolution) Ratio() float64 {
	if r.NonEmpty == 0 {
		return 0
	}
	return float64(r.Parsed) / float64(r.NonEmpty)
}

// A columnRule yields candidate column indexes in priority order.
type columnRule struct {
	name       string
	candidates func(headers []string) []int
	permissive bool
}

// headerMatchers are applied per label, strictest first.
var headerMatchers = []struct {
	name  string
	match func(header, label string) bool
}{
	{"exact", func(h, l string) bool { return h == l }},
	{"case-insensitive", strings.EqualFold},
	{"trimmed", func(h, l string) bool { return strings.EqualFold(strings.TrimSpace(h), l) }},
}

var timeTokens = []string{"time", "date"}

// resolverRules is the ordered rule chain. The first column that clears the
// threshold wins, so label priority beats column position.
var resolverRules = []columnRule{
	{name: "label", candidates: labelCandidates},
	{name: "token", candidates: tokenCandidates},
	{name: "scan", candidates: allColumns},
	{name: "first-column", candidates: firstColumn, permissive: true},
}

func labelCandidates(headers []string) []int {
	var out []int
	seen := map[int]bool{}
	for _, label := range TimestampLabels {
		for _, m := range headerMatchers {
			for i, h := range headers {
				if !seen[i] && m.match(h, label) {
					seen[i] = true
					out = append(out, i)
				}
			}
		}
	}
	return out
}

func tokenCandidates(headers []string) []int {
	var out []int
	for i, h := range headers {
		lower := strings.ToLower(h)
		for _, tok := range timeTokens {
			if strings.Contains(lower, tok) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func allColumns(headers []string) []int {
	out := make([]int, len(headers))
	for i := range headers {
		out[i] = i
	}
	return out
}

func firstColumn(headers []string) []int {
	if len(headers) == 0 {
		return nil
	}
	return []int{0}
}

// ResolveTimestamp picks the timestamp column of t.
func ResolveTimestamp(t *table.RawTable, opt ResolverOptions) (*Resolution, error) {
	threshold := opt.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTimestampThreshold
	}
	if len(t.Headers) == 0 || len(t.Rows) == 0 {
		return nil, &NoTimestampError{Reason: "table has no rows"}
	}
	tried := map[int]*Resolution{}
	for _, rule := range resolverRules {
		for _, idx := range rule.candidates(t.Headers) {
			res, ok := tried[idx]
			if !ok {
				res = parseColumn(t, idx)
				tried[idx] = res
			}
			if res.NonEmpty == 0 {
				continue
			}
			if !rule.permissive && res.Ratio() < threshold {
				continue
			}
			if res.Parsed < 2 {
				return nil, &NoTimestampError{
					Column: res.Name,
					Parsed: res.Parsed,
					Reason: "fewer than 2 rows parsed",
				}
			}
			out := *res
			out.Rule = rule.name
			return &out, nil
		}
	}
	return nil, &NoTimestampError{Reason: "no column contains parseable timestamps"}
}

func parseColumn(t *table.RawTable, idx int) *Resolution {
	res := &Resolution{
		Index: idx,
		Name:  t.Headers[idx],
		Times: make([]time.Time, len(t.Rows)),
		Valid: make([]bool, len(t.Rows)),
	}
	var p timeParser
	for r, row := range t.Rows {
		cell := row[idx]
		if table.IsNull(cell) {
			continue
		}
		res.NonEmpty++
		if ts, ok := p.parse(cell); ok {
			res.Times[r] = ts
			res.Valid[r] = true
			res.Parsed++
		}
	}
	return res
}
