// Package axis decides which aligned columns plot on the secondary
// (right-hand) axis.
package axis

import (
	"strings"

	"github.com/KaramelBytes/trendmerge/internal/align"
	"github.com/KaramelBytes/trendmerge/internal/table"
)

// Axis is a plotting axis.
type Axis int

const (
	Primary Axis = iota
	Secondary
)

func (a Axis) String() string {
	if a == Secondary {
		return "y2"
	}
	return "y"
}

// KnownSetpoints are tried, case-insensitively, when no column is requested.
var KnownSetpoints = []string{
	"Active CW Flow Setpoint",
	"CW Flow Setpoint",
}

// Assignment maps every column to an axis. At most one column is Secondary.
type Assignment struct {
	order     []string
	secondary string
	// Rule names how the secondary column was chosen; empty when none was.
	Rule string
}

// Of returns the axis for name.
func (a Assignment) Of(name string) Axis {
	if a.secondary != "" && name == a.secondary {
		return Secondary
	}
	return Primary
}

// Secondary returns the secondary column, if any.
func (a Assignment) Secondary() (string, bool) {
	return a.secondary, a.secondary != ""
}

// Columns returns the classified column names in table order.
func (a Assignment) Columns() []string {
	return append([]string(nil), a.order...)
}

// Candidate is the classifier's view of one aligned column.
type Candidate struct {
	Name    string
	RawName string
	Numeric bool
}

// Candidates extracts classifier input from an aligned table.
func Candidates(t *align.AlignedTable) []Candidate {
	out := make([]Candidate, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = Candidate{Name: c.Name, RawName: c.RawName, Numeric: c.Kind == table.KindNumeric}
	}
	return out
}

type requestRule struct {
	name  string
	match func(req string, c Candidate) bool
}

// requestRules match a user-requested name, strictest first.
var requestRules = []requestRule{
	{"sanitized", func(req string, c Candidate) bool { return strings.EqualFold(req, c.Name) }},
	{"raw", func(req string, c Candidate) bool { return strings.EqualFold(req, strings.TrimSpace(c.RawName)) }},
	{"stripped", func(req string, c Candidate) bool {
		return strings.EqualFold(table.StripDevicePrefix(req), c.Name)
	}},
}

// heuristicRules apply only when nothing was requested and only to numeric
// columns. They are a best guess, not a guarantee.
var heuristicRules = []requestRule{
	{"known-setpoint", func(_ string, c Candidate) bool {
		for _, k := range KnownSetpoints {
			if strings.EqualFold(k, c.Name) || strings.EqualFold(k, table.StripDevicePrefix(c.RawName)) {
				return true
			}
		}
		return false
	}},
	{"flow-setpoint-tokens", func(_ string, c Candidate) bool {
		lower := strings.ToLower(c.Name)
		return strings.Contains(lower, "flow") && strings.Contains(lower, "setpoint")
	}},
}

// Options controls classification.
type Options struct {
	// Requested is the user-supplied setpoint column name.
	Requested string
	// Heuristic enables the fallback rules when Requested is empty.
	Heuristic bool
}

// Classify assigns the requested (or heuristically detected) column to the
// secondary axis and everything else to the primary axis.
func Classify(cols []Candidate, opt Options) Assignment {
	a := Assignment{order: make([]string, len(cols))}
	for i, c := range cols {
		a.order[i] = c.Name
	}
	req := strings.TrimSpace(opt.Requested)
	if req != "" {
		if name, rule, ok := firstMatch(requestRules, req, cols, false); ok {
			a.secondary, a.Rule = name, rule
		}
		return a
	}
	if opt.Heuristic {
		if name, rule, ok := firstMatch(heuristicRules, "", cols, true); ok {
			a.secondary, a.Rule = name, "heuristic:"+rule
		}
	}
	return a
}

func firstMatch(rules []requestRule, req string, cols []Candidate, numericOnly bool) (string, string, bool) {
	for _, r := range rules {
		for _, c := range cols {
			if numericOnly && !c.Numeric {
				continue
			}
			if r.match(req, c) {
				return c.Name, r.name, true
			}
		}
	}
	return "", "", false
}
