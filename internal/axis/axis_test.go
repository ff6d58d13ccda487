package axis

import "testing"

var cols = []Candidate{
	{Name: "CHW Flow", RawName: "Plant Pumps.CHW Flow", Numeric: true},
	{Name: "Active CW Flow Setpoint", RawName: "Plant Pumps.Active CW Flow Setpoint", Numeric: true},
	{Name: "Status", RawName: "Pump.Status", Numeric: false},
	{Name: "Status (2)", RawName: "Other.Status", Numeric: true},
}

func secondaries(a Assignment) []string {
	var out []string
	for _, n := range a.Columns() {
		if a.Of(n) == Secondary {
			out = append(out, n)
		}
	}
	return out
}

func TestClassifyRequested(t *testing.T) {
	cases := []struct {
		req, want, rule string
	}{
		{"chw flow", "CHW Flow", "sanitized"},
		{"Other.Status", "Status (2)", "raw"},
		{"Device.CHW Flow", "CHW Flow", "stripped"},
		{"  status  ", "Status", "sanitized"},
	}
	for _, tc := range cases {
		a := Classify(cols, Options{Requested: tc.req, Heuristic: true})
		got, ok := a.Secondary()
		if !ok || got != tc.want || a.Rule != tc.rule {
			t.Fatalf("Classify(%q) = %q via %q, want %q via %q", tc.req, got, a.Rule, tc.want, tc.rule)
		}
		if s := secondaries(a); len(s) != 1 {
			t.Fatalf("expected exactly one secondary column, got %q", s)
		}
	}
}

func TestClassifyUnmatchedRequestDisablesHeuristic(t *testing.T) {
	a := Classify(cols, Options{Requested: "Nope", Heuristic: true})
	if _, ok := a.Secondary(); ok {
		t.Fatalf("expected no secondary column")
	}
	for _, n := range a.Columns() {
		if a.Of(n) != Primary {
			t.Fatalf("%s should be primary", n)
		}
	}
}

func TestClassifyHeuristic(t *testing.T) {
	a := Classify(cols, Options{Heuristic: true})
	if got, _ := a.Secondary(); got != "Active CW Flow Setpoint" || a.Rule != "heuristic:known-setpoint" {
		t.Fatalf("got %q via %q", got, a.Rule)
	}

	tokens := []Candidate{
		{Name: "Flow", Numeric: true},
		{Name: "Loop Flow Setpoint Text", Numeric: false},
		{Name: "Secondary Flow Setpoint", Numeric: true},
	}
	a = Classify(tokens, Options{Heuristic: true})
	if got, _ := a.Secondary(); got != "Secondary Flow Setpoint" || a.Rule != "heuristic:flow-setpoint-tokens" {
		t.Fatalf("got %q via %q", got, a.Rule)
	}

	a = Classify(cols, Options{})
	if _, ok := a.Secondary(); ok {
		t.Fatalf("heuristic disabled but a column was chosen")
	}
}
