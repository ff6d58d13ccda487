package ingest_test

import (
	"errors"
	"testing"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/ingest"
	"github.com/KaramelBytes/trendmerge/internal/table"
)

func rawTable(headers []string, rows ...[]string) *table.RawTable {
	return &table.RawTable{Headers: headers, Rows: rows}
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T10:00:00Z", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-01-01T10:00:00.250Z", time.Date(2024, 1, 1, 10, 0, 0, 250e6, time.UTC)},
		{"2024-01-01 10:00:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-01-01 10:00:00 -0500", time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)},
		{"1/2/2024 13:05:00", time.Date(2024, 1, 2, 13, 5, 0, 0, time.UTC)},
		{"1/2/2024 1:05:00 pm", time.Date(2024, 1, 2, 13, 5, 0, 0, time.UTC)},
		{"1/2/24 1:05 AM", time.Date(2024, 1, 2, 1, 5, 0, 0, time.UTC)},
		{"2-jan-24 1:05:00 PM", time.Date(2024, 1, 2, 13, 5, 0, 0, time.UTC)},
		{"Jan 2, 2024 3:04:05 PM", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"02.01.2024 10:00", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"2024/01/02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := ingest.ParseTimestamp(tc.in)
		if !ok {
			t.Fatalf("ParseTimestamp(%q) failed", tc.in)
		}
		if !got.Equal(tc.want) || got.Location() != time.UTC {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "42", "hello", "10.5"} {
		if _, ok := ingest.ParseTimestamp(bad); ok {
			t.Fatalf("ParseTimestamp(%q) should fail", bad)
		}
	}
}

func TestResolveLabelPriorityBeatsPosition(t *testing.T) {
	raw := rawTable([]string{"Date", "Time Stamp", "Flow"},
		[]string{"2024-01-01", "2024-01-01 10:00:00", "1"},
		[]string{"2024-01-02", "2024-01-01 10:00:05", "2"},
	)
	res, err := ingest.ResolveTimestamp(raw, ingest.ResolverOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "Time Stamp" || res.Rule != "label" {
		t.Fatalf("got %q via %q", res.Name, res.Rule)
	}
}

func TestResolveCaseAndSpaceTolerantLabel(t *testing.T) {
	raw := rawTable([]string{"Flow", " TIMESTAMP "},
		[]string{"1", "2024-01-01 10:00:00"},
		[]string{"2", "2024-01-01 10:00:05"},
	)
	res, err := ingest.ResolveTimestamp(raw, ingest.ResolverOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Index != 1 || res.Rule != "label" {
		t.Fatalf("index=%d rule=%q", res.Index, res.Rule)
	}
}

func TestResolveTokenRule(t *testing.T) {
	raw := rawTable([]string{"Flow", "Trend Date (EST)"},
		[]string{"1", "1/2/2024 10:00:00"},
		[]string{"2", "1/2/2024 10:00:05"},
	)
	res, err := ingest.ResolveTimestamp(raw, ingest.ResolverOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "Trend Date (EST)" || res.Rule != "token" {
		t.Fatalf("got %q via %q", res.Name, res.Rule)
	}
}

func TestResolveThresholdFallsThroughToScan(t *testing.T) {
	raw := rawTable([]string{"Timestamp", "When", "Flow"},
		[]string{"2024-01-01 10:00:00", "2024-01-01 10:00:00", "1"},
		[]string{"garbage", "2024-01-01 10:00:05", "2"},
		[]string{"garbage", "2024-01-01 10:00:10", "3"},
		[]string{"", "2024-01-01 10:00:15", "4"},
	)
	res, err := ingest.ResolveTimestamp(raw, ingest.ResolverOptions{Threshold: 0.8})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "When" || res.Rule != "scan" || res.Parsed != 4 {
		t.Fatalf("got %q via %q parsed=%d", res.Name, res.Rule, res.Parsed)
	}
}

func TestResolveFirstColumnPermissive(t *testing.T) {
	raw := rawTable([]string{"A", "B"},
		[]string{"2024-01-01 10:00:00", "1"},
		[]string{"x", "2"},
		[]string{"y", "3"},
		[]string{"2024-01-01 10:00:15", "4"},
		[]string{"z", "5"},
	)
	res, err := ingest.ResolveTimestamp(raw, ingest.ResolverOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Index != 0 || res.Rule != "first-column" || res.Parsed != 2 {
		t.Fatalf("index=%d rule=%q parsed=%d", res.Index, res.Rule, res.Parsed)
	}
	if res.Ratio() != 0.4 {
		t.Fatalf("ratio = %v", res.Ratio())
	}
}

func TestResolveNoTimestamp(t *testing.T) {
	cases := map[string]*table.RawTable{
		"no parseable column": rawTable([]string{"A", "B"}, []string{"x", "1"}, []string{"y", "2"}),
		"single row":          rawTable([]string{"Timestamp", "B"}, []string{"2024-01-01 10:00:00", "1"}),
		"no rows":             rawTable([]string{"Timestamp"}),
	}
	for name, raw := range cases {
		_, err := ingest.ResolveTimestamp(raw, ingest.ResolverOptions{})
		var nt *ingest.NoTimestampError
		if !errors.As(err, &nt) {
			t.Fatalf("%s: expected NoTimestampError, got %v", name, err)
		}
	}
}
