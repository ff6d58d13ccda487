package export

import (
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/align"
	"github.com/KaramelBytes/trendmerge/internal/axis"
	"github.com/KaramelBytes/trendmerge/internal/table"
)

func aligned(t *testing.T) *align.AlignedTable {
	t.Helper()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	primary := &table.SourceTable{
		Name:       "orig.csv",
		TimeColumn: "Time Stamp",
		Times:      []time.Time{base, base.Add(5 * time.Second), base.Add(10 * time.Second)},
		Columns: []table.Column{
			table.Coerce("Flow", "Pump.Flow", []string{"1", "2", "3"}, table.NumberFormat{}),
			table.Coerce("Mode", "Mode", []string{"Auto", "", "Hand"}, table.NumberFormat{}),
		},
	}
	secondary := &table.SourceTable{
		Name:    "sp.csv",
		Times:   []time.Time{base.Add(6 * time.Second)},
		Columns: []table.Column{table.Coerce("CW Flow Setpoint", "CW Flow Setpoint", []string{"1200.5"}, table.NumberFormat{})},
	}
	out, err := align.Align(primary, []*table.SourceTable{secondary}, align.Options{Tolerance: 2 * time.Second})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	return out
}

func TestAssembleTable(t *testing.T) {
	at := aligned(t)
	asm := Assemble(at, axis.Classify(axis.Candidates(at), axis.Options{Heuristic: true}))
	if got := strings.Join(asm.Table.Header, "|"); got != "Time Stamp|Flow|Mode|CW Flow Setpoint" {
		t.Fatalf("header = %q", got)
	}
	want := [][]string{
		{"2024-01-01 10:00:00", "1", "Auto", ""},
		{"2024-01-01 10:00:05", "2", "", "1200.5"},
		{"2024-01-01 10:00:10", "3", "Hand", "1200.5"},
	}
	for i, row := range want {
		if strings.Join(asm.Table.Rows[i], "|") != strings.Join(row, "|") {
			t.Fatalf("row %d = %q, want %q", i, asm.Table.Rows[i], row)
		}
	}
}

func TestAssembleTraces(t *testing.T) {
	at := aligned(t)
	asm := Assemble(at, axis.Classify(axis.Candidates(at), axis.Options{Heuristic: true}))
	if len(asm.Traces) != 2 {
		t.Fatalf("traces = %d, want 2 (text columns are not plotted)", len(asm.Traces))
	}
	sp := asm.Traces[1]
	if sp.Name != "CW Flow Setpoint" || sp.Axis != axis.Secondary {
		t.Fatalf("trace = %q on %v", sp.Name, sp.Axis)
	}
	if sp.Y[0] != nil || sp.Y[1] == nil || *sp.Y[2] != 1200.5 {
		t.Fatalf("setpoint y = %v", sp.Y)
	}
	if asm.Traces[0].Axis != axis.Primary {
		t.Fatalf("Flow should be on the primary axis")
	}
	if name, ok := asm.Secondary(); !ok || name != "CW Flow Setpoint" {
		t.Fatalf("secondary = %q", name)
	}
}
