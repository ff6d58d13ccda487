package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags clears values and Changed state left behind by earlier invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd is a helper to execute the root command with args and return stdout.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	cfg = nil
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// isolateHome points HOME at a temp dir so config and exports stay local.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const (
	primaryExport = "Time Stamp,Plant Pumps.CW Pump Speed,Sequence\n" +
		"2024-01-01 10:00:00,40,1\n" +
		"2024-01-01 10:00:05,41,2\n" +
		"2024-01-01 10:00:10,42,3\n"
	setpointExport = "Timestamp,Plant Pumps.Active CW Flow Setpoint\n" +
		"2024-01-01 10:00:01,1200\n" +
		"2024-01-01 10:00:11,1250\n"
)

func TestCLI_MergeWritesOutputs(t *testing.T) {
	home := isolateHome(t)
	p := writeFile(t, filepath.Join(home, "orig.csv"), primaryExport)
	s := writeFile(t, filepath.Join(home, "sp.csv"), setpointExport)
	outDir := filepath.Join(home, "out")

	out := runCmd(t, "merge", p, s, "--tolerance", "2", "--title", "Loop 7", "-o", outDir, "--format", "csv", "--format", "html")
	if !strings.Contains(out, "✓ Merged 3 rows") {
		t.Fatalf("missing merge summary:\n%s", out)
	}
	if !strings.Contains(out, "setpoint axis: Active CW Flow Setpoint") {
		t.Fatalf("setpoint not reported:\n%s", out)
	}
	b, err := os.ReadFile(filepath.Join(outDir, "Loop 7 - merged.csv"))
	if err != nil {
		t.Fatalf("read merged csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if lines[0] != "Time Stamp,CW Pump Speed,Active CW Flow Setpoint" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("expected 3 data rows, got %d", len(lines)-1)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Loop 7 - Trend Viewer.html")); err != nil {
		t.Fatalf("missing viewer: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Loop 7 - chart.png")); err == nil {
		t.Fatalf("png written although not requested")
	}
}

func TestCLI_MergeZipAndSave(t *testing.T) {
	home := isolateHome(t)
	p := writeFile(t, filepath.Join(home, "orig.csv"), primaryExport)
	zipPath := filepath.Join(home, "bundle.zip")

	runCmd(t, "merge", p, "-o", zipPath, "--save", "-q")
	if fi, err := os.Stat(zipPath); err != nil || fi.Size() == 0 {
		t.Fatalf("bundle not written: %v", err)
	}

	out := runCmd(t, "exports", "list")
	if !strings.Contains(out, `"CW Loop" (3 rows)`) {
		t.Fatalf("saved export not listed:\n%s", out)
	}
	if !strings.Contains(out, "csv,html,png,xlsx") {
		t.Fatalf("expected all stored formats:\n%s", out)
	}
	out = runCmd(t, "exports", "latest")
	if !strings.Contains(out, "nothing published") {
		t.Fatalf("unexpected latest output:\n%s", out)
	}
}

func TestCLI_MergeUnusablePrimaryFails(t *testing.T) {
	home := isolateHome(t)
	p := writeFile(t, filepath.Join(home, "bad.csv"), "A,B\nx,1\ny,2\n")
	if _, err := execCmd("merge", p, "-o", filepath.Join(home, "out")); err == nil {
		t.Fatalf("expected error for primary without timestamps")
	}
}

func TestCLI_InspectJSON(t *testing.T) {
	home := isolateHome(t)
	p := writeFile(t, filepath.Join(home, "orig.csv"), primaryExport)

	out := runCmd(t, "inspect", p, "--json")
	var rep inspectReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if rep.TimeColumn != "Time Stamp" || rep.TimeRule != "label" {
		t.Fatalf("unexpected timestamp resolution: %+v", rep)
	}
	if len(rep.Columns) != 1 || rep.Columns[0].Name != "CW Pump Speed" {
		t.Fatalf("unexpected columns: %+v", rep.Columns)
	}
	if len(rep.Dropped) != 1 || rep.Dropped[0].Header != "Sequence" {
		t.Fatalf("expected Sequence dropped: %+v", rep.Dropped)
	}

	text := runCmd(t, "inspect", p)
	if !strings.Contains(text, "Delimiter:   ,") {
		t.Fatalf("delimiter not reported:\n%s", text)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	isolateHome(t)
	runCmd(t, "config", "set", "tolerance_sec", "9")
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "tolerance_sec: 9") {
		t.Fatalf("tolerance not saved:\n%s", out)
	}
	if _, err := execCmd("config", "set", "recent_limit", "0"); err == nil {
		t.Fatalf("expected validation error for recent_limit 0")
	}
	if _, err := execCmd("config", "set", "github_token", "abc"); err == nil {
		t.Fatalf("expected secrets to be rejected")
	}
}

func TestCLI_MergeReport(t *testing.T) {
	home := isolateHome(t)
	p := writeFile(t, filepath.Join(home, "orig.csv"), primaryExport)
	s := writeFile(t, filepath.Join(home, "sp.csv"), setpointExport)
	outDir := filepath.Join(home, "out")

	out := runCmd(t, "merge", p, s, "--tolerance", "2", "-o", outDir, "--format", "csv", "--report")
	if !strings.Contains(out, "[MERGE SUMMARY]") {
		t.Fatalf("summary not printed:\n%s", out)
	}
	b, err := os.ReadFile(filepath.Join(outDir, "CW Loop - summary.md"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(b), "- Active CW Flow Setpoint (numeric, from sp.csv): coverage 100.0% [matched 2, filled 1]") {
		t.Fatalf("unexpected summary:\n%s", b)
	}
}

func TestCLI_MergeRejectsHugeTolerance(t *testing.T) {
	home := isolateHome(t)
	p := writeFile(t, filepath.Join(home, "orig.csv"), primaryExport)
	_, err := execCmd("merge", p, "--tolerance", "1e10", "-o", filepath.Join(home, "out"))
	if err == nil || !strings.Contains(err.Error(), "between 0 and 86400") {
		t.Fatalf("expected tolerance bound error, got %v", err)
	}
}
