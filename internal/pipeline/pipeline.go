// Package pipeline runs one merge invocation end to end: ingest every input,
// align the secondaries onto the primary clock, classify axes and assemble
// the export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/align"
	"github.com/KaramelBytes/trendmerge/internal/axis"
	"github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/export"
	"github.com/KaramelBytes/trendmerge/internal/ingest"
	"github.com/KaramelBytes/trendmerge/internal/table"
	"github.com/google/uuid"
)

// Input roles.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// Input is one uploaded or local file.
type Input struct {
	Name string
	Data []byte
}

// Request carries every parameter of a merge.
type Request struct {
	Primary     Input
	Secondaries []Input
	Tolerance   time.Duration
	Cutoff      *time.Time
	// Setpoint is the requested secondary-axis column; empty enables the heuristic.
	Setpoint string
	Ingest   ingest.Options
}

// InputError identifies the input that failed to ingest.
type InputError struct {
	Role string
	Name string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s input %q: %v", e.Role, e.Name, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Warning is a non-fatal problem recorded during a merge.
type Warning struct {
	Input   string `json:"input"`
	Message string `json:"message"`
}

// SourceSummary describes how one input was read.
type SourceSummary struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Encoding   string `json:"encoding"`
	Delimiter  string `json:"delimiter,omitempty"`
	TimeColumn string `json:"time_column"`
	TimeRule   string `json:"time_rule"`
	Rows       int    `json:"rows"`
	Columns    int    `json:"columns"`
	Dropped    int    `json:"dropped"`
}

// Result is the outcome of a merge.
type Result struct {
	RunID    string
	Aligned  *align.AlignedTable
	Assembly *export.Assembly
	Sources  []SourceSummary
	Warnings []Warning
	Elapsed  time.Duration
}

// IsInputError reports whether err was caused by unusable input data rather
// than an internal failure.
func IsInputError(err error) bool {
	var de *ingest.DecodeError
	var nt *ingest.NoTimestampError
	var ere *align.EmptyReferenceError
	return errors.As(err, &de) || errors.As(err, &nt) || errors.As(err, &ere)
}

// Run executes a merge. Failures on the primary input abort; failures on a
// secondary input are recorded as warnings and the input is skipped. ctx is
// checked between inputs only.
func Run(ctx context.Context, log *slog.Logger, req Request) (*Result, error) {
	if log == nil {
		log = slog.Default()
	}
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log = log.With("run_id", res.RunID)

	primary, sum, err := load(req.Primary, RolePrimary, req.Ingest)
	if err != nil {
		log.Error("primary input rejected", "input", req.Primary.Name, "err", err)
		return nil, &InputError{Role: RolePrimary, Name: req.Primary.Name, Err: err}
	}
	res.Sources = append(res.Sources, sum)

	var secondaries []*table.SourceTable
	for _, in := range req.Secondaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, sum, err := load(in, RoleSecondary, req.Ingest)
		if err != nil {
			log.Warn("secondary input skipped", "input", in.Name, "err", err)
			res.Warnings = append(res.Warnings, Warning{Input: in.Name, Message: err.Error()})
			continue
		}
		res.Sources = append(res.Sources, sum)
		secondaries = append(secondaries, src)
	}

	aligned, err := align.Align(primary, secondaries, align.Options{Tolerance: req.Tolerance, Cutoff: req.Cutoff})
	if err != nil {
		log.Error("alignment failed", "err", err)
		return nil, err
	}
	for _, s := range aligned.Skipped {
		res.Warnings = append(res.Warnings, Warning{Input: s.Source, Message: fmt.Sprintf("column %q skipped: %s", s.Name, s.Reason)})
	}
	res.Aligned = aligned

	axes := axis.Classify(axis.Candidates(aligned), axis.Options{Requested: req.Setpoint, Heuristic: true})
	if req.Setpoint != "" {
		if _, ok := axes.Secondary(); !ok {
			res.Warnings = append(res.Warnings, Warning{Message: fmt.Sprintf("setpoint column %q not found; all traces on the primary axis", req.Setpoint)})
		}
	}
	res.Assembly = export.Assemble(aligned, axes)
	res.Elapsed = time.Since(start)

	sp, _ := axes.Secondary()
	log.Info("merge complete",
		"inputs", 1+len(req.Secondaries),
		"merged_inputs", 1+len(secondaries),
		"rows", aligned.Len(),
		"columns", len(aligned.Columns),
		"setpoint", sp,
		"warnings", len(res.Warnings),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func load(in Input, role string, opt ingest.Options) (*table.SourceTable, SourceSummary, error) {
	ins, err := ingest.Inspect(in.Name, in.Data, opt)
	if err != nil {
		return nil, SourceSummary{}, err
	}
	sum := SourceSummary{
		Name:       in.Name,
		Role:       role,
		Encoding:   ins.Raw.Encoding,
		TimeColumn: ins.Table.TimeColumn,
		TimeRule:   ins.Resolution.Rule,
		Rows:       ins.Table.Len(),
		Columns:    len(ins.Table.Columns),
		Dropped:    len(ins.Report.Dropped),
	}
	if ins.Raw.Delimiter != 0 {
		sum.Delimiter = string(ins.Raw.Delimiter)
	}
	return ins.Table, sum, nil
}

// ParseCutoff parses a user-supplied cutoff. Empty input means no cutoff.
func ParseCutoff(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	ts, ok := ingest.ParseTimestamp(s)
	if !ok {
		return nil, fmt.Errorf("unrecognized cutoff timestamp %q", s)
	}
	return &ts, nil
}

// IngestOptions derives reader and resolver settings from the configuration.
func IngestOptions(c *config.Global) ingest.Options {
	opt := ingest.DefaultOptions()
	if c == nil {
		return opt
	}
	opt.Reader.Delimiter = c.DelimiterRune()
	if c.TimestampThreshold > 0 {
		opt.Resolver.Threshold = c.TimestampThreshold
	}
	return opt
}

// PlotlyScript reads the configured plotly bundle for offline viewers. It
// returns nil when none is configured.
func PlotlyScript(c *config.Global) ([]byte, error) {
	if c == nil || strings.TrimSpace(c.PlotlyJSFile) == "" {
		return nil, nil
	}
	b, err := os.ReadFile(c.PlotlyJSFile)
	if err != nil {
		return nil, fmt.Errorf("read plotly_js_file: %w", err)
	}
	return b, nil
}

// Tolerance converts seconds to a duration, clamped to
// [0, config.MaxToleranceSec] so large inputs cannot overflow.
func Tolerance(seconds float64) time.Duration {
	switch {
	case math.IsNaN(seconds) || seconds <= 0:
		return 0
	case seconds > config.MaxToleranceSec:
		seconds = config.MaxToleranceSec
	}
	return time.Duration(seconds * float64(time.Second))
}
