package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/analysis"
	cfgpkg "github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/pipeline"
	"github.com/KaramelBytes/trendmerge/internal/publish"
	"github.com/KaramelBytes/trendmerge/internal/render"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"github.com/KaramelBytes/trendmerge/internal/utils"
	"github.com/spf13/cobra"
)

var (
	mgTolerance float64
	mgTitle     string
	mgSetpoint  string
	mgY1Min     float64
	mgY1Max     float64
	mgCutoff    string
	mgOut       string
	mgFormats   []string
	mgDelimiter string
	mgSheet     string
	mgSave      bool
	mgPublish   bool
	mgQuiet     bool
	mgReport    bool
)

// Written to an output directory when --format is not given.
var defaultFileFormats = []render.Format{render.FormatCSV, render.FormatXLSX, render.FormatHTML, render.FormatPNG}

var mergeCmd = &cobra.Command{
	Use:   "merge <primary> [secondary...]",
	Short: "Align secondary trend exports onto the primary export's timestamps",
	Long: `Merge reads the primary export and every secondary export (globs are expanded),
matches each secondary sample to the nearest primary timestamp within --tolerance,
forward-fills the gaps and writes the merged table, trend viewer and chart.

--out may be a directory (default ".") or a path ending in .zip for the bundle only.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		flags := cmd.Flags()

		secondaries, err := expandInputs(args[1:], args[0])
		if err != nil {
			return err
		}

		ingestOpt := pipeline.IngestOptions(c)
		if mgDelimiter != "" {
			d := cfgpkg.Global{Delimiter: mgDelimiter}
			if ingestOpt.Reader.Delimiter = d.DelimiterRune(); ingestOpt.Reader.Delimiter == 0 {
				return fmt.Errorf("unsupported --delimiter: %s (use ','|';'|'tab'|'|')", mgDelimiter)
			}
		}
		ingestOpt.Reader.Sheet = mgSheet

		tolerance := c.ToleranceSec
		if flags.Changed("tolerance") {
			tolerance = mgTolerance
		}
		if !(tolerance >= 0 && tolerance <= cfgpkg.MaxToleranceSec) {
			return fmt.Errorf("--tolerance must be between 0 and %d seconds", cfgpkg.MaxToleranceSec)
		}
		ropt := render.Options{Title: c.DefaultTitle, Y1Min: c.Y1Min, Y1Max: c.Y1Max}
		if ropt.PlotlyJS, err = pipeline.PlotlyScript(c); err != nil {
			return err
		}
		if flags.Changed("title") {
			ropt.Title = strings.TrimSpace(mgTitle)
		}
		if flags.Changed("y1-min") {
			ropt.Y1Min = mgY1Min
		}
		if flags.Changed("y1-max") {
			ropt.Y1Max = mgY1Max
		}
		if ropt.Y1Max < ropt.Y1Min {
			return fmt.Errorf("--y1-max must not be below --y1-min")
		}
		cutoff, err := pipeline.ParseCutoff(mgCutoff)
		if err != nil {
			return err
		}

		formats := defaultFileFormats
		zipOnly := strings.EqualFold(filepath.Ext(mgOut), ".zip")
		switch {
		case zipOnly:
			formats = []render.Format{render.FormatZIP}
		case len(mgFormats) > 0:
			formats = nil
			for _, s := range mgFormats {
				f, err := render.ParseFormat(strings.ToLower(strings.TrimSpace(s)))
				if err != nil {
					return err
				}
				formats = append(formats, f)
			}
		}

		primary, err := readInput(args[0])
		if err != nil {
			return err
		}
		req := pipeline.Request{
			Primary:   primary,
			Tolerance: pipeline.Tolerance(tolerance),
			Cutoff:    cutoff,
			Setpoint:  strings.TrimSpace(mgSetpoint),
			Ingest:    ingestOpt,
		}
		total := 1 + len(secondaries)
		if !mgQuiet {
			fmt.Fprintf(out, "[1/%d] Reading %s (primary)...\n", total, primary.Name)
		}
		for i, path := range secondaries {
			if !mgQuiet {
				fmt.Fprintf(out, "[%d/%d] Reading %s...\n", i+2, total, filepath.Base(path))
			}
			in, err := readInput(path)
			if err != nil {
				return err
			}
			req.Secondaries = append(req.Secondaries, in)
		}

		log, closeLog := newLogger(c)
		defer closeLog()
		res, err := pipeline.Run(cmd.Context(), log, req)
		if err != nil {
			return err
		}

		dopt := pipeline.DeliverOptions{Render: ropt, Formats: formats}
		if mgSave || mgPublish {
			st, err := store.New(c.ExportsDir)
			if err != nil {
				return err
			}
			dopt.Store = st
			// Stored formats must be rendered even when not written out.
			dopt.Formats = nil
		}
		if mgPublish {
			pubs, errs := publish.FromConfig(cmd.Context(), c)
			for _, err := range errs {
				fmt.Fprintf(out, "⚠ %v\n", err)
			}
			if len(pubs) == 0 && !mgQuiet {
				fmt.Fprintln(out, "⚠ --publish given but no publish target is configured")
			}
			dopt.Publishers = pubs
		}
		d, err := pipeline.Deliver(cmd.Context(), log, res, dopt)
		if err != nil {
			return err
		}

		written, err := writeArtifacts(d, formats, mgOut, zipOnly)
		if err != nil {
			return err
		}
		var rep *analysis.Report
		if mgReport {
			title := ropt.Title
			if title == "" {
				title = render.DefaultTitle
			}
			rep = analysis.Summarize(title, res.Aligned, analysis.DefaultOptions())
			dir := mgOut
			if zipOnly {
				dir = filepath.Dir(mgOut)
			}
			path := filepath.Join(dir, utils.SafeFileName(title)+" - summary.md")
			if err := utils.SafeWriteFile(path, []byte(rep.Markdown())); err != nil {
				return err
			}
			written = append(written, path)
		}
		if mgQuiet {
			return nil
		}
		printMergeSummary(out, res, d, written)
		if rep != nil {
			fmt.Fprintln(out)
			fmt.Fprint(out, rep.Markdown())
		}
		return nil
	},
}

// expandInputs resolves globs, keeping argument order and dropping duplicates
// and the primary.
func expandInputs(args []string, primary string) ([]string, error) {
	seen := map[string]struct{}{filepath.Clean(primary): {}}
	var files []string
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("no input files matched %s", arg)
			}
			matches = []string{arg}
		}
		for _, m := range matches {
			key := filepath.Clean(m)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			files = append(files, m)
		}
	}
	return files, nil
}

func readInput(path string) (pipeline.Input, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("read %s: %w", path, err)
	}
	return pipeline.Input{Name: filepath.Base(path), Data: b}, nil
}

func writeArtifacts(d *pipeline.Delivery, formats []render.Format, out string, zipOnly bool) ([]string, error) {
	if zipOnly {
		a, ok := d.Artifact(render.FormatZIP)
		if !ok {
			return nil, fmt.Errorf("bundle not rendered")
		}
		if dir := filepath.Dir(out); dir != "" {
			if err := utils.EnsureDir(dir); err != nil {
				return nil, err
			}
		}
		if err := utils.SafeWriteFile(out, a.Data); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}
	if out == "" {
		out = "."
	}
	if err := utils.EnsureDir(out); err != nil {
		return nil, err
	}
	var written []string
	for _, f := range formats {
		a, ok := d.Artifact(f)
		if !ok {
			continue
		}
		path := filepath.Join(out, a.FileName)
		if err := utils.SafeWriteFile(path, a.Data); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func printMergeSummary(out io.Writer, res *pipeline.Result, d *pipeline.Delivery, written []string) {
	fmt.Fprintf(out, "✓ Merged %d rows × %d columns in %s (run %s)\n",
		res.Aligned.Len(), len(res.Aligned.Columns), res.Elapsed.Round(time.Millisecond), res.RunID)
	for _, s := range res.Sources {
		fmt.Fprintf(out, "  %-9s %s: %d rows, %d columns, time column %q (%s)\n",
			s.Role, s.Name, s.Rows, s.Columns, s.TimeColumn, s.TimeRule)
	}
	if sp, ok := res.Assembly.Secondary(); ok {
		fmt.Fprintf(out, "  setpoint axis: %s\n", sp)
	}
	for _, w := range append(append([]pipeline.Warning{}, res.Warnings...), d.Warnings...) {
		if w.Input != "" {
			fmt.Fprintf(out, "⚠ %s: %s\n", w.Input, w.Message)
		} else {
			fmt.Fprintf(out, "⚠ %s\n", w.Message)
		}
	}
	for _, p := range written {
		fmt.Fprintf(out, "✓ Wrote %s\n", p)
	}
	if d.Entry != nil {
		fmt.Fprintf(out, "✓ Saved export %s\n", d.Entry.ID)
	}
	for _, l := range d.Links {
		fmt.Fprintf(out, "✓ Published %s: %s\n", l.Target, l.URL)
	}
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().Float64Var(&mgTolerance, "tolerance", 5, "nearest-match tolerance in seconds (default from config)")
	mergeCmd.Flags().StringVar(&mgTitle, "title", "", "chart title and output file prefix (default from config)")
	mergeCmd.Flags().StringVar(&mgSetpoint, "setpoint", "", "column to draw on the secondary axis (auto-detect if omitted)")
	mergeCmd.Flags().Float64Var(&mgY1Min, "y1-min", 0, "primary axis minimum")
	mergeCmd.Flags().Float64Var(&mgY1Max, "y1-max", 100, "primary axis maximum (equal to --y1-min for autorange)")
	mergeCmd.Flags().StringVar(&mgCutoff, "cutoff", "", "drop primary rows before this timestamp")
	mergeCmd.Flags().StringVarP(&mgOut, "out", "o", ".", "output directory, or a .zip path for the bundle")
	mergeCmd.Flags().StringSliceVar(&mgFormats, "format", nil, "formats to write: csv|xlsx|html|png|zip (repeatable)")
	mergeCmd.Flags().StringVar(&mgDelimiter, "delimiter", "", "force CSV delimiter: ',' | ';' | 'tab' | '|'")
	mergeCmd.Flags().StringVar(&mgSheet, "sheet", "", "XLSX: sheet name to read (default first sheet)")
	mergeCmd.Flags().BoolVar(&mgSave, "save", false, "save the export to the exports directory")
	mergeCmd.Flags().BoolVar(&mgPublish, "publish", false, "publish the export to the configured targets (implies --save)")
	mergeCmd.Flags().BoolVar(&mgReport, "report", false, "write and print a coverage and statistics summary")
	mergeCmd.Flags().BoolVarP(&mgQuiet, "quiet", "q", false, "suppress progress output")
}
