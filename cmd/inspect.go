package cmd

import (
	"fmt"
	"io"

	cfgpkg "github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/ingest"
	"github.com/KaramelBytes/trendmerge/internal/pipeline"
	"github.com/KaramelBytes/trendmerge/internal/utils"
	"github.com/spf13/cobra"
)

var (
	insDelimiter string
	insSheet     string
	insJSON      bool
)

type inspectColumn struct {
	Name    string `json:"name"`
	RawName string `json:"raw_name"`
	Kind    string `json:"kind"`
	Values  int    `json:"values"`
}

type inspectReport struct {
	File          string                 `json:"file"`
	Encoding      string                 `json:"encoding"`
	Delimiter     string                 `json:"delimiter,omitempty"`
	Sheet         string                 `json:"sheet,omitempty"`
	RawRows       int                    `json:"raw_rows"`
	SkippedRows   int                    `json:"skipped_rows"`
	TimeColumn    string                 `json:"time_column,omitempty"`
	TimeRule      string                 `json:"time_rule,omitempty"`
	ParseRatio    float64                `json:"parse_ratio"`
	Rows          int                    `json:"rows"`
	InvalidRows   int                    `json:"invalid_rows"`
	DuplicateRows int                    `json:"duplicate_rows"`
	Columns       []inspectColumn        `json:"columns"`
	Dropped       []ingest.DroppedColumn `json:"dropped,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show how an export is decoded: encoding, delimiter, timestamp column and columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		opt := pipeline.IngestOptions(c)
		if insDelimiter != "" {
			d := cfgpkg.Global{Delimiter: insDelimiter}
			if opt.Reader.Delimiter = d.DelimiterRune(); opt.Reader.Delimiter == 0 {
				return fmt.Errorf("unsupported --delimiter: %s (use ','|';'|'tab'|'|')", insDelimiter)
			}
		}
		opt.Reader.Sheet = insSheet

		in, err := readInput(args[0])
		if err != nil {
			return err
		}
		ins, ierr := ingest.Inspect(in.Name, in.Data, opt)
		if ins == nil {
			return ierr
		}
		rep := buildInspectReport(in.Name, ins)
		if ierr != nil {
			rep.Error = ierr.Error()
		}

		out := cmd.OutOrStdout()
		if insJSON {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		} else {
			printInspectReport(out, rep)
		}
		return ierr
	},
}

func buildInspectReport(name string, ins *ingest.Inspection) inspectReport {
	rep := inspectReport{
		File:        name,
		Encoding:    ins.Raw.Encoding,
		Sheet:       ins.Raw.Sheet,
		RawRows:     ins.Raw.NumRows(),
		SkippedRows: ins.Raw.SkippedRows,
	}
	if ins.Raw.Delimiter != 0 {
		rep.Delimiter = string(ins.Raw.Delimiter)
		if ins.Raw.Delimiter == '\t' {
			rep.Delimiter = "tab"
		}
	}
	if r := ins.Resolution; r != nil {
		rep.TimeColumn = r.Name
		rep.TimeRule = r.Rule
		rep.ParseRatio = r.Ratio()
	}
	rep.InvalidRows = ins.Report.InvalidRows
	rep.DuplicateRows = ins.Report.DuplicateRows
	rep.Dropped = ins.Report.Dropped
	if t := ins.Table; t != nil {
		rep.Rows = t.Len()
		for i := range t.Columns {
			col := &t.Columns[i]
			rep.Columns = append(rep.Columns, inspectColumn{
				Name:    col.Name,
				RawName: col.RawName,
				Kind:    col.Kind.String(),
				Values:  col.Count(),
			})
		}
	}
	return rep
}

func printInspectReport(out io.Writer, rep inspectReport) {
	fmt.Fprintf(out, "File:        %s\n", rep.File)
	fmt.Fprintf(out, "Encoding:    %s\n", rep.Encoding)
	if rep.Delimiter != "" {
		fmt.Fprintf(out, "Delimiter:   %s\n", rep.Delimiter)
	}
	if rep.Sheet != "" {
		fmt.Fprintf(out, "Sheet:       %s\n", rep.Sheet)
	}
	fmt.Fprintf(out, "Raw rows:    %d (skipped %d malformed)\n", rep.RawRows, rep.SkippedRows)
	if rep.TimeColumn == "" {
		fmt.Fprintf(out, "⚠ No timestamp column: %s\n", rep.Error)
		return
	}
	fmt.Fprintf(out, "Timestamp:   %q via %s rule, %.1f%% parsed\n", rep.TimeColumn, rep.TimeRule, rep.ParseRatio*100)
	fmt.Fprintf(out, "Rows:        %d (%d unparseable, %d duplicate timestamps)\n", rep.Rows, rep.InvalidRows, rep.DuplicateRows)
	fmt.Fprintln(out, "Columns:")
	for _, col := range rep.Columns {
		if col.RawName != col.Name {
			fmt.Fprintf(out, "  - %s [%s, %d values] from %q\n", col.Name, col.Kind, col.Values, col.RawName)
		} else {
			fmt.Fprintf(out, "  - %s [%s, %d values]\n", col.Name, col.Kind, col.Values)
		}
	}
	for _, d := range rep.Dropped {
		fmt.Fprintf(out, "  ✗ %q dropped: %s\n", d.Header, d.Reason)
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&insDelimiter, "delimiter", "", "force CSV delimiter: ',' | ';' | 'tab' | '|'")
	inspectCmd.Flags().StringVar(&insSheet, "sheet", "", "XLSX: sheet name to read (default first sheet)")
	inspectCmd.Flags().BoolVar(&insJSON, "json", false, "print the report as JSON")
}
