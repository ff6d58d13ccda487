package render

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/KaramelBytes/trendmerge/internal/axis"
	"github.com/KaramelBytes/trendmerge/internal/export"
	"github.com/xuri/excelize/v2"
)

// WriteCSV writes the merged table as comma-separated UTF-8.
func WriteCSV(w io.Writer, asm *export.Assembly, _ Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(asm.Table.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(asm.Table.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

const sheetName = "Merged"

// WriteXLSX writes the merged table to a workbook with real date and number
// cells plus a line chart of the primary-axis traces.
func WriteXLSX(w io.Writer, asm *export.Assembly, opt Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if def := f.GetSheetName(0); def != sheetName {
		if err := f.SetSheetName(def, sheetName); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}
	header := make([]interface{}, len(asm.Table.Header))
	for i, h := range asm.Table.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr("yyyy-mm-dd hh:mm:ss")})
	if err != nil {
		return fmt.Errorf("date style: %w", err)
	}
	numeric := numericColumns(asm)
	for i, ts := range asm.Table.Times {
		row := make([]interface{}, len(asm.Table.Header))
		row[0] = ts
		for k, cell := range asm.Table.Rows[i][1:] {
			if cell == "" {
				row[k+1] = nil
				continue
			}
			if v, ok := numeric[k+1]; ok {
				if y := v.Y[i]; y != nil {
					row[k+1] = *y
					continue
				}
			}
			row[k+1] = cell
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cellName, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if n := len(asm.Table.Times); n > 0 {
		last, _ := excelize.CoordinatesToCellName(1, n+1)
		if err := f.SetCellStyle(sheetName, "A2", last, dateStyle); err != nil {
			return fmt.Errorf("style dates: %w", err)
		}
		_ = f.SetColWidth(sheetName, "A", "A", 20)
		if err := addChart(f, asm, opt); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func addChart(f *excelize.File, asm *export.Assembly, opt Options) error {
	n := len(asm.Table.Times)
	numeric := numericColumns(asm)
	var series []excelize.ChartSeries
	for col := 1; col < len(asm.Table.Header); col++ {
		tr, ok := numeric[col]
		if !ok || tr.Axis != axis.Primary {
			continue
		}
		letter, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", sheetName, letter),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheetName, n+1),
			Values:     fmt.Sprintf("'%s'!$%s$2:$%s$%d", sheetName, letter, letter, n+1),
		})
	}
	if len(series) == 0 {
		return nil
	}
	anchor, err := excelize.CoordinatesToCellName(len(asm.Table.Header)+2, 2)
	if err != nil {
		return err
	}
	chart := &excelize.Chart{
		Type:   excelize.Line,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: opt.title()}},
		Legend: excelize.ChartLegend{Position: "bottom"},
		YAxis:  excelize.ChartAxis{MajorGridLines: true},
	}
	if err := f.AddChart(sheetName, anchor, chart); err != nil {
		return fmt.Errorf("add chart: %w", err)
	}
	return nil
}

// numericColumns maps a table column index to its trace.
func numericColumns(asm *export.Assembly) map[int]export.Trace {
	byName := make(map[string]export.Trace, len(asm.Traces))
	for _, tr := range asm.Traces {
		byName[tr.Name] = tr
	}
	out := map[int]export.Trace{}
	for i, h := range asm.Table.Header {
		if i == 0 {
			continue
		}
		if tr, ok := byName[h]; ok {
			out[i] = tr
		}
	}
	return out
}

func strPtr(s string) *string { return &s }
