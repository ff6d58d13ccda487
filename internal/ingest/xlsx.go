package ingest

import (
	"bytes"
	"fmt"

	"github.com/KaramelBytes/trendmerge/internal/table"
	"github.com/xuri/excelize/v2"
)

var zipSignature = []byte{'P', 'K', 0x03, 0x04}

func isXLSX(data []byte) bool {
	return bytes.HasPrefix(data, zipSignature)
}

// readXLSX loads one worksheet. Cells come back formatted the way the
// workbook displays them, so dates go through the same timestamp layouts as CSV.
func readXLSX(data []byte, sheet string) (*table.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("open xlsx: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Reason: "xlsx has no worksheets"}
	}
	target := sheets[0]
	if sheet != "" {
		found := false
		for _, s := range sheets {
			if s == sheet {
				found = true
				break
			}
		}
		if !found {
			return nil, &DecodeError{Reason: fmt.Sprintf("sheet %q not found (available: %v)", sheet, sheets)}
		}
		target = sheet
	}
	rows, err := f.GetRows(target)
	if err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("read sheet %q: %v", target, err)}
	}
	var records [][]string
	for _, r := range rows {
		if !blankRecord(r) {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("sheet %q is empty", target)}
	}
	t := buildRawTable(records)
	t.Encoding = "xlsx"
	t.Sheet = target
	return t, nil
}
