package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/trendmerge/internal/table"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ReaderOptions controls the Tabular Reader.
type ReaderOptions struct {
	// Delimiter forces a single delimiter. If 0, DelimiterCandidates are tried in order.
	Delimiter rune
	// Sheet selects an XLSX worksheet by name; empty means the first sheet.
	Sheet string
}

// DelimiterCandidates are tried in order when no delimiter is forced.
var DelimiterCandidates = []rune{',', ';', '\t', '|'}

// header search window for files with a preamble above the header row
const headerScanRows = 50

type textEncoding struct {
	name   string
	decode func([]byte) ([]byte, bool)
}

// encodings are attempted in order; the first that decodes and parses wins.
var encodings = []textEncoding{
	{name: "utf-16", decode: decodeUTF16},
	{name: "utf-8-bom", decode: decodeUTF8BOM},
	{name: "utf-8", decode: decodeUTF8},
	{name: "windows-1252", decode: decodeWindows1252},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeUTF16(b []byte) ([]byte, bool) {
	if !bytes.HasPrefix(b, []byte{0xFF, 0xFE}) && !bytes.HasPrefix(b, []byte{0xFE, 0xFF}) {
		return nil, false
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(b)
	if err != nil {
		return nil, false
	}
	return out, true
}

func decodeUTF8BOM(b []byte) ([]byte, bool) {
	if !bytes.HasPrefix(b, utf8BOM) {
		return nil, false
	}
	rest := b[len(utf8BOM):]
	return rest, utf8.Valid(rest)
}

func decodeUTF8(b []byte) ([]byte, bool) {
	return b, utf8.Valid(b)
}

func decodeWindows1252(b []byte) ([]byte, bool) {
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return nil, false
	}
	return out, true
}

// ReadTable decodes raw bytes into a RawTable. XLSX workbooks are detected by
// their zip signature; everything else is treated as delimited text.
func ReadTable(data []byte, opt ReaderOptions) (*table.RawTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DecodeError{Reason: "empty input"}
	}
	if isXLSX(data) {
		return readXLSX(data, opt.Sheet)
	}
	delims := DelimiterCandidates
	if opt.Delimiter != 0 {
		delims = []rune{opt.Delimiter}
	}
	var lenient *table.RawTable
	var lastErr error
	for _, enc := range encodings {
		text, ok := enc.decode(data)
		if !ok {
			continue
		}
		order := delims
		if opt.Delimiter == 0 {
			order = sniffDelimiters(text, delims)
		}
		for _, d := range order {
			t, err := readDelimited(text, d)
			if err != nil {
				lastErr = err
				continue
			}
			t.Encoding = enc.name
			if !collapsed(t) {
				return t, nil
			}
			if lenient == nil && len(t.Headers) > 0 && len(t.Rows) > 0 {
				lenient = t
			}
		}
		// A decodable encoding that only yields collapsed parses is kept as a
		// single-column fallback; later encodings would not split it differently.
		if lenient != nil {
			return lenient, nil
		}
	}
	if lastErr != nil {
		return nil, &DecodeError{Reason: lastErr.Error()}
	}
	return nil, &DecodeError{Reason: "no encoding/delimiter combination produced a table"}
}

// sniffDelimiters orders candidates by how consistently they appear on the
// first few lines: the lowest per-line count first, then the highest. Ties keep
// the candidate order.
func sniffDelimiters(text []byte, candidates []rune) []rune {
	lo := make(map[rune]int, len(candidates))
	hi := make(map[rune]int, len(candidates))
	rest := text
	for lines := 0; len(rest) > 0 && lines < 5; {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte("\n"))
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		for _, d := range candidates {
			n := bytes.Count(line, []byte(string(d)))
			if lines == 0 || n < lo[d] {
				lo[d] = n
			}
			if n > hi[d] {
				hi[d] = n
			}
		}
		lines++
	}
	out := append([]rune(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if lo[a] != lo[b] {
			return lo[a] > lo[b]
		}
		return hi[a] > hi[b]
	})
	return out
}

// collapsed reports whether a parse lost its row/column structure, which is
// what a wrong delimiter or runaway quote looks like.
func collapsed(t *table.RawTable) bool {
	if len(t.Headers) < 2 || len(t.Rows) == 0 {
		return true
	}
	return t.SkippedRows > len(t.Rows)
}

func readDelimited(text []byte, delim rune) (*table.RawTable, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	skipped := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("read delimited text: %w", err)
		}
		if blankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("no records")
	}
	t := buildRawTable(records)
	t.Delimiter = delim
	t.SkippedRows += skipped
	return t, nil
}

// buildRawTable picks the header row and pads every data row to its width.
// Rows above the header (report titles, export metadata) are discarded.
func buildRawTable(records [][]string) *table.RawTable {
	h := headerIndex(records)
	width := effectiveWidth(records[h])
	header := make([]string, width)
	for i := range header {
		header[i] = strings.TrimSpace(records[h][i])
	}
	t := &table.RawTable{Headers: header}
	for _, rec := range records[h+1:] {
		if effectiveWidth(rec) > width {
			t.SkippedRows++
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// headerIndex returns the first leading record whose width is the most common
// width, so preamble lines above the header are skipped whether they are
// narrower or wider than the table. When the modal width comes from data rows
// with empty trailing cells, the wider record directly above them with the
// same field count is the header.
func headerIndex(records [][]string) int {
	n := len(records)
	if n > headerScanRows {
		n = headerScanRows
	}
	counts := map[int]int{}
	for _, r := range records[:n] {
		counts[effectiveWidth(r)]++
	}
	mode, best := 0, -1
	for w, c := range counts {
		if c > best || (c == best && w > mode) {
			mode, best = w, c
		}
	}
	for i, r := range records[:n] {
		if effectiveWidth(r) != mode {
			continue
		}
		if i > 0 {
			prev := records[i-1]
			if effectiveWidth(prev) > mode && len(prev) == len(r) {
				return i - 1
			}
		}
		return i
	}
	return 0
}

// effectiveWidth ignores trailing empty cells left by trailing delimiters.
func effectiveWidth(rec []string) int {
	w := len(rec)
	for w > 0 && strings.TrimSpace(rec[w-1]) == "" {
		w--
	}
	return w
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
