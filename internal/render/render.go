// Package render produces the downloadable artifacts for a merge: the merged
// table (CSV, XLSX), a trend chart (HTML viewer, PNG) and a ZIP bundle.
package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/KaramelBytes/trendmerge/internal/export"
	"github.com/KaramelBytes/trendmerge/internal/utils"
)

// Format names an artifact type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
	FormatZIP  Format = "zip"
)

// AllFormats lists every format in the order they are rendered.
var AllFormats = []Format{FormatCSV, FormatXLSX, FormatHTML, FormatPNG, FormatZIP}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range AllFormats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPNG:
		return "image/png"
	case FormatZIP:
		return "application/zip"
	}
	return "application/octet-stream"
}

// Options controls rendering.
type Options struct {
	Title string
	// Y1Min and Y1Max fix the primary axis range. Equal values mean autorange.
	Y1Min float64
	Y1Max float64

	// PlotlyJS, when non-empty, is embedded in the viewer instead of loading
	// plotly from the CDN.
	PlotlyJS []byte
}

// DefaultTitle is used when no title is given.
const DefaultTitle = "CW Loop"

func (o Options) title() string {
	if o.Title == "" {
		return DefaultTitle
	}
	return o.Title
}

// FileName returns the download name for a format, e.g. "CW Loop - merged.csv".
func FileName(title string, f Format) string {
	base := utils.SafeFileName(title)
	switch f {
	case FormatCSV:
		return base + " - merged.csv"
	case FormatXLSX:
		return base + " - merged.xlsx"
	case FormatHTML:
		return base + " - Trend Viewer.html"
	case FormatPNG:
		return base + " - chart.png"
	case FormatZIP:
		return base + " - results.zip"
	}
	return base + "." + string(f)
}

// Artifact is one rendered file.
type Artifact struct {
	Format   Format
	FileName string
	Data     []byte
}

// ContentType returns the artifact's MIME type.
func (a Artifact) ContentType() string { return a.Format.ContentType() }

type writerFunc func(io.Writer, *export.Assembly, Options) error

var writers = map[Format]writerFunc{
	FormatCSV:  WriteCSV,
	FormatXLSX: WriteXLSX,
	FormatHTML: WriteHTML,
	FormatPNG:  WritePNG,
	FormatZIP:  WriteBundle,
}

// Render produces the requested formats, or all of them when none are given.
func Render(asm *export.Assembly, opt Options, formats ...Format) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = AllFormats
	}
	out := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		w, ok := writers[f]
		if !ok {
			return nil, fmt.Errorf("unknown format %q", f)
		}
		var buf bytes.Buffer
		if err := w(&buf, asm, opt); err != nil {
			return nil, fmt.Errorf("render %s: %w", f, err)
		}
		out = append(out, Artifact{Format: f, FileName: FileName(opt.title(), f), Data: buf.Bytes()})
	}
	return out, nil
}
