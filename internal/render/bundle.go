package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/export"
)

// bundled are packed into the results ZIP, in this order.
var bundled = []struct {
	format Format
	write  writerFunc
}{
	{FormatCSV, WriteCSV},
	{FormatHTML, WriteHTML},
}

// WriteBundle writes "<title> - results.zip" containing the merged CSV and
// the trend viewer.
func WriteBundle(w io.Writer, asm *export.Assembly, opt Options) error {
	zw := zip.NewWriter(w)
	for _, b := range bundled {
		var buf bytes.Buffer
		if err := b.write(&buf, asm, opt); err != nil {
			return fmt.Errorf("render %s: %w", b.format, err)
		}
		hdr := &zip.FileHeader{
			Name:     FileName(opt.title(), b.format),
			Method:   zip.Deflate,
			Modified: time.Now().UTC(),
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip entry: %w", err)
		}
		if _, err := fw.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("zip write: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip close: %w", err)
	}
	return nil
}
