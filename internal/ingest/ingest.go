// Package ingest turns raw input bytes into sanitized, timestamp-indexed
// SourceTables: decode, resolve the timestamp column, sanitize columns.
package ingest

import (
	"github.com/KaramelBytes/trendmerge/internal/table"
)

// Options bundles the per-stage options.
type Options struct {
	Reader   ReaderOptions
	Resolver ResolverOptions
	Number   table.NumberFormat
}

// DefaultOptions returns auto-detecting reader settings and the default threshold.
func DefaultOptions() Options {
	return Options{Resolver: ResolverOptions{Threshold: DefaultTimestampThreshold}}
}

// Inspection exposes every intermediate result of ingesting one input.
type Inspection struct {
	Raw        *table.RawTable
	Resolution *Resolution
	Report     Report
	Table      *table.SourceTable
}

// Inspect runs the full ingest and keeps the intermediate results. On a
// resolver failure Raw is still populated.
func Inspect(name string, data []byte, opt Options) (*Inspection, error) {
	raw, err := ReadTable(data, opt.Reader)
	if err != nil {
		return nil, err
	}
	ins := &Inspection{Raw: raw}
	res, err := ResolveTimestamp(raw, opt.Resolver)
	if err != nil {
		return ins, err
	}
	ins.Resolution = res
	ins.Table, ins.Report = Sanitize(name, raw, res, opt.Number)
	return ins, nil
}

// ResolveAndSanitize is the ingest boundary call. It returns a *DecodeError or
// a *NoTimestampError on failure.
func ResolveAndSanitize(name string, data []byte, opt Options) (*table.SourceTable, error) {
	ins, err := Inspect(name, data, opt)
	if err != nil {
		return nil, err
	}
	return ins.Table, nil
}
