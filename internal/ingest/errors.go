package ingest

import "fmt"

// DecodeError means the input bytes could not be read as a table under any
// attempted encoding/delimiter. It is not transient.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed: %s", e.Reason)
}

// NoTimestampError means no column yielded enough parseable timestamps.
type NoTimestampError struct {
	Column string
	Parsed int
	Reason string
}

func (e *NoTimestampError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("no timestamp column: %s (best candidate %q, %d parsed)", e.Reason, e.Column, e.Parsed)
	}
	return fmt.Sprintf("no timestamp column: %s", e.Reason)
}
