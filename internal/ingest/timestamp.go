package ingest

import (
	"strings"
	"time"
)

// TimestampLayouts are tried in order. Slash dates are month-first; dotted
// dates are day-first. Parsing is case-insensitive for month names and AM/PM.
//
// Policy: values without an offset are taken as UTC, values with a numeric
// offset are converted to UTC, and bare zone abbreviations (EDT, CET) carry no
// offset and are therefore also read as UTC.
var TimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM MST",
	"1/2/2006 15:04:05 MST",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/06 3:04:05 PM",
	"1/2/06 3:04 PM",
	"2-Jan-06 3:04:05 PM MST",
	"2-Jan-06 3:04:05 PM",
	"2-Jan-06 15:04:05",
	"2-Jan-2006 3:04:05 PM",
	"2-Jan-2006 15:04:05",
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2, 2006 15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"02.01.2006",
}

// timeParser remembers the last layout that worked, since a column almost
// always uses a single format.
type timeParser struct {
	last int
}

func (p *timeParser) parse(s string) (time.Time, bool) {
	v := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(TimestampLayouts[p.last], v); err == nil {
		return t.UTC(), true
	}
	for i, l := range TimestampLayouts {
		if i == p.last {
			continue
		}
		if t, err := time.Parse(l, v); err == nil {
			p.last = i
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp parses a single cell using TimestampLayouts.
func ParseTimestamp(s string) (time.Time, bool) {
	var p timeParser
	return p.parse(s)
}
