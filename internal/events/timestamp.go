package events

import (
	"strings"
	"time"
)

// TimestampFormat is the layout used when the service stamps createdAt.
const TimestampFormat = time.RFC3339

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats produced by the UI, the JSON
// store and the SQL backends. ok is false when nothing matches.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp formats t the way createdAt values are stored
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
