package dbx

import (
	"fmt"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for timestamps stored as TEXT
// in SQLite, so that lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t for storage. The zero time renders as "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime. It also accepts RFC 3339 values
// written by other tools.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}
