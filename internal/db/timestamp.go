package db

import (
	"strings"
	"time"
)

// TimeLayout is the stored text form of every timestamp column.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTimestamp accepts a client-supplied timestamp either in TimeLayout or
// in RFC 3339 (as produced by JavaScript's Date.toISOString).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, Validation("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, Validation("invalid timestamp " + `"` + s + `"`)
}
