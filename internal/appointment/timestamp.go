package appointment

import (
	"strings"
	"time"

	"github.com/hackgods/clinic-booking/internal/clock"
)

// naiveLayouts are accepted without a zone and read as clinic local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp. Zoned input (Z or an explicit
// offset) is honoured; naive input is interpreted in the clinic's zone. The result
// is always expressed in the clinic's zone.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidTimestamp
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(clock.IST), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, clock.IST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// FormatTimestamp renders t in the clinic's zone as RFC 3339.
func FormatTimestamp(t time.Time) string {
	return t.In(clock.IST).Format(time.RFC3339)
}
