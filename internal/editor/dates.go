package editor

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of module start and end dates.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2-Jan-2006",
	"02-Jan-2006",
	"01/02/2006",
	"2006/01/02",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// NormalizeDate converts user or server date input to YYYY-MM-DD.
// Timestamps are reduced to their UTC calendar date. Blank input yields "".
func NormalizeDate(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", value)
}

func parseDate(value string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	return t, err == nil
}
