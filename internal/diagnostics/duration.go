// Package diagnostics evaluates a fitted forecast model by rolling-origin
// cross-validation and summarizes the errors by forecast horizon.
package diagnostics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadDuration is returned for duration strings that cannot be parsed.
var ErrBadDuration = errors.New("invalid duration")

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 730*time.Hour + 30*time.Minute // 30.4375 days
	Year  = 8766 * time.Hour               // 365.25 days
)

var durationUnits = map[string]time.Duration{
	"month":  Month,
	"months": Month,
	"day":    Day,
	"days":   Day,
	"week":   Week,
	"weeks":  Week,
	"hour":   time.Hour,
	"hours":  time.Hour,
	"year":   Year,
	"years":  Year,
}

// ParseDuration parses strings like "6 Months", "30 days" or "2 weeks".
// Go duration syntax ("36h") is accepted as well.
func ParseDuration(s string) (time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	switch len(fields) {
	case 1:
		d, err := time.ParseDuration(fields[0])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
		}
		return d, nil
	case 2:
		n, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
		}
		unit, ok := durationUnits[strings.ToLower(fields[1])]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit in %q", ErrBadDuration, s)
		}
		return time.Duration(n * float64(unit)), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
}

// FormatHorizon renders a duration as "N days HH:MM:SS".
func FormatHorizon(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / Day
	d -= days * Day
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%s%d days %02d:%02d:%02d", sign, days, h, m, s)
}
