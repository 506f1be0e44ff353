// Package query implements the Query & Pattern Engine: filtered track/signal
// reads, CSV export, and the drone-behaviour pattern detectors of spec.md
// §4.5, all operating over rows fetched through Repository.
package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/fieldwatch/aegis/internal/apperr"
)

// TimeRange is an inclusive-start/exclusive-end window over observation time.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ParseTimeRange decodes the time_range query token: "Nh", "Nd", or
// "custom:ISO,ISO". now anchors the relative forms.
func ParseTimeRange(raw string, now time.Time) (TimeRange, error) {
	if raw == "" {
		raw = "24h"
	}
	if strings.HasPrefix(raw, "custom:") {
		parts := strings.SplitN(strings.TrimPrefix(raw, "custom:"), ",", 2)
		if len(parts) != 2 {
			return TimeRange{}, apperr.UserError("query", errBadRange(raw))
		}
		start, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return TimeRange{}, apperr.UserError("query", err)
		}
		end, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return TimeRange{}, apperr.UserError("query", err)
		}
		if !end.After(start) {
			return TimeRange{}, apperr.UserError("query", errBadRange(raw))
		}
		return TimeRange{Start: start, End: end}, nil
	}

	unit := raw[len(raw)-1]
	qty := raw[:len(raw)-1]
	n, err := strconv.Atoi(qty)
	if err != nil || n <= 0 {
		return TimeRange{}, apperr.UserError("query", errBadRange(raw))
	}
	var d time.Duration
	switch unit {
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	default:
		return TimeRange{}, apperr.UserError("query", errBadRange(raw))
	}
	return TimeRange{Start: now.Add(-d), End: now}, nil
}

type rangeError string

func (e rangeError) Error() string { return string(e) }

func errBadRange(raw string) error {
	return rangeError("invalid time_range: " + raw)
}
