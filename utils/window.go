package utils

import (
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// MaxWindowHours caps the trailing window a log query may ask for.
const MaxWindowHours = 24 * 366

// Window bounds a log query. Nil ends are open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// ParseWindow builds a Window from the sensor log query parameters. hours
// selects the trailing hours up to now and takes precedence over start/end,
// which are RFC 3339 timestamps.
func ParseWindow(hours, start, end string, now time.Time) (Window, error) {
	var w Window
	if hours != "" {
		h, err := strconv.ParseFloat(hours, 64)
		if err != nil || math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
			return w, errors.Errorf("hours must be a positive number, got %q", hours)
		}
		if h > MaxWindowHours {
			return w, errors.Errorf("hours cannot exceed %d, got %q", MaxWindowHours, hours)
		}
		from := now.Add(-time.Duration(h * float64(time.Hour))).UTC()
		to := now.UTC()
		w.Start, w.End = &from, &to
		return w, nil
	}
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return w, errors.Errorf("start must be RFC 3339, got %q", start)
		}
		t = t.UTC()
		w.Start = &t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return w, errors.Errorf("end must be RFC 3339, got %q", end)
		}
		t = t.UTC()
		w.End = &t
	}
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return w, errors.New("end is before start")
	}
	return w, nil
}
