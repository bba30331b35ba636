// Package automation turns sensor readings and schedules into device state
// changes.
package automation

import (
	"time"

	"github.com/fishm995/greenhouse-project/models"

	"github.com/pkg/errors"
)

// Decide applies threshold logic with hysteresis. It returns the state the
// device should be in and whether that differs from active.
//
// "below" keeps the device on while the value is low: an idle device turns on
// under threshold-hysteresis and a running one turns off above
// threshold+hysteresis. "above" is the mirror image.
func Decide(logic string, threshold, hysteresis float64, active bool, value float64) (bool, bool, error) {
	low, high := threshold-hysteresis, threshold+hysteresis
	switch logic {
	case models.LogicBelow:
		if !active && value < low {
			return true, true, nil
		}
		if active && value > high {
			return false, true, nil
		}
	case models.LogicAbove:
		if !active && value > high {
			return true, true, nil
		}
		if active && value < low {
			return false, true, nil
		}
	default:
		return active, false, errors.Errorf("invalid control logic %q", logic)
	}
	return active, false, nil
}

// InTimeWindow reports whether now falls inside the daily window starting at
// autoTime ("HH:MM", in now's location) and lasting durationMin minutes.
// Windows may wrap past midnight.
func InTimeWindow(now time.Time, autoTime string, durationMin int) (bool, error) {
	hour, minute, ok := models.ParseClock(autoTime)
	if !ok {
		return false, errors.Errorf("invalid auto_time %q", autoTime)
	}
	if durationMin <= 0 {
		return false, nil
	}
	if durationMin >= 24*60 {
		return true, nil
	}
	start := hour*60 + minute
	end := start + durationMin
	cur := now.Hour()*60 + now.Minute()
	if end <= 24*60 {
		return cur >= start && cur < end, nil
	}
	// wraps past midnight
	return cur >= start || cur < end-24*60, nil
}
