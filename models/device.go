package models

import (
	"time"
)

const (
	ModeManual = "manual"
	ModeAuto   = "auto"

	ControlModeTime   = "time"
	ControlModeSensor = "sensor"

	LogicBelow = "below"
	LogicAbove = "above"

	DeviceTypeActuator = "actuator"

	DefaultHysteresis = 0.5
)

// DeviceControl is an actuator (light, heater, valve, fan) and the settings
// that drive it in manual or automatic mode.
type DeviceControl struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	DeviceName    string     `json:"device_name" gorm:"size:50;uniqueIndex;not null"`
	DeviceType    string     `json:"device_type" gorm:"size:20;not null;default:actuator"`
	ControlMode   string     `json:"control_mode" gorm:"size:10;default:time"`
	Mode          string     `json:"mode" gorm:"size:10;default:manual"`
	CurrentStatus bool       `json:"current_status"`
	AutoTime      string     `json:"auto_time" gorm:"size:5"`
	AutoDuration  int        `json:"auto_duration"`
	AutoEnabled   bool       `json:"auto_enabled"`
	LastAutoOn    *time.Time `json:"last_auto_on"`
	GPIOPin       *int       `json:"gpio_pin"`
	SensorName    string     `json:"sensor_name" gorm:"size:100"`
	Threshold     *float64   `json:"threshold"`
	ControlLogic  string     `json:"control_logic" gorm:"size:10"`
	Hysteresis    *float64   `json:"hysteresis"`
	Simulate      bool       `json:"simulate"`
}

// HysteresisOrDefault returns the configured hysteresis, or 0.5 when unset.
func (d *DeviceControl) HysteresisOrDefault() float64 {
	if d.Hysteresis == nil {
		return DefaultHysteresis
	}
	return *d.Hysteresis
}

func ValidMode(m string) bool {
	return m == ModeManual || m == ModeAuto
}

func ValidControlMode(m string) bool {
	return m == ControlModeTime || m == ControlModeSensor
}

func ValidControlLogic(l string) bool {
	return l == LogicBelow || l == LogicAbove
}

// ValidAutoTime checks the "HH:MM" 24h format used for schedules.
func ValidAutoTime(s string) bool {
	_, _, ok := ParseClock(s)
	return ok
}

// ParseClock splits "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, ok bool) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}
