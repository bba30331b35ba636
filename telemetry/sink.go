// Package telemetry publishes sensor readings and device state changes to
// metrics, MQTT and InfluxDB.
package telemetry

import (
	"context"
	"strings"
	"time"
)

type Reading struct {
	Sensor   string    `json:"sensor"`
	Type     string    `json:"type"`
	Value    float64   `json:"value"`
	Abnormal bool      `json:"abnormal"`
	At       time.Time `json:"timestamp"`
}

type DeviceState struct {
	Device string    `json:"device"`
	On     bool      `json:"on"`
	Source string    `json:"source"` // "manual" or "auto"
	At     time.Time `json:"timestamp"`
}

// Sink receives telemetry. Implementations log their own failures; a slow or
// broken sink must not fail the caller.
type Sink interface {
	SensorReading(ctx context.Context, r Reading)
	DeviceState(ctx context.Context, s DeviceState)
}

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) SensorReading(ctx context.Context, r Reading) {
	for _, s := range m {
		s.SensorReading(ctx, r)
	}
}

func (m Multi) DeviceState(ctx context.Context, st DeviceState) {
	for _, s := range m {
		s.DeviceState(ctx, st)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) SensorReading(context.Context, Reading)   {}
func (Nop) DeviceState(context.Context, DeviceState) {}

// Slug turns a display name like "White Light" into "white_light" for use in
// topics and measurement names.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
