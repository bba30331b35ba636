package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes greenhouse state as Prometheus collectors.
type Metrics struct {
	sensorValue      *prometheus.GaugeVec
	abnormalReadings *prometheus.CounterVec
	deviceOn         *prometheus.GaugeVec
	deviceSwitches   *prometheus.CounterVec
	viewers          prometheus.Gauge
	tickDuration     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "greenhouse_sensor_value",
			Help: "Latest reading per sensor.",
		}, []string{"sensor", "type"}),
		abnormalReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenhouse_abnormal_readings_total",
			Help: "Readings outside the expected range for their sensor type.",
		}, []string{"sensor"}),
		deviceOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "greenhouse_device_on",
			Help: "1 when the device is switched on.",
		}, []string{"device"}),
		deviceSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenhouse_device_switches_total",
			Help: "Device state changes by source.",
		}, []string{"device", "source"}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greenhouse_stream_viewers",
			Help: "Connected camera stream viewers.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "greenhouse_scheduler_tick_seconds",
			Help:    "Time spent reading sensors and applying automation per tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.sensorValue, m.abnormalReadings, m.deviceOn, m.deviceSwitches, m.viewers, m.tickDuration)
	return m
}

func (m *Metrics) SensorReading(_ context.Context, r Reading) {
	m.sensorValue.WithLabelValues(r.Sensor, r.Type).Set(r.Value)
	if r.Abnormal {
		m.abnormalReadings.WithLabelValues(r.Sensor).Inc()
	}
}

func (m *Metrics) DeviceState(_ context.Context, s DeviceState) {
	v := 0.0
	if s.On {
		v = 1
	}
	m.deviceOn.WithLabelValues(s.Device).Set(v)
	m.deviceSwitches.WithLabelValues(s.Device, s.Source).Inc()
}

// SetViewers records the current number of stream viewers.
func (m *Metrics) SetViewers(n int) {
	m.viewers.Set(float64(n))
}

// ObserveTick records how long a scheduler tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}
