package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const influxWriteTimeout = 3 * time.Second

// Influx writes readings and device states as points. Writes pass through a
// circuit breaker so an unreachable server is skipped quickly.
type Influx struct {
	client  influxdb2.Client
	writer  api.WriteAPIBlocking
	breaker *gobreaker.CircuitBreaker
	log     *zap.SugaredLogger
}

func NewInflux(url, token, org, bucket string, log *zap.SugaredLogger) *Influx {
	client := influxdb2.NewClient(url, token)
	return newInflux(client, client.WriteAPIBlocking(org, bucket), log)
}

func newInflux(client influxdb2.Client, writer api.WriteAPIBlocking, log *zap.SugaredLogger) *Influx {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "influx",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Influx{client: client, writer: writer, breaker: breaker, log: log}
}

func (i *Influx) SensorReading(ctx context.Context, r Reading) {
	p := influxdb2.NewPoint("sensor_reading",
		map[string]string{"sensor": r.Sensor, "type": r.Type},
		map[string]interface{}{"value": r.Value, "abnormal": r.Abnormal},
		r.At)
	i.write(ctx, p)
}

func (i *Influx) DeviceState(ctx context.Context, s DeviceState) {
	p := influxdb2.NewPoint("device_state",
		map[string]string{"device": s.Device, "source": s.Source},
		map[string]interface{}{"on": s.On},
		s.At)
	i.write(ctx, p)
}

func (i *Influx) write(ctx context.Context, p *write.Point) {
	_, err := i.breaker.Execute(func() (interface{}, error) {
		wctx, cancel := context.WithTimeout(ctx, influxWriteTimeout)
		defer cancel()
		return nil, i.writer.WritePoint(wctx, p)
	})
	if err != nil {
		i.log.Warnw("influx write failed", "measurement", p.Name(), "err", err)
	}
}

func (i *Influx) Close() {
	if i.client != nil {
		i.client.Close()
	}
}
