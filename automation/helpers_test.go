package automation

import (
	"context"
	"sync"
	"testing"

	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/hardware"
	"github.com/fishm995/greenhouse-project/telemetry"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	require.NoError(t, config.InitAutomationState(db))
	return db
}

type fakeDriver struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (d *fakeDriver) ActuatorFor(name string, pin *int, simulate bool) (hardware.Actuator, error) {
	return &fakeActuator{driver: d, name: name}, nil
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) record(call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("relay stuck")
	}
	d.calls = append(d.calls, call)
	return nil
}

type fakeActuator struct {
	driver *fakeDriver
	name   string
}

func (a *fakeActuator) On() error  { return a.driver.record(a.name + ":on") }
func (a *fakeActuator) Off() error { return a.driver.record(a.name + ":off") }

type recordingSink struct {
	mu       sync.Mutex
	readings []telemetry.Reading
	states   []telemetry.DeviceState
}

func (s *recordingSink) SensorReading(_ context.Context, r telemetry.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
}

func (s *recordingSink) DeviceState(_ context.Context, st telemetry.DeviceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

type constSensor float64

func (v constSensor) Read(context.Context) (float64, error) { return float64(v), nil }

type failingSensor struct{}

func (failingSensor) Read(context.Context) (float64, error) { return 0, errors.New("i2c timeout") }

// configSensors returns the value stored under "value" in the sensor's
// config, or a failing sensor when "fail" is set.
func configSensors(sensorType string, cfg map[string]interface{}, simulate bool) (hardware.Sensor, error) {
	if _, ok := cfg["fail"]; ok {
		return failingSensor{}, nil
	}
	v, ok := cfg["value"].(float64)
	if !ok {
		return nil, errors.New("no value configured")
	}
	return constSensor(v), nil
}
