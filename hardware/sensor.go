package hardware

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Sensor produces a single numeric reading.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

// SensorFactory builds a Sensor from a stored configuration.
type SensorFactory func(sensorType string, config map[string]interface{}, simulate bool) (Sensor, error)

// ErrNoReader is returned for real (non-simulated) sensors of a type the
// server has no hardware reader for.
var ErrNoReader = errors.New("no hardware reader for sensor type")

// simulated centre and spread for each sensor type
var simulatedProfiles = map[string]struct{ centre, spread, min float64 }{
	"temperature":   {68, 9, -40},  // 20C +/- 5C, in Fahrenheit
	"humidity":      {50, 10, 0},   // %
	"co2":           {420, 60, 0},  // ppm
	"light":         {300, 200, 0}, // lux
	"soil_moisture": {40, 15, 0},   // %
	"wind_speed":    {5, 5, 0},     // mph
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

type simulatedSensor struct {
	centre, spread, min float64
}

func (s simulatedSensor) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rngMu.Lock()
	v := s.centre + (rng.Float64()*2-1)*s.spread
	rngMu.Unlock()
	if v < s.min {
		v = s.min
	}
	return v, nil
}

// NewSensor is the default SensorFactory.
func NewSensor(sensorType string, config map[string]interface{}, simulate bool) (Sensor, error) {
	sensorType = strings.ToLower(sensorType)
	p, ok := simulatedProfiles[sensorType]
	if !ok {
		return nil, errors.Errorf("unsupported sensor type %q", sensorType)
	}
	if !simulate {
		return nil, errors.Wrapf(ErrNoReader, "%s (config %v)", sensorType, config)
	}
	return simulatedSensor{centre: p.centre, spread: p.spread, min: p.min}, nil
}

// ParseConfig decodes a sensor's JSON configuration. Empty input yields an
// empty map.
func ParseConfig(raw []byte) (map[string]interface{}, error) {
	cfg := map[string]interface{}{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing sensor config")
	}
	return cfg, nil
}
