// Package hardware talks to the greenhouse actuators and sensors, either
// through the Raspberry Pi GPIO header or as simulations for development.
package hardware

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Actuator is anything that can be switched on and off.
type Actuator interface {
	On() error
	Off() error
}

// Set switches a to the requested state.
func Set(a Actuator, on bool) error {
	if on {
		return a.On()
	}
	return a.Off()
}

// Driver hands out actuators for devices.
type Driver interface {
	ActuatorFor(name string, pin *int, simulate bool) (Actuator, error)
	Close() error
}

// SimulatedActuator only logs what it would have done.
type SimulatedActuator struct {
	Name string
	Pin  int
	log  *zap.SugaredLogger
}

func (a *SimulatedActuator) On() error {
	a.log.Infow("actuator turned on (simulated)", "device", a.Name, "pin", a.Pin)
	return nil
}

func (a *SimulatedActuator) Off() error {
	a.log.Infow("actuator turned off (simulated)", "device", a.Name, "pin", a.Pin)
	return nil
}

// GPIODriver returns relay-backed actuators when GPIO is enabled and the
// device is not flagged as simulated, and SimulatedActuator otherwise.
type GPIODriver struct {
	enabled bool
	log     *zap.SugaredLogger

	mu     sync.Mutex
	board  *board
	relays map[int]Actuator
}

// NewGPIODriver creates a driver. The Pi adaptor is only opened on first use.
func NewGPIODriver(enabled bool, log *zap.SugaredLogger) *GPIODriver {
	return &GPIODriver{
		enabled: enabled,
		log:     log,
		relays:  map[int]Actuator{},
	}
}

func (d *GPIODriver) ActuatorFor(name string, pin *int, simulate bool) (Actuator, error) {
	if pin == nil {
		return nil, errors.Errorf("device %q has no GPIO pin set", name)
	}
	if simulate || !d.enabled {
		return &SimulatedActuator{Name: name, Pin: *pin, log: d.log}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.relays[*pin]; ok {
		return r, nil
	}
	if d.board == nil {
		b, err := openBoard()
		if err != nil {
			return nil, err
		}
		d.board = b
	}
	r, err := d.board.relay(*pin)
	if err != nil {
		return nil, errors.Wrapf(err, "device %q", name)
	}
	d.relays[*pin] = r
	return r, nil
}

// Close releases the GPIO adaptor if one was opened.
func (d *GPIODriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.board == nil {
		return nil
	}
	err := d.board.close()
	d.board = nil
	d.relays = map[int]Actuator{}
	return err
}
