package automation

import (
	"context"
	"time"

	"github.com/fishm995/greenhouse-project/hardware"
	"github.com/fishm995/greenhouse-project/models"
	"github.com/fishm995/greenhouse-project/telemetry"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Switch sources
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
)

// Switcher changes a device's state: it drives the actuator (when the device
// has a pin), persists current_status, and reports the change to the sink.
type Switcher struct {
	DB     *gorm.DB
	Driver hardware.Driver
	Sink   telemetry.Sink
	Now    func() time.Time
}

// Set puts device into state on. The actuator is driven first so a hardware
// failure leaves the stored status untouched.
func (s *Switcher) Set(ctx context.Context, device *models.DeviceControl, on bool, source string) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	if device.GPIOPin != nil {
		act, err := s.Driver.ActuatorFor(device.DeviceName, device.GPIOPin, device.Simulate)
		if err != nil {
			return errors.Wrap(err, "getting actuator")
		}
		if err := hardware.Set(act, on); err != nil {
			return errors.Wrapf(err, "switching %q", device.DeviceName)
		}
	}

	at := now().UTC()
	updates := map[string]interface{}{"current_status": on}
	if on && source == SourceAuto {
		updates["last_auto_on"] = at
	}
	if err := s.DB.WithContext(ctx).Model(device).Updates(updates).Error; err != nil {
		return errors.Wrapf(err, "saving status of %q", device.DeviceName)
	}
	device.CurrentStatus = on
	if on && source == SourceAuto {
		device.LastAutoOn = &at
	}

	if s.Sink != nil {
		s.Sink.DeviceState(ctx, telemetry.DeviceState{Device: device.DeviceName, On: on, Source: source, At: at})
	}
	return nil
}
