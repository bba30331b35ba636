package automation

import (
	"context"
	"time"

	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/hardware"
	"github.com/fishm995/greenhouse-project/models"
	"github.com/fishm995/greenhouse-project/telemetry"
	"github.com/fishm995/greenhouse-project/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scheduler polls every sensor and applies automation on a fixed interval.
type Scheduler struct {
	DB        *gorm.DB
	Switcher  *Switcher
	Sink      telemetry.Sink
	Sensors   hardware.SensorFactory
	Interval  time.Duration
	Location  *time.Location
	Metrics   *telemetry.Metrics
	Log       *zap.SugaredLogger
	Now       func() time.Time
	ReadRetry time.Duration // pause between read attempts; zero retries immediately
}

const readAttempts = 3

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run ticks until ctx is cancelled. The first tick happens immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.log().Infow("scheduler started", "interval", s.Interval.String())
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log().Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick reads all sensors, then applies automation rules.
func (s *Scheduler) Tick(ctx context.Context) {
	started := time.Now()
	s.ReadSensors(ctx)
	if paused, by, _ := config.GetAutomationState(); paused {
		s.log().Debugw("automation paused, skipping rules", "paused_by", by)
	} else {
		s.ApplyAutomation(ctx)
	}
	if s.Metrics != nil {
		s.Metrics.ObserveTick(time.Since(started))
	}
}

// ReadSensors takes one reading from every configured sensor, logs it and
// caches it as the sensor's latest value. A failing sensor is skipped until
// the next tick.
func (s *Scheduler) ReadSensors(ctx context.Context) {
	var sensors []models.SensorConfig
	if err := s.DB.WithContext(ctx).Order("id").Find(&sensors).Error; err != nil {
		s.log().Errorw("loading sensor configs", "err", err)
		return
	}

	for i := range sensors {
		sc := &sensors[i]
		value, err := s.readOne(ctx, sc)
		if err != nil {
			s.log().Warnw("error reading sensor", "sensor", sc.SensorName, "err", err)
			continue
		}
		if err := s.record(ctx, sc, value); err != nil {
			s.log().Errorw("error storing reading", "sensor", sc.SensorName, "err", err)
			continue
		}
		s.log().Debugw("scheduled reading", "sensor", sc.SensorName, "value", value)
	}
}

func (s *Scheduler) readOne(ctx context.Context, sc *models.SensorConfig) (float64, error) {
	cfg, err := hardware.ParseConfig(sc.ConfigJSON)
	if err != nil {
		return 0, err
	}
	factory := s.Sensors
	if factory == nil {
		factory = hardware.NewSensor
	}
	sensor, err := factory(sc.SensorType, cfg, sc.Simulate)
	if err != nil {
		return 0, err
	}

	var value float64
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.ReadRetry), readAttempts-1), ctx)
	err = backoff.Retry(func() error {
		v, err := sensor.Read(ctx)
		if errors.Is(err, hardware.ErrNoReader) {
			return backoff.Permanent(err)
		}
		value = v
		return err
	}, bo)
	return value, err
}

func (s *Scheduler) record(ctx context.Context, sc *models.SensorConfig, value float64) error {
	at := s.now().UTC()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.SensorLog{SensorType: sc.SensorName, Value: value, Timestamp: at}).Error; err != nil {
			return err
		}
		return tx.Model(sc).Updates(map[string]interface{}{"latest_value": value, "latest_at": at}).Error
	})
	if err != nil {
		return err
	}
	sc.LatestValue, sc.LatestAt = &value, &at

	abnormal := utils.CheckAbnormality(sc.SensorType, value)
	if abnormal {
		s.log().Warnw("abnormal reading", "sensor", sc.SensorName, "type", sc.SensorType, "value", value)
	}
	if s.Sink != nil {
		s.Sink.SensorReading(ctx, telemetry.Reading{
			Sensor: sc.SensorName, Type: sc.SensorType, Value: value, Abnormal: abnormal, At: at,
		})
	}
	return nil
}

// ApplyAutomation walks every device in auto mode and switches it according
// to its control mode.
func (s *Scheduler) ApplyAutomation(ctx context.Context) {
	var devices []models.DeviceControl
	err := s.DB.WithContext(ctx).
		Where("mode = ? AND auto_enabled = ?", models.ModeAuto, true).
		Order("id").Find(&devices).Error
	if err != nil {
		s.log().Errorw("loading device controls", "err", err)
		return
	}

	for i := range devices {
		d := &devices[i]
		var err error
		switch d.ControlMode {
		case models.ControlModeTime:
			err = s.applyTime(ctx, d)
		case models.ControlModeSensor:
			err = s.applySensor(ctx, d)
		default:
			err = errors.Errorf("unknown control mode %q", d.ControlMode)
		}
		if err != nil {
			s.log().Warnw("error processing device", "device", d.DeviceName, "err", err)
		}
	}
}

func (s *Scheduler) applyTime(ctx context.Context, d *models.DeviceControl) error {
	now := s.now()
	if s.Location != nil {
		now = now.In(s.Location)
	}
	want, err := InTimeWindow(now, d.AutoTime, d.AutoDuration)
	if err != nil {
		return err
	}
	if want == d.CurrentStatus {
		return nil
	}
	s.log().Infow("time-based control", "device", d.DeviceName, "on", want, "auto_time", d.AutoTime, "duration_min", d.AutoDuration)
	return s.Switcher.Set(ctx, d, want, SourceAuto)
}

// rule is the threshold configuration applied to one device.
type rule struct {
	sensor     string
	threshold  float64
	logic      string
	hysteresis float64
}

// ruleFor prefers the device's own sensor settings and falls back to the
// first controller rule that targets it.
func (s *Scheduler) ruleFor(ctx context.Context, d *models.DeviceControl) (rule, error) {
	if d.SensorName != "" {
		if d.Threshold == nil {
			return rule{}, errors.New("sensor control without threshold")
		}
		return rule{d.SensorName, *d.Threshold, d.ControlLogic, d.HysteresisOrDefault()}, nil
	}
	var cc models.ControllerConfig
	err := s.DB.WithContext(ctx).Where("actuator_name = ?", d.DeviceName).Order("id").First(&cc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rule{}, errors.New("no sensor or controller rule configured")
	}
	if err != nil {
		return rule{}, err
	}
	return rule{cc.SensorName, cc.Threshold, cc.ControlLogic, cc.Hysteresis}, nil
}

func (s *Scheduler) applySensor(ctx context.Context, d *models.DeviceControl) error {
	r, err := s.ruleFor(ctx, d)
	if err != nil {
		return err
	}

	var sc models.SensorConfig
	err = s.DB.WithContext(ctx).Where("sensor_name = ?", r.sensor).First(&sc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Errorf("sensor configuration for %q not found", r.sensor)
	}
	if err != nil {
		return err
	}
	if sc.LatestValue == nil {
		return errors.Errorf("sensor %q has no reading yet", r.sensor)
	}

	next, changed, err := Decide(r.logic, r.threshold, r.hysteresis, d.CurrentStatus, *sc.LatestValue)
	if err != nil || !changed {
		return err
	}
	s.log().Infow("sensor-based control", "device", d.DeviceName, "on", next,
		"sensor", r.sensor, "value", *sc.LatestValue, "threshold", r.threshold, "hysteresis", r.hysteresis)
	return s.Switcher.Set(ctx, d, next, SourceAuto)
}

func (s *Scheduler) log() *zap.SugaredLogger {
	if s.Log != nil {
		return s.Log
	}
	return config.Log
}
