package config

import (
	"os"

	"github.com/fishm995/greenhouse-project/models"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultDevicePins maps the stock actuators to their BCM GPIO pins.
var DefaultDevicePins = map[string]int{
	"White Light":   18,
	"Black Light":   23,
	"Heat Lamp":     24,
	"Water Valve":   25,
	"Fresh Air Fan": 12,
}

var defaultDeviceOrder = []string{"White Light", "Black Light", "Heat Lamp", "Water Valve", "Fresh Air Fan"}

var defaultSensors = []models.SensorConfig{
	{SensorName: "Outdoor Temperature", SensorType: "temperature", ConfigJSON: datatypes.JSON(`{}`), Simulate: true},
	{SensorName: "Indoor Temperature", SensorType: "temperature", ConfigJSON: datatypes.JSON(`{}`), Simulate: true},
	{SensorName: "Humidity Sensor", SensorType: "humidity", ConfigJSON: datatypes.JSON(`{"pin": 4}`), Simulate: true},
	{SensorName: "CO2 Sensor", SensorType: "co2", ConfigJSON: datatypes.JSON(`{}`), Simulate: true},
	{SensorName: "Light Sensor", SensorType: "light", ConfigJSON: datatypes.JSON(`{}`), Simulate: true},
	{SensorName: "Soil Moisture Sensor", SensorType: "soil_moisture", ConfigJSON: datatypes.JSON(`{}`), Simulate: true},
	{SensorName: "Wind Speed Sensor", SensorType: "wind_speed", ConfigJSON: datatypes.JSON(`{}`), Simulate: true},
}

// Seed inserts the default users, actuators and sensors. Rows that already
// exist are left alone, so it is safe to run repeatedly.
func Seed(db *gorm.DB) error {
	users := []struct{ username, envKey, fallback, role string }{
		{"admin", "SEED_ADMIN_PASSWORD", "admin", models.RoleAdmin},
		{"senior", "SEED_SENIOR_PASSWORD", "senior", models.RoleSenior},
		{"junior", "SEED_JUNIOR_PASSWORD", "junior", models.RoleJunior},
	}
	for _, u := range users {
		password := getenv(u.envKey, u.fallback)
		if os.Getenv(u.envKey) == "" {
			Log.Warnw("seeding user with default password", "username", u.username)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrap(err, "hashing seed password")
		}
		user := models.User{Username: u.username, PasswordHash: string(hash), Role: u.role}
		created, err := firstOrCreate(db, &user, "username = ?", u.username)
		if err != nil {
			return err
		}
		if created {
			Log.Infow("added user", "username", u.username)
		}
	}

	for _, name := range defaultDeviceOrder {
		pin := DefaultDevicePins[name]
		device := models.DeviceControl{
			DeviceName:   name,
			DeviceType:   models.DeviceTypeActuator,
			ControlMode:  models.ControlModeTime,
			Mode:         models.ModeManual,
			AutoTime:     "08:00",
			AutoDuration: 30,
			AutoEnabled:  true,
			GPIOPin:      &pin,
			Simulate:     true,
		}
		created, err := firstOrCreate(db, &device, "device_name = ?", name)
		if err != nil {
			return err
		}
		if created {
			Log.Infow("added device control", "device", name)
		}
	}

	for _, s := range defaultSensors {
		sensor := s
		created, err := firstOrCreate(db, &sensor, "sensor_name = ?", s.SensorName)
		if err != nil {
			return err
		}
		if created {
			Log.Infow("added sensor config", "sensor", s.SensorName)
		}
	}
	return nil
}

func firstOrCreate(db *gorm.DB, row interface{}, query string, arg interface{}) (bool, error) {
	var count int64
	if err := db.Model(row).Where(query, arg).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "checking seed row")
	}
	if count > 0 {
		return false, nil
	}
	if err := db.Create(row).Error; err != nil {
		return false, errors.Wrap(err, "creating seed row")
	}
	return true, nil
}
