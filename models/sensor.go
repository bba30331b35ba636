package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// SupportedSensorTypes lists the sensor kinds the reader factory understands.
var SupportedSensorTypes = []string{"temperature", "humidity", "co2", "light", "soil_moisture", "wind_speed"}

// SensorConfig describes a physical (or simulated) sensor and caches its
// most recent reading.
type SensorConfig struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	SensorName  string         `json:"sensor_name" gorm:"size:100;uniqueIndex;not null"`
	SensorType  string         `json:"sensor_type" gorm:"size:50;not null"`
	ConfigJSON  datatypes.JSON `json:"config_json"`
	Simulate    bool           `json:"simulate"`
	LatestValue *float64       `json:"latest_value"`
	LatestAt    *time.Time     `json:"latest_at"`
}

// SensorLog is one stored reading. SensorType holds the sensor's name, which
// is what the dashboard filters on.
type SensorLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SensorType string    `json:"sensor_type" gorm:"size:100;index:idx_sensor_logs_sensor_time"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp" gorm:"index:idx_sensor_logs_sensor_time"`
}

func ValidSensorType(t string) bool {
	t = strings.ToLower(t)
	for _, s := range SupportedSensorTypes {
		if s == t {
			return true
		}
	}
	return false
}
