package models

// ControllerConfig is an automation rule linking a sensor to an actuator.
type ControllerConfig struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	SensorName   string  `json:"sensor_name" gorm:"size:100;not null;uniqueIndex:idx_controller_pair"`
	ActuatorName string  `json:"actuator_name" gorm:"size:50;not null;uniqueIndex:idx_controller_pair"`
	Threshold    float64 `json:"threshold"`
	ControlLogic string  `json:"control_logic" gorm:"size:10;not null"`
	Hysteresis   float64 `json:"hysteresis"`
}
