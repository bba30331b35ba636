package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/models"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ---- devices ----

type addDeviceRequest struct {
	DeviceName string `json:"device_name" binding:"required"`
	controlSettings
}

// AddDevice creates a device. Actuators need a GPIO pin.
func AddDevice(c *gin.Context) {
	var input addDeviceRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_name is required"})
		return
	}
	name := strings.TrimSpace(input.DeviceName)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_name is required"})
		return
	}
	device := models.DeviceControl{
		DeviceName:  name,
		DeviceType:  models.DeviceTypeActuator,
		ControlMode: models.ControlModeTime,
		Mode:        models.ModeManual,
		AutoTime:    "08:00",
		Simulate:    true,
	}
	if err := applySettings(&device, input.controlSettings, true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if device.DeviceType == models.DeviceTypeActuator && device.GPIOPin == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gpio_pin is required for actuators"})
		return
	}

	var count int64
	if err := config.DB.Model(&models.DeviceControl{}).Where("device_name = ?", device.DeviceName).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check device"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Device already exists"})
		return
	}
	if err := config.DB.Create(&device).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add device"})
		return
	}
	config.Log.Infow("device added", "device", device.DeviceName, "by", c.GetString("username"))
	c.JSON(http.StatusCreated, gin.H{"message": "Device added successfully", "device": device})
}

func ListDevices(c *gin.Context) {
	GetControls(c)
}

// UpdateDevice accepts {"device_name": ..., "settings": {...}}.
func UpdateDevice(c *gin.Context) {
	var input struct {
		DeviceName string          `json:"device_name" binding:"required"`
		Settings   controlSettings `json:"settings"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_name is required"})
		return
	}
	device, ok := findDevice(c, input.DeviceName)
	if !ok {
		return
	}
	if err := applySettings(device, input.Settings, true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if device.DeviceType == models.DeviceTypeActuator && device.GPIOPin == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gpio_pin is required for actuators"})
		return
	}
	if err := config.DB.Save(device).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device updated successfully", "device": device})
}

// DeleteDevice removes a device and the controller rules that drive it.
func DeleteDevice(c *gin.Context) {
	name := c.Query("device_name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_name is required"})
		return
	}
	device, ok := findDevice(c, name)
	if !ok {
		return
	}

	var rules int64
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("actuator_name = ?", device.DeviceName).Delete(&models.ControllerConfig{})
		if res.Error != nil {
			return res.Error
		}
		rules = res.RowsAffected
		return tx.Delete(device).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete device"})
		return
	}
	config.Log.Infow("device deleted", "device", device.DeviceName, "rules_removed", rules, "by", c.GetString("username"))
	c.JSON(http.StatusOK, gin.H{"message": "Device deleted successfully", "deleted_rules": rules})
}

// ---- sensors ----

type sensorSettings struct {
	SensorType *string         `json:"sensor_type"`
	ConfigJSON *datatypes.JSON `json:"config_json"`
	Simulate   *bool           `json:"simulate"`
}

func (s sensorSettings) apply(sc *models.SensorConfig) error {
	if s.SensorType != nil {
		t := strings.ToLower(*s.SensorType)
		if !models.ValidSensorType(t) {
			return errors.Errorf("unsupported sensor type %q, expected one of %s",
				*s.SensorType, strings.Join(models.SupportedSensorTypes, ", "))
		}
		sc.SensorType = t
	}
	if s.ConfigJSON != nil {
		sc.ConfigJSON = *s.ConfigJSON
	}
	if s.Simulate != nil {
		sc.Simulate = *s.Simulate
	}
	return nil
}

func findSensor(c *gin.Context, name string) (*models.SensorConfig, bool) {
	var sensor models.SensorConfig
	err := config.DB.Where("sensor_name = ?", name).First(&sensor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
		return nil, false
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sensor"})
		return nil, false
	}
	return &sensor, true
}

func AddSensor(c *gin.Context) {
	var input struct {
		SensorName string `json:"sensor_name" binding:"required"`
		sensorSettings
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor_name is required"})
		return
	}
	if input.SensorType == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor_type is required"})
		return
	}
	name := strings.TrimSpace(input.SensorName)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor_name is required"})
		return
	}
	sensor := models.SensorConfig{
		SensorName: name,
		ConfigJSON: datatypes.JSON(`{}`),
		Simulate:   true,
	}
	if err := input.apply(&sensor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	if err := config.DB.Model(&models.SensorConfig{}).Where("sensor_name = ?", sensor.SensorName).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check sensor"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Sensor already exists"})
		return
	}
	if err := config.DB.Create(&sensor).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add sensor"})
		return
	}
	config.Log.Infow("sensor added", "sensor", sensor.SensorName, "type", sensor.SensorType)
	c.JSON(http.StatusCreated, gin.H{"message": "Sensor added successfully", "sensor": sensor})
}

// UpdateSensor accepts {"sensor_name": ..., "settings": {...}}.
func UpdateSensor(c *gin.Context) {
	var input struct {
		SensorName string         `json:"sensor_name" binding:"required"`
		Settings   sensorSettings `json:"settings"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor_name is required"})
		return
	}
	sensor, ok := findSensor(c, input.SensorName)
	if !ok {
		return
	}
	if err := input.Settings.apply(sensor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := config.DB.Save(sensor).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update sensor"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sensor updated successfully", "sensor": sensor})
}

// DeleteSensor removes a sensor and the controller rules reading from it,
// and unlinks devices that used it directly. Its logged readings are kept.
func DeleteSensor(c *gin.Context) {
	name := c.Query("sensor_name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor_name is required"})
		return
	}
	sensor, ok := findSensor(c, name)
	if !ok {
		return
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sensor_name = ?", sensor.SensorName).Delete(&models.ControllerConfig{}).Error; err != nil {
			return err
		}
		err := tx.Model(&models.DeviceControl{}).Where("sensor_name = ?", sensor.SensorName).
			Updates(map[string]interface{}{"sensor_name": "", "control_logic": "", "threshold": nil}).Error
		if err != nil {
			return err
		}
		return tx.Delete(sensor).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete sensor"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sensor deleted successfully"})
}

// ---- controller rules ----

type ruleSettings struct {
	SensorName   *string  `json:"sensor_name"`
	ActuatorName *string  `json:"actuator_name"`
	Threshold    *float64 `json:"threshold"`
	ControlLogic *string  `json:"control_logic"`
	Hysteresis   *float64 `json:"hysteresis"`
}

func (s ruleSettings) apply(rule *models.ControllerConfig) error {
	if s.SensorName != nil {
		rule.SensorName = *s.SensorName
	}
	if s.ActuatorName != nil {
		rule.ActuatorName = *s.ActuatorName
	}
	if s.Threshold != nil {
		rule.Threshold = *s.Threshold
	}
	if s.ControlLogic != nil {
		rule.ControlLogic = *s.ControlLogic
	}
	if s.Hysteresis != nil {
		rule.Hysteresis = *s.Hysteresis
	}

	if !models.ValidControlLogic(rule.ControlLogic) {
		return errors.Errorf("invalid control_logic %q, expected below or above", rule.ControlLogic)
	}
	if rule.Hysteresis < 0 {
		return errors.New("hysteresis cannot be negative")
	}
	var count int64
	if err := config.DB.Model(&models.SensorConfig{}).Where("sensor_name = ?", rule.SensorName).Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking sensor")
	}
	if count == 0 {
		return errors.Errorf("unknown sensor %q", rule.SensorName)
	}
	if err := config.DB.Model(&models.DeviceControl{}).Where("device_name = ?", rule.ActuatorName).Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking actuator")
	}
	if count == 0 {
		return errors.Errorf("unknown actuator %q", rule.ActuatorName)
	}
	return nil
}

// pairTaken reports whether another rule already links the same sensor and
// actuator.
func pairTaken(rule *models.ControllerConfig) (bool, error) {
	var count int64
	err := config.DB.Model(&models.ControllerConfig{}).
		Where("sensor_name = ? AND actuator_name = ? AND id <> ?", rule.SensorName, rule.ActuatorName, rule.ID).
		Count(&count).Error
	return count > 0, err
}

func AddController(c *gin.Context) {
	var input ruleSettings
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if input.SensorName == nil || input.ActuatorName == nil || input.Threshold == nil || input.ControlLogic == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensor_name, actuator_name, threshold and control_logic are required"})
		return
	}
	rule := models.ControllerConfig{Hysteresis: models.DefaultHysteresis}
	if err := input.apply(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if taken, err := pairTaken(&rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check controller rules"})
		return
	} else if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "A rule for this sensor and actuator already exists"})
		return
	}
	if err := config.DB.Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add controller rule"})
		return
	}
	config.Log.Infow("controller rule added", "sensor", rule.SensorName, "device", rule.ActuatorName)
	c.JSON(http.StatusCreated, gin.H{"message": "Controller rule added successfully", "controller": rule})
}

func ListControllers(c *gin.Context) {
	var rules []models.ControllerConfig
	if err := config.DB.Order("id").Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch controller rules"})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// UpdateController accepts {"id": 1, "settings": {...}} or the settings
// fields next to "id".
func UpdateController(c *gin.Context) {
	var input struct {
		ID       uint          `json:"id" binding:"required"`
		Settings *ruleSettings `json:"settings"`
		ruleSettings
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	settings := input.ruleSettings
	if input.Settings != nil {
		settings = *input.Settings
	}

	var rule models.ControllerConfig
	err := config.DB.First(&rule, input.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Controller rule not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch controller rule"})
		return
	}
	if err := settings.apply(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if taken, err := pairTaken(&rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check controller rules"})
		return
	} else if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "A rule for this sensor and actuator already exists"})
		return
	}
	if err := config.DB.Save(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update controller rule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Controller rule updated successfully", "controller": rule})
}

func DeleteController(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a number"})
		return
	}
	res := config.DB.Delete(&models.ControllerConfig{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete controller rule"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Controller rule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Controller rule deleted successfully"})
}

// ---- automation switch ----

func GetAutomation(c *gin.Context) {
	paused, by, at := config.GetAutomationState()
	c.JSON(http.StatusOK, gin.H{"paused": paused, "updated_by": by, "updated_at": at})
}

// SetAutomation pauses or resumes automatic control of every device.
// Sensors keep being read while paused.
func SetAutomation(c *gin.Context) {
	var input struct {
		Paused *bool `json:"paused" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paused is required"})
		return
	}
	by := c.GetString("username")
	if err := config.SetAutomationState(config.DB, *input.Paused, by); err != nil {
		config.Log.Errorw("saving automation state", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update automation state"})
		return
	}
	config.Log.Infow("automation state changed", "paused", *input.Paused, "by", by)
	paused, updatedBy, at := config.GetAutomationState()
	c.JSON(http.StatusOK, gin.H{"paused": paused, "updated_by": updatedBy, "updated_at": at})
}
