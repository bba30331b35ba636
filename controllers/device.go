package controllers

import (
	"net/http"

	"github.com/fishm995/greenhouse-project/automation"
	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/hardware"
	"github.com/fishm995/greenhouse-project/models"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// controlSettings is a partial update of a device. Nil fields are left
// unchanged.
type controlSettings struct {
	Mode         *string  `json:"mode"`
	ControlMode  *string  `json:"control_mode"`
	AutoTime     *string  `json:"auto_time"`
	AutoDuration *int     `json:"auto_duration"`
	AutoEnabled  *bool    `json:"auto_enabled"`
	SensorName   *string  `json:"sensor_name"`
	Threshold    *float64 `json:"threshold"`
	ControlLogic *string  `json:"control_logic"`
	Hysteresis   *float64 `json:"hysteresis"`
	Simulate     *bool    `json:"simulate"`

	// admin only
	DeviceType *string `json:"device_type"`
	GPIOPin    *int    `json:"gpio_pin"`
}

// applySettings validates s and copies it onto d. Wiring changes (type and
// pin) are rejected unless allowWiring is set.
func applySettings(d *models.DeviceControl, s controlSettings, allowWiring bool) error {
	if !allowWiring && (s.DeviceType != nil || s.GPIOPin != nil) {
		return errors.New("device_type and gpio_pin can only be changed by an admin")
	}
	if s.Mode != nil {
		if !models.ValidMode(*s.Mode) {
			return errors.Errorf("invalid mode %q, expected manual or auto", *s.Mode)
		}
		d.Mode = *s.Mode
	}
	if s.ControlMode != nil {
		if !models.ValidControlMode(*s.ControlMode) {
			return errors.Errorf("invalid control_mode %q, expected time or sensor", *s.ControlMode)
		}
		d.ControlMode = *s.ControlMode
	}
	if s.AutoTime != nil {
		if !models.ValidAutoTime(*s.AutoTime) {
			return errors.Errorf("invalid auto_time %q, expected HH:MM", *s.AutoTime)
		}
		d.AutoTime = *s.AutoTime
	}
	if s.AutoDuration != nil {
		if *s.AutoDuration < 0 {
			return errors.New("auto_duration cannot be negative")
		}
		d.AutoDuration = *s.AutoDuration
	}
	if s.AutoEnabled != nil {
		d.AutoEnabled = *s.AutoEnabled
	}
	if s.SensorName != nil {
		d.SensorName = *s.SensorName
	}
	if s.Threshold != nil {
		d.Threshold = s.Threshold
	}
	if s.ControlLogic != nil {
		if *s.ControlLogic != "" && !models.ValidControlLogic(*s.ControlLogic) {
			return errors.Errorf("invalid control_logic %q, expected below or above", *s.ControlLogic)
		}
		d.ControlLogic = *s.ControlLogic
	}
	if s.Hysteresis != nil {
		if *s.Hysteresis < 0 {
			return errors.New("hysteresis cannot be negative")
		}
		d.Hysteresis = s.Hysteresis
	}
	if s.Simulate != nil {
		d.Simulate = *s.Simulate
	}
	if s.DeviceType != nil {
		d.DeviceType = *s.DeviceType
	}
	if s.GPIOPin != nil {
		if _, err := hardware.HeaderPin(*s.GPIOPin); err != nil {
			return err
		}
		d.GPIOPin = s.GPIOPin
	}

	// only switching into auto is refused; disabling automation on a device
	// already in auto leaves it idle
	if s.Mode != nil && d.Mode == models.ModeAuto && !d.AutoEnabled {
		return errors.Errorf("automatic mode is disabled for %q", d.DeviceName)
	}
	if d.SensorName != "" && d.ControlLogic == "" {
		return errors.New("control_logic is required when sensor_name is set")
	}
	if s.SensorName != nil && d.SensorName != "" {
		var count int64
		err := config.DB.Model(&models.SensorConfig{}).Where("sensor_name = ?", d.SensorName).Count(&count).Error
		if err != nil {
			return errors.Wrap(err, "checking sensor")
		}
		if count == 0 {
			return errors.Errorf("unknown sensor %q", d.SensorName)
		}
	}
	return nil
}

// findDevice loads a device by name and writes a 404/500 on failure.
func findDevice(c *gin.Context, name string) (*models.DeviceControl, bool) {
	var device models.DeviceControl
	err := config.DB.Where("device_name = ?", name).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return nil, false
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch device"})
		return nil, false
	}
	return &device, true
}

// GetControls lists every device with all of its settings.
func GetControls(c *gin.Context) {
	var devices []models.DeviceControl
	if err := config.DB.Order("id").Find(&devices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch controls"})
		return
	}
	c.JSON(http.StatusOK, devices)
}

// ToggleControl flips a device that is in manual mode.
func ToggleControl(c *gin.Context) {
	device, ok := findDevice(c, c.Param("name"))
	if !ok {
		return
	}
	if device.Mode != models.ModeManual {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device is in auto mode; switch it to manual to toggle"})
		return
	}

	if err := switcher.Set(c.Request.Context(), device, !device.CurrentStatus, automation.SourceManual); err != nil {
		config.Log.Errorw("toggle failed", "device", device.DeviceName, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch device"})
		return
	}
	config.Log.Infow("device toggled", "device", device.DeviceName, "on", device.CurrentStatus, "by", c.GetString("username"))
	c.JSON(http.StatusOK, gin.H{
		"device_name":    device.DeviceName,
		"current_status": device.CurrentStatus,
	})
}

func GetControlSettings(c *gin.Context) {
	device, ok := findDevice(c, c.Param("name"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, device)
}

// UpdateControlSettings applies a partial settings update (admin and
// senior).
func UpdateControlSettings(c *gin.Context) {
	device, ok := findDevice(c, c.Param("name"))
	if !ok {
		return
	}
	var input controlSettings
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	allowWiring := c.GetString("role") == models.RoleAdmin
	if err := applySettings(device, input, allowWiring); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := config.DB.Save(device).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}
	config.Log.Infow("control settings updated", "device", device.DeviceName, "by", c.GetString("username"))
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated successfully", "device": device})
}
