package controllers

import (
	"net/http"
	"testing"

	"github.com/fishm995/greenhouse-project/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetControls(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/controls", "junior", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var devices []models.DeviceControl
	decode(t, w, &devices)
	require.Len(t, devices, 5)
	assert.Equal(t, "White Light", devices[0].DeviceName)
	require.NotNil(t, devices[0].GPIOPin)
	assert.Equal(t, 18, *devices[0].GPIOPin)
}

func TestToggleControl(t *testing.T) {
	env := setupTestEnv(t)

	var resp struct {
		DeviceName    string `json:"device_name"`
		CurrentStatus bool   `json:"current_status"`
	}
	w := env.do(t, http.MethodPost, "/api/control/Heat%20Lamp/toggle", "junior", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.Equal(t, "Heat Lamp", resp.DeviceName)
	assert.True(t, resp.CurrentStatus)

	w = env.do(t, http.MethodPost, "/api/control/Heat%20Lamp/toggle", "junior", nil)
	decode(t, w, &resp)
	assert.False(t, resp.CurrentStatus)

	var lamp models.DeviceControl
	require.NoError(t, env.db.Where("device_name = ?", "Heat Lamp").First(&lamp).Error)
	assert.False(t, lamp.CurrentStatus)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/control/Disco%20Ball/toggle", "junior", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/control/Heat%20Lamp/toggle", "", nil).Code)
}

func TestToggleRejectsAutoMode(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, env.db.Model(&models.DeviceControl{}).Where("device_name = ?", "Water Valve").
		Update("mode", models.ModeAuto).Error)

	w := env.do(t, http.MethodPost, "/api/control/Water%20Valve/toggle", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestControlSettings(t *testing.T) {
	env := setupTestEnv(t)
	url := "/api/control/Fresh%20Air%20Fan/settings"

	w := env.do(t, http.MethodGet, url, "junior", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fan models.DeviceControl
	decode(t, w, &fan)
	assert.Equal(t, models.ModeManual, fan.Mode)

	tests := []struct {
		name       string
		role       string
		payload    map[string]interface{}
		wantStatus int
	}{
		{"junior cannot edit", "junior", map[string]interface{}{"auto_time": "09:00"}, http.StatusForbidden},
		{"senior sets schedule", "senior", map[string]interface{}{"mode": "auto", "auto_time": "21:30", "auto_duration": 90}, http.StatusOK},
		{"auto requires auto_enabled", "senior", map[string]interface{}{"mode": "auto", "auto_enabled": false}, http.StatusBadRequest},
		{"bad auto_time", "admin", map[string]interface{}{"auto_time": "9pm"}, http.StatusBadRequest},
		{"bad control_mode", "admin", map[string]interface{}{"control_mode": "moon"}, http.StatusBadRequest},
		{"bad control_logic", "admin", map[string]interface{}{"control_logic": "sideways"}, http.StatusBadRequest},
		{"unknown sensor", "admin", map[string]interface{}{"sensor_name": "Nope", "control_logic": "above"}, http.StatusBadRequest},
		{"senior cannot rewire", "senior", map[string]interface{}{"gpio_pin": 17}, http.StatusBadRequest},
		{"admin can rewire", "admin", map[string]interface{}{"gpio_pin": 17}, http.StatusOK},
		{"admin pin must exist", "admin", map[string]interface{}{"gpio_pin": 99}, http.StatusBadRequest},
		{"sensor control", "admin", map[string]interface{}{
			"control_mode": "sensor", "sensor_name": "Humidity Sensor", "threshold": 75,
			"control_logic": "above", "hysteresis": 2,
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, url, tt.role, tt.payload)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	require.NoError(t, env.db.Where("device_name = ?", "Fresh Air Fan").First(&fan).Error)
	assert.Equal(t, models.ModeAuto, fan.Mode)
	assert.Equal(t, "21:30", fan.AutoTime)
	assert.Equal(t, 90, fan.AutoDuration)
	assert.True(t, fan.AutoEnabled, "rejected update was not saved")
	assert.Equal(t, 17, *fan.GPIOPin)
	assert.Equal(t, models.ControlModeSensor, fan.ControlMode)
	assert.Equal(t, "Humidity Sensor", fan.SensorName)
	assert.Equal(t, 75.0, *fan.Threshold)
	assert.Equal(t, 2.0, fan.HysteresisOrDefault())
}

func TestControlSettingsUnknownDevice(t *testing.T) {
	env := setupTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/control/Nope/settings", "admin", map[string]interface{}{"mode": "manual"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDisableAutomationWhileInAutoMode(t *testing.T) {
	env := setupTestEnv(t)
	url := "/api/control/Heat%20Lamp/settings"

	w := env.do(t, http.MethodPost, url, "senior", map[string]interface{}{"mode": "auto"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// turning automation off does not require leaving auto mode first
	w = env.do(t, http.MethodPost, url, "senior", map[string]interface{}{"auto_enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var lamp models.DeviceControl
	require.NoError(t, env.db.Where("device_name = ?", "Heat Lamp").First(&lamp).Error)
	assert.Equal(t, models.ModeAuto, lamp.Mode)
	assert.False(t, lamp.AutoEnabled)

	// but switching into auto is refused while it is off
	w = env.do(t, http.MethodPost, url, "senior", map[string]interface{}{"mode": "auto"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
