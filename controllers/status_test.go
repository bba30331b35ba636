package controllers

import (
	"net/http"
	"testing"

	"github.com/fishm995/greenhouse-project/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicStatus(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, env.db.Model(&models.DeviceControl{}).Where("device_name = ?", "Heat Lamp").
		Update("current_status", true).Error)
	require.NoError(t, env.db.Model(&models.SensorConfig{}).Where("sensor_name = ?", "CO2 Sensor").
		Update("latest_value", 415.0).Error)

	w := env.do(t, http.MethodGet, "/public/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status struct {
		Viewers     int                 `json:"viewers"`
		StreamReady bool                `json:"stream_ready"`
		Sensors     map[string]*float64 `json:"sensors"`
		Devices     map[string]bool     `json:"devices"`
		Time        string              `json:"time"`
	}
	decode(t, w, &status)
	assert.Zero(t, status.Viewers)
	assert.False(t, status.StreamReady)
	assert.True(t, status.Devices["Heat Lamp"])
	assert.False(t, status.Devices["White Light"])
	assert.Len(t, status.Devices, 5)
	require.NotNil(t, status.Sensors["CO2 Sensor"])
	assert.Equal(t, 415.0, *status.Sensors["CO2 Sensor"])
	assert.NotEmpty(t, status.Time)
}

func TestHealthz(t *testing.T) {
	env := setupTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
