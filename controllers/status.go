package controllers

import (
	"net/http"
	"time"

	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/models"

	"github.com/gin-gonic/gin"
)

// PublicStatus is the unauthenticated summary shown on the landing page.
func PublicStatus(c *gin.Context) {
	var sensors []models.SensorConfig
	var devices []models.DeviceControl
	if err := config.DB.Order("id").Find(&sensors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sensors"})
		return
	}
	if err := config.DB.Order("id").Find(&devices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
		return
	}

	readings := make(map[string]*float64, len(sensors))
	for _, s := range sensors {
		readings[s.SensorName] = s.LatestValue
	}
	states := make(map[string]bool, len(devices))
	for _, d := range devices {
		states[d.DeviceName] = d.CurrentStatus
	}

	viewers, ready := 0, false
	if hub != nil {
		viewers, ready = hub.Count(), hub.StreamReady()
	}
	paused, _, _ := config.GetAutomationState()
	c.JSON(http.StatusOK, gin.H{
		"viewers":           viewers,
		"stream_ready":      ready,
		"sensors":           readings,
		"devices":           states,
		"automation_paused": paused,
		"time":              time.Now().In(location).Format(time.RFC3339),
	})
}

// Healthz reports whether the database is reachable.
func Healthz(c *gin.Context) {
	sqlDB, err := config.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
