package controllers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/models"
	"github.com/fishm995/greenhouse-project/telemetry"
	"github.com/fishm995/greenhouse-project/utils"

	"github.com/gin-gonic/gin"
)

// ListSensors returns every configured sensor with its latest reading.
func ListSensors(c *gin.Context) {
	var sensors []models.SensorConfig
	if err := config.DB.Order("id").Find(&sensors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sensors"})
		return
	}
	c.JSON(http.StatusOK, sensors)
}

// CurrentReadings maps sensor name to its latest value (null when the
// sensor has never been read).
func CurrentReadings(c *gin.Context) {
	var sensors []models.SensorConfig
	if err := config.DB.Order("id").Find(&sensors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sensors"})
		return
	}
	readings := make(map[string]*float64, len(sensors))
	for _, s := range sensors {
		readings[s.SensorName] = s.LatestValue
	}
	c.JSON(http.StatusOK, readings)
}

type logPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// GetSensorLogs returns the readings of one sensor, oldest first.
//
//	GET /api/sensor/logs?type=<sensor name>&hours=24
//	GET /api/sensor/logs?type=<sensor name>&start=<rfc3339>&end=<rfc3339>&limit=100
func GetSensorLogs(c *gin.Context) {
	logs, ok := querySensorLogs(c)
	if !ok {
		return
	}
	points := make([]logPoint, 0, len(logs))
	for _, l := range logs {
		points = append(points, logPoint{
			Timestamp: l.Timestamp.In(location).Format(time.RFC3339),
			Value:     l.Value,
		})
	}
	c.JSON(http.StatusOK, points)
}

// DownloadSensorLogsCSV sends the same rows as GetSensorLogs as a CSV file.
func DownloadSensorLogsCSV(c *gin.Context) {
	logs, ok := querySensorLogs(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_logs.csv", telemetry.Slug(c.Query("type"))))
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"timestamp", "value"})
	for _, l := range logs {
		writer.Write([]string{
			l.Timestamp.In(location).Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2f", l.Value),
		})
	}
}

// querySensorLogs applies the type/window/limit query parameters. On bad
// input it writes the error response and returns false.
func querySensorLogs(c *gin.Context) ([]models.SensorLog, bool) {
	name := c.Query("type")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'type' is required"})
		return nil, false
	}
	window, err := utils.ParseWindow(c.Query("hours"), c.Query("start"), c.Query("end"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return nil, false
		}
	}

	query := config.DB.Where("sensor_type = ?", name)
	if window.Start != nil {
		query = query.Where("timestamp >= ?", *window.Start)
	}
	if window.End != nil {
		query = query.Where("timestamp <= ?", *window.End)
	}

	var logs []models.SensorLog
	if limit > 0 {
		// newest rows, returned oldest first
		if err := query.Order("timestamp desc").Limit(limit).Find(&logs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sensor logs"})
			return nil, false
		}
		for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
			logs[i], logs[j] = logs[j], logs[i]
		}
		return logs, true
	}
	if err := query.Order("timestamp asc").Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sensor logs"})
		return nil, false
	}
	return logs, true
}
