package config

import (
	"testing"
	"time"

	"github.com/fishm995/greenhouse-project/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Connect("sqlite://:memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	t.Setenv("SEED_ADMIN_PASSWORD", "s3cret")

	require.NoError(t, Seed(db))
	require.NoError(t, Seed(db))

	var users, devices, sensors int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.DeviceControl{}).Count(&devices)
	db.Model(&models.SensorConfig{}).Count(&sensors)
	assert.Equal(t, int64(3), users)
	assert.Equal(t, int64(5), devices)
	assert.Equal(t, int64(7), sensors)

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cret")))

	var valve models.DeviceControl
	require.NoError(t, db.Where("device_name = ?", "Water Valve").First(&valve).Error)
	require.NotNil(t, valve.GPIOPin)
	assert.Equal(t, 25, *valve.GPIOPin)
	assert.Equal(t, models.ModeManual, valve.Mode)
	assert.False(t, valve.CurrentStatus)
	assert.Equal(t, "08:00", valve.AutoTime)
}

func TestAutomationState(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, InitAutomationState(db))

	paused, _, _ := GetAutomationState()
	assert.False(t, paused)

	require.NoError(t, SetAutomationState(db, true, "admin"))
	paused, by, at := GetAutomationState()
	assert.True(t, paused)
	assert.Equal(t, "admin", by)
	assert.WithinDuration(t, time.Now(), at, time.Minute)

	// state survives a reload from the database
	require.NoError(t, InitAutomationState(db))
	paused, by, _ = GetAutomationState()
	assert.True(t, paused)
	assert.Equal(t, "admin", by)

	var count int64
	db.Model(&models.AutomationSetting{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLoad(t *testing.T) {
	t.Setenv("SECRET_KEY", "k")
	t.Setenv("SCHEDULER_INTERVAL", "15s")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("GPIO_ENABLED", "true")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, s.SchedulerInterval)
	assert.Equal(t, time.Hour, s.TokenTTL)
	assert.Equal(t, "UTC", s.Location.String())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, s.CORSOrigins)
	assert.True(t, s.GPIOEnabled)
	assert.Equal(t, "/tmp/hls", s.HLSDir)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SECRET_KEY", "k")
	t.Setenv("TOKEN_TTL", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
	_, err = Load()
	assert.Error(t, err)
}
