package config

import (
	"strings"
	"sync"
	"time"

	"github.com/fishm995/greenhouse-project/models"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is a global variable to hold the database connection
var DB *gorm.DB

// Connect opens the database named by url. "postgres://" and "postgresql://"
// URLs use the postgres driver; "sqlite://<path>" (or a bare path) uses sqlite.
func Connect(url string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dialector = postgres.Open(url)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(url, "sqlite://"))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return db, nil
}

// Migrate creates or updates every table the application uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.SensorConfig{},
		&models.SensorLog{},
		&models.DeviceControl{},
		&models.ControllerConfig{},
		&models.AutomationSetting{},
	)
}

// automationStateCache holds the global automation switch in memory and is
// synchronized with the database.
type automationStateCache struct {
	Paused    bool
	UpdatedBy string
	UpdatedAt time.Time
}

var (
	currentAutomationState automationStateCache
	automationMutex        sync.Mutex
)

const automationSettingID = 1 // single global row

// InitAutomationState loads the automation switch from the database or
// creates the default (running) row. Call it once at startup.
func InitAutomationState(db *gorm.DB) error {
	automationMutex.Lock()
	defer automationMutex.Unlock()

	var setting models.AutomationSetting
	err := db.First(&setting, automationSettingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.AutomationSetting{ID: automationSettingID, UpdatedAt: time.Now().UTC()}
		if err := db.Create(&setting).Error; err != nil {
			return errors.Wrap(err, "creating automation setting")
		}
	} else if err != nil {
		return errors.Wrap(err, "loading automation setting")
	}

	currentAutomationState = automationStateCache{
		Paused:    setting.Paused,
		UpdatedBy: setting.UpdatedBy,
		UpdatedAt: setting.UpdatedAt,
	}
	return nil
}

// GetAutomationState returns the cached automation switch.
func GetAutomationState() (paused bool, updatedBy string, updatedAt time.Time) {
	automationMutex.Lock()
	defer automationMutex.Unlock()
	s := currentAutomationState
	return s.Paused, s.UpdatedBy, s.UpdatedAt
}

// SetAutomationState updates the switch in both the database and the cache.
func SetAutomationState(db *gorm.DB, paused bool, by string) error {
	automationMutex.Lock()
	defer automationMutex.Unlock()

	setting := models.AutomationSetting{
		ID:        automationSettingID,
		Paused:    paused,
		UpdatedBy: by,
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.Save(&setting).Error; err != nil {
		return errors.Wrap(err, "saving automation setting")
	}

	currentAutomationState = automationStateCache{
		Paused:    setting.Paused,
		UpdatedBy: setting.UpdatedBy,
		UpdatedAt: setting.UpdatedAt,
	}
	return nil
}
