package controllers

import (
	"github.com/fishm995/greenhouse-project/config"

	"gorm.io/gorm"
)

// MigrateModels runs the database migrations, makes db the global handle and
// loads the cached automation switch.
func MigrateModels(db *gorm.DB) error {
	config.DB = db
	if err := config.Migrate(db); err != nil {
		return err
	}
	return config.InitAutomationState(db)
}
