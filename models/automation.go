package models

import "time"

// AutomationSetting stores the global automation switch. A single row is kept.
type AutomationSetting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Paused    bool      `json:"paused"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
