package models

// Roles known to the API. Junior users can read and toggle, senior users can
// also edit control settings, admins can do everything.
const (
	RoleAdmin  = "admin"
	RoleSenior = "senior"
	RoleJunior = "junior"
)

type User struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Username     string `json:"username" gorm:"size:50;uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"type:text;not null"`
	Role         string `json:"role" gorm:"size:10;default:junior"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSenior, RoleJunior:
		return true
	}
	return false
}

// CanEditSettings reports whether role may change a control's settings.
func CanEditSettings(role string) bool {
	return role == RoleAdmin || role == RoleSenior
}
