package model

import "gorm.io/gorm"

// User account statuses. Suspended accounts are rejected at login with a
// distinct error; inactive accounts are rejected with the generic
// credential failure so their existence is not revealed.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

type User struct {
	gorm.Model
	Name           string `gorm:"type:varchar(191)" json:"name"`
	Email          string `gorm:"type:varchar(191);uniqueIndex" json:"email"`
	Password       string `json:"-"`
	PasswordSalt   string `json:"-"`
	Status         string `gorm:"type:varchar(16);default:active" json:"status"`
	RoleID         uint32 `json:"role_id"`
	FailedAttempts int    `json:"-"`
	LockedUntil    *int64 `json:"-"`
}
