package model

import (
	"time"

	"gorm.io/gorm"
)

// VerificationCode is a one-time numeric code bound to a (user, address)
// pair. Rows are never deleted; consumed codes stay as an audit trail.
type VerificationCode struct {
	gorm.Model
	UserID    uint      `gorm:"index:idx_code_lookup;not null" json:"user_id"`
	IPAddress string    `gorm:"index:idx_code_lookup;type:varchar(45);not null" json:"ip_address"`
	Code      string    `gorm:"index:idx_code_lookup;type:varchar(6);not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `json:"used"`
}
