package model

import (
	"time"

	"gorm.io/gorm"
)

// TrustedIP is the persisted trust record for one (user, address) pair.
// Both flags false means the pair is pending verification. IsBanned takes
// precedence over IsApproved during evaluation; the schema does not
// enforce that, business logic does.
type TrustedIP struct {
	gorm.Model
	UserID    uint   `gorm:"uniqueIndex:idx_user_ip;not null" json:"user_id"`
	IPAddress string `gorm:"uniqueIndex:idx_user_ip;type:varchar(45);not null" json:"ip_address"`

	IsApproved bool `json:"is_approved"`
	IsBanned   bool `json:"is_banned"`

	// Geolocation enrichment, best-effort. Nil when the lookup failed or
	// was unavailable at the time the record was last refreshed.
	Country   *string  `gorm:"type:varchar(100)" json:"country"`
	Region    *string  `gorm:"type:varchar(100)" json:"region"`
	City      *string  `gorm:"type:varchar(100)" json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	ISP       *string  `gorm:"column:isp;type:varchar(191)" json:"isp"`

	UserAgent  *string   `gorm:"type:varchar(512)" json:"user_agent"`
	LastSeenAt time.Time `gorm:"index" json:"last_seen_at"`
}

func (TrustedIP) TableName() string {
	return "trusted_ips"
}
