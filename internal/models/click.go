package models

import (
	"time"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Click is append-only: one row per successful resolution.
type Click struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LinkID     uint      `gorm:"not null;index:idx_clicks_link_created,priority:1" json:"link_id"`
	CreatedAt  time.Time `gorm:"not null;index;index:idx_clicks_link_created,priority:2" json:"created_at"`
	IPAddress  *string   `gorm:"size:45" json:"ip_address,omitempty"`
	Country    *string   `gorm:"size:100" json:"country,omitempty"`
	Referrer   *string   `gorm:"size:512" json:"referrer,omitempty"`
	Browser    *string   `gorm:"size:100" json:"browser,omitempty"`
	DeviceType string    `gorm:"size:16;not null" json:"device_type"`
}

func (Click) TableName() string {
	return "clicks"
}
