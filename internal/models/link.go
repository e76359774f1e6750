package models

import (
	"time"
)

type Link struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OriginalURL string     `gorm:"not null;type:text" json:"original_url"`
	ShortCode   string     `gorm:"uniqueIndex;not null;size:32" json:"short_code"`
	OwnerID     uint       `gorm:"not null;index" json:"owner_id"`
	Tag         *string    `gorm:"size:100" json:"tag,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`

	Clicks []Click `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Link) TableName() string {
	return "links"
}

// IsExpiredAt reports whether the link no longer resolves at instant now.
func (l Link) IsExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}
