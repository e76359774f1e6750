package models

import (
	"time"
)

// User is owned by the identity collaborator; only the flags below are consumed here.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	APIKey      string    `gorm:"uniqueIndex;size:36" json:"-"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	IsSuperuser bool      `gorm:"not null" json:"is_superuser"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	Links       []Link    `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}
