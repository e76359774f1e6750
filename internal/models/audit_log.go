package models

import (
	"time"
)

// AuditLog records a dispatched notification. It is written after the
// mutation it describes has committed.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorID   *uint     `gorm:"index" json:"actor_id"`
	Event     string    `gorm:"size:50;not null" json:"event"` // e.g. "LINK_CREATED", "USER_DELETED"
	EntityID  string    `gorm:"size:50" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// All returns every model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{&User{}, &Link{}, &Click{}, &AuditLog{}}
}
