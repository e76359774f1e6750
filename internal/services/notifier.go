package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"snaplink/internal/models"

	"gorm.io/gorm"
)

const (
	EventLinkCreated  = "LINK_CREATED"
	EventLinkDeleted  = "LINK_DELETED"
	EventLinkExtended = "LINK_EXTENDED"
	EventLinksSwept   = "LINKS_SWEPT"
	EventUserDeleted  = "USER_DELETED"
	EventUserStatus   = "USER_STATUS"
)

// Notifier dispatches side-effect notifications after a mutation commits.
// Dispatch is fire-and-forget: a full queue drops the event and a failed
// write is only logged.
type Notifier struct {
	db      *gorm.DB
	logger  *slog.Logger
	clock   Clock
	channel chan models.AuditLog
}

func NewNotifier(db *gorm.DB, logger *slog.Logger, clock Clock) *Notifier {
	return &Notifier{
		db:      db,
		logger:  logger,
		clock:   clock,
		channel: make(chan models.AuditLog, 100),
	}
}

func (n *Notifier) Start(ctx context.Context) {
	n.logger.Info("Notification worker starting")
	for {
		select {
		case entry := <-n.channel:
			n.deliver(entry)
		case <-ctx.Done():
			n.logger.Info("Notification worker stopping")
			return
		}
	}
}

func (n *Notifier) deliver(entry models.AuditLog) {
	if err := n.db.Create(&entry).Error; err != nil {
		n.logger.Error("Failed to dispatch notification", "event", entry.Event, "entity", entry.EntityID, "error", err)
		return
	}
	n.logger.Debug("Notification dispatched", "event", entry.Event, "entity", entry.EntityID)
}

func (n *Notifier) Notify(actorID *uint, event, entityID string, details interface{}) {
	if n == nil {
		return
	}
	var detailText string
	if details != nil {
		detailBytes, err := json.Marshal(details)
		if err != nil {
			n.logger.Warn("Notification details not serializable", "event", event, "error", err)
		} else {
			detailText = string(detailBytes)
		}
	}

	entry := models.AuditLog{
		ActorID:   actorID,
		Event:     event,
		EntityID:  entityID,
		Details:   detailText,
		CreatedAt: n.now(),
	}

	select {
	case n.channel <- entry:
	default:
		n.logger.Warn("Notification queue full, dropping event", "event", event)
	}
}

func (n *Notifier) now() time.Time {
	if n.clock == nil {
		return SystemClock()
	}
	return n.clock()
}
