// Package queue carries reservation traffic over RabbitMQ: store writes that
// fire triggers, and profile-sync notifications.
package queue

import (
	"encoding/json"

	"github.com/iliyamo/session-seat-reservation/internal/model"
)

const (
	// TriggerQueue receives one message per store write matching a trigger
	// route.  The AMQP MessageId is the trigger event id.
	TriggerQueue = "reservation.triggers"
	// ProfileSyncQueue receives one message per reservation notification.
	ProfileSyncQueue = "profile.sync"
)

// TriggerMessage is the body of a TriggerQueue message.
type TriggerMessage struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// ProfileSyncEvent is the body of a ProfileSyncQueue message.
type ProfileSyncEvent struct {
	Operation   model.SyncOperation `json:"operation"`
	UserID      string              `json:"user_id"`
	SessionID   string              `json:"session_id"`
	TimestampMs int64               `json:"timestamp_ms"`
}

func newProfileSyncEvent(n model.Notification) ProfileSyncEvent {
	return ProfileSyncEvent{
		Operation:   n.Operation,
		UserID:      n.UserID,
		SessionID:   n.SessionID,
		TimestampMs: n.Timestamp,
	}
}

// Notification converts the event back to the domain type.
func (e ProfileSyncEvent) Notification() model.Notification {
	return model.Notification{
		Operation: e.Operation,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Timestamp: e.TimestampMs,
	}
}
