// Package notifications records user-facing notification rows and mirrors
// them to the realtime hub. Emission is fire-and-forget: a failed side effect
// never fails the operation that triggered it.
package notifications

import (
	"encoding/json"
	"log"

	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
	"github.com/vetconnect/vetconnect-server/internal/stats"
	"github.com/vetconnect/vetconnect-server/internal/types"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Kind string

const (
	KindConnectionRequest  Kind = "CONNECTION_REQUEST"
	KindConnectionAccepted Kind = "CONNECTION_ACCEPTED"
	KindNewMessage         Kind = "NEW_MESSAGE"
)

type Publisher interface {
	Publish(topic, event string, payload any)
}

type Notifier struct {
	log   *log.Logger
	db    database.Repository
	pub   Publisher
	stats stats.Provider
}

func NewNotifier(logger *log.Logger, db database.Repository, pub Publisher, sp stats.Provider) *Notifier {
	return &Notifier{
		log:   logger,
		db:    db,
		pub:   pub,
		stats: sp,
	}
}

// Notify records a notification for userId and publishes it to the user's
// realtime topic. Errors are logged, never returned.
func (n *Notifier) Notify(userId int, kind Kind, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		n.log.Printf("notify: marshal payload: %v", err)
		return
	}

	row, err := n.db.CreateNotification(database.CreateNotificationParams{
		UserId:  userId,
		Kind:    string(kind),
		Payload: raw,
	})
	if err != nil {
		n.log.Printf("notify: create notification: %v", err)
		return
	}

	n.stats.Incr(stats.NotificationsEmitted)
	n.pub.Publish(realtime.UserTopic(userId), realtime.EventNotification, types.Notification{
		Id:        row.Id,
		Kind:      row.Kind,
		Payload:   json.RawMessage(row.Payload),
		CreatedAt: row.CreatedAt,
	})
}

func (n *Notifier) List(userId, limit, offset int) ([]types.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := n.db.ListNotifications(userId, limit, offset)
	if err != nil {
		return nil, err
	}

	notifications := make([]types.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, types.Notification{
			Id:        row.Id,
			Kind:      row.Kind,
			Payload:   json.RawMessage(row.Payload),
			Read:      row.ReadAt.Valid,
			CreatedAt: row.CreatedAt,
		})
	}

	return notifications, nil
}

func (n *Notifier) MarkRead(userId int) error {
	return n.db.MarkNotificationsRead(userId)
}
