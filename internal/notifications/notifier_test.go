package notifications

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
	"github.com/vetconnect/vetconnect-server/internal/stats"
	"github.com/vetconnect/vetconnect-server/internal/testutil"
	"github.com/vetconnect/vetconnect-server/internal/types"
)

type publishedEvent struct {
	topic   string
	event   string
	payload any
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) Publish(topic, event string, payload any) {
	p.events = append(p.events, publishedEvent{topic: topic, event: event, payload: payload})
}

func TestNotify(t *testing.T) {
	t.Run("records and publishes", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", stats.NotificationsEmitted).Once()

		row := database.Notification{
			Id:        1,
			UserId:    2,
			Kind:      string(KindConnectionRequest),
			Payload:   []byte(`{"connection_id":5}`),
			CreatedAt: time.Now().UTC(),
		}
		db.On("CreateNotification", database.CreateNotificationParams{
			UserId:  2,
			Kind:    string(KindConnectionRequest),
			Payload: []byte(`{"connection_id":5}`),
		}).Return(row, nil).Once()

		pub := &fakePublisher{}
		n := NewNotifier(testutil.TestLogger(t), db, pub, su)
		n.Notify(2, KindConnectionRequest, map[string]any{"connection_id": 5})

		assert.Len(t, pub.events, 1)
		assert.Equal(t, realtime.UserTopic(2), pub.events[0].topic)
		assert.Equal(t, realtime.EventNotification, pub.events[0].event)

		notification, ok := pub.events[0].payload.(types.Notification)
		assert.True(t, ok)
		assert.Equal(t, 1, notification.Id)
		assert.JSONEq(t, `{"connection_id":5}`, string(notification.Payload))
	})

	t.Run("storage failure is swallowed", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateNotification", database.CreateNotificationParams{
			UserId:  2,
			Kind:    string(KindNewMessage),
			Payload: []byte(`{}`),
		}).Return(database.Notification{}, errors.New("db error")).Once()

		pub := &fakePublisher{}
		n := NewNotifier(testutil.TestLogger(t), db, pub, stats.Nop{})
		n.Notify(2, KindNewMessage, map[string]any{})

		assert.Empty(t, pub.events, "no publish when the row was not recorded")
	})
}

func TestList(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)

	now := time.Now().UTC()
	db.On("ListNotifications", 1, 20, 0).Return([]database.Notification{
		{
			Id:        2,
			UserId:    1,
			Kind:      string(KindNewMessage),
			Payload:   []byte(`{"conversation_id":"abc"}`),
			CreatedAt: now,
		},
	}, nil).Once()

	n := NewNotifier(testutil.TestLogger(t), db, &fakePublisher{}, stats.Nop{})
	notifications, err := n.List(1, 20, 0)
	assert.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.Equal(t, string(KindNewMessage), notifications[0].Kind)
	assert.False(t, notifications[0].Read)
	assert.Equal(t, json.RawMessage(`{"conversation_id":"abc"}`), notifications[0].Payload)
}

func TestMarkRead(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("MarkNotificationsRead", 1).Return(nil).Once()

	n := NewNotifier(testutil.TestLogger(t), db, &fakePublisher{}, stats.Nop{})
	assert.NoError(t, n.MarkRead(1))
}
