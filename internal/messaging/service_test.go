package messaging

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vetconnect/vetconnect-server/internal/apperrors"
	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/notifications"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
	"github.com/vetconnect/vetconnect-server/internal/stats"
	"github.com/vetconnect/vetconnect-server/internal/testutil"
)

type notifyCall struct {
	userId  int
	kind    notifications.Kind
	payload map[string]any
}

type fakeNotifier struct {
	calls []notifyCall
}

func (n *fakeNotifier) Notify(userId int, kind notifications.Kind, payload map[string]any) {
	n.calls = append(n.calls, notifyCall{userId: userId, kind: kind, payload: payload})
}

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

func newTestService(t *testing.T, db database.Repository) (*Service, *fakeNotifier, *fakePublisher) {
	notifier := &fakeNotifier{}
	pub := &fakePublisher{}
	svc := NewService(testutil.TestLogger(t), db, notifier, pub, stats.Nop{})
	svc.generateShortId = func() (string, error) { return "conv-ext-1", nil }
	return svc, notifier, pub
}

func TestGetOrCreateConversation(t *testing.T) {
	other := database.User{Id: 2, DisplayName: "Clinic One"}
	existing := database.Conversation{Id: 7, ExternalId: "conv-ext-0"}

	t.Run("returns existing conversation", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 2).Return(other, nil).Once()
		db.On("GetDirectConversation", 1, 2).Return(existing, nil).Once()

		svc, _, _ := newTestService(t, db)
		conv, err := svc.GetOrCreateConversation(1, 2)
		assert.NoError(t, err)
		assert.Equal(t, "conv-ext-0", conv.Id)
		assert.Equal(t, 2, conv.User.Id)
	})

	t.Run("creates conversation when absent", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		created := database.Conversation{Id: 8, ExternalId: "conv-ext-1"}
		db.On("GetAccountById", 2).Return(other, nil).Once()
		db.On("GetDirectConversation", 1, 2).Return(database.Conversation{}, sql.ErrNoRows).Once()
		db.On("CreateDirectConversation", 1, 2, "conv-ext-1").Return(created, nil).Once()

		svc, _, _ := newTestService(t, db)
		conv, err := svc.GetOrCreateConversation(1, 2)
		assert.NoError(t, err)
		assert.Equal(t, "conv-ext-1", conv.Id)
	})

	t.Run("lost race resolves to the winner's conversation", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		winner := database.Conversation{Id: 9, ExternalId: "conv-ext-winner"}
		db.On("GetAccountById", 2).Return(other, nil).Once()
		db.On("GetDirectConversation", 1, 2).Return(database.Conversation{}, sql.ErrNoRows).Once()
		db.On("CreateDirectConversation", 1, 2, "conv-ext-1").Return(database.Conversation{}, database.ErrDuplicate).Once()
		db.On("GetDirectConversation", 1, 2).Return(winner, nil).Once()

		svc, _, _ := newTestService(t, db)
		conv, err := svc.GetOrCreateConversation(1, 2)
		assert.NoError(t, err)
		assert.Equal(t, "conv-ext-winner", conv.Id)
	})

	t.Run("rejects self conversation", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)

		svc, _, _ := newTestService(t, db)
		_, err := svc.GetOrCreateConversation(1, 1)
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 404).Return(database.User{}, sql.ErrNoRows).Once()

		svc, _, _ := newTestService(t, db)
		_, err := svc.GetOrCreateConversation(1, 404)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	})
}

func TestListConversations(t *testing.T) {
	now := time.Now().UTC()
	conv := database.Conversation{
		Id:            7,
		ExternalId:    "conv-ext-0",
		LastMessageAt: sql.NullTime{Time: now, Valid: true},
	}
	other := database.User{Id: 2, DisplayName: "Clinic One"}

	tcases := []struct {
		name        string
		lastMessage *database.Message
		lastReadAt  sql.NullTime
		wantUnread  int
	}{
		{
			name: "unread when the other party wrote after the cursor",
			lastMessage: &database.Message{
				Id:        1,
				SenderId:  2,
				Content:   "hi",
				CreatedAt: now,
			},
			lastReadAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
			wantUnread: 1,
		},
		{
			name: "unread when the cursor was never set",
			lastMessage: &database.Message{
				Id:        1,
				SenderId:  2,
				Content:   "hi",
				CreatedAt: now,
			},
			wantUnread: 1,
		},
		{
			name: "read when the cursor postdates the latest message",
			lastMessage: &database.Message{
				Id:        1,
				SenderId:  2,
				Content:   "hi",
				CreatedAt: now,
			},
			lastReadAt: sql.NullTime{Time: now.Add(time.Minute), Valid: true},
			wantUnread: 0,
		},
		{
			name: "own message never counts as unread",
			lastMessage: &database.Message{
				Id:        1,
				SenderId:  1,
				Content:   "hi",
				CreatedAt: now,
			},
			wantUnread: 0,
		},
		{
			name:       "empty conversation has no unread flag",
			wantUnread: 0,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockRepository{}
			defer db.AssertExpectations(t)
			db.On("ListConversations", 1, defaultListLimit, 0).Return([]database.ConversationListItem{
				{
					Conversation: conv,
					Other:        other,
					LastMessage:  tc.lastMessage,
					LastReadAt:   tc.lastReadAt,
				},
			}, nil).Once()

			svc, _, _ := newTestService(t, db)
			conversations, err := svc.ListConversations(1, 0, 0)
			assert.NoError(t, err)
			assert.Len(t, conversations, 1)
			assert.Equal(t, tc.wantUnread, conversations[0].UnreadCount)
			if tc.lastMessage != nil {
				assert.NotNil(t, conversations[0].LastMessage)
				assert.Equal(t, tc.lastMessage.Content, conversations[0].LastMessage.Content)
			} else {
				assert.Nil(t, conversations[0].LastMessage)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	conv := database.Conversation{Id: 7, ExternalId: "conv-ext-0"}
	now := time.Now().UTC()

	t.Run("returns ascending page and marks read", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 1).Return(database.Participant{Id: 1}, nil).Once()
		// repository returns newest first
		db.On("ListMessages", 7, defaultListLimit, 0).Return([]database.Message{
			{Id: 3, Content: "third", CreatedAt: now},
			{Id: 2, Content: "second", CreatedAt: now.Add(-time.Minute)},
			{Id: 1, Content: "first", CreatedAt: now.Add(-2 * time.Minute)},
		}, nil).Once()
		db.On("MarkConversationRead", 7, 1).Return(nil).Once()

		svc, _, _ := newTestService(t, db)
		messages, err := svc.Messages("conv-ext-0", 1, 0, 0)
		assert.NoError(t, err)
		assert.Len(t, messages, 3)
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, "third", messages[2].Content)
		for _, msg := range messages {
			assert.Equal(t, "conv-ext-0", msg.ConversationId)
		}
	})

	t.Run("read cursor failure does not fail the fetch", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 1).Return(database.Participant{Id: 1}, nil).Once()
		db.On("ListMessages", 7, defaultListLimit, 0).Return([]database.Message{}, nil).Once()
		db.On("MarkConversationRead", 7, 1).Return(errors.New("db error")).Once()

		svc, _, _ := newTestService(t, db)
		messages, err := svc.Messages("conv-ext-0", 1, 0, 0)
		assert.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("non-participant is forbidden", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 3).Return(database.Participant{}, sql.ErrNoRows).Once()

		svc, _, _ := newTestService(t, db)
		_, err := svc.Messages("conv-ext-0", 3, 0, 0)
		assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
	})

	t.Run("unknown conversation", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "missing").Return(database.Conversation{}, sql.ErrNoRows).Once()

		svc, _, _ := newTestService(t, db)
		_, err := svc.Messages("missing", 1, 0, 0)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	})
}

func TestSendMessage(t *testing.T) {
	conv := database.Conversation{Id: 7, ExternalId: "conv-ext-0"}
	sender := database.User{Id: 1, DisplayName: "Dr. A"}

	t.Run("sends and fans out", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 1).Return(database.Participant{Id: 1}, nil).Once()
		db.On("CreateMessage", database.CreateMessageParams{
			ConversationId: 7,
			SenderId:       1,
			Content:        "hello",
			MessageType:    database.MessageTypeText,
		}).Return(database.Message{Id: 42, ConversationId: 7, SenderId: 1, Content: "hello", MessageType: database.MessageTypeText}, nil).Once()
		db.On("GetAccountById", 1).Return(sender, nil).Once()
		db.On("GetConversationUsers", 7).Return([]database.User{sender, {Id: 2}}, nil).Once()

		svc, notifier, pub := newTestService(t, db)
		msg, err := svc.SendMessage("conv-ext-0", 1, "  hello  ", "")
		assert.NoError(t, err)
		assert.Equal(t, 42, msg.Id)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, "conv-ext-0", msg.ConversationId)
		assert.Equal(t, sender.DisplayName, msg.Sender.DisplayName)

		assert.Len(t, pub.events, 1)
		assert.Equal(t, realtime.ConversationTopic("conv-ext-0"), pub.events[0].topic)
		assert.Equal(t, realtime.EventNewMessage, pub.events[0].event)

		assert.Len(t, notifier.calls, 1, "only the other participant is notified")
		assert.Equal(t, 2, notifier.calls[0].userId)
		assert.Equal(t, notifications.KindNewMessage, notifier.calls[0].kind)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)

		svc, _, pub := newTestService(t, db)
		_, err := svc.SendMessage("conv-ext-0", 1, "   ", "")
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
		assert.Empty(t, pub.events)
	})

	t.Run("non-participant cannot send", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 3).Return(database.Participant{}, sql.ErrNoRows).Once()

		svc, _, _ := newTestService(t, db)
		_, err := svc.SendMessage("conv-ext-0", 3, "hello", "")
		assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
	})
}

func TestStartConversation(t *testing.T) {
	other := database.User{Id: 2, DisplayName: "Clinic One"}
	conv := database.Conversation{Id: 7, ExternalId: "conv-ext-0"}
	sender := database.User{Id: 1, DisplayName: "Dr. A"}

	t.Run("creates conversation and sends first message", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 2).Return(other, nil).Once()
		db.On("GetDirectConversation", 1, 2).Return(conv, nil).Once()
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 1).Return(database.Participant{Id: 1}, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(database.Message{Id: 1, ConversationId: 7, SenderId: 1, Content: "hi"}, nil).Once()
		db.On("GetAccountById", 1).Return(sender, nil).Once()
		db.On("GetConversationUsers", 7).Return([]database.User{sender, other}, nil).Once()

		svc, _, _ := newTestService(t, db)
		gotConv, gotMsg, err := svc.StartConversation(1, 2, "hi")
		assert.NoError(t, err)
		assert.Equal(t, "conv-ext-0", gotConv.Id)
		assert.Equal(t, "hi", gotMsg.Content)
	})

	t.Run("rejects self", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)

		svc, _, _ := newTestService(t, db)
		_, _, err := svc.StartConversation(1, 1, "hi")
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	})
}

func TestUnreadCount(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CountUnreadConversations", 1).Return(3, nil).Once()

	svc, _, _ := newTestService(t, db)
	count, err := svc.UnreadCount(1)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMarkRead(t *testing.T) {
	conv := database.Conversation{Id: 7, ExternalId: "conv-ext-0"}

	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
	db.On("GetActiveParticipant", 7, 1).Return(database.Participant{Id: 1}, nil).Once()
	db.On("MarkConversationRead", 7, 1).Return(nil).Once()

	svc, _, _ := newTestService(t, db)
	assert.NoError(t, svc.MarkRead("conv-ext-0", 1))
}

func TestCanSubscribe(t *testing.T) {
	conv := database.Conversation{Id: 7, ExternalId: "conv-ext-0"}

	t.Run("participant may subscribe", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 1).Return(database.Participant{Id: 1}, nil).Once()

		svc, _, _ := newTestService(t, db)
		assert.True(t, svc.CanSubscribe("conv-ext-0", 1))
	})

	t.Run("outsider may not", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-ext-0").Return(conv, nil).Once()
		db.On("GetActiveParticipant", 7, 3).Return(database.Participant{}, sql.ErrNoRows).Once()

		svc, _, _ := newTestService(t, db)
		assert.False(t, svc.CanSubscribe("conv-ext-0", 3))
	})
}
