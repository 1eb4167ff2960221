// Package messaging owns conversations and messages: idempotent
// get-or-create for direct conversations, message history paging and the
// per-participant read cursor that unread state is derived from.
package messaging

import (
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/teris-io/shortid"
	"github.com/vetconnect/vetconnect-server/internal/apperrors"
	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/notifications"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
	"github.com/vetconnect/vetconnect-server/internal/stats"
	"github.com/vetconnect/vetconnect-server/internal/types"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Notifier interface {
	Notify(userId int, kind notifications.Kind, payload map[string]any)
}

type Publisher interface {
	Publish(topic, event string, payload any)
}

type Service struct {
	log      *log.Logger
	db       database.Repository
	notifier Notifier
	pub      Publisher
	stats    stats.Provider
	// generateShortId is swapped out in tests
	generateShortId func() (string, error)
}

func NewService(logger *log.Logger, db database.Repository, notifier Notifier, pub Publisher, sp stats.Provider) *Service {
	return &Service{
		log:             logger,
		db:              db,
		notifier:        notifier,
		pub:             pub,
		stats:           sp,
		generateShortId: shortid.Generate,
	}
}

// GetOrCreateConversation returns the direct conversation between the two
// users, creating it if absent. Repeated calls for the same pair return the
// same conversation: the normalized pair carries a unique index, so a lost
// race on first contact resolves to the winner's row.
func (s *Service) GetOrCreateConversation(userId, otherUserId int) (types.Conversation, error) {
	if userId == otherUserId {
		return types.Conversation{}, apperrors.InvalidArg("cannot start a conversation with yourself")
	}

	other, err := s.db.GetAccountById(otherUserId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Conversation{}, apperrors.NotFound("user not found")
		}
		return types.Conversation{}, apperrors.Internal("failed to look up user", err)
	}

	conv, err := s.db.GetDirectConversation(userId, otherUserId)
	if errors.Is(err, sql.ErrNoRows) {
		conv, err = s.createDirectConversation(userId, otherUserId)
	}
	if err != nil {
		return types.Conversation{}, err
	}

	return asConversation(conv, other), nil
}

func (s *Service) createDirectConversation(userId, otherUserId int) (database.Conversation, error) {
	externalId, err := s.generateShortId()
	if err != nil {
		return database.Conversation{}, apperrors.Internal("failed to generate conversation id", err)
	}

	conv, err := s.db.CreateDirectConversation(userId, otherUserId, externalId)
	if errors.Is(err, database.ErrDuplicate) {
		// another request created the conversation first; use theirs
		conv, err = s.db.GetDirectConversation(userId, otherUserId)
	}
	if err != nil {
		return database.Conversation{}, apperrors.Internal("failed to create conversation", err)
	}

	return conv, nil
}

// ListConversations returns the user's conversations ordered by most recent
// activity. UnreadCount is a 0/1 per-conversation flag, not a message count.
func (s *Service) ListConversations(userId, limit, offset int) ([]types.Conversation, error) {
	limit, offset = normalizePage(limit, offset)
	items, err := s.db.ListConversations(userId, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("failed to list conversations", err)
	}

	conversations := make([]types.Conversation, 0, len(items))
	for _, item := range items {
		conv := asConversation(item.Conversation, item.Other)
		if item.LastMessage != nil {
			conv.LastMessage = &types.LastMessage{
				Content:   item.LastMessage.Content,
				SenderId:  item.LastMessage.SenderId,
				CreatedAt: item.LastMessage.CreatedAt,
			}
			if isUnread(item.LastMessage, item.LastReadAt, userId) {
				conv.UnreadCount = 1
			}
		}

		conversations = append(conversations, conv)
	}

	return conversations, nil
}

// Messages returns a page of the conversation's history in ascending
// createdAt order. Pages run backward from the most recent message. Viewing
// messages marks the conversation read for the caller.
func (s *Service) Messages(conversationId string, userId, limit, offset int) ([]types.Message, error) {
	conv, err := s.requireParticipant(conversationId, userId)
	if err != nil {
		return nil, err
	}

	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.ListMessages(conv.Id, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("failed to list messages", err)
	}

	// fetched newest first; reverse for display
	messages := make([]types.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		messages = append(messages, asMessage(rows[i], conv.ExternalId))
	}

	if err := s.db.MarkConversationRead(conv.Id, userId); err != nil {
		// reads still succeed if the cursor update fails
		s.log.Printf("mark conversation %s read for user %d: %v", conversationId, userId, err)
	}

	return messages, nil
}

// SendMessage appends a message to the conversation. The sender must be an
// active participant and the content non-empty after trimming.
func (s *Service) SendMessage(conversationId string, senderId int, content, messageType string) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Message{}, apperrors.InvalidArg("message content cannot be empty")
	}
	if messageType == "" {
		messageType = database.MessageTypeText
	}

	conv, err := s.requireParticipant(conversationId, senderId)
	if err != nil {
		return types.Message{}, err
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		ConversationId: conv.Id,
		SenderId:       senderId,
		Content:        content,
		MessageType:    messageType,
	})
	if err != nil {
		return types.Message{}, apperrors.Internal("failed to send message", err)
	}

	sender, err := s.db.GetAccountById(senderId)
	if err != nil {
		return types.Message{}, apperrors.Internal("failed to look up sender", err)
	}

	msg.Sender = sender
	result := asMessage(msg, conv.ExternalId)

	s.stats.Incr(stats.MessagesSent)
	s.pub.Publish(realtime.ConversationTopic(conv.ExternalId), realtime.EventNewMessage, result)

	// best-effort notification to the other active participants
	participants, err := s.db.GetConversationUsers(conv.Id)
	if err != nil {
		s.log.Printf("list participants for conversation %s: %v", conversationId, err)
		return result, nil
	}
	for _, p := range participants {
		if p.Id == senderId {
			continue
		}
		s.notifier.Notify(p.Id, notifications.KindNewMessage, map[string]any{
			"conversation_id": conv.ExternalId,
			"sender_id":       senderId,
		})
	}

	return result, nil
}

// StartConversation is get-or-create followed by the first message.
func (s *Service) StartConversation(senderId, receiverId int, content string) (types.Conversation, types.Message, error) {
	if senderId == receiverId {
		return types.Conversation{}, types.Message{}, apperrors.InvalidArg("cannot start a conversation with yourself")
	}

	conv, err := s.GetOrCreateConversation(senderId, receiverId)
	if err != nil {
		return types.Conversation{}, types.Message{}, err
	}

	msg, err := s.SendMessage(conv.Id, senderId, content, "")
	if err != nil {
		return types.Conversation{}, types.Message{}, err
	}

	return conv, msg, nil
}

// UnreadCount is the number of conversations with unread activity, not a
// count of unread messages.
func (s *Service) UnreadCount(userId int) (int, error) {
	count, err := s.db.CountUnreadConversations(userId)
	if err != nil {
		return 0, apperrors.Internal("failed to count unread conversations", err)
	}

	return count, nil
}

// MarkRead advances the caller's read cursor without fetching messages.
func (s *Service) MarkRead(conversationId string, userId int) error {
	conv, err := s.requireParticipant(conversationId, userId)
	if err != nil {
		return err
	}

	if err := s.db.MarkConversationRead(conv.Id, userId); err != nil {
		return apperrors.Internal("failed to mark conversation read", err)
	}

	return nil
}

// CanSubscribe implements realtime.SubscriptionAuthorizer: only active
// participants may follow a conversation topic.
func (s *Service) CanSubscribe(conversationId string, userId int) bool {
	_, err := s.requireParticipant(conversationId, userId)
	return err == nil
}

func (s *Service) requireParticipant(conversationId string, userId int) (database.Conversation, error) {
	conv, err := s.db.GetConversationByExternalId(conversationId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Conversation{}, apperrors.NotFound("conversation not found")
		}
		return database.Conversation{}, apperrors.Internal("failed to look up conversation", err)
	}

	if _, err := s.db.GetActiveParticipant(conv.Id, userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Conversation{}, apperrors.Forbidden("not a participant in this conversation")
		}
		return database.Conversation{}, apperrors.Internal("failed to look up participant", err)
	}

	return conv, nil
}

// isUnread applies the derived-unread rule: the latest message was sent by
// someone else and postdates the user's read cursor.
func isUnread(last *database.Message, lastReadAt sql.NullTime, userId int) bool {
	if last.SenderId == userId {
		return false
	}
	return !lastReadAt.Valid || lastReadAt.Time.Before(last.CreatedAt)
}

func asConversation(conv database.Conversation, other database.User) types.Conversation {
	c := types.Conversation{
		Id:        conv.ExternalId,
		User:      asUser(other),
		CreatedAt: conv.CreatedAt,
	}
	if conv.LastMessageAt.Valid {
		c.LastMessageAt = conv.LastMessageAt.Time
	}
	return c
}

func asMessage(msg database.Message, conversationId string) types.Message {
	return types.Message{
		Id:             msg.Id,
		ConversationId: conversationId,
		Sender:         asUser(msg.Sender),
		Content:        msg.Content,
		MessageType:    msg.MessageType,
		CreatedAt:      msg.CreatedAt,
	}
}

func asUser(u database.User) types.User {
	return types.User{
		Id:          u.Id,
		DisplayName: u.DisplayName,
		AvatarUrl:   u.AvatarUrl,
		ProfileType: types.ProfileType(u.ProfileType),
		CreatedAt:   u.CreatedAt,
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
