package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetConnectionById(id int) (Connection, error) {
	args := m.Called(id)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockRepository) GetConnectionBetween(userId, otherId int) (Connection, error) {
	args := m.Called(userId, otherId)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockRepository) CreateConnection(params CreateConnectionParams) (Connection, error) {
	args := m.Called(params)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockRepository) UpdateConnectionStatus(id int, status string) (Connection, error) {
	args := m.Called(id, status)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockRepository) DeleteConnection(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRepository) ListConnections(userId, limit, offset int) ([]Connection, error) {
	args := m.Called(userId, limit, offset)
	return args.Get(0).([]Connection), args.Error(1)
}
func (m *MockRepository) ListPendingRequests(userId, limit, offset int) ([]Connection, error) {
	args := m.Called(userId, limit, offset)
	return args.Get(0).([]Connection), args.Error(1)
}
func (m *MockRepository) ListSentRequests(userId, limit, offset int) ([]Connection, error) {
	args := m.Called(userId, limit, offset)
	return args.Get(0).([]Connection), args.Error(1)
}
func (m *MockRepository) ListSuggestions(userId, limit int) ([]User, error) {
	args := m.Called(userId, limit)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	args := m.Called(externalId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) GetDirectConversation(userId, otherId int) (Conversation, error) {
	args := m.Called(userId, otherId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) CreateDirectConversation(userId, otherId int, externalId string) (Conversation, error) {
	args := m.Called(userId, otherId, externalId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) GetActiveParticipant(conversationId, userId int) (Participant, error) {
	args := m.Called(conversationId, userId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockRepository) GetConversationUsers(conversationId int) ([]User, error) {
	args := m.Called(conversationId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) ListConversations(userId, limit, offset int) ([]ConversationListItem, error) {
	args := m.Called(userId, limit, offset)
	return args.Get(0).([]ConversationListItem), args.Error(1)
}
func (m *MockRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) ListMessages(conversationId, limit, offset int) ([]Message, error) {
	args := m.Called(conversationId, limit, offset)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) MarkConversationRead(conversationId, userId int) error {
	args := m.Called(conversationId, userId)
	return args.Error(0)
}
func (m *MockRepository) CountUnreadConversations(userId int) (int, error) {
	args := m.Called(userId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockRepository) ListNotifications(userId, limit, offset int) ([]Notification, error) {
	args := m.Called(userId, limit, offset)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockRepository) MarkNotificationsRead(userId int) error {
	args := m.Called(userId)
	return args.Error(0)
}
