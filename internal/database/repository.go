package database

type Repository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)

	GetConnectionById(id int) (Connection, error)
	GetConnectionBetween(userId, otherId int) (Connection, error)
	CreateConnection(params CreateConnectionParams) (Connection, error)
	UpdateConnectionStatus(id int, status string) (Connection, error)
	DeleteConnection(id int) error
	ListConnections(userId, limit, offset int) ([]Connection, error)
	ListPendingRequests(userId, limit, offset int) ([]Connection, error)
	ListSentRequests(userId, limit, offset int) ([]Connection, error)
	ListSuggestions(userId, limit int) ([]User, error)

	GetConversationByExternalId(externalId string) (Conversation, error)
	GetDirectConversation(userId, otherId int) (Conversation, error)
	CreateDirectConversation(userId, otherId int, externalId string) (Conversation, error)
	GetActiveParticipant(conversationId, userId int) (Participant, error)
	GetConversationUsers(conversationId int) ([]User, error)
	ListConversations(userId, limit, offset int) ([]ConversationListItem, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	ListMessages(conversationId, limit, offset int) ([]Message, error)
	MarkConversationRead(conversationId, userId int) error
	CountUnreadConversations(userId int) (int, error)

	CreateNotification(params CreateNotificationParams) (Notification, error)
	ListNotifications(userId, limit, offset int) ([]Notification, error)
	MarkNotificationsRead(userId int) error
}
