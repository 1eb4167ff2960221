package database

import (
	"database/sql"
	"errors"
	"time"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint,
// e.g. two concurrent requests creating the same connection pair.
var ErrDuplicate = errors.New("duplicate row")

const (
	ConnectionPending  = "PENDING"
	ConnectionAccepted = "ACCEPTED"
	ConnectionRejected = "REJECTED"
	ConnectionBlocked  = "BLOCKED"
)

const MessageTypeText = "TEXT"

type User struct {
	Id           int
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarUrl    string
	ProfileType  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Connection holds a connection row. Other is the counterpart of the user the
// row was queried for and is only populated by the list queries.
type Connection struct {
	Id         int
	SenderId   int
	ReceiverId int
	Status     string
	Message    sql.NullString
	Other      User
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Conversation struct {
	Id            int
	ExternalId    string
	IsGroup       bool
	Title         sql.NullString
	LastMessageAt sql.NullTime
	CreatedAt     time.Time
}

type Participant struct {
	Id             int
	ConversationId int
	UserId         int
	LastReadAt     sql.NullTime
	LeftAt         sql.NullTime
}

type Message struct {
	Id             int
	ConversationId int
	SenderId       int
	Content        string
	MessageType    string
	Sender         User
	CreatedAt      time.Time
}

// ConversationListItem is one row of a user's conversation list: the
// conversation, the other active participant, the most recent message (nil if
// none) and the querying user's read cursor.
type ConversationListItem struct {
	Conversation Conversation
	Other        User
	LastMessage  *Message
	LastReadAt   sql.NullTime
}

type Notification struct {
	Id        int
	UserId    int
	Kind      string
	Payload   []byte
	ReadAt    sql.NullTime
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarUrl    string
	ProfileType  string
}

type CreateConnectionParams struct {
	SenderId   int
	ReceiverId int
	Message    string
}

type CreateMessageParams struct {
	ConversationId int
	SenderId       int
	Content        string
	MessageType    string
}

type CreateNotificationParams struct {
	UserId  int
	Kind    string
	Payload []byte
}
