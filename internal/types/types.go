package types

import (
	"encoding/json"
	"time"
)

type ProfileType string

const (
	ProfileIndividual ProfileType = "INDIVIDUAL"
	ProfileCompany    ProfileType = "COMPANY"
)

type User struct {
	Id           int         `json:"id"`
	EmailAddress string      `json:"email_address,omitempty"`
	DisplayName  string      `json:"display_name"`
	AvatarUrl    string      `json:"avatar_url,omitempty"`
	ProfileType  ProfileType `json:"profile_type"`
	Password     string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at,omitempty"`
}

type ConnectionStatus string

const (
	ConnectionNone     ConnectionStatus = "NONE"
	ConnectionPending  ConnectionStatus = "PENDING"
	ConnectionAccepted ConnectionStatus = "ACCEPTED"
	ConnectionRejected ConnectionStatus = "REJECTED"
	ConnectionBlocked  ConnectionStatus = "BLOCKED"
)

// Connection is a connection row as presented to the acting user: User is
// always the other party's profile, never the actor's own.
type Connection struct {
	Id        int              `json:"id"`
	Status    ConnectionStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	User      User             `json:"user"`
	IsSender  bool             `json:"is_sender"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at,omitempty"`
}

// ConnectionState is the result of a status lookup between two users.
type ConnectionState struct {
	Status       ConnectionStatus `json:"status"`
	ConnectionId int              `json:"connection_id,omitempty"`
	IsSender     bool             `json:"is_sender,omitempty"`
}

type Conversation struct {
	Id            string       `json:"id"`
	User          User         `json:"user"`
	LastMessage   *LastMessage `json:"last_message"`
	UnreadCount   int          `json:"unread_count"`
	LastMessageAt time.Time    `json:"last_message_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at,omitempty"`
}

type LastMessage struct {
	Content   string    `json:"content"`
	SenderId  int       `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	Id             int       `json:"id"`
	ConversationId string    `json:"conversation_id"`
	Sender         User      `json:"sender"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
}

type Notification struct {
	Id        int             `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}
