package realtime

import (
	"net/http"
	"strconv"
	"time"
)

// Events published over the fan-out hub.
const (
	EventConnectionRequest  = "connection.request"
	EventConnectionAccepted = "connection.accepted"
	EventNewMessage         = "message.new"
	EventNotification       = "notification.new"
)

// UserTopic is the per-user topic every session is implicitly subscribed to.
func UserTopic(userId int) string {
	return "user:" + strconv.Itoa(userId)
}

// ConversationTopic is the per-conversation topic sessions subscribe to while
// viewing a conversation.
func ConversationTopic(conversationId string) string {
	return "conversation:" + conversationId
}

type ClientMessage struct {
	Id          int          `json:"id,omitempty"`
	Subscribe   *Subscribe   `json:"subscribe,omitempty"`
	Unsubscribe *Unsubscribe `json:"unsubscribe,omitempty"`
}

type Subscribe struct {
	ConversationId string `json:"conversation_id"`
}

type Unsubscribe struct {
	ConversationId string `json:"conversation_id"`
}

type ServerMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic,omitempty"`
	Event     string    `json:"event,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Response  *Response `json:"response,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func ErrForbidden(id int) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not a participant",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
