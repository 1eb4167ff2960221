package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vetconnect/vetconnect-server/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	log       *log.Logger
	user      types.User
	sessionId string
	send      chan *ServerMessage
	stop      chan struct{}
}

func NewClient(user types.User, conn *websocket.Conn, hub *Hub, l *log.Logger) *Client {
	return &Client{
		conn:      conn,
		hub:       hub,
		log:       l,
		user:      user,
		sessionId: uuid.NewString(),
		send:      make(chan *ServerMessage, 256),
		stop:      make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for session %s", c.sessionId)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.hub.Deregister(c)
		c.log.Printf("read exiting for session %s", c.sessionId)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		switch {
		case msg.Subscribe != nil:
			c.handleSubscribe(&msg)
		case msg.Unsubscribe != nil:
			c.hub.requestSubscription(c, ConversationTopic(msg.Unsubscribe.ConversationId), false, msg.Id)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// handleSubscribe runs the participant check on the read goroutine so the
// database round trip never stalls the hub loop.
func (c *Client) handleSubscribe(msg *ClientMessage) {
	if c.hub.auth == nil || !c.hub.auth.CanSubscribe(msg.Subscribe.ConversationId, c.user.Id) {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	c.hub.requestSubscription(c, ConversationTopic(msg.Subscribe.ConversationId), true, msg.Id)
}

// queueMessage enqueues msg for delivery, dropping it if the session's send
// buffer is full.
func (c *Client) queueMessage(msg *ServerMessage) {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for session %s, dropping message", c.sessionId)
	}
}

func (c *Client) sendMessage(messageType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.log.Println("write error:", err)
		return false
	}

	return true
}
