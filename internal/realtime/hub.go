package realtime

import (
	"context"
	"log"

	"github.com/vetconnect/vetconnect-server/internal/stats"
)

// SubscriptionAuthorizer decides whether a user may subscribe to a
// conversation topic.
type SubscriptionAuthorizer interface {
	CanSubscribe(conversationId string, userId int) bool
}

// Hub is the realtime fan-out: it tracks connected sessions and per-topic
// subscriber sets and broadcasts published events to them. Delivery is
// best-effort; slow subscribers are skipped.
type Hub struct {
	log            *log.Logger
	auth           SubscriptionAuthorizer
	stats          stats.Provider
	clients        map[*Client]struct{}
	topics         map[string]map[*Client]struct{}
	registerChan   chan *Client
	deregisterChan chan *Client
	subChan        chan *subReq
	publishChan    chan *ServerMessage
	stop           chan struct{}
	done           chan struct{}
}

type subReq struct {
	client *Client
	topic  string
	join   bool
	msgId  int
}

func NewHub(logger *log.Logger, sp stats.Provider) *Hub {
	return &Hub{
		log:            logger,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		topics:         make(map[string]map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		subChan:        make(chan *subReq, 256),
		publishChan:    make(chan *ServerMessage, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// SetAuthorizer must be called before Run. It is separate from NewHub
// because the messaging service that authorizes subscriptions publishes
// through the hub itself.
func (h *Hub) SetAuthorizer(auth SubscriptionAuthorizer) {
	h.auth = auth
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.registerChan:
			h.log.Printf("adding session %s for user %d", client.sessionId, client.user.Id)
			h.clients[client] = struct{}{}
			// every session follows its own user topic
			h.subscribe(client, UserTopic(client.user.Id))
			h.stats.Incr(stats.ActiveClients)
		case client := <-h.deregisterChan:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			h.log.Printf("removing session %s for user %d", client.sessionId, client.user.Id)
			h.removeClient(client)
			h.stats.Decr(stats.ActiveClients)
		case req := <-h.subChan:
			if req.join {
				h.subscribe(req.client, req.topic)
			} else {
				h.unsubscribe(req.client, req.topic)
			}
			if req.msgId > 0 {
				req.client.queueMessage(NoErrOK(req.msgId))
			}
		case msg := <-h.publishChan:
			for client := range h.topics[msg.Topic] {
				client.queueMessage(msg)
			}
		case <-h.stop:
			h.log.Println("shutting down realtime hub")
			for client := range h.clients {
				close(client.stop)
			}

			close(h.done)
			return
		}
	}
}

// Publish broadcasts an event to a topic's subscribers. It never blocks: if
// the hub is backed up the event is dropped and logged.
func (h *Hub) Publish(topic, event string, payload any) {
	msg := &ServerMessage{
		Timestamp: Now(),
		Topic:     topic,
		Event:     event,
		Payload:   payload,
	}

	select {
	case h.publishChan <- msg:
	default:
		h.log.Printf("publish channel full, dropping %q on %q", event, topic)
	}
}

func (h *Hub) Register(c *Client) {
	h.registerChan <- c
}

// Deregister removes a client, or returns immediately if the hub has already
// shut down so read goroutines unblocking on connection close never hang.
func (h *Hub) Deregister(c *Client) {
	select {
	case h.deregisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) requestSubscription(c *Client, topic string, join bool, msgId int) {
	select {
	case h.subChan <- &subReq{client: c, topic: topic, join: join, msgId: msgId}:
	default:
		h.log.Printf("subscription channel full, dropping request for %q", topic)
	}
}

func (h *Hub) subscribe(c *Client, topic string) {
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *Client, topic string) {
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	delete(h.clients, c)
	for topic := range h.topics {
		h.unsubscribe(c, topic)
	}
}

func (h *Hub) Shutdown(ctx context.Context) error {
	close(h.stop)

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
