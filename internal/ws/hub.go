package ws

import (
	"context"
	"encoding/json"

	"github.com/manuva/chat-backend/internal/domain"
	"github.com/manuva/chat-backend/pkg/logger"
)

// Hub owns all room membership state. Every mutation (register, unregister,
// join, leave, delivery) goes through the Run loop, so handlers never touch
// the maps concurrently. The hub is process-local; running multiple instances
// needs an external pub/sub bridge, which this service does not provide.
type Hub struct {
	// conversationID -> subscribed clients
	rooms map[string]map[*Client]bool

	// reverse index for disconnect cleanup
	clientRooms map[*Client]map[string]bool

	register   chan *Client
	unregister chan *Client
	join       chan *subscription
	leave      chan *subscription
	broadcast  chan *roomEvent

	ctx    context.Context
	cancel context.CancelFunc
}

type subscription struct {
	client         *Client
	conversationID string
}

// roomEvent is a pre-marshaled frame for one conversation room. Payloads are
// marshaled before enqueueing so the channel preserves persistence order.
type roomEvent struct {
	conversationID string
	event          string
	payload        []byte
	excludeSession string
}

// NewHub creates a new Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		clientRooms: make(map[*Client]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		join:        make(chan *subscription),
		leave:       make(chan *subscription),
		broadcast:   make(chan *roomEvent, 256),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a connected client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client and its room subscriptions
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join subscribes a client to a conversation room (idempotent)
func (h *Hub) Join(client *Client, conversationID string) {
	h.join <- &subscription{client: client, conversationID: conversationID}
}

// Leave unsubscribes a client from a conversation room (idempotent)
func (h *Hub) Leave(client *Client, conversationID string) {
	h.leave <- &subscription{client: client, conversationID: conversationID}
}

// NewMessage broadcasts a persisted message to the whole room, the sender's
// own other sessions included. Implements service.Notifier.
func (h *Hub) NewMessage(conversationID string, msg *domain.MessageResponse) {
	h.send(conversationID, EventNewMessage, ServerEvent{Event: EventNewMessage, Data: msg}, "")
}

// MessagesRead broadcasts a conversation-level read receipt, excluding the
// reader's own session when set. Implements service.Notifier.
func (h *Hub) MessagesRead(conversationID, readBy, excludeSession string) {
	payload := MessagesReadPayload{ConversationID: conversationID, ReadBy: readBy}
	h.send(conversationID, EventMessagesRead, ServerEvent{Event: EventMessagesRead, Data: payload}, excludeSession)
}

func (h *Hub) send(conversationID, event string, frame ServerEvent, excludeSession string) {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("event", event).Msg("marshal broadcast frame")
		return
	}

	select {
	case h.broadcast <- &roomEvent{
		conversationID: conversationID,
		event:          event,
		payload:        data,
		excludeSession: excludeSession,
	}:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clientRooms[client] = make(map[string]bool)
			wsActiveConnections.Inc()

		case client := <-h.unregister:
			h.removeClient(client)

		case sub := <-h.join:
			if _, ok := h.clientRooms[sub.client]; !ok {
				break // already unregistered
			}
			if h.rooms[sub.conversationID] == nil {
				h.rooms[sub.conversationID] = make(map[*Client]bool)
				wsActiveRooms.Inc()
			}
			h.rooms[sub.conversationID][sub.client] = true
			h.clientRooms[sub.client][sub.conversationID] = true

		case sub := <-h.leave:
			h.removeFromRoom(sub.client, sub.conversationID)

		case ev := <-h.broadcast:
			h.deliver(ev)

		case <-h.ctx.Done():
			return
		}
	}
}

// deliver pushes the frame to every subscribed client. Delivery is
// at-most-once per session: a client whose buffer is full is dropped and
// must catch up from history on reconnect.
func (h *Hub) deliver(ev *roomEvent) {
	clients, ok := h.rooms[ev.conversationID]
	if !ok {
		return
	}
	for client := range clients {
		if ev.excludeSession != "" && client.sessionID == ev.excludeSession {
			continue
		}
		if client.enqueue(ev.payload) {
			wsEventsDelivered.WithLabelValues(ev.event).Inc()
		} else {
			h.removeClient(client)
			wsClientsDropped.Inc()
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	rooms, ok := h.clientRooms[client]
	if !ok {
		return
	}
	for conversationID := range rooms {
		h.removeFromRoom(client, conversationID)
	}
	delete(h.clientRooms, client)
	client.closeSend()
	wsActiveConnections.Dec()
}

func (h *Hub) removeFromRoom(client *Client, conversationID string) {
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	if rooms, ok := h.clientRooms[client]; ok {
		delete(rooms, conversationID)
	}
	if len(room) == 0 {
		delete(h.rooms, conversationID)
		wsActiveRooms.Dec()
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}
