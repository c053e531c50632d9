package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/manuva/chat-backend/internal/auth"
	"github.com/manuva/chat-backend/internal/common"
	"github.com/manuva/chat-backend/internal/domain"
	"github.com/manuva/chat-backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// ChatService is the slice of chat behavior a connected session invokes.
// Satisfied by service.ChatService.
type ChatService interface {
	SendMessage(conversationID, senderID, content string) (*domain.MessageResponse, error)
	MarkRead(conversationID, readerID, excludeSession string) error
	IsParticipant(conversationID, userID string) (bool, error)
}

// Client represents a single authenticated WebSocket session
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	svc       ChatService
	sessionID string
	userID    string
	userName  string

	// mu guards send against the hub closing it while the read pump is
	// still replying; after close, enqueue is a no-op.
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client for a verified identity
func NewClient(hub *Hub, conn *websocket.Conn, identity *auth.Identity, svc ChatService) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		svc:       svc,
		sessionID: uuid.New().String(),
		userID:    identity.ID,
		userName:  identity.Name,
	}
}

// ReadPump reads frames from the WebSocket and dispatches chat events.
// Closing the connection unregisters the client, which implicitly leaves
// every joined room.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		logger.GetLogger().Info().
			Str("user_id", c.userID).
			Str("user_name", c.userName).
			Msg("chat socket disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.reply(ServerEvent{Event: EventError, Data: ErrorPayload{Error: "malformed event"}})
			continue
		}
		c.handleEvent(&ev)
	}
}

// handleEvent dispatches one inbound event. Errors surface through the ack
// callback or an error frame; the connection stays open either way.
func (c *Client) handleEvent(ev *ClientEvent) {
	switch ev.Event {
	case EventJoinConversation:
		c.handleJoin(ev)
	case EventLeaveConversation:
		c.handleLeave(ev)
	case EventSendMessage:
		c.handleSend(ev)
	case EventMarkRead:
		c.handleMarkRead(ev)
	default:
		c.reply(ServerEvent{Event: EventError, Data: ErrorPayload{Error: "unknown event"}})
	}
}

func (c *Client) handleJoin(ev *ClientEvent) {
	var p ConversationPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.ConversationID == "" {
		c.reply(ServerEvent{Event: EventError, Data: ErrorPayload{Error: "conversation_id is required"}})
		return
	}

	// Membership is checked up front so joining arbitrary ids cannot be
	// used to observe room activity.
	ok, err := c.svc.IsParticipant(p.ConversationID, c.userID)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("conversation_id", p.ConversationID).Msg("join membership check")
		c.reply(ServerEvent{Event: EventError, Data: ErrorPayload{Error: "failed to join conversation"}})
		return
	}
	if !ok {
		c.reply(ServerEvent{Event: EventError, Data: ErrorPayload{Error: "access denied"}})
		return
	}

	c.hub.Join(c, p.ConversationID)
}

func (c *Client) handleLeave(ev *ClientEvent) {
	var p ConversationPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.ConversationID == "" {
		return
	}
	c.hub.Leave(c, p.ConversationID)
}

func (c *Client) handleSend(ev *ClientEvent) {
	var p SendMessagePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.ConversationID == "" {
		c.ack(ev, AckPayload{Error: "conversation_id is required"})
		return
	}

	msg, err := c.svc.SendMessage(p.ConversationID, c.userID, p.Content)
	if err != nil {
		c.ack(ev, AckPayload{Error: sendErrorMessage(err)})
		return
	}

	c.ack(ev, AckPayload{Success: true, Message: msg})
}

func (c *Client) handleMarkRead(ev *ClientEvent) {
	var p ConversationPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.ConversationID == "" {
		return
	}

	// Fire-and-forget: failures are logged, never surfaced to the client
	if err := c.svc.MarkRead(p.ConversationID, c.userID, c.sessionID); err != nil {
		logger.GetLogger().Warn().Err(err).
			Str("conversation_id", p.ConversationID).
			Str("user_id", c.userID).
			Msg("mark read")
	}
}

// sendErrorMessage maps business errors to stable client-facing strings
func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrEmptyMessage):
		return "message content is empty"
	case errors.Is(err, common.ErrAccessDenied), errors.Is(err, common.ErrConversationNotFound):
		return "access denied"
	default:
		return "failed to send message"
	}
}

// ack answers the triggering event when an ack id was supplied
func (c *Client) ack(ev *ClientEvent, payload AckPayload) {
	if ev.Ack == 0 {
		return
	}
	c.reply(ServerEvent{Event: EventAck, Ack: ev.Ack, Data: payload})
}

// reply queues a frame for this session only
func (c *Client) reply(frame ServerEvent) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue queues a frame for this session. Returns false when the session
// was already dropped or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel exactly once. Only the hub's loop
// calls this; the read pump may still be dispatching events, so later
// enqueues become silent no-ops.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump sends queued frames to the WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message) //nolint:errcheck
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
