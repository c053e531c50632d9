package ws

import "encoding/json"

// Client-to-server events
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventMarkRead          = "mark_read"
)

// Server-to-client events
const (
	EventNewMessage   = "new_message"
	EventMessagesRead = "messages_read"
	EventAck          = "ack"
	EventError        = "error"
)

// ClientEvent is an inbound frame. Ack, when non-zero, requests an
// acknowledgement frame carrying the same id (send_message only).
type ClientEvent struct {
	Event string          `json:"event"`
	Ack   int             `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is an outbound frame
type ServerEvent struct {
	Event string      `json:"event"`
	Ack   int         `json:"ack,omitempty"`
	Data  interface{} `json:"data"`
}

// ConversationPayload carries a bare conversation reference
type ConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessagePayload is the send_message request body
type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// MessagesReadPayload is broadcast when a participant marks a conversation read
type MessagesReadPayload struct {
	ConversationID string `json:"conversation_id"`
	ReadBy         string `json:"read_by"`
}

// AckPayload is the acknowledgement body for send_message
type AckPayload struct {
	Success bool        `json:"success,omitempty"`
	Message interface{} `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorPayload is a non-fatal error notification; the connection stays open
type ErrorPayload struct {
	Error string `json:"error"`
}
