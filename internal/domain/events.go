package domain

import "time"

// Wire event names for the persistent-connection protocol. The set is closed:
// anything else arriving from a client is rejected at the boundary before it
// reaches core logic.
const (
	EventInit          = "init"
	EventSendMessage   = "send-message"
	EventReceive       = "receive-message"
	EventStatusChanged = "user-status-changed"
	EventError         = "error"
)

// ClientEvent is the envelope for everything a client sends over the socket.
type ClientEvent struct {
	Type    string  `json:"type"`
	Token   string  `json:"token,omitempty"`
	To      int64   `json:"to,omitempty"`
	Message string  `json:"message,omitempty"`
	Media   []Media `json:"media,omitempty"`
}

// ReceiveMessageEvent delivers a persisted message to a recipient's live
// connection.
type ReceiveMessageEvent struct {
	Type      string    `json:"type"`
	From      int64     `json:"from"`
	Message   string    `json:"message"`
	Media     []Media   `json:"media,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChangedEvent announces a presence transition to other connections.
type StatusChangedEvent struct {
	Type     string `json:"type"`
	UserID   int64  `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// ErrorEvent reports a non-fatal per-event failure back on the same connection.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewReceiveMessage(msg Message) ReceiveMessageEvent {
	return ReceiveMessageEvent{
		Type:      EventReceive,
		From:      msg.SenderID,
		Message:   msg.Content,
		Media:     msg.Media,
		Timestamp: msg.CreatedAt,
	}
}

func NewStatusChanged(userID int64, online bool) StatusChangedEvent {
	return StatusChangedEvent{Type: EventStatusChanged, UserID: userID, IsOnline: online}
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}
