package domain

import "time"

// MediaType enumerates the allowed attachment kinds.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaFile  MediaType = "file"
)

// Media describes one attachment on a message.
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// Message is a durable chat record. Content is stored as an opaque string;
// the server never inspects or re-encrypts it. Records are immutable once
// written.
type Message struct {
	ID              int64     `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	SenderID        int64     `json:"sender_id"`
	ReceiverID      int64     `json:"receiver_id"`
	Content         string    `json:"encryptedContent"`
	Media           []Media   `json:"media,omitempty"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidMedia reports whether every attachment carries a URL and a known type.
func ValidMedia(media []Media) bool {
	for _, m := range media {
		if m.URL == "" {
			return false
		}
		switch m.Type {
		case MediaImage, MediaVideo, MediaFile:
		default:
			return false
		}
	}
	return true
}
