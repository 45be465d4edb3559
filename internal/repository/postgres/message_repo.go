package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iamasit07/pingline/backend/internal/domain"
)

type MessageRepo struct {
	DB *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{DB: db}
}

// InsertMessage writes a new immutable message record. The creation timestamp
// is assigned by the database, not the caller, so ordering within a
// conversation cannot be skewed by client clocks.
func (r *MessageRepo) InsertMessage(conversationKey string, senderID, receiverID int64, content string, media []domain.Media) (*domain.Message, error) {
	var mediaParam interface{}
	if len(media) > 0 {
		data, err := json.Marshal(media)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal media: %v", err)
		}
		mediaParam = data
	}

	query := `
	INSERT INTO messages (conversation_key, sender_id, receiver_id, content, media)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at;
	`
	msg := domain.Message{
		ConversationKey: conversationKey,
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Content:         content,
		Media:           media,
	}
	err := r.DB.QueryRow(query, conversationKey, senderID, receiverID, content, mediaParam).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %v", err)
	}
	return &msg, nil
}

// GetConversation returns all messages for a conversation key in ascending
// creation-time order. Each call is a fresh query; no cursor state is kept.
func (r *MessageRepo) GetConversation(conversationKey string) ([]domain.Message, error) {
	query := `
	SELECT id, conversation_key, sender_id, receiver_id, content, media, is_read, created_at
	FROM messages
	WHERE conversation_key = $1
	ORDER BY created_at ASC, id ASC;
	`
	rows, err := r.DB.Query(query, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %v", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var mediaRaw []byte
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationKey,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&mediaRaw,
			&msg.IsRead,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %v", err)
		}
		if len(mediaRaw) > 0 {
			if err := json.Unmarshal(mediaRaw, &msg.Media); err != nil {
				return nil, fmt.Errorf("failed to unmarshal media: %v", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %v", err)
	}

	return messages, nil
}
