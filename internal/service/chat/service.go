package chat

import (
	"fmt"

	"github.com/iamasit07/pingline/backend/internal/domain"
	"github.com/iamasit07/pingline/backend/internal/errs"
)

// MessageRepository is the durable message storage the chat service writes to.
type MessageRepository interface {
	InsertMessage(conversationKey string, senderID, receiverID int64, content string, media []domain.Media) (*domain.Message, error)
	GetConversation(conversationKey string) ([]domain.Message, error)
}

// Service persists and reads back pairwise conversations. Persistence and
// live delivery are independent: a successful Append says nothing about
// whether the recipient was reachable.
type Service struct {
	messages MessageRepository
}

func NewService(messages MessageRepository) *Service {
	return &Service{messages: messages}
}

// Append validates the send, computes the conversation key, and writes one
// immutable record stamped with a store-assigned timestamp.
func (s *Service) Append(senderID, receiverID int64, content string, media []domain.Media) (*domain.Message, error) {
	if receiverID <= 0 {
		return nil, fmt.Errorf("%w: receiver is required", errs.ErrInvalidArgument)
	}
	if content == "" && len(media) == 0 {
		return nil, fmt.Errorf("%w: message is required", errs.ErrInvalidArgument)
	}
	if !domain.ValidMedia(media) {
		return nil, fmt.Errorf("%w: malformed media attachment", errs.ErrInvalidArgument)
	}

	key, err := domain.ConversationKey(senderID, receiverID)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.InsertMessage(key, senderID, receiverID, content, media)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return msg, nil
}

// History returns the full conversation between two users in ascending
// creation-time order. Each call runs a fresh query.
func (s *Service) History(userA, userB int64) ([]domain.Message, error) {
	key, err := domain.ConversationKey(userA, userB)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.GetConversation(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return messages, nil
}
