package chat

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamasit07/pingline/backend/internal/domain"
	"github.com/iamasit07/pingline/backend/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMessageRepo stores messages in memory, keyed by conversation, and
// stamps them with a monotonically increasing id and timestamp like the
// SQL repo does.
type fakeMessageRepo struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[string][]domain.Message
	failInsert    error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{conversations: make(map[string][]domain.Message)}
}

func (r *fakeMessageRepo) InsertMessage(conversationKey string, senderID, receiverID int64, content string, media []domain.Media) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert != nil {
		return nil, r.failInsert
	}
	r.nextID++
	msg := domain.Message{
		ID:              r.nextID,
		ConversationKey: conversationKey,
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Content:         content,
		Media:           media,
		CreatedAt:       time.Now().UTC(),
	}
	r.conversations[conversationKey] = append(r.conversations[conversationKey], msg)
	return &msg, nil
}

func (r *fakeMessageRepo) GetConversation(conversationKey string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.conversations[conversationKey]))
	copy(out, r.conversations[conversationKey])
	return out, nil
}

func TestAppend_PersistsAndStamps(t *testing.T) {
	t.Parallel()

	repo := newFakeMessageRepo()
	svc := NewService(repo)

	msg, err := svc.Append(1, 2, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.SenderID)
	assert.Equal(t, int64(2), msg.ReceiverID)
	assert.Equal(t, "hello", msg.Content)
	assert.NotZero(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Len(t, msg.ConversationKey, 64)
}

func TestAppend_MediaOnlyMessage(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeMessageRepo())

	msg, err := svc.Append(1, 2, "", []domain.Media{{URL: "https://cdn/x.png", Type: domain.MediaImage}})
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
	require.Len(t, msg.Media, 1)
}

func TestAppend_Validation(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeMessageRepo())

	cases := []struct {
		name     string
		receiver int64
		content  string
		media    []domain.Media
	}{
		{"missing receiver", 0, "hi", nil},
		{"negative receiver", -3, "hi", nil},
		{"empty message and media", 2, "", nil},
		{"media without url", 2, "", []domain.Media{{Type: domain.MediaImage}}},
		{"media with unknown type", 2, "", []domain.Media{{URL: "https://cdn/x", Type: "gif"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Append(1, tc.receiver, tc.content, tc.media)
			assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		})
	}
}

func TestAppend_RepoFailureWrapsPersistence(t *testing.T) {
	t.Parallel()

	repo := newFakeMessageRepo()
	repo.failInsert = errors.New("connection reset")
	svc := NewService(repo)

	_, err := svc.Append(1, 2, "hi", nil)
	assert.ErrorIs(t, err, errs.ErrPersistence)
}

func TestHistory_SharedBetweenBothDirections(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeMessageRepo())

	_, err := svc.Append(1, 2, "first", nil)
	require.NoError(t, err)
	_, err = svc.Append(2, 1, "second", nil)
	require.NoError(t, err)
	_, err = svc.Append(1, 3, "other thread", nil)
	require.NoError(t, err)

	// Either participant sees the same two-message conversation, in order.
	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		msgs, err := svc.History(pair[0], pair[1])
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "second", msgs[1].Content)
	}

	msgs, err := svc.History(1, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "other thread", msgs[0].Content)
}

func TestHistory_EmptyConversation(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeMessageRepo())

	msgs, err := svc.History(7, 8)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistory_InvalidParticipants(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeMessageRepo())

	_, err := svc.History(0, 2)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}
