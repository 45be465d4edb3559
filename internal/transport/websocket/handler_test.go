package websocket

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iamasit07/pingline/backend/internal/config"
	"github.com/iamasit07/pingline/backend/internal/domain"
	"github.com/iamasit07/pingline/backend/internal/service/chat"
	"github.com/iamasit07/pingline/backend/internal/service/presence"
	"github.com/iamasit07/pingline/backend/internal/service/token"
	"github.com/iamasit07/pingline/backend/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	config.AppConfig = &config.Config{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLDays:   30,
		PresenceDebounce:      80 * time.Millisecond,
		HandshakeTimeout:      2 * time.Second,
	}
	os.Exit(m.Run())
}

// fakeMessageRepo is an in-memory message store for gateway tests.
type fakeMessageRepo struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[string][]domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{conversations: make(map[string][]domain.Message)}
}

func (r *fakeMessageRepo) InsertMessage(conversationKey string, senderID, receiverID int64, content string, media []domain.Media) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

// fixture wires a full gateway (manager, registry, chat service, token
// verification) behind a test HTTP server.
type fixture struct {
	srv      *httptest.Server
	cm       *ConnectionManager
	registry *presence.Registry
	chat     *chat.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cm := NewConnectionManager()
	chatSvc := chat.NewService(newFakeMessageRepo())
	tokens := token.NewService(nil, nil)

	registry := presence.NewRegistry(config.AppConfig.PresenceDebounce, func(userID int64, online bool) {
		cm.Broadcast(domain.NewStatusChanged(userID, online), userID)
	})

	h := NewHandler(cm, registry, chatSvc, tokens)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))

	t.Cleanup(func() {
		srv.Close()
		registry.Close()
		cm.CloseAll()
	})

	return &fixture{srv: srv, cm: cm, registry: registry, chat: chatSvc}
}

func (f *fixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

// dialWithHeader authenticates on the upgrade request itself.
func (f *fixture) dialWithHeader(t *testing.T, accessToken string) *websocket.Conn {
	t.Helper()
	header := http.Header{"Authorization": {"Bearer " + accessToken}}
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// dialWithInit authenticates with an explicit init event after the upgrade.
func (f *fixture) dialWithInit(t *testing.T, accessToken string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteJSON(domain.ClientEvent{Type: domain.EventInit, Token: accessToken}))
	return conn
}

func accessTokenFor(t *testing.T, userID int64, username string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(userID, username, username, "")
	require.NoError(t, err)
	return tok
}

// readEventOfType reads events off the socket until one of the wanted type
// arrives, skipping unrelated ones (e.g. presence noise).
func readEventOfType(t *testing.T, conn *websocket.Conn, wantType string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var event map[string]interface{}
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("waiting for %q event: %v", wantType, err)
		}
		if event["type"] == wantType {
			return event
		}
	}
}

func waitOnline(t *testing.T, f *fixture, userID int64) {
	t.Helper()
	require.Eventually(t, func() bool { return f.registry.IsOnline(userID) },
		2*time.Second, 10*time.Millisecond, "user %d never came online", userID)
}

func TestGateway_SendDeliversToRecipient(t *testing.T) {
	f := newFixture(t)

	receiver := f.dialWithInit(t, accessTokenFor(t, 2, "bob"))
	waitOnline(t, f, 2)

	sender := f.dialWithHeader(t, accessTokenFor(t, 1, "alice"))
	waitOnline(t, f, 1)

	require.NoError(t, sender.WriteJSON(domain.ClientEvent{
		Type:    domain.EventSendMessage,
		To:      2,
		Message: "hi bob",
	}))

	event := readEventOfType(t, receiver, domain.EventReceive)
	assert.Equal(t, float64(1), event["from"])
	assert.Equal(t, "hi bob", event["message"])

	// Delivery and persistence are both expected on the happy path.
	msgs, err := f.chat.History(1, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi bob", msgs[0].Content)
}

func TestGateway_OfflineReceiverStillPersisted(t *testing.T) {
	f := newFixture(t)

	sender := f.dialWithHeader(t, accessTokenFor(t, 1, "alice"))
	waitOnline(t, f, 1)

	require.NoError(t, sender.WriteJSON(domain.ClientEvent{
		Type:    domain.EventSendMessage,
		To:      99,
		Message: "are you there",
	}))

	require.Eventually(t, func() bool {
		msgs, err := f.chat.History(1, 99)
		return err == nil && len(msgs) == 1
	}, 2*time.Second, 10*time.Millisecond, "message to offline user was not persisted")

	// The sender must not get an error back; the send succeeded.
	sender.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var event map[string]interface{}
	err := sender.ReadJSON(&event)
	require.Error(t, err, "no event expected on the sender socket, got %v", event)
}

func TestGateway_DisconnectBroadcastsOfflineAfterDebounce(t *testing.T) {
	f := newFixture(t)

	observer := f.dialWithInit(t, accessTokenFor(t, 2, "bob"))
	waitOnline(t, f, 2)

	leaver := f.dialWithHeader(t, accessTokenFor(t, 1, "alice"))
	waitOnline(t, f, 1)

	// Observer sees the leaver come online first.
	online := readEventOfType(t, observer, domain.EventStatusChanged)
	assert.Equal(t, float64(1), online["userId"])
	assert.Equal(t, true, online["isOnline"])

	leaver.Close()

	offline := readEventOfType(t, observer, domain.EventStatusChanged)
	assert.Equal(t, float64(1), offline["userId"])
	assert.Equal(t, false, offline["isOnline"])

	assert.False(t, f.registry.IsOnline(1))
}

func TestGateway_InvalidTokenRejected(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(domain.ClientEvent{Type: domain.EventInit, Token: "garbage"}))

	event := readEventOfType(t, conn, domain.EventError)
	assert.Contains(t, event["message"], "Invalid or expired token")

	// The server closes the socket after rejecting the handshake.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, f.cm.Count())
}

func TestGateway_FirstEventMustBeInit(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(domain.ClientEvent{Type: domain.EventSendMessage, To: 2, Message: "hi"}))

	event := readEventOfType(t, conn, domain.EventError)
	assert.Contains(t, event["message"], "init")
}

func TestGateway_InvalidSendReportedBack(t *testing.T) {
	f := newFixture(t)

	sender := f.dialWithHeader(t, accessTokenFor(t, 1, "alice"))
	waitOnline(t, f, 1)

	// Missing receiver.
	require.NoError(t, sender.WriteJSON(domain.ClientEvent{Type: domain.EventSendMessage, Message: "hi"}))
	event := readEventOfType(t, sender, domain.EventError)
	assert.Contains(t, event["message"], "receiver")

	// Unknown event type.
	require.NoError(t, sender.WriteJSON(domain.ClientEvent{Type: "telepathy"}))
	event = readEventOfType(t, sender, domain.EventError)
	assert.Contains(t, event["message"], "Unknown event type")

	// The connection survives per-event failures.
	assert.True(t, f.registry.IsOnline(1))
}

func TestGateway_MultiDeviceFanOut(t *testing.T) {
	f := newFixture(t)

	deviceA := f.dialWithInit(t, accessTokenFor(t, 2, "bob"))
	deviceB := f.dialWithInit(t, accessTokenFor(t, 2, "bob"))
	require.Eventually(t, func() bool { return len(f.registry.LiveConnections(2)) == 2 },
		2*time.Second, 10*time.Millisecond)

	sender := f.dialWithHeader(t, accessTokenFor(t, 1, "alice"))
	waitOnline(t, f, 1)

	require.NoError(t, sender.WriteJSON(domain.ClientEvent{
		Type:    domain.EventSendMessage,
		To:      2,
		Message: "to all devices",
	}))

	for _, conn := range []*websocket.Conn{deviceA, deviceB} {
		event := readEventOfType(t, conn, domain.EventReceive)
		assert.Equal(t, "to all devices", event["message"])
	}
}
