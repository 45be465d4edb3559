package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// managedConn pairs a socket with its owning user and a write lock.
// conn.WriteJSON is not safe for concurrent use, so every write to a given
// socket must hold its mutex.
type managedConn struct {
	conn    *websocket.Conn
	userID  int64
	writeMu sync.Mutex
}

// ConnectionManager owns every live socket, keyed by connection id. A user
// may hold several connections at once (multiple devices/tabs); the presence
// registry decides what that means for their status, this type only routes
// writes.
type ConnectionManager struct {
	mu    sync.RWMutex // Protects the map itself
	conns map[string]*managedConn
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns: make(map[string]*managedConn),
	}
}

// Add registers a new authenticated connection.
func (cm *ConnectionManager) Add(connID string, userID int64, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[connID] = &managedConn{conn: conn, userID: userID}
}

// Remove closes and forgets a connection.
func (cm *ConnectionManager) Remove(connID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if mc, exists := cm.conns[connID]; exists {
		mc.conn.Close()
		delete(cm.conns, connID)
	}
}

// UserID returns the owning user of a connection.
func (cm *ConnectionManager) UserID(connID string) (int64, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	mc, exists := cm.conns[connID]
	if !exists {
		return 0, false
	}
	return mc.userID, true
}

// Count returns the number of live connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// Send writes a JSON event to one connection. A missing connection is not an
// error: the socket raced away between lookup and write, and delivery is
// best-effort.
func (cm *ConnectionManager) Send(connID string, event interface{}) error {
	cm.mu.RLock()
	mc, exists := cm.conns[connID]
	cm.mu.RUnlock()

	if !exists {
		return nil // Connection already gone, ignore
	}

	mc.writeMu.Lock()
	defer mc.writeMu.Unlock()

	mc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return mc.conn.WriteJSON(event)
}

// Broadcast sends an event to every connection except those owned by
// exceptUserID. Writes run in goroutines so one slow socket doesn't block
// the broadcast.
func (cm *ConnectionManager) Broadcast(event interface{}, exceptUserID int64) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for connID, mc := range cm.conns {
		if mc.userID == exceptUserID {
			continue
		}
		go func(cid string) {
			cm.Send(cid, event)
		}(connID)
	}
}

// CloseAll tears down every connection (shutdown path).
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for connID, mc := range cm.conns {
		mc.conn.Close()
		delete(cm.conns, connID)
	}
}
