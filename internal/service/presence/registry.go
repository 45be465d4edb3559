package presence

import (
	"sync"
	"time"
)

// StatusSink receives committed presence transitions. It runs on a single
// dispatch goroutine, outside the registry lock and strictly in commit order,
// so implementations may block (persist status, broadcast to sockets) without
// stalling register/deregister calls and without ever observing transitions
// out of order.
type StatusSink func(userID int64, online bool)

// transition is one committed status change awaiting dispatch.
type transition struct {
	userID int64
	online bool
}

// Registry tracks, per user, the set of currently live connection ids. A user
// is online iff their set is non-empty. The offline transition is debounced:
// when the last connection goes away the registry waits before declaring the
// user offline, so a page reload or brief network blip does not flap the
// visible status.
//
// The maps are the single piece of contended shared state in the gateway;
// every mutation goes through Register/Deregister under the mutex. Sink
// notifications are appended to the queue under the same lock that commits
// the state change, which pins their order to the order the transitions
// actually happened.
type Registry struct {
	mu       sync.Mutex
	cond     *sync.Cond
	conns    map[int64]map[string]struct{} // userID → live connection ids
	pending  map[int64]*time.Timer         // scheduled offline transitions
	queue    []transition                  // committed, not yet dispatched
	debounce time.Duration
	sink     StatusSink
	closed   bool
	done     chan struct{} // dispatcher exit, nil when no sink
}

func NewRegistry(debounce time.Duration, sink StatusSink) *Registry {
	r := &Registry{
		conns:    make(map[int64]map[string]struct{}),
		pending:  make(map[int64]*time.Timer),
		debounce: debounce,
		sink:     sink,
	}
	r.cond = sync.NewCond(&r.mu)
	if sink != nil {
		r.done = make(chan struct{})
		go r.dispatch()
	}
	return r
}

// dispatch drains the transition queue and invokes the sink without holding
// the registry lock. It exits once the registry is closed and the queue is
// empty.
func (r *Registry) dispatch() {
	defer close(r.done)
	r.mu.Lock()
	for {
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		t := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.sink(t.userID, t.online)

		r.mu.Lock()
	}
}

// emit queues a committed transition for the dispatcher. Callers must hold mu.
func (r *Registry) emit(userID int64, online bool) {
	if r.sink == nil {
		return
	}
	r.queue = append(r.queue, transition{userID: userID, online: online})
	r.cond.Signal()
}

// Register adds a connection to the user's set. If this is the user's first
// connection and no offline transition was pending, the user just came
// online and the sink is notified. A pending offline transition is cancelled
// instead: the user never visibly left.
func (r *Registry) Register(userID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	cancelled := false
	if t, ok := r.pending[userID]; ok {
		t.Stop()
		delete(r.pending, userID)
		cancelled = true
	}

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	wasEmpty := len(set) == 0
	set[connID] = struct{}{}

	if wasEmpty && !cancelled {
		r.emit(userID, true)
	}
}

// Deregister removes a connection from the user's set. When the set becomes
// empty the offline transition is scheduled, not fired: the debounce timer is
// (re)started and only marks the user offline if the set is still empty when
// it fires.
func (r *Registry) Deregister(userID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) > 0 {
		return
	}
	delete(r.conns, userID)

	if t, ok := r.pending[userID]; ok {
		t.Stop()
	}
	r.pending[userID] = time.AfterFunc(r.debounce, func() {
		r.fireOffline(userID)
	})
}

// fireOffline commits the offline transition if the user is still without
// connections when the debounce window elapses.
func (r *Registry) fireOffline(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, userID)
	if r.closed {
		return
	}
	if _, stillConnected := r.conns[userID]; stillConnected {
		// Reconnected between scheduling and firing.
		return
	}
	r.emit(userID, false)
}

// LiveConnections returns a snapshot of the user's live connection ids.
func (r *Registry) LiveConnections(userID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[userID]) > 0
}

// OnlineUsers returns all users with at least one live connection, excluding
// the given user.
func (r *Registry) OnlineUsers(excluding int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]int64, 0, len(r.conns))
	for userID, set := range r.conns {
		if userID == excluding || len(set) == 0 {
			continue
		}
		users = append(users, userID)
	}
	return users
}

// Close stops all pending offline timers, rejects further mutations, and
// waits for already-committed transitions to finish dispatching.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for userID, t := range r.pending {
		t.Stop()
		delete(r.pending, userID)
	}
	r.cond.Signal()
	r.mu.Unlock()

	if r.done != nil {
		<-r.done
	}
}
