package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/linkgate/internal/models"
	"github.com/parsascontentcorner/linkgate/internal/world"
)

// State is the gate state of one connection
type State int32

// State constants
const (
	StatePendingCheck State = iota
	StateQuarantined
	StateReleased
)

func (s State) String() string {
	switch s {
	case StatePendingCheck:
		return "pending_check"
	case StateQuarantined:
		return "quarantined"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// connection is the gate's view of one live connection.
// session, status, latest and player are owned by the loop.
type connection struct {
	id       world.ConnID
	playerID uuid.UUID
	username string
	state    atomic.Int32

	checked  chan struct{}
	once     sync.Once
	decision models.PreLoginDecision

	player  world.Player
	session *session
	status  models.LinkStatus
	// latest is the decision from the most recent refresh
	latest models.PreLoginDecision
}

func newConnection(id world.ConnID, playerID uuid.UUID, username string) *connection {
	return &connection{
		id:       id,
		playerID: playerID,
		username: username,
		checked:  make(chan struct{}),
	}
}

func (c *connection) State() State {
	return State(c.state.Load())
}

func (c *connection) setState(s State) {
	c.state.Store(int32(s))
}

// resolve records the pre-login decision. Only the first call has an effect.
func (c *connection) resolve(d models.PreLoginDecision) {
	c.once.Do(func() {
		c.decision = d
		close(c.checked)
	})
}

// resolved returns the decision if the check has finished
func (c *connection) resolved() (models.PreLoginDecision, bool) {
	select {
	case <-c.checked:
		return c.decision, true
	default:
		return nil, false
	}
}

// await blocks until the check has finished or ctx is done
func (c *connection) await(ctx context.Context) (models.PreLoginDecision, error) {
	select {
	case <-c.checked:
		return c.decision, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Registry tracks live connections from handshake until quit.
type Registry struct {
	mu    sync.RWMutex
	conns map[world.ConnID]*connection
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{conns: make(map[world.ConnID]*connection)}
}

// open registers a connection, returning the existing one if id is already known
func (r *Registry) open(id world.ConnID, playerID uuid.UUID, username string) (*connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[id]; ok {
		return conn, false
	}
	conn := newConnection(id, playerID, username)
	r.conns[id] = conn
	return conn, true
}

func (r *Registry) get(id world.ConnID) (*connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

func (r *Registry) close(id world.ConnID) (*connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return conn, ok
}

func (r *Registry) byPlayer(playerID uuid.UUID) []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*connection
	for _, conn := range r.conns {
		if conn.playerID == playerID {
			conns = append(conns, conn)
		}
	}
	return conns
}

// Len returns the number of tracked connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Stats counts tracked connections per state
type Stats struct {
	PendingCheck int `json:"pendingCheck"`
	Quarantined  int `json:"quarantined"`
	Released     int `json:"released"`
}

func (r *Registry) stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Stats
	for _, conn := range r.conns {
		switch conn.State() {
		case StatePendingCheck:
			s.PendingCheck++
		case StateQuarantined:
			s.Quarantined++
		case StateReleased:
			s.Released++
		}
	}
	return s
}
