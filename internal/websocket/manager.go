// Package websocket pushes link events to service clients such as the chat bot.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/auth"
	"github.com/parsascontentcorner/linkgate/internal/linking"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultSendBuffer   = 64
	writeWait           = 10 * time.Second
	maxMessageSize      = 512
)

// MessageTypeLinkEvent is the type of every pushed event message
const MessageTypeLinkEvent = "link_event"

// Message is the JSON frame written to feed clients
type Message struct {
	Type  string        `json:"type"`
	Event linking.Event `json:"event"`
}

// TokenVerifier validates service bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.ServiceClaims, error)
}

// Manager serves the link event feed at /ws/links
type Manager struct {
	events   *linking.Broadcaster
	tokens   TokenVerifier
	upgrader websocket.Upgrader
	logger   *zap.Logger

	pingInterval time.Duration
	sendBuffer   int

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// Option customizes a Manager
type Option func(*Manager)

// WithPingInterval sets how often idle connections are pinged
func WithPingInterval(d time.Duration) Option {
	return func(m *Manager) { m.pingInterval = d }
}

// WithSendBuffer sets the per-client event buffer
func WithSendBuffer(n int) Option {
	return func(m *Manager) { m.sendBuffer = n }
}

// NewManager creates a new feed manager
func NewManager(events *linking.Broadcaster, tokens TokenVerifier, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		events: events,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with bearer tokens, not cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:       logger,
		pingInterval: defaultPingInterval,
		sendBuffer:   defaultSendBuffer,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run fans link events out to connected clients until ctx is done, then closes every
// client connection.
func (m *Manager) Run(ctx context.Context) {
	events := m.events.Subscribe()
	defer m.events.Unsubscribe(events)
	defer m.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.broadcast(ev)
		}
	}
}

// ServeHTTP authenticates the caller and upgrades the connection.
// The optional player query parameter restricts the feed to one player.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	claims, err := m.tokens.Verify(token)
	if err != nil {
		m.logger.Info("rejected feed token", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		http.Error(w, "invalid bearer token", http.StatusUnauthorized)
		return
	}
	if !claims.HasScope(auth.ScopeLinksRead) {
		http.Error(w, "token lacks "+auth.ScopeLinksRead, http.StatusForbidden)
		return
	}

	var player uuid.UUID
	if raw := r.URL.Query().Get("player"); raw != "" {
		player, err = uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid player id", http.StatusBadRequest)
			return
		}
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		m.logger.Warn("failed to upgrade feed connection", zap.Error(err))
		return
	}

	c := newClient(conn, claims.Subject, player, m.sendBuffer, m.logger)
	if !m.register(c) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}

	m.logger.Info("feed client connected",
		zap.String("subject", c.subject),
		zap.Stringer("player_filter", player),
	)

	go func() {
		defer m.wg.Done()
		c.writeLoop(m.pingInterval)
	}()
	go func() {
		defer m.wg.Done()
		c.readLoop(m.pingInterval)
		m.unregister(c)
	}()
}

// register tracks c and accounts for its two goroutines
func (m *Manager) register(c *client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.clients[c] = struct{}{}
	m.wg.Add(2)
	return true
}

func (m *Manager) unregister(c *client) {
	m.mu.Lock()
	delete(m.clients, c)
	m.mu.Unlock()

	c.close(websocket.CloseNormalClosure, "")
	m.logger.Info("feed client disconnected", zap.String("subject", c.subject))
}

// broadcast queues ev for every interested client without blocking
func (m *Manager) broadcast(ev linking.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Debug("broadcasting link event",
		zap.String("kind", string(ev.Kind)),
		zap.Int("subscriber_count", len(m.clients)),
	)

	for c := range m.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- ev:
		default:
			m.logger.Warn("feed client buffer full, dropping event",
				zap.String("subject", c.subject),
				zap.String("kind", string(ev.Kind)),
			)
		}
	}
}

// Len returns the number of connected clients
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Close disconnects every client and waits for their goroutines. Later upgrades are refused.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	clients := make([]*client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
	m.wg.Wait()
}
