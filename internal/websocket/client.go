package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/linking"
)

// client is one feed connection
type client struct {
	conn    *websocket.Conn
	subject string
	player  uuid.UUID
	send    chan linking.Event
	logger  *zap.Logger

	// writeMu serializes writes; gorilla allows one concurrent writer
	writeMu   sync.Mutex
	closeChan chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, subject string, player uuid.UUID, buffer int, logger *zap.Logger) *client {
	return &client{
		conn:      conn,
		subject:   subject,
		player:    player,
		send:      make(chan linking.Event, buffer),
		logger:    logger,
		closeChan: make(chan struct{}),
	}
}

// wants reports whether the client's filter matches ev
func (c *client) wants(ev linking.Event) bool {
	return c.player == uuid.Nil || c.player == ev.PlayerID
}

// writeLoop delivers queued events and keeps the connection alive with pings
func (c *client) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case ev := <-c.send:
			if err := c.write(func() error {
				return c.conn.WriteJSON(Message{Type: MessageTypeLinkEvent, Event: ev})
			}); err != nil {
				c.logger.Warn("failed to write feed event", zap.String("subject", c.subject), zap.Error(err))
				c.close(websocket.CloseInternalServerErr, "")
				return
			}
		case <-ticker.C:
			if err := c.write(func() error {
				return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			}); err != nil {
				c.logger.Debug("failed to ping feed client", zap.String("subject", c.subject), zap.Error(err))
				c.close(websocket.CloseGoingAway, "")
				return
			}
		}
	}
}

// readLoop discards client frames and returns once the connection fails or closes.
// A client that misses two pings is considered gone.
func (c *client) readLoop(pingInterval time.Duration) {
	pongWait := 2 * pingInterval
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("feed connection closed unexpectedly", zap.String("subject", c.subject), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) write(fn func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return fn()
}

// close sends a close frame and closes the connection. Only the first call has an effect.
func (c *client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		_ = c.write(func() error {
			return c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		})
		_ = c.conn.Close()
	})
}
