package linking

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventKind identifies a link lifecycle event
type EventKind string

// EventKind constants
const (
	EventTicketCreated  EventKind = "ticket_created"
	EventTicketConsumed EventKind = "ticket_consumed"
	EventTicketReviewed EventKind = "ticket_reviewed"
	EventLinkStolen     EventKind = "link_stolen"
)

// Event is published whenever durable link information changes.
type Event struct {
	Kind      EventKind `json:"kind"`
	PlayerID  uuid.UUID `json:"playerId"`
	DiscordID string    `json:"discordId,omitempty"`
	Returning bool      `json:"returning,omitempty"`
	At        time.Time `json:"at"`
}

const subscriberBuffer = 64

// Broadcaster distributes link events to subscribers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	logger *zap.Logger
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe creates a channel receiving every published event.
func (b *Broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish sends an event to all subscribers without blocking.
// Slow subscribers miss events; they re-derive state from the store.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping link event for slow subscriber",
				zap.String("kind", string(ev.Kind)),
				zap.String("player_id", ev.PlayerID.String()),
			)
		}
	}
}
