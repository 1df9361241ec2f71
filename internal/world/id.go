// Package world defines the contract between linkgate and the game server it guards:
// live players, typed world events, and the single authoritative loop every world
// mutation is scheduled onto.
package world

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ConnID identifies one live connection. A reconnecting player gets a new ConnID.
type ConnID ulid.ULID

// NewConnID generates a new connection id
func NewConnID() ConnID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ConnID(ulid.MustNew(ulid.Timestamp(time.Now()), entropy))
}

// ParseConnID parses a connection id string
func ParseConnID(s string) (ConnID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ConnID{}, fmt.Errorf("invalid connection id %q: %w", s, err)
	}
	return ConnID(id), nil
}

func (id ConnID) String() string {
	return ulid.ULID(id).String()
}
