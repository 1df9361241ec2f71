package gate

import (
	"time"

	"github.com/parsascontentcorner/linkgate/internal/world"
)

// Snapshot is the mutable world state of a player taken on entering quarantine.
type Snapshot struct {
	GameMode     world.GameMode
	AllowFlight  bool
	Flying       bool
	Invulnerable bool
	Collidable   bool
	Location     world.Location
	TakenAt      time.Time
}

func takeSnapshot(p world.Player, now time.Time) *Snapshot {
	return &Snapshot{
		GameMode:     p.GameMode(),
		AllowFlight:  p.AllowFlight(),
		Flying:       p.Flying(),
		Invulnerable: p.Invulnerable(),
		Collidable:   p.Collidable(),
		Location:     p.Location(),
		TakenAt:      now,
	}
}

// restorable reports whether the snapshot can still be applied: it exists, is younger
// than maxAge and its world is still loaded.
func (s *Snapshot) restorable(server world.Server, now time.Time, maxAge time.Duration) bool {
	if s == nil {
		return false
	}
	if maxAge > 0 && now.Sub(s.TakenAt) > maxAge {
		return false
	}
	return server.WorldExists(s.Location.World)
}

func (s *Snapshot) apply(p world.Player) {
	p.SetGameMode(s.GameMode)
	p.SetAllowFlight(s.AllowFlight)
	p.SetFlying(s.AllowFlight && s.Flying)
	p.SetInvulnerable(s.Invulnerable)
	p.SetCollidable(s.Collidable)
	p.Teleport(s.Location)
}

// applyDefaults resets a player to ordinary survival flags at spawn
func applyDefaults(p world.Player, spawn world.Location) {
	p.SetGameMode(world.GameModeSurvival)
	p.SetAllowFlight(false)
	p.SetFlying(false)
	p.SetInvulnerable(false)
	p.SetCollidable(true)
	p.Teleport(spawn)
}

// session is the in-memory quarantine state of one connection. It is never persisted.
type session struct {
	snapshot  *Snapshot
	ladder    ladder
	skip      bool
	createdAt time.Time

	// cancelReturn stops a pending return-to-sandbox move
	cancelReturn func() bool
}

func (s *session) stopReturn() {
	if s.cancelReturn != nil {
		s.cancelReturn()
		s.cancelReturn = nil
	}
}
