package world

import "github.com/google/uuid"

// Player is a live, materialized player. Methods that read or mutate world state
// must only be called from the loop.
type Player interface {
	Conn() ConnID
	ID() uuid.UUID
	Name() string

	Location() Location
	Teleport(to Location) bool

	GameMode() GameMode
	SetGameMode(mode GameMode)
	AllowFlight() bool
	SetAllowFlight(allow bool)
	Flying() bool
	SetFlying(flying bool)
	Invulnerable() bool
	SetInvulnerable(invulnerable bool)
	Collidable() bool
	SetCollidable(collidable bool)

	// HidePlayer stops other from being rendered for this player.
	HidePlayer(other Player)
	ShowPlayer(other Player)

	SendMessage(message string)
	// SendLink shows a clickable link.
	SendLink(label, url string)
	Kick(reason string)
}

// Server exposes the global game server state. Loop-only, like Player.
type Server interface {
	OnlinePlayers() []Player
	Player(id ConnID) (Player, bool)
	WorldExists(name string) bool
	DefaultSpawn() Location
}
