package world

import "math"

// Location is a position in a named world
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
	Yaw   float32
	Pitch float32
}

// DistanceSquared returns the squared distance to other, or +Inf across worlds
func (l Location) DistanceSquared(other Location) float64 {
	if l.World != other.World {
		return math.Inf(1)
	}
	dx, dy, dz := l.X-other.X, l.Y-other.Y, l.Z-other.Z
	return dx*dx + dy*dy + dz*dz
}

// Within reports whether l lies inside the sphere of radius around center
func (l Location) Within(center Location, radius float64) bool {
	return l.DistanceSquared(center) <= radius*radius
}

// GameMode is a player's movement and interaction mode
type GameMode string

// GameMode constants
const (
	GameModeSurvival  GameMode = "survival"
	GameModeAdventure GameMode = "adventure"
	GameModeCreative  GameMode = "creative"
	GameModeSpectator GameMode = "spectator"
)
