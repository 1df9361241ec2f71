package world

// Event is a typed world event raised by the game server for a live player.
// Handlers match on the concrete type with a type switch.
type Event interface {
	Subject() Player
	isEvent()
}

// Cancellable is embedded by events a handler may veto
type Cancellable struct {
	cancelled bool
}

// Cancel vetoes the event
func (c *Cancellable) Cancel() {
	c.cancelled = true
}

// Cancelled reports whether a handler vetoed the event
func (c *Cancellable) Cancelled() bool {
	return c.cancelled
}

// JoinEvent is raised once a player is materialized in the world.
type JoinEvent struct {
	Player Player
}

// QuitEvent is raised when a player disconnects or is kicked.
type QuitEvent struct {
	Player Player
	Kicked bool
}

// ChatEvent is raised for a public chat message.
type ChatEvent struct {
	Cancellable
	Player  Player
	Message string
}

// CommandEvent is raised for a slash command, before it runs.
type CommandEvent struct {
	Cancellable
	Player  Player
	Command string
	Args    []string
}

// InteractEvent is raised when a player uses or breaks a block, item or entity.
type InteractEvent struct {
	Cancellable
	Player Player
	Target string
}

// DropItemEvent is raised when a player drops an item.
type DropItemEvent struct {
	Cancellable
	Player Player
	Item   string
}

// DamageEvent is raised when Player takes damage. Attacker is nil for environmental damage.
type DamageEvent struct {
	Cancellable
	Player   Player
	Attacker Player
	Amount   float64
}

// HungerEvent is raised when a player's food level changes.
type HungerEvent struct {
	Cancellable
	Player Player
	From   int
	To     int
}

// StanceEvent is raised when a player starts or stops sneaking or sprinting.
type StanceEvent struct {
	Cancellable
	Player Player
	Stance string
}

// MoveEvent is raised when a player walks. Cancelling keeps the player at From.
type MoveEvent struct {
	Cancellable
	Player Player
	From   Location
	To     Location
}

// TeleportEvent is raised before a player is teleported.
type TeleportEvent struct {
	Cancellable
	Player Player
	From   Location
	To     Location
}

func (e *JoinEvent) Subject() Player     { return e.Player }
func (e *QuitEvent) Subject() Player     { return e.Player }
func (e *ChatEvent) Subject() Player     { return e.Player }
func (e *CommandEvent) Subject() Player  { return e.Player }
func (e *InteractEvent) Subject() Player { return e.Player }
func (e *DropItemEvent) Subject() Player { return e.Player }
func (e *DamageEvent) Subject() Player   { return e.Player }
func (e *HungerEvent) Subject() Player   { return e.Player }
func (e *StanceEvent) Subject() Player   { return e.Player }
func (e *MoveEvent) Subject() Player     { return e.Player }
func (e *TeleportEvent) Subject() Player { return e.Player }

func (*JoinEvent) isEvent()     {}
func (*QuitEvent) isEvent()     {}
func (*ChatEvent) isEvent()     {}
func (*CommandEvent) isEvent()  {}
func (*InteractEvent) isEvent() {}
func (*DropItemEvent) isEvent() {}
func (*DamageEvent) isEvent()   {}
func (*HungerEvent) isEvent()   {}
func (*StanceEvent) isEvent()   {}
func (*MoveEvent) isEvent()     {}
func (*TeleportEvent) isEvent() {}
