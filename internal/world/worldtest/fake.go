// Package worldtest provides in-memory players and servers for exercising world handlers.
package worldtest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/linkgate/internal/world"
)

// Link is a clickable link sent to a FakePlayer
type Link struct {
	Label string
	URL   string
}

// FakePlayer records everything done to it. It is safe to inspect from test goroutines.
type FakePlayer struct {
	mu           sync.Mutex
	conn         world.ConnID
	id           uuid.UUID
	name         string
	location     world.Location
	mode         world.GameMode
	allowFlight  bool
	flying       bool
	invulnerable bool
	collidable   bool
	hidden       map[world.ConnID]bool
	messages     []string
	links        []Link
	teleports    []world.Location
	kicked       string
}

var _ world.Player = (*FakePlayer)(nil)

// NewFakePlayer creates a survival-mode player standing at loc
func NewFakePlayer(name string, loc world.Location) *FakePlayer {
	return &FakePlayer{
		conn:       world.NewConnID(),
		id:         uuid.New(),
		name:       name,
		location:   loc,
		mode:       world.GameModeSurvival,
		collidable: true,
		hidden:     make(map[world.ConnID]bool),
	}
}

// SetID replaces the player id, e.g. to model a reconnect on a new connection.
// Call it before the player is handed to any handler.
func (p *FakePlayer) SetID(id uuid.UUID) { p.id = id }

func (p *FakePlayer) Conn() world.ConnID { return p.conn }
func (p *FakePlayer) ID() uuid.UUID      { return p.id }
func (p *FakePlayer) Name() string       { return p.name }

func (p *FakePlayer) Location() world.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

func (p *FakePlayer) Teleport(to world.Location) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = to
	p.teleports = append(p.teleports, to)
	return true
}

func (p *FakePlayer) GameMode() world.GameMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *FakePlayer) SetGameMode(mode world.GameMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

func (p *FakePlayer) AllowFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowFlight
}

func (p *FakePlayer) SetAllowFlight(allow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowFlight = allow
}

func (p *FakePlayer) Flying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flying
}

func (p *FakePlayer) SetFlying(flying bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flying = flying
}

func (p *FakePlayer) Invulnerable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invulnerable
}

func (p *FakePlayer) SetInvulnerable(invulnerable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invulnerable = invulnerable
}

func (p *FakePlayer) Collidable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.collidable
}

func (p *FakePlayer) SetCollidable(collidable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collidable = collidable
}

func (p *FakePlayer) HidePlayer(other world.Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden[other.Conn()] = true
}

func (p *FakePlayer) ShowPlayer(other world.Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hidden, other.Conn())
}

func (p *FakePlayer) SendMessage(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *FakePlayer) SendLink(label, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.links = append(p.links, Link{Label: label, URL: url})
}

func (p *FakePlayer) Kick(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kicked = reason
}

// CanSee reports whether other is rendered for this player
func (p *FakePlayer) CanSee(other world.Player) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.hidden[other.Conn()]
}

// Messages returns a copy of the chat messages sent so far
func (p *FakePlayer) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

// Links returns a copy of the links sent so far
func (p *FakePlayer) Links() []Link {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Link(nil), p.links...)
}

// Teleports returns every teleport destination in order
func (p *FakePlayer) Teleports() []world.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]world.Location(nil), p.teleports...)
}

// Kicked returns the kick reason, or "" if the player was not kicked
func (p *FakePlayer) Kicked() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kicked
}

// FakeServer is an in-memory world.Server
type FakeServer struct {
	mu      sync.Mutex
	players map[world.ConnID]world.Player
	order   []world.ConnID
	worlds  map[string]bool
	spawn   world.Location
}

var _ world.Server = (*FakeServer)(nil)

// NewFakeServer creates a server with the given worlds; the spawn is in the first one
func NewFakeServer(spawn world.Location, worlds ...string) *FakeServer {
	s := &FakeServer{
		players: make(map[world.ConnID]world.Player),
		worlds:  map[string]bool{spawn.World: true},
		spawn:   spawn,
	}
	for _, w := range worlds {
		s.worlds[w] = true
	}
	return s
}

// Add puts a player online
func (s *FakeServer) Add(p world.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.Conn()]; !ok {
		s.order = append(s.order, p.Conn())
	}
	s.players[p.Conn()] = p
}

// Remove takes a player offline
func (s *FakeServer) Remove(p world.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, p.Conn())
	for i, id := range s.order {
		if id == p.Conn() {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// RemoveWorld unloads a world
func (s *FakeServer) RemoveWorld(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.worlds, name)
}

func (s *FakeServer) OnlinePlayers() []world.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make([]world.Player, 0, len(s.order))
	for _, id := range s.order {
		players = append(players, s.players[id])
	}
	return players
}

func (s *FakeServer) Player(id world.ConnID) (world.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	return p, ok
}

func (s *FakeServer) WorldExists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worlds[name]
}

func (s *FakeServer) DefaultSpawn() world.Location {
	return s.spawn
}
