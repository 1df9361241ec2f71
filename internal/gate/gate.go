// Package gate quarantines players in the live world until their accounts are linked.
//
// Every connection moves through PENDING_CHECK, QUARANTINED and RELEASED. The pre-login
// check runs off the loop during the handshake; everything that touches a player runs
// on the world loop. Session state lives only in memory and is dropped on quit.
package gate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/config"
	"github.com/parsascontentcorner/linkgate/internal/linking"
	"github.com/parsascontentcorner/linkgate/internal/metrics"
	"github.com/parsascontentcorner/linkgate/internal/models"
	"github.com/parsascontentcorner/linkgate/internal/world"
)

// Linker is the link service as seen by the gate
type Linker interface {
	PreLoginDecision(ctx context.Context, playerID uuid.UUID) models.PreLoginDecision
	ConsumeTicket(ctx context.Context, playerID uuid.UUID) (bool, error)
	LinkStatus(ctx context.Context, playerID uuid.UUID) (models.LinkStatus, error)
}

// Config controls quarantine behaviour
type Config struct {
	CheckTimeout    time.Duration
	ReturnDelay     time.Duration
	SnapshotMaxAge  time.Duration
	Sandbox         world.Location
	SandboxRadius   float64
	AllowedCommands []string
	SkipCommand     string
	RankProvider    string
	RankOptional    bool
	Messages        Messages
}

// NewConfig builds the gate configuration from the environment sections
func NewConfig(gc *config.GateConfig, rc *config.RankConfig) Config {
	return Config{
		CheckTimeout:   gc.CheckTimeout,
		ReturnDelay:    gc.ReturnDelay,
		SnapshotMaxAge: gc.SnapshotMaxAge,
		Sandbox: world.Location{
			World: gc.SandboxWorld,
			X:     gc.SandboxX,
			Y:     gc.SandboxY,
			Z:     gc.SandboxZ,
		},
		SandboxRadius:   gc.SandboxRadius,
		AllowedCommands: gc.AllowedCommands,
		SkipCommand:     gc.SkipCommand,
		RankProvider:    rc.Provider,
		RankOptional:    rc.Optional,
		Messages:        DefaultMessages(),
	}
}

// Gate is the verification gate. Handle must be called on the world loop; the
// remaining methods are safe from any goroutine.
type Gate struct {
	cfg      Config
	allowed  map[string]bool
	linker   Linker
	urls     URLBuilder
	loop     *world.Loop
	server   world.Server
	registry *Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// Option customizes a Gate
type Option func(*Gate)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithMetrics records gate transitions
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// New creates a gate
func New(cfg Config, linker Linker, urls URLBuilder, loop *world.Loop, server world.Server, logger *zap.Logger, opts ...Option) *Gate {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 5 * time.Second
	}
	if cfg.Messages == (Messages{}) {
		cfg.Messages = DefaultMessages()
	}

	allowed := make(map[string]bool, len(cfg.AllowedCommands))
	for _, c := range cfg.AllowedCommands {
		allowed[normalizeCommand(c)] = true
	}

	g := &Gate{
		cfg:      cfg,
		allowed:  allowed,
		linker:   linker,
		urls:     urls,
		loop:     loop,
		server:   server,
		registry: NewRegistry(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BeginCheck registers a connection at handshake and starts its pre-login check.
// The check is bounded by the configured timeout and fails closed.
func (g *Gate) BeginCheck(ctx context.Context, id world.ConnID, playerID uuid.UUID, username string) {
	conn, created := g.registry.open(id, playerID, username)
	if !created {
		return
	}
	g.record(StatePendingCheck.String())

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		conn.resolve(g.check(ctx, playerID))
	}()
}

// Forget drops a connection whose handshake failed before the player joined
func (g *Gate) Forget(id world.ConnID) {
	g.registry.close(id)
}

func (g *Gate) check(ctx context.Context, playerID uuid.UUID) models.PreLoginDecision {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CheckTimeout)
	defer cancel()

	result := make(chan models.PreLoginDecision, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		result <- g.linker.PreLoginDecision(ctx, playerID)
	}()

	select {
	case decision := <-result:
		if decision == nil {
			return models.Deny{Reason: models.DenyUnavailable, Message: g.cfg.Messages.CheckFailed}
		}
		return decision
	case <-ctx.Done():
		g.logger.Warn("pre-login check timed out",
			zap.String("player_id", playerID.String()),
			zap.Duration("timeout", g.cfg.CheckTimeout),
		)
		return models.Deny{Reason: models.DenyTimeout, Message: g.cfg.Messages.CheckFailed}
	}
}

// Handle applies the gate to a world event. It must run on the loop.
func (g *Gate) Handle(ev world.Event) {
	switch ev := ev.(type) {
	case *world.JoinEvent:
		g.onJoin(ev.Player)
	case *world.QuitEvent:
		g.onQuit(ev.Player)
	case *world.ChatEvent:
		if g.quarantined(ev.Player) {
			ev.Cancel()
			ev.Player.SendMessage(g.cfg.Messages.Blocked)
		}
	case *world.CommandEvent:
		g.onCommand(ev)
	case *world.InteractEvent:
		if g.quarantined(ev.Player) {
			ev.Cancel()
		}
	case *world.DropItemEvent:
		if g.quarantined(ev.Player) {
			ev.Cancel()
		}
	case *world.DamageEvent:
		if g.quarantined(ev.Player) || (ev.Attacker != nil && g.quarantined(ev.Attacker)) {
			ev.Cancel()
		}
	case *world.HungerEvent:
		if ev.To < ev.From && g.quarantined(ev.Player) {
			ev.Cancel()
		}
	case *world.StanceEvent:
		if g.quarantined(ev.Player) {
			ev.Cancel()
		}
	case *world.MoveEvent:
		g.confine(ev.Player, ev.To, &ev.Cancellable)
	case *world.TeleportEvent:
		g.confine(ev.Player, ev.To, &ev.Cancellable)
	}
}

func (g *Gate) onJoin(p world.Player) {
	conn, ok := g.registry.get(p.Conn())
	if !ok {
		g.logger.Warn("join without pre-login check", zap.String("player_id", p.ID().String()))
		g.BeginCheck(context.Background(), p.Conn(), p.ID(), p.Name())
		conn, _ = g.registry.get(p.Conn())
	}
	if conn.State() != StatePendingCheck {
		return
	}
	conn.player = p

	// Allow is only decided for a record holding both links; everything else goes
	// through quarantine so an optional link is still confirmed in-world.
	if decision, ok := conn.resolved(); ok {
		if _, allow := decision.(models.Allow); allow {
			conn.setState(StateReleased)
			g.hideQuarantinedFrom(p)
			g.record(StateReleased.String())
			return
		}
	}

	g.quarantine(conn)
}

func (g *Gate) quarantine(conn *connection) {
	p := conn.player
	now := g.now()
	conn.session = &session{
		snapshot:  takeSnapshot(p, now),
		createdAt: now,
	}
	conn.setState(StateQuarantined)

	for _, other := range g.server.OnlinePlayers() {
		if other.Conn() == p.Conn() {
			continue
		}
		p.HidePlayer(other)
		other.HidePlayer(p)
	}

	p.Teleport(g.cfg.Sandbox)
	p.SetGameMode(world.GameModeAdventure)
	p.SetFlying(false)
	p.SetAllowFlight(false)
	p.SetInvulnerable(true)
	p.SetCollidable(false)

	g.logger.Info("player quarantined",
		zap.String("player_id", conn.playerID.String()),
		zap.String("conn_id", conn.id.String()),
	)
	g.record(StateQuarantined.String())

	g.refresh(conn, false)
}

// hideQuarantinedFrom keeps a released joiner and every quarantined player apart
func (g *Gate) hideQuarantinedFrom(p world.Player) {
	for _, other := range g.server.OnlinePlayers() {
		if other.Conn() == p.Conn() || !g.quarantined(other) {
			continue
		}
		p.HidePlayer(other)
		other.HidePlayer(p)
	}
}

func (g *Gate) onQuit(p world.Player) {
	conn, ok := g.registry.close(p.Conn())
	if !ok {
		return
	}

	if s := conn.session; s != nil {
		s.stopReturn()
		if s.snapshot.restorable(g.server, g.now(), g.cfg.SnapshotMaxAge) {
			s.snapshot.apply(p)
		}
		conn.session = nil
	}

	g.logger.Debug("connection closed",
		zap.String("player_id", conn.playerID.String()),
		zap.String("state", conn.State().String()),
	)
	g.record("closed")
}

func (g *Gate) onCommand(ev *world.CommandEvent) {
	conn, ok := g.registry.get(ev.Player.Conn())
	if !ok || conn.State() != StateQuarantined {
		return
	}

	name := normalizeCommand(ev.Command)
	if name == normalizeCommand(g.cfg.SkipCommand) {
		ev.Cancel()
		g.skip(conn)
		return
	}
	if g.allowed[name] {
		return
	}

	ev.Cancel()
	ev.Player.SendMessage(g.cfg.Messages.Blocked)
}

func (g *Gate) skip(conn *connection) {
	p := conn.player
	if !admits(conn.latest) || !conn.status.Discord || conn.status.Rank || !g.cfg.RankOptional {
		p.SendMessage(g.cfg.Messages.SkipUnavailable)
		return
	}

	switch stage := conn.session.ladder.advance(); stage {
	case askTwo:
		p.SendMessage(fmt.Sprintf(g.cfg.Messages.SkipConfirm, g.cfg.SkipCommand, 1))
	case askThree:
		p.SendMessage(fmt.Sprintf(g.cfg.Messages.SkipConfirm, g.cfg.SkipCommand, 2))
	case skipped:
		conn.session.skip = true
		p.SendMessage(fmt.Sprintf(g.cfg.Messages.Skipped, g.cfg.RankProvider))
		g.logger.Info("optional link skipped",
			zap.String("player_id", conn.playerID.String()),
			zap.String("provider", g.cfg.RankProvider),
		)
		if g.eligible(conn) {
			g.release(conn)
		}
	}
}

// confine cancels movement leaving the sandbox and schedules a return move
func (g *Gate) confine(p world.Player, to world.Location, c *world.Cancellable) {
	conn, ok := g.registry.get(p.Conn())
	if !ok || conn.State() != StateQuarantined {
		return
	}
	if to.Within(g.cfg.Sandbox, g.cfg.SandboxRadius) {
		return
	}

	c.Cancel()

	s := conn.session
	if s.cancelReturn != nil {
		return
	}
	s.cancelReturn = g.loop.After(g.cfg.ReturnDelay, func() {
		if conn.session != s || conn.State() != StateQuarantined {
			return
		}
		s.cancelReturn = nil
		p.Teleport(g.cfg.Sandbox)
	})
}

// refresh consumes any approved ticket, reloads the link status and schedules an
// evaluation on the loop. recheck recomputes the pre-login decision first.
func (g *Gate) refresh(conn *connection, recheck bool) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.CheckTimeout)
		defer cancel()

		decision, err := conn.await(ctx)
		if err != nil {
			decision = models.Deny{Reason: models.DenyTimeout, Message: g.cfg.Messages.CheckFailed}
		} else {
			if recheck {
				decision = g.linker.PreLoginDecision(ctx, conn.playerID)
			}
			decision = g.consume(ctx, conn, decision)
		}

		status, err := g.linker.LinkStatus(ctx, conn.playerID)
		failed := err != nil
		if failed {
			g.logger.Warn("failed to load link status",
				zap.String("player_id", conn.playerID.String()),
				zap.Error(err),
			)
			status = models.LinkStatus{}
		}

		pr := g.buildPrompt(conn, decision, status, failed)
		if err := g.loop.Submit(func() { g.evaluate(conn, decision, status, pr) }); err != nil {
			g.logger.Debug("dropping gate evaluation", zap.Error(err))
		}
	}()
}

// consume promotes an approved ticket when decision permits it and returns the
// decision recomputed against the promoted record.
func (g *Gate) consume(ctx context.Context, conn *connection, decision models.PreLoginDecision) models.PreLoginDecision {
	if !admits(decision) {
		return decision
	}

	consumed, err := g.linker.ConsumeTicket(ctx, conn.playerID)
	if err != nil {
		g.logger.Warn("failed to consume link ticket",
			zap.String("player_id", conn.playerID.String()),
			zap.Error(err),
		)
		return decision
	}
	if !consumed {
		return decision
	}
	return g.linker.PreLoginDecision(ctx, conn.playerID)
}

// evaluate releases the connection if it is eligible, or redisplays its prompts
func (g *Gate) evaluate(conn *connection, decision models.PreLoginDecision, status models.LinkStatus, pr prompt) {
	if current, ok := g.registry.get(conn.id); !ok || current != conn || conn.State() != StateQuarantined {
		return
	}

	conn.latest = decision
	conn.status = status
	if g.eligible(conn) {
		g.release(conn)
		return
	}

	conn.session.ladder.reset()
	showPrompt(conn.player, pr)
}

// eligible requires an admitting decision and both links, or Discord plus a
// confirmed skip when the rank link is optional.
func (g *Gate) eligible(conn *connection) bool {
	if !admits(conn.latest) {
		return false
	}
	s := conn.status
	skip := conn.session != nil && conn.session.skip
	return s.Discord && (s.Rank || (g.cfg.RankOptional && skip))
}

// admits reports whether a decision leaves release to the link status. Denials for
// a pending review, a denied ticket or a failed check hold the player regardless.
func admits(decision models.PreLoginDecision) bool {
	switch d := decision.(type) {
	case models.Allow, models.AllowWithTicket:
		return true
	case models.Deny:
		switch d.Reason {
		case models.DenyNotLinked, models.DenyRelinkRequired, models.DenyRankNotLinked:
			return true
		}
	}
	return false
}

func (g *Gate) release(conn *connection) {
	p := conn.player
	s := conn.session

	conn.setState(StateReleased)
	conn.session = nil
	s.stopReturn()

	if s.snapshot.restorable(g.server, g.now(), g.cfg.SnapshotMaxAge) {
		s.snapshot.apply(p)
	} else {
		applyDefaults(p, g.server.DefaultSpawn())
	}

	for _, other := range g.server.OnlinePlayers() {
		if other.Conn() == p.Conn() || g.quarantined(other) {
			continue
		}
		p.ShowPlayer(other)
		other.ShowPlayer(p)
	}

	p.SendMessage(g.cfg.Messages.Released)
	g.logger.Info("player released",
		zap.String("player_id", conn.playerID.String()),
		zap.Duration("quarantined_for", g.now().Sub(s.createdAt)),
	)
	g.record(StateReleased.String())
}

// Watch refreshes quarantined connections whenever link events arrive, until ctx
// is done or events is closed.
func (g *Gate) Watch(ctx context.Context, events <-chan linking.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			g.Notify(ev)
		}
	}
}

// Notify refreshes every quarantined connection of the event's player
func (g *Gate) Notify(ev linking.Event) {
	for _, conn := range g.registry.byPlayer(ev.PlayerID) {
		if conn.State() != StateQuarantined {
			continue
		}
		g.logger.Debug("refreshing quarantined player",
			zap.String("player_id", ev.PlayerID.String()),
			zap.String("event", string(ev.Kind)),
		)
		g.refresh(conn, true)
	}
}

// State returns the gate state of a connection
func (g *Gate) State(id world.ConnID) (State, bool) {
	conn, ok := g.registry.get(id)
	if !ok {
		return 0, false
	}
	return conn.State(), true
}

// Stats counts tracked connections per state
func (g *Gate) Stats() Stats {
	return g.registry.stats()
}

// Wait blocks until background checks and refreshes have finished
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) quarantined(p world.Player) bool {
	conn, ok := g.registry.get(p.Conn())
	return ok && conn.State() == StateQuarantined
}

func (g *Gate) record(transition string) {
	g.metrics.RecordGateTransition(transition, g.registry.stats().Quarantined)
}

func normalizeCommand(command string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(command), "/"))
}
