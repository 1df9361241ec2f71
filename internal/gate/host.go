package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parsascontentcorner/linkgate/internal/linking"
	"github.com/parsascontentcorner/linkgate/internal/world"
)

// Host wires a gate into a game server: it owns the world loop, the event bus
// the server posts into, and the subscription to link events.
type Host struct {
	loop   *world.Loop
	bus    *world.Bus
	gate   *Gate
	events *linking.Broadcaster
	logger *zap.Logger
}

// NewHost creates the loop, bus and gate for server. The bus delivers every
// world event to the gate.
func NewHost(cfg Config, service *linking.Service, urls URLBuilder, server world.Server, queueSize int, logger *zap.Logger, opts ...Option) *Host {
	loop := world.NewLoop(queueSize, logger.Named("world"))
	bus := world.NewBus(loop)
	g := New(cfg, service, urls, loop, server, logger.Named("gate"), opts...)
	bus.Subscribe(g)

	return &Host{
		loop:   loop,
		bus:    bus,
		gate:   g,
		events: service.Events(),
		logger: logger,
	}
}

// Gate returns the hosted gate, for BeginCheck at handshake
func (h *Host) Gate() *Gate { return h.gate }

// Bus returns the bus the game server posts world events into
func (h *Host) Bus() *world.Bus { return h.bus }

// Loop returns the world loop
func (h *Host) Loop() *world.Loop { return h.loop }

// Run drives the loop and forwards link events to the gate until ctx is done.
// In-flight checks and refreshes are awaited before it returns.
func (h *Host) Run(ctx context.Context) error {
	events := h.events.Subscribe()
	defer h.events.Unsubscribe(events)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := h.loop.Run(gctx); err != nil {
			return fmt.Errorf("world loop: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		h.gate.Watch(gctx, events)
		return nil
	})

	err := g.Wait()
	h.gate.Wait()
	h.logger.Info("gate host stopped")
	return err
}
