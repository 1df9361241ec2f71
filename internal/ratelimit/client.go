package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter limits requests per client key (usually the remote address).
type ClientLimiter struct {
	perMinute int
	idleTTL   time.Duration
	clients   map[string]*clientEntry
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewClientLimiter allows perMinute requests per client with a burst of the same size
func NewClientLimiter(perMinute int, logger *zap.Logger) *ClientLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &ClientLimiter{
		perMinute: perMinute,
		idleTTL:   10 * time.Minute,
		clients:   make(map[string]*clientEntry),
		logger:    logger,
	}
}

// Allow reports whether the client may make a request now
func (cl *ClientLimiter) Allow(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	entry, ok := cl.clients[key]
	if !ok {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cl.perMinute)), cl.perMinute),
		}
		cl.clients[key] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// Sweep drops clients idle for longer than the idle TTL
func (cl *ClientLimiter) Sweep(now time.Time) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	removed := 0
	for key, entry := range cl.clients {
		if now.Sub(entry.lastSeen) > cl.idleTTL {
			delete(cl.clients, key)
			removed++
		}
	}
	return removed
}

// StartSweeper periodically drops idle clients until ctx is done
func (cl *ClientLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case now := <-ticker.C:
				if removed := cl.Sweep(now); removed > 0 {
					cl.logger.Debug("dropped idle rate limit clients", zap.Int("count", removed))
				}
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// Len returns the number of tracked clients
func (cl *ClientLimiter) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.clients)
}
