// Package env holds the process-wide state every session shares:
// immutable configuration, and the bookkeeping that must stay
// consistent across concurrently running tunnels — the live tunnel
// set used for diagnostics and graceful shutdown.
package env

import (
	"log"
	"sync"

	"ssrlocal/internal/config"
)

// Tunnel is the minimal surface env needs from a live tunnel to track
// and shut it down; internal/session.Session satisfies it.
type Tunnel interface {
	Close()
}

// Environment is constructed once at startup and threaded through
// every session; it is read-only after New returns except for the
// live tunnel set, which is safe for concurrent use.
type Environment struct {
	Config *config.Config
	Logger *log.Logger

	mu      sync.Mutex
	tunnels map[Tunnel]struct{}
}

// New builds an Environment bound to cfg, logging through logger.
func New(cfg *config.Config, logger *log.Logger) *Environment {
	return &Environment{
		Config:  cfg,
		Logger:  logger,
		tunnels: make(map[Tunnel]struct{}),
	}
}

// Track registers a tunnel as live; call when a session begins
// proxying so Shutdown can reach it.
func (e *Environment) Track(t Tunnel) {
	e.mu.Lock()
	e.tunnels[t] = struct{}{}
	e.mu.Unlock()
}

// Untrack removes a tunnel from the live set; call from the tunnel's
// own teardown path once it reaches its terminal state.
func (e *Environment) Untrack(t Tunnel) {
	e.mu.Lock()
	delete(e.tunnels, t)
	e.mu.Unlock()
}

// Live reports how many tunnels are currently tracked.
func (e *Environment) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tunnels)
}

// Shutdown closes every tracked tunnel, used when the listener stops
// accepting new connections and existing ones must be torn down.
func (e *Environment) Shutdown() {
	e.mu.Lock()
	tunnels := make([]Tunnel, 0, len(e.tunnels))
	for t := range e.tunnels {
		tunnels = append(tunnels, t)
	}
	e.mu.Unlock()

	for _, t := range tunnels {
		t.Close()
	}
}
