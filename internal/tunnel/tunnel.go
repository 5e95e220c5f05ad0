// Package tunnel defines the per-connection data model the session
// engine operates on: the parser state, the two socket contexts, and
// the tunnel cipher that together make up one proxied connection.
package tunnel

import (
	"sync"
	"sync/atomic"

	"ssrlocal/internal/socket"
	"ssrlocal/internal/socks5"
	"ssrlocal/internal/tunnelcipher"
)

// State is the session engine's state, one value per §4.1 of the
// engine's state machine.
type State int

const (
	StateHandshake State = iota
	StateHandshakeAuth
	StateReqStart
	StateReqParse
	StateReqUDPAssoc
	StateReqLookup
	StateReqConnect
	StateSSRAuthSent
	StateProxyStart
	StateProxy
	StateDead
	StateKill
)

// Tunnel is the data model for one proxied connection: the fields
// every session transition reads or mutates.
type Tunnel struct {
	State State

	Parser *socks5.Parser

	Incoming *socket.Context // client-facing SOCKS5 socket
	Outgoing *socket.Context // upstream SSR server socket

	Cipher *tunnelcipher.Pipeline

	// InitialPackage is the SOCKS5 address package built at
	// req_parse, cloned and run through the cipher at req_connect.
	InitialPackage []byte

	stateMu  sync.Mutex
	refCount int32
}

// SetState transitions the tunnel to s. Safe to call from any
// goroutine: the idle timer and both proxy-phase pipe goroutines can
// all race to tear down the same tunnel.
func (t *Tunnel) SetState(s State) {
	t.stateMu.Lock()
	t.State = s
	t.stateMu.Unlock()
}

// GetState reads the tunnel's current state.
func (t *Tunnel) GetState() State {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.State
}

// AddRef and Release keep the tunnel's reference count: the session
// adds one reference for Incoming and one for Outgoing. Close does not
// call Release, and removal from the live set is done by the session's
// own Close, not by the count reaching zero.
func (t *Tunnel) AddRef(n int32) {
	atomic.AddInt32(&t.refCount, n)
}

func (t *Tunnel) Release() int32 {
	return atomic.AddInt32(&t.refCount, -1)
}

func (t *Tunnel) RefCount() int32 {
	return atomic.LoadInt32(&t.refCount)
}

// Close closes both sockets; safe to call more than once.
func (t *Tunnel) Close() {
	if t.Incoming != nil {
		t.Incoming.Close()
	}
	if t.Outgoing != nil {
		t.Outgoing.Close()
	}
	t.SetState(StateDead)
}
