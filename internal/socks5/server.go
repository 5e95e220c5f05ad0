package socks5

import (
	"context"
	"log"
	"net"
	"sync/atomic"
)

// Listener is the accept-loop glue: out of scope for the session
// engine itself (see spec's Non-goals), but every binary needs
// something handing accepted connections to a session constructor.
type Listener struct {
	Addr    string
	Logger  *log.Logger
	Handler func(ctx context.Context, conn net.Conn)

	listener net.Listener
	closed   int32
}

// ListenAndServe accepts connections on Addr until Close is called,
// handing each to Handler on its own goroutine.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return err
	}
	l.listener = ln
	l.Logger.Printf("socks5 proxy listening on %s", l.Addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&l.closed) == 1 {
				return nil
			}
			continue
		}
		go l.Handler(ctx, conn)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	atomic.StoreInt32(&l.closed, 1)
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
