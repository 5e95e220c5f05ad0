// Package session drives one proxied connection through the SOCKS5
// handshake and into the steady-state SSR-tunnelled proxy phase. The
// reference implementation expresses this as a libuv callback state
// machine over non-blocking handles; this package re-expresses the
// same states as a single owned goroutine per connection using
// blocking reads, with no read or write deadlines set; a per-socket
// idle timer closes the connection instead. This is the idiomatic Go
// shape for "one goroutine owns one connection's lifecycle."
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"ssrlocal/internal/addrutil"
	"ssrlocal/internal/config"
	"ssrlocal/internal/env"
	"ssrlocal/internal/sessionerr"
	"ssrlocal/internal/socket"
	"ssrlocal/internal/socks5"
	"ssrlocal/internal/tunnel"
	"ssrlocal/internal/tunnelcipher"
)

// Session owns one Tunnel from accept through teardown.
type Session struct {
	tunnel *tunnel.Tunnel
	cfg    *config.Config
	env    *env.Environment
	logger *log.Logger
}

// New constructs a Session for an accepted client connection. The
// session does not start running until Run is called.
func New(clientConn net.Conn, cfg *config.Config, environment *env.Environment, logger *log.Logger) *Session {
	t := &tunnel.Tunnel{
		State:  tunnel.StateHandshake,
		Parser: socks5.NewParser(),
	}
	s := &Session{tunnel: t, cfg: cfg, env: environment, logger: logger}
	t.Incoming = socket.New(clientConn, cfg.IdleTimeout.Duration, s.onIdle)
	t.AddRef(1)
	return s
}

// onIdle fires when either socket's idle timer expires with no read
// or write progress for cfg.IdleTimeout; it forces the same shutdown
// path a fatal I/O error would.
func (s *Session) onIdle() {
	s.logger.Printf("session: idle timeout")
	s.Close()
}

// Close tears the session's sockets down; safe to call more than
// once and from the session's own teardown path, including
// concurrently from the idle timer and either proxy-phase goroutine.
func (s *Session) Close() {
	s.tunnel.Close()
	s.env.Untrack(s)
}

// Run drives the session to completion: handshake, request parse,
// upstream connect, and the steady-state proxy loop. It returns once
// the connection is fully torn down.
func (s *Session) Run(ctx context.Context) {
	defer s.Close()

	if err := s.handshake(); err != nil {
		s.logger.Printf("session: handshake: %v", err)
		return
	}

	s.tunnel.SetState(tunnel.StateReqStart)
	s.tunnel.SetState(tunnel.StateReqParse)
	cmd, destAddr, atyp, destPort, err := s.reqParse()
	if err != nil {
		s.logger.Printf("session: request parse: %v", err)
		return
	}

	switch cmd {
	case socks5.CmdUDPAssoc:
		s.tunnel.SetState(tunnel.StateReqUDPAssoc)
		s.reqUDPAssoc()
		return
	case socks5.CmdBind:
		s.tunnel.SetState(tunnel.StateKill)
		s.logger.Printf("session: BIND unsupported")
		return
	}

	s.tunnel.InitialPackage = addrutil.Package(atyp, destAddr, destPort)

	pipeline, err := tunnelcipher.New(
		s.cfg.Method, s.cfg.Password,
		s.cfg.Protocol, s.cfg.ProtocolParam,
		s.cfg.Obfs, s.cfg.ObfsParam,
		s.cfg.RemoteHost, uint16(s.cfg.RemotePort),
	)
	if err != nil {
		s.logger.Printf("session: cipher init: %v", err)
		s.writeReply(socks5.RepFailure)
		s.tunnel.SetState(tunnel.StateKill)
		return
	}
	s.tunnel.Cipher = pipeline

	s.tunnel.SetState(tunnel.StateReqLookup)
	host, err := s.resolveUpstreamHost(ctx)
	if err != nil {
		s.logger.Printf("session: resolve upstream: %v", err)
		s.writeReply(socks5.RepHostUnreachable)
		s.tunnel.SetState(tunnel.StateKill)
		return
	}

	s.tunnel.SetState(tunnel.StateReqConnect)
	remoteConn, err := s.dialUpstream(ctx, host)
	if err != nil {
		s.logger.Printf("session: connect upstream: %v", err)
		s.writeReply(socks5.RepConnRefused)
		s.tunnel.SetState(tunnel.StateKill)
		return
	}
	s.tunnel.Outgoing = socket.New(remoteConn, s.cfg.IdleTimeout.Duration, s.onIdle)
	s.tunnel.AddRef(1)

	if err := s.ssrAuthSend(); err != nil {
		s.logger.Printf("session: ssr auth send: %v", err)
		return
	}
	s.tunnel.SetState(tunnel.StateSSRAuthSent)

	if err := s.writeReply(socks5.RepSuccess); err != nil {
		s.logger.Printf("session: success reply: %v", err)
		return
	}

	s.tunnel.SetState(tunnel.StateProxyStart)
	s.env.Track(s)
	s.tunnel.SetState(tunnel.StateProxy)
	s.proxy()
}

func (s *Session) handshake() error {
	buf := make([]byte, socket.BufferSize)
	for {
		n, err := s.tunnel.Incoming.Read(buf)
		if n == 0 && err != nil {
			return fmt.Errorf("%w: %v", sessionerr.ErrTransport, err)
		}
		status, _ := s.tunnel.Parser.Feed(buf[:n])
		switch status {
		case socks5.NeedMore:
			continue
		case socks5.AuthSelect:
			methods := s.tunnel.Parser.Methods()
			selected := byte(socks5.AuthNoAccept)
			for _, m := range methods {
				if m == socks5.AuthNone {
					selected = socks5.AuthNone
					break
				}
			}
			if _, werr := s.tunnel.Incoming.Write(socks5.GreetingReply(selected)); werr != nil {
				return fmt.Errorf("%w: %v", sessionerr.ErrTransport, werr)
			}
			if selected == socks5.AuthNoAccept {
				s.tunnel.SetState(tunnel.StateKill)
				return fmt.Errorf("%w: no acceptable auth method offered", sessionerr.ErrProtocol)
			}
			s.tunnel.Parser.ResetForRequest()
			return nil
		case socks5.Error:
			return fmt.Errorf("%w: %v", sessionerr.ErrProtocol, s.tunnel.Parser.Err())
		}
	}
}

func (s *Session) reqParse() (cmd byte, destAddr []byte, atyp byte, destPort uint16, err error) {
	buf := make([]byte, socket.BufferSize)
	for {
		n, rerr := s.tunnel.Incoming.Read(buf)
		if n == 0 && rerr != nil {
			return 0, nil, 0, 0, fmt.Errorf("%w: %v", sessionerr.ErrTransport, rerr)
		}
		status, consumed := s.tunnel.Parser.Feed(buf[:n])
		switch status {
		case socks5.NeedMore:
			continue
		case socks5.ExecCmd:
			if consumed != n {
				return 0, nil, 0, 0, fmt.Errorf("%w: junk after request", sessionerr.ErrProtocol)
			}
			p := s.tunnel.Parser
			return p.Command, p.DestAddr, p.AddressType, p.DestPort, nil
		case socks5.Error:
			return 0, nil, 0, 0, fmt.Errorf("%w: %v", sessionerr.ErrProtocol, s.tunnel.Parser.Err())
		}
	}
}

func (s *Session) reqUDPAssoc() {
	local, ok := s.tunnel.Incoming.Conn().LocalAddr().(*net.TCPAddr)
	if !ok {
		return
	}
	rep := byte(socks5.RepCmdNotSupported)
	if s.cfg.UDP {
		rep = socks5.RepSuccess
	}
	reply := socks5.UDPAssocReply(rep, local.IP, uint16(local.Port))
	if _, err := s.tunnel.Incoming.Write(reply); err != nil {
		return
	}
	// No bytes are proxied; just wait for the client to close.
	buf := make([]byte, 256)
	for {
		if _, err := s.tunnel.Incoming.Read(buf); err != nil {
			return
		}
	}
}

// resolveUpstreamHost is the req_lookup step: a literal IP skips DNS
// entirely, otherwise it resolves remote_host to its first answer.
// Its error maps to the SOCKS5 host-unreachable reply (05 04), kept
// distinct from a dial failure (05 05) per spec §4.1.
func (s *Session) resolveUpstreamHost(ctx context.Context) (string, error) {
	host := s.cfg.RemoteHost
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	resolved, err := addrutil.Resolve(ctx, host)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}

// dialUpstream is the req_connect step: TCP-dialing an already
// resolved host. Its error maps to the SOCKS5 connection-refused
// reply (05 05).
func (s *Session) dialUpstream(ctx context.Context, host string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	return dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", s.cfg.RemotePort)))
}

func (s *Session) ssrAuthSend() error {
	pkg := append([]byte{}, s.tunnel.InitialPackage...)
	ciphertext, err := s.tunnel.Cipher.Encrypt(pkg)
	if err != nil {
		return fmt.Errorf("%w: %v", sessionerr.ErrInvalidPassword, err)
	}
	if _, err := s.tunnel.Outgoing.Write(ciphertext); err != nil {
		return fmt.Errorf("%w: %v", sessionerr.ErrTransport, err)
	}
	return nil
}

func (s *Session) writeReply(rep byte) error {
	if rep != socks5.RepSuccess {
		_, err := s.tunnel.Incoming.Write(socks5.Reply(rep))
		return err
	}
	out := make([]byte, 0, 3+len(s.tunnel.InitialPackage))
	out = append(out, socks5.Version, socks5.RepSuccess, 0x00)
	out = append(out, s.tunnel.InitialPackage...)
	_, err := s.tunnel.Incoming.Write(out)
	return err
}

// proxy is the steady-state phase: two goroutines each pipe one
// direction through the tunnel cipher, implicit back-pressure coming
// from each direction blocking on its own Write before its next Read.
func (s *Session) proxy() {
	done := make(chan struct{}, 2)

	go s.pipe(s.tunnel.Incoming, s.tunnel.Outgoing, s.tunnel.Cipher.Encrypt, done)
	go s.pipeDecrypt(s.tunnel.Outgoing, s.tunnel.Incoming, done)

	<-done
	<-done
}

func (s *Session) pipe(src, dst *socket.Context, transform func([]byte) ([]byte, error), done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	buf := make([]byte, socket.BufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			out, terr := transform(buf[:n])
			if terr != nil {
				s.logger.Printf("session: encrypt: %v", terr)
				s.Close()
				return
			}
			if len(out) > 0 {
				if _, werr := dst.Write(out); werr != nil {
					s.Close()
					return
				}
				src.Touch()
				dst.Touch()
			}
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Printf("session: read: %v", err)
			}
			s.Close()
			return
		}
	}
}

func (s *Session) pipeDecrypt(src, dst *socket.Context, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	buf := make([]byte, socket.BufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			out, feedback, terr := s.tunnel.Cipher.Decrypt(buf[:n])
			if terr != nil {
				s.logger.Printf("session: decrypt: %v", terr)
				s.Close()
				return
			}
			if len(feedback) > 0 {
				if _, werr := src.Write(feedback); werr != nil {
					s.Close()
					return
				}
			}
			if len(out) > 0 {
				if _, werr := dst.Write(out); werr != nil {
					s.Close()
					return
				}
				src.Touch()
				dst.Touch()
			}
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Printf("session: read: %v", err)
			}
			s.Close()
			return
		}
	}
}
