// Package sessionerr classifies the errors a session can hit so the
// session engine can decide whether a SOCKS5 reply is still possible
// or whether the connection must simply be killed.
package sessionerr

import "errors"

// Sentinel errors wrapped by fmt.Errorf at their point of origin.
// Use errors.Is against these to classify a failure.
var (
	// ErrProtocol covers protocol-plugin framing failures: bad HMAC,
	// bad length field, client_post_decrypt rejecting a chunk.
	ErrProtocol = errors.New("sessionerr: protocol framing rejected")

	// ErrInvalidPassword covers stream-cipher failures — in SSR these
	// never surface as a MAC failure (the cipher has none); they
	// surface as garbage downstream, caught by the protocol or obfs
	// layer above it and reported here for a uniform reply decision.
	ErrInvalidPassword = errors.New("sessionerr: invalid password")

	// ErrObfsDecode covers the obfs layer's client_decode failing to
	// recognise its own framing.
	ErrObfsDecode = errors.New("sessionerr: obfs decode rejected")

	// ErrTransport covers the underlying socket: connect failure, a
	// reset, or an unexpected EOF mid-frame.
	ErrTransport = errors.New("sessionerr: transport failure")

	// ErrTimeout covers idle-timeout expiry on either socket.
	ErrTimeout = errors.New("sessionerr: idle timeout")

	// ErrCancelled covers a session torn down by its owner (listener
	// shutdown) rather than by a protocol or transport event.
	ErrCancelled = errors.New("sessionerr: session cancelled")
)
