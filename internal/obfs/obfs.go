// Package obfs implements the ShadowsocksR protocol and obfs plugin
// families: the pluggable framing/padding layers that sit above the
// stream cipher and disguise the tunnel's traffic shape.
package obfs

import "fmt"

// ServerInfo is the read-mostly configuration a plugin instance is
// bound to at construction, mirroring the original implementation's
// server_info_t: the upstream address, the stream-cipher key material
// the plugin may fold into its own keying, and the plugin_param string
// (obfs_param or protocol_param, depending on which family is asking).
type ServerInfo struct {
	Host string
	Port uint16

	// Key is the stream-cipher key bytes; some protocol plugins derive
	// their own per-user key from it when Param carries none.
	Key []byte
	IV  []byte

	// Param is the plugin-specific parameter string: protocol_param or
	// obfs_param, optionally of the form "uid:key".
	Param string

	// HeadLen is the heuristic SOCKS address header length. No plugin
	// in this package reads it, and tunnelcipher.New leaves it zero.
	HeadLen int

	TCPMSS int

	// Overhead is protocol.GetOverhead() + obfs.GetOverhead(), set by
	// the tunnel cipher before a plugin's SetServerInfo is called, so
	// protocol plugins can size their own chunk budget against it.
	Overhead int
}

// Protocol is the protocol-plugin half of the pipeline: it wraps or
// unwraps the framing that carries the stream-ciphered payload —
// length-prefixed chunks, checksums or HMACs, packet counters.
type Protocol interface {
	SetServerInfo(*ServerInfo)
	// ClientPreEncrypt runs before the stream cipher on the way out.
	ClientPreEncrypt(data []byte) ([]byte, error)
	// ClientPostDecrypt runs after the stream cipher on the way in.
	ClientPostDecrypt(data []byte) ([]byte, error)
	GetOverhead() int
}

// Obfs is the obfuscation-plugin half: it disguises the byte stream's
// shape (random padding, HTTP-looking headers, TLS-ticket mimicry)
// after the stream cipher on the way out, and undoes it before on the
// way in.
type Obfs interface {
	SetServerInfo(*ServerInfo)
	ClientEncode(data []byte) ([]byte, error)
	// ClientDecode returns the recovered plaintext-of-this-layer and,
	// if the obfs framing demands an acknowledgement, a feedback
	// payload the caller must write back upstream (NOT pass
	// downstream) via ClientEncode(nil) at the caller's discretion.
	ClientDecode(data []byte) (out []byte, needFeedback bool, err error)
	GetOverhead() int
}

// NewProtocol resolves a protocol plugin by the name carried in the
// config's "protocol" option.
func NewProtocol(name string) (Protocol, error) {
	switch name {
	case "", "origin":
		return &originProtocol{}, nil
	case "auth_simple":
		return newAuthSimple(), nil
	case "auth_sha1":
		return newAuthSHA1(), nil
	case "auth_sha1_v2":
		return newAuthSHA1V2(), nil
	case "auth_sha1_v4":
		return newAuthSHA1V4(), nil
	case "auth_aes128_md5":
		return newAuthAES128("auth_aes128_md5"), nil
	case "auth_aes128_sha1":
		return newAuthAES128("auth_aes128_sha1"), nil
	case "verify_simple":
		return newVerifySimple(), nil
	default:
		return nil, fmt.Errorf("obfs: unknown protocol plugin %q", name)
	}
}

// NewObfs resolves an obfs plugin by the name carried in the config's
// "obfs" option.
func NewObfs(name string) (Obfs, error) {
	switch name {
	case "", "plain", "origin":
		return &originObfs{}, nil
	case "http_simple":
		return newHTTPSimple(false), nil
	case "http_post":
		return newHTTPSimple(true), nil
	case "tls1.2_ticket_auth":
		return newTLS12TicketAuth(), nil
	default:
		return nil, fmt.Errorf("obfs: unknown obfs plugin %q", name)
	}
}
