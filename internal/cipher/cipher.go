// Package cipher implements the stream-cipher layer of the tunnel: a
// symmetric encrypt/decrypt context keyed by an EVP_BytesToKey-style
// derivation from the configured password, using an IV supplied by the
// caller. Generating that IV and prepending it to the first outgoing
// payload is done by internal/tunnelcipher.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// Method names recognised by the config's "method" option.
const (
	MethodAES128CFB    = "aes-128-cfb"
	MethodAES192CFB    = "aes-192-cfb"
	MethodAES256CFB    = "aes-256-cfb"
	MethodChaCha20     = "chacha20"
	MethodChaCha20IETF = "chacha20-ietf"
	MethodRC4MD5       = "rc4-md5"
)

type methodInfo struct {
	keyLen int
	ivLen  int
}

// x/crypto/chacha20 only implements the IETF 12-byte-nonce and the
// XChaCha20 24-byte-nonce variants, not the original 8-byte-nonce
// construction SSR's "chacha20" historically used; both "chacha20"
// and "chacha20-ietf" are therefore served by the IETF construction
// here (documented in DESIGN.md).
var methods = map[string]methodInfo{
	MethodAES128CFB:    {keyLen: 16, ivLen: 16},
	MethodAES192CFB:    {keyLen: 24, ivLen: 16},
	MethodAES256CFB:    {keyLen: 32, ivLen: 16},
	MethodChaCha20:     {keyLen: 32, ivLen: chacha20.NonceSize},
	MethodChaCha20IETF: {keyLen: 32, ivLen: chacha20.NonceSize},
	MethodRC4MD5:       {keyLen: 16, ivLen: 16},
}

// KeyIVLen reports the key and IV lengths a method requires.
func KeyIVLen(method string) (keyLen, ivLen int, err error) {
	info, ok := methods[method]
	if !ok {
		return 0, 0, fmt.Errorf("cipher: unknown method %q", method)
	}
	return info.keyLen, info.ivLen, nil
}

// EVPBytesToKey derives keyLen bytes from password the way OpenSSL's
// EVP_BytesToKey does with MD5 and no salt: repeatedly hash the
// previous digest concatenated with the password until there are
// enough bytes.
func EVPBytesToKey(password string, keyLen int) []byte {
	var (
		out  []byte
		prev []byte
	)
	pw := []byte(password)
	for len(out) < keyLen {
		h := md5.New()
		h.Write(prev)
		h.Write(pw)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:keyLen]
}

// streamCipher abstracts the three primitive families behind one
// interface so Context doesn't need to type-switch per call.
type streamCipher interface {
	XORKeyStream(dst, src []byte)
}

// Context is a one-directional stream-cipher session: a key schedule
// plus the running keystream state machine for either encryption or
// decryption. Encrypt and Decrypt contexts are independent; Tunnel
// cipher owns one of each.
type Context struct {
	method string
	key    []byte
	iv     []byte
	stream streamCipher
}

// NewContext builds a cipher Context for method, keyed by key, using
// iv as the initialization vector. Both key and iv must already be
// the correct length for method (see KeyIVLen).
func NewContext(method string, key, iv []byte) (*Context, error) {
	info, ok := methods[method]
	if !ok {
		return nil, fmt.Errorf("cipher: unknown method %q", method)
	}
	if len(key) != info.keyLen {
		return nil, fmt.Errorf("cipher: %s requires a %d-byte key, got %d", method, info.keyLen, len(key))
	}
	if len(iv) != info.ivLen {
		return nil, fmt.Errorf("cipher: %s requires a %d-byte iv, got %d", method, info.ivLen, len(iv))
	}

	stream, err := newStream(method, key, iv)
	if err != nil {
		return nil, err
	}
	return &Context{method: method, key: key, iv: iv, stream: stream}, nil
}

func newStream(method string, key, iv []byte) (streamCipher, error) {
	switch method {
	case MethodAES128CFB, MethodAES192CFB, MethodAES256CFB:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("cipher: aes key schedule: %w", err)
		}
		return cipher.NewCFBEncrypter(block, iv), nil
	case MethodChaCha20, MethodChaCha20IETF:
		c, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, fmt.Errorf("cipher: chacha20 init: %w", err)
		}
		return c, nil
	case MethodRC4MD5:
		h := md5.New()
		h.Write(key)
		h.Write(iv)
		rc4Key := h.Sum(nil)
		c, err := rc4.NewCipher(rc4Key)
		if err != nil {
			return nil, fmt.Errorf("cipher: rc4 key schedule: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("cipher: unknown method %q", method)
	}
}

// Transform XORs src into dst in place with the running keystream.
// CFB mode note: the teacher's AEAD use encrypted and decrypted with
// distinct primitives; here encrypt and decrypt contexts are built
// with the complementary CFB encrypter/decrypter at construction time
// (see NewDecryptContext), so Transform is symmetric from the caller's
// perspective regardless of method.
func (c *Context) Transform(dst, src []byte) {
	c.stream.XORKeyStream(dst, src)
}

// NewDecryptContext mirrors NewContext but wires CFB's decrypter
// instead of its encrypter; ChaCha20 and RC4 are self-inverse so they
// reuse newStream directly.
func NewDecryptContext(method string, key, iv []byte) (*Context, error) {
	info, ok := methods[method]
	if !ok {
		return nil, fmt.Errorf("cipher: unknown method %q", method)
	}
	if len(key) != info.keyLen || len(iv) != info.ivLen {
		return nil, fmt.Errorf("cipher: %s key/iv length mismatch", method)
	}

	switch method {
	case MethodAES128CFB, MethodAES192CFB, MethodAES256CFB:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("cipher: aes key schedule: %w", err)
		}
		return &Context{method: method, key: key, iv: iv, stream: cipher.NewCFBDecrypter(block, iv)}, nil
	default:
		stream, err := newStream(method, key, iv)
		if err != nil {
			return nil, err
		}
		return &Context{method: method, key: key, iv: iv, stream: stream}, nil
	}
}

// IV returns the initialization vector this context was built with,
// the bytes a fresh encrypt context must prepend to its first output
// chunk per connection.
func (c *Context) IV() []byte { return c.iv }
