// Package tunnelcipher composes the protocol plugin, the stream
// cipher, and the obfs plugin into the two pipelines the session
// engine drives: Encrypt on the way to upstream, Decrypt on the way
// back.
package tunnelcipher

import (
	"crypto/rand"
	"fmt"

	"ssrlocal/internal/cipher"
	"ssrlocal/internal/obfs"
	"ssrlocal/internal/sessionerr"
)

// Pipeline is bound to one connection: it owns the encrypt and decrypt
// cipher contexts, the protocol plugin instance, and the obfs plugin
// instance for that connection alone (each carries its own packet
// counter and rolling receive buffer, so pipelines are never shared).
type Pipeline struct {
	method string
	key    []byte
	ivLen  int

	encCtx *cipher.Context
	decCtx *cipher.Context

	protocol obfs.Protocol
	obfsImpl obfs.Obfs

	ivSent bool
}

// New builds a Pipeline for one connection: it generates a fresh IV
// for the outgoing direction, derives the stream-cipher key from
// password, and resolves the named protocol/obfs plugins, wiring
// info.Overhead = protocol.GetOverhead() + obfs.GetOverhead() before
// the protocol plugin's SetServerInfo is called, matching the order
// the reference tunnel cipher composition uses.
func New(method, password, protocolName, protocolParam, obfsName, obfsParam, host string, port uint16) (*Pipeline, error) {
	keyLen, ivLen, err := cipher.KeyIVLen(method)
	if err != nil {
		return nil, err
	}
	key := cipher.EVPBytesToKey(password, keyLen)

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("tunnelcipher: generate iv: %w", err)
	}

	encCtx, err := cipher.NewContext(method, key, iv)
	if err != nil {
		return nil, err
	}

	protocolImpl, err := obfs.NewProtocol(protocolName)
	if err != nil {
		return nil, err
	}
	obfsImpl, err := obfs.NewObfs(obfsName)
	if err != nil {
		return nil, err
	}

	overhead := protocolImpl.GetOverhead() + obfsImpl.GetOverhead()
	info := &obfs.ServerInfo{
		Host:     host,
		Port:     port,
		Key:      key,
		IV:       iv,
		Param:    protocolParam,
		TCPMSS:   1452,
		Overhead: overhead,
	}
	protocolImpl.SetServerInfo(info)

	obfsInfo := *info
	obfsInfo.Param = obfsParam
	obfsImpl.SetServerInfo(&obfsInfo)

	return &Pipeline{
		method:   method,
		key:      key,
		ivLen:    ivLen,
		encCtx:   encCtx,
		protocol: protocolImpl,
		obfsImpl: obfsImpl,
	}, nil
}

// Encrypt runs protocol.client_pre_encrypt -> stream_cipher_encrypt ->
// obfs.client_encode, in that fixed order, and prepends the
// connection's IV to the very first chunk produced.
func (p *Pipeline) Encrypt(data []byte) ([]byte, error) {
	pre, err := p.protocol.ClientPreEncrypt(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessionerr.ErrProtocol, err)
	}

	cipherText := make([]byte, len(pre))
	p.encCtx.Transform(cipherText, pre)

	if !p.ivSent {
		p.ivSent = true
		cipherText = append(append([]byte{}, p.encCtx.IV()...), cipherText...)
	}

	encoded, err := p.obfsImpl.ClientEncode(cipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessionerr.ErrObfsDecode, err)
	}
	return encoded, nil
}

// Decrypt runs obfs.client_decode first; if it asks for an
// acknowledgement, the caller must write Feedback to the upstream
// socket (never to the downstream one). If any ciphertext remains it
// runs stream_cipher_decrypt, then protocol.client_post_decrypt.
func (p *Pipeline) Decrypt(data []byte) (out []byte, feedback []byte, err error) {
	decoded, needFeedback, err := p.obfsImpl.ClientDecode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", sessionerr.ErrObfsDecode, err)
	}
	if needFeedback {
		feedback, err = p.obfsImpl.ClientEncode(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", sessionerr.ErrObfsDecode, err)
		}
	}

	if len(decoded) == 0 {
		return nil, feedback, nil
	}

	if p.decCtx == nil {
		if len(decoded) < p.ivLen {
			return nil, feedback, fmt.Errorf("%w: truncated iv on first response", sessionerr.ErrInvalidPassword)
		}
		serverIV := decoded[:p.ivLen]
		decoded = decoded[p.ivLen:]
		ctx, err := cipher.NewDecryptContext(p.method, p.key, serverIV)
		if err != nil {
			return nil, feedback, fmt.Errorf("%w: %v", sessionerr.ErrInvalidPassword, err)
		}
		p.decCtx = ctx
		if len(decoded) == 0 {
			return nil, feedback, nil
		}
	}

	plain := make([]byte, len(decoded))
	p.decCtx.Transform(plain, decoded)

	post, err := p.protocol.ClientPostDecrypt(plain)
	if err != nil {
		return nil, feedback, fmt.Errorf("%w: %v", sessionerr.ErrProtocol, err)
	}
	return post, feedback, nil
}
