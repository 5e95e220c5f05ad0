package obfs

import (
	"encoding/binary"
	"fmt"
	"time"

	"ssrlocal/internal/buffer"
)

// authSimple implements the "auth_simple" protocol plugin: the
// earliest SSR framing, CRC32-checksummed length-prefixed chunks with
// an auth header on the very first chunk identifying the client.
type authSimple struct {
	info *ServerInfo

	hasSentHeader bool
	gotAuthFrame  bool
	recvBuf       *buffer.Buffer
	recvID        uint32
	packID        uint32
	clientID      uint32
	connectionID  uint32
	userKey       []byte
	rng           *padRNG
}

const authSimpleAuthLen = 12 // time(4) ‖ clientID(4) ‖ connectionID(4)

func newAuthSimple() *authSimple {
	return &authSimple{
		recvBuf:      buffer.New(16384),
		clientID:     randUint32(),
		connectionID: 1,
		rng:          newPadRNG(time.Now().UnixNano()),
	}
}

func (a *authSimple) SetServerInfo(info *ServerInfo) {
	a.info = info
	a.userKey = info.Key
}

func (a *authSimple) GetOverhead() int { return 7 }

func (a *authSimple) packData(data []byte, isHead bool) []byte {
	randLen := a.rng.r.Intn(0xF) + 1
	headerLen := 0
	if isHead {
		headerLen = 12
	}
	outSize := 3 + randLen + headerLen + len(data) + 4

	out := make([]byte, outSize)
	binary.BigEndian.PutUint16(out[0:2], uint16(outSize))
	out[2] = byte(randLen)
	pos := 3 + randLen
	if isHead {
		binary.LittleEndian.PutUint32(out[pos:], uint32(time.Now().Unix()))
		binary.LittleEndian.PutUint32(out[pos+4:], a.clientID)
		binary.LittleEndian.PutUint32(out[pos+8:], a.connectionID)
		pos += 12
		a.connectionID++
	}
	copy(out[pos:], data)

	crc := crc32IEEE(out[:outSize-4])
	binary.LittleEndian.PutUint32(out[outSize-4:], crc)
	a.packID++
	return out
}

func (a *authSimple) ClientPreEncrypt(data []byte) ([]byte, error) {
	var out []byte
	isHead := !a.hasSentHeader
	a.hasSentHeader = true

	headBudget := len(data)
	if headBudget > 1200 {
		headBudget = 1200
	}
	out = append(out, a.packData(data[:headBudget], isHead)...)
	rest := data[headBudget:]
	const unit = 2000
	for len(rest) > 0 {
		n := unit
		if n > len(rest) {
			n = len(rest)
		}
		out = append(out, a.packData(rest[:n], false)...)
		rest = rest[n:]
	}
	return out, nil
}

func (a *authSimple) ClientPostDecrypt(data []byte) ([]byte, error) {
	a.recvBuf.Append(data)
	var out []byte

	for {
		buf := a.recvBuf.Bytes()
		if len(buf) < 7 {
			break
		}
		length := int(binary.BigEndian.Uint16(buf[0:2]))
		if length >= 16384 || length < 7 {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_simple bad frame length %d", length)
		}
		if len(buf) < length {
			break
		}
		if crc32IEEE(buf[:length-4]) != binary.LittleEndian.Uint32(buf[length-4:length]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_simple checksum mismatch")
		}
		randLen := int(buf[2])
		pos := 3 + randLen
		if !a.gotAuthFrame {
			a.gotAuthFrame = true
			pos += authSimpleAuthLen
		}
		out = append(out, buf[pos:length-4]...)
		a.recvBuf.Truncate(length)
		a.recvID++
	}
	return out, nil
}

func randUint32() uint32 {
	return uint32(time.Now().UnixNano())
}
