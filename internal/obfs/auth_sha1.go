package obfs

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"
	"time"

	"ssrlocal/internal/buffer"
)

// authSHA1 implements "auth_sha1": like auth_simple but Adler32
// checksums regular chunks, and the auth header chunk is sealed with
// a 20-byte SHA1 HMAC keyed by the server's iv‖key instead of relying
// on the checksum trick alone.
type authSHA1 struct {
	info *ServerInfo

	hasSentHeader bool
	gotAuthFrame  bool
	recvBuf       *buffer.Buffer
	recvID        uint32
	packID        uint32
	clientID      uint32
	connectionID  uint32
	hmacKey       []byte
	rng           *padRNG
}

const authSHA1AuthLen = 12 // time(4) ‖ clientID(4) ‖ connectionID(4)

func newAuthSHA1() *authSHA1 {
	return &authSHA1{
		recvBuf:      buffer.New(16384),
		clientID:     randUint32(),
		connectionID: 1,
		rng:          newPadRNG(time.Now().UnixNano()),
	}
}

func (a *authSHA1) SetServerInfo(info *ServerInfo) {
	a.info = info
	a.hmacKey = append(append([]byte{}, info.IV...), info.Key...)
}

func (a *authSHA1) GetOverhead() int { return 7 }

func (a *authSHA1) packData(data []byte) []byte {
	randLen := a.rng.r.Intn(0xF) + 1
	outSize := 3 + randLen + len(data) + 4

	out := make([]byte, outSize)
	binary.BigEndian.PutUint16(out[0:2], uint16(outSize))
	out[2] = byte(randLen)
	copy(out[3+randLen:], data)

	sum := adler32Sum(out[:outSize-4])
	binary.LittleEndian.PutUint32(out[outSize-4:], sum)
	a.packID++
	return out
}

func (a *authSHA1) packAuthData(data []byte) []byte {
	randLen := a.rng.r.Intn(0xF) + 1
	headerLen := 12
	outSize := 3 + randLen + headerLen + len(data) + 20

	out := make([]byte, outSize)
	binary.BigEndian.PutUint16(out[0:2], uint16(outSize))
	out[2] = byte(randLen)
	pos := 3 + randLen
	binary.LittleEndian.PutUint32(out[pos:], uint32(time.Now().Unix()))
	binary.LittleEndian.PutUint32(out[pos+4:], a.clientID)
	binary.LittleEndian.PutUint32(out[pos+8:], a.connectionID)
	a.connectionID++
	pos += 12
	copy(out[pos:], data)

	mac := hmacSHA1(a.hmacKey, out[:outSize-20])
	copy(out[outSize-20:], mac[:20])
	a.packID++
	return out
}

func (a *authSHA1) ClientPreEncrypt(data []byte) ([]byte, error) {
	var out []byte
	headBudget := len(data)
	if headBudget > 1200 {
		headBudget = 1200
	}
	if !a.hasSentHeader {
		a.hasSentHeader = true
		out = append(out, a.packAuthData(data[:headBudget])...)
	} else {
		out = append(out, a.packData(data[:headBudget])...)
	}
	rest := data[headBudget:]
	const unit = 2000
	for len(rest) > 0 {
		n := unit
		if n > len(rest) {
			n = len(rest)
		}
		out = append(out, a.packData(rest[:n])...)
		rest = rest[n:]
	}
	return out, nil
}

func (a *authSHA1) ClientPostDecrypt(data []byte) ([]byte, error) {
	a.recvBuf.Append(data)
	var out []byte

	for {
		buf := a.recvBuf.Bytes()
		minLen := 7
		if !a.gotAuthFrame {
			minLen = 3 + 1 + authSHA1AuthLen + 20
		}
		if len(buf) < minLen {
			break
		}
		length := int(binary.BigEndian.Uint16(buf[0:2]))
		if length >= 16384 || length < minLen {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1 bad frame length %d", length)
		}
		if len(buf) < length {
			break
		}

		randLen := int(buf[2])
		pos := 3 + randLen
		if !a.gotAuthFrame {
			if length-20 < pos+authSHA1AuthLen {
				a.recvBuf.Reset()
				return nil, fmt.Errorf("obfs: auth_sha1 bad auth frame length %d", length)
			}
			mac := hmacSHA1(a.hmacKey, buf[:length-20])
			if !hmac.Equal(mac[:20], buf[length-20:length]) {
				a.recvBuf.Reset()
				return nil, fmt.Errorf("obfs: auth_sha1 hmac mismatch")
			}
			a.gotAuthFrame = true
			pos += authSHA1AuthLen
			out = append(out, buf[pos:length-20]...)
		} else {
			if adler32Sum(buf[:length-4]) != binary.LittleEndian.Uint32(buf[length-4:length]) {
				a.recvBuf.Reset()
				return nil, fmt.Errorf("obfs: auth_sha1 checksum mismatch")
			}
			out = append(out, buf[pos:length-4]...)
		}
		a.recvBuf.Truncate(length)
		a.recvID++
	}
	return out, nil
}
