package obfs

import (
	"encoding/binary"
	"fmt"
	"time"

	"ssrlocal/internal/buffer"
)

// verifySimple implements "verify_simple", the predecessor to
// auth_simple: the same CRC32-framed length-prefixed chunks, but
// without auth_simple's per-connection clientID/connectionID header —
// the first chunk is marked only by a flag bit (0x80) in its
// padding-length byte so the peer can tell it apart from steady-state
// chunks.
type verifySimple struct {
	info *ServerInfo

	hasSentHeader bool
	recvBuf       *buffer.Buffer
	recvID        uint32
	packID        uint32
	rng           *padRNG
}

func newVerifySimple() *verifySimple {
	return &verifySimple{
		recvBuf: buffer.New(16384),
		rng:     newPadRNG(time.Now().UnixNano()),
	}
}

func (v *verifySimple) SetServerInfo(info *ServerInfo) {
	v.info = info
}

func (v *verifySimple) GetOverhead() int { return 7 }

func (v *verifySimple) packData(data []byte, isHead bool) []byte {
	randLen := v.rng.r.Intn(0xF) + 1
	outSize := 3 + randLen + len(data) + 4

	out := make([]byte, outSize)
	binary.BigEndian.PutUint16(out[0:2], uint16(outSize))
	flag := byte(randLen)
	if isHead {
		flag |= 0x80
	}
	out[2] = flag
	copy(out[3+randLen:], data)

	crc := crc32IEEE(out[:outSize-4])
	binary.LittleEndian.PutUint32(out[outSize-4:], crc)
	v.packID++
	return out
}

func (v *verifySimple) ClientPreEncrypt(data []byte) ([]byte, error) {
	var out []byte
	isHead := !v.hasSentHeader
	v.hasSentHeader = true

	headBudget := len(data)
	if headBudget > 1200 {
		headBudget = 1200
	}
	out = append(out, v.packData(data[:headBudget], isHead)...)
	rest := data[headBudget:]
	const unit = 2000
	for len(rest) > 0 {
		n := unit
		if n > len(rest) {
			n = len(rest)
		}
		out = append(out, v.packData(rest[:n], false)...)
		rest = rest[n:]
	}
	return out, nil
}

func (v *verifySimple) ClientPostDecrypt(data []byte) ([]byte, error) {
	v.recvBuf.Append(data)
	var out []byte

	for {
		buf := v.recvBuf.Bytes()
		if len(buf) < 7 {
			break
		}
		length := int(binary.BigEndian.Uint16(buf[0:2]))
		if length >= 16384 || length < 7 {
			v.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: verify_simple bad frame length %d", length)
		}
		if len(buf) < length {
			break
		}
		if crc32IEEE(buf[:length-4]) != binary.LittleEndian.Uint32(buf[length-4:length]) {
			v.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: verify_simple checksum mismatch")
		}
		randLen := int(buf[2] &^ 0x80)
		payload := buf[3+randLen : length-4]
		out = append(out, payload...)
		v.recvBuf.Truncate(length)
		v.recvID++
	}
	return out, nil
}
