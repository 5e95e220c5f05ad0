package obfs

import (
	"encoding/binary"
	"fmt"
	"time"

	"ssrlocal/internal/buffer"
)

// authSHA1V4 extends auth_sha1_v2 with a 2-byte check of the frame's
// own length field (the low 16 bits of its CRC32, see crc16), placed
// immediately before the padding-length
// header, so a corrupted length can be caught before the parser trusts
// it enough to read randLen bytes ahead.
type authSHA1V4 struct {
	info *ServerInfo

	hasSentHeader bool
	gotAuthFrame  bool
	recvBuf       *buffer.Buffer
	recvID        uint32
	packID        uint32
	clientID      uint32
	connectionID  uint32
	saltCRC       uint32
	rng           *padRNG
}

const authSHA1V4Salt = "auth_sha1_v4"

func newAuthSHA1V4() *authSHA1V4 {
	return &authSHA1V4{
		recvBuf:      buffer.New(16384),
		clientID:     randUint32(),
		connectionID: 1,
		rng:          newPadRNG(time.Now().UnixNano()),
	}
}

func (a *authSHA1V4) SetServerInfo(info *ServerInfo) {
	a.info = info
	a.saltCRC = crc32IEEE(append([]byte(authSHA1V4Salt), info.Key...))
}

func (a *authSHA1V4) GetOverhead() int { return 11 }

func crc16(data []byte) uint16 {
	return uint16(crc32IEEE(data) & 0xffff)
}

// packData lays out: saltCRC(4) ‖ totalLength(2, BE) ‖ crc16(2) ‖
// paddingHeader(1 or 3) ‖ padding ‖ data ‖ crc32(4).
func (a *authSHA1V4) packData(data []byte) []byte {
	randLen := a.rng.r.Intn(0x400)
	hdr := make([]byte, 3)
	hdrLen := randHeader(hdr, randLen)

	outSize := 4 + 2 + 2 + hdrLen + randLen + len(data) + 4
	out := make([]byte, outSize)
	binary.LittleEndian.PutUint32(out[0:4], a.saltCRC)
	binary.BigEndian.PutUint16(out[4:6], uint16(outSize))
	binary.LittleEndian.PutUint16(out[6:8], crc16(out[4:6]))
	copy(out[8:8+hdrLen], hdr[:hdrLen])
	copy(out[8+hdrLen+randLen:], data)
	binary.LittleEndian.PutUint32(out[outSize-4:], crc32IEEE(out[:outSize-4]))
	a.packID++
	return out
}

// packAuthData keeps packData's envelope, inserting the 12-byte
// time/client-id/connection-id header between the padding and the
// payload so the padding length is always found the same way.
func (a *authSHA1V4) packAuthData(data []byte) []byte {
	randLen := a.rng.getRandLenAuth(len(data))
	hdr := make([]byte, 3)
	hdrLen := randHeader(hdr, randLen)

	outSize := 4 + 2 + 2 + hdrLen + randLen + authSHA1V2AuthLen + len(data) + 4
	out := make([]byte, outSize)
	binary.LittleEndian.PutUint32(out[0:4], a.saltCRC)
	binary.BigEndian.PutUint16(out[4:6], uint16(outSize))
	binary.LittleEndian.PutUint16(out[6:8], crc16(out[4:6]))
	copy(out[8:8+hdrLen], hdr[:hdrLen])
	pos := 8 + hdrLen + randLen
	binary.LittleEndian.PutUint32(out[pos:], uint32(time.Now().Unix()))
	binary.LittleEndian.PutUint32(out[pos+4:], a.clientID)
	binary.LittleEndian.PutUint32(out[pos+8:], a.connectionID)
	a.connectionID++
	pos += authSHA1V2AuthLen
	copy(out[pos:], data)
	binary.LittleEndian.PutUint32(out[outSize-4:], crc32IEEE(out[:outSize-4]))
	a.packID++
	return out
}

func (a *authSHA1V4) ClientPreEncrypt(data []byte) ([]byte, error) {
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

func (a *authSHA1V4) ClientPostDecrypt(data []byte) ([]byte, error) {
	a.recvBuf.Append(data)
	var out []byte

	for {
		buf := a.recvBuf.Bytes()
		if len(buf) < 13 {
			break
		}
		if a.saltCRC != binary.LittleEndian.Uint32(buf[0:4]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1_v4 salt mismatch")
		}
		if crc16(buf[4:6]) != binary.LittleEndian.Uint16(buf[6:8]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1_v4 length crc mismatch")
		}
		length := int(binary.BigEndian.Uint16(buf[4:6]))
		if length >= 16384 || length < 13 {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1_v4 bad frame length %d", length)
		}
		if len(buf) < length {
			break
		}
		if crc32IEEE(buf[:length-4]) != binary.LittleEndian.Uint32(buf[length-4:length]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1_v4 checksum mismatch")
		}

		randLen, hdrLen := readRandHeader(buf[8:])
		pos := 8 + hdrLen + randLen
		if !a.gotAuthFrame {
			a.gotAuthFrame = true
			pos += authSHA1V2AuthLen
		}
		out = append(out, buf[pos:length-4]...)
		a.recvBuf.Truncate(length)
		a.recvID++
	}
	return out, nil
}
