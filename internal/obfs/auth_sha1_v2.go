package obfs

import (
	"encoding/binary"
	"fmt"
	"time"

	"ssrlocal/internal/buffer"
)

// authSHA1V2 implements "auth_sha1_v2": like auth_sha1 but the
// padding length escapes into a 2-byte field once it reaches 128 (so
// short padding costs one header byte, long padding three), and the
// checksum covering the first 4 bytes is CRC32("auth_sha1_v2" salt ‖
// key), a value fixed for the connection rather than data-dependent.
type authSHA1V2 struct {
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

const (
	authSHA1V2Salt    = "auth_sha1_v2"
	authSHA1V2AuthLen = 12 // time(4) ‖ clientID(4) ‖ connectionID(4)
)

func newAuthSHA1V2() *authSHA1V2 {
	return &authSHA1V2{
		recvBuf:      buffer.New(16384),
		clientID:     randUint32(),
		connectionID: 1,
		rng:          newPadRNG(time.Now().UnixNano()),
	}
}

func (a *authSHA1V2) SetServerInfo(info *ServerInfo) {
	a.info = info
	a.saltCRC = crc32IEEE(append([]byte(authSHA1V2Salt), info.Key...))
}

func (a *authSHA1V2) GetOverhead() int { return 9 }

// randHeader writes the escape-encoded padding-length prefix at out
// (1 or 3 bytes depending on randLen) and returns the number of bytes
// written.
func randHeader(out []byte, randLen int) int {
	if randLen < 128 {
		out[0] = byte(randLen)
		return 1
	}
	out[0] = 0xFF
	binary.LittleEndian.PutUint16(out[1:3], uint16(randLen))
	return 3
}

// readRandHeader is randHeader's inverse: it reports the padding
// length and how many header bytes encoded it.
func readRandHeader(buf []byte) (randLen, hdrLen int) {
	if buf[0] != 0xFF {
		return int(buf[0]), 1
	}
	return int(binary.LittleEndian.Uint16(buf[1:3])), 3
}

// packData lays out: saltCRC(4) ‖ totalLength(2, BE) ‖ paddingHeader
// (1 or 3 bytes) ‖ padding ‖ data ‖ crc32(4).
func (a *authSHA1V2) packData(data []byte) []byte {
	randLen := a.rng.r.Intn(0x400)
	hdr := make([]byte, 3)
	hdrLen := randHeader(hdr, randLen)

	outSize := 4 + 2 + hdrLen + randLen + len(data) + 4
	out := make([]byte, outSize)
	binary.LittleEndian.PutUint32(out[0:4], a.saltCRC)
	binary.BigEndian.PutUint16(out[4:6], uint16(outSize))
	copy(out[6:6+hdrLen], hdr[:hdrLen])
	copy(out[6+hdrLen+randLen:], data)
	binary.LittleEndian.PutUint32(out[outSize-4:], crc32IEEE(out[:outSize-4]))
	a.packID++
	return out
}

// packAuthData keeps the same saltCRC ‖ totalLength ‖ paddingHeader ‖
// padding ‖ ... ‖ crc32 envelope packData uses, inserting the 12-byte
// time/client-id/connection-id header between the padding and the
// payload so ClientPostDecrypt can locate the padding length the same
// way for every frame, auth or not.
func (a *authSHA1V2) packAuthData(data []byte) []byte {
	randLen := a.rng.getRandLenAuth(len(data))
	hdr := make([]byte, 3)
	hdrLen := randHeader(hdr, randLen)

	outSize := 4 + 2 + hdrLen + randLen + authSHA1V2AuthLen + len(data) + 4
	out := make([]byte, outSize)
	binary.LittleEndian.PutUint32(out[0:4], a.saltCRC)
	binary.BigEndian.PutUint16(out[4:6], uint16(outSize))
	copy(out[6:6+hdrLen], hdr[:hdrLen])
	pos := 6 + hdrLen + randLen
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

func (a *authSHA1V2) ClientPreEncrypt(data []byte) ([]byte, error) {
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

func (a *authSHA1V2) ClientPostDecrypt(data []byte) ([]byte, error) {
	a.recvBuf.Append(data)
	var out []byte

	for {
		buf := a.recvBuf.Bytes()
		if len(buf) < 9 {
			break
		}
		if a.saltCRC != binary.LittleEndian.Uint32(buf[0:4]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1_v2 salt mismatch")
		}
		length := int(binary.BigEndian.Uint16(buf[4:6]))
		if length >= 16384 || length < 11 {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1_v2 bad frame length %d", length)
		}
		if len(buf) < length {
			break
		}
		if crc32IEEE(buf[:length-4]) != binary.LittleEndian.Uint32(buf[length-4:length]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_sha1_v2 checksum mismatch")
		}

		randLen, hdrLen := readRandHeader(buf[6:])
		pos := 6 + hdrLen + randLen
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
