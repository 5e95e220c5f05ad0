package obfs

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ssrlocal/internal/buffer"
)

// authAES128 implements the auth_aes128_sha1 / auth_aes128_md5
// protocol plugin pair, the workhorse of the SSR family: every chunk
// is HMAC-tagged with a key that folds in a monotonically increasing
// packet counter, and the very first chunk additionally carries an
// AES-128-CBC-sealed identification block binding a client id and
// connection id to the connection.
type authAES128 struct {
	salt string // "auth_aes128_sha1" or "auth_aes128_md5"
	hash func(key, data []byte) []byte
	info *ServerInfo

	hasSentHeader bool
	recvBuf       *buffer.Buffer
	recvID        uint32
	packID        uint32
	clientID      uint32
	connectionID  uint32

	uid     [4]byte
	userKey []byte
	rng     *padRNG
}

func newAuthAES128(salt string) *authAES128 {
	hash := hmacSHA1
	if salt == "auth_aes128_md5" {
		hash = hmacMD5
	}
	return &authAES128{
		salt:         salt,
		hash:         hash,
		recvBuf:      buffer.New(16384),
		clientID:     randUint32(),
		connectionID: 1,
		rng:          newPadRNG(time.Now().UnixNano()),
	}
}

func (a *authAES128) SetServerInfo(info *ServerInfo) {
	a.info = info

	if idx := strings.IndexByte(info.Param, ':'); idx >= 0 {
		uid, err := strconv.ParseUint(info.Param[:idx], 10, 32)
		if err == nil {
			binary.LittleEndian.PutUint32(a.uid[:], uint32(uid))
		}
		a.userKey = a.hash(nil, []byte(info.Param[idx+1:]))
	} else {
		copy(a.uid[:], []byte{byte(randUint32()), byte(randUint32() >> 8), byte(randUint32() >> 16), byte(randUint32() >> 24)})
		a.userKey = append([]byte{}, info.Key...)
	}
}

func (a *authAES128) GetOverhead() int { return 9 }

func (a *authAES128) encKey() ([]byte, error) {
	material := ssrBase64(a.userKey) + a.salt
	return evpBytesToKey(material, 16), nil
}

// packAuthData builds the first outgoing chunk: a random byte sealed
// with a 6-byte HMAC, a 24-byte AES-128-CBC identification block, the
// padded payload, and a closing 4-byte HMAC over everything before it.
// It does not advance packID: only the regular chunks packData builds
// do, so the first regular chunk is keyed with packID 0.
func (a *authAES128) packAuthData(data []byte) ([]byte, error) {
	randLen := a.rng.getRandLenAuth(len(data))
	outSize := 1 + 6 + 24 + randLen + len(data) + 4

	block16 := make([]byte, 16)
	binary.LittleEndian.PutUint32(block16[0:4], uint32(time.Now().Unix()))
	binary.LittleEndian.PutUint32(block16[4:8], a.clientID)
	binary.LittleEndian.PutUint32(block16[8:12], a.connectionID)
	binary.LittleEndian.PutUint16(block16[12:14], uint16(outSize))
	binary.LittleEndian.PutUint16(block16[14:16], uint16(randLen))
	a.connectionID++

	encKey, err := a.encKey()
	if err != nil {
		return nil, err
	}
	ciphertext, err := aesCBCEncryptBlock(encKey, block16)
	if err != nil {
		return nil, fmt.Errorf("obfs: auth_aes128 encrypt id block: %w", err)
	}

	ivKeyMAC := append(append([]byte{}, a.info.IV...), a.info.Key...)
	encrypt := make([]byte, 24)
	copy(encrypt[0:4], a.uid[:])
	copy(encrypt[4:20], ciphertext)
	copy(encrypt[20:24], a.hash(ivKeyMAC, encrypt[:20])[:4])

	out := make([]byte, outSize)
	out[0] = byte(a.rng.r.Intn(256))
	copy(out[1:7], a.hash(ivKeyMAC, out[:1])[:6])
	copy(out[7:31], encrypt)
	copy(out[31+randLen:], data)

	key := append(append([]byte{}, a.userKey...), le32(a.packID)...)
	copy(out[outSize-4:], a.hash(key, out[:outSize-4])[:4])
	return out, nil
}

// packData builds a regular chunk: length, a 2-byte HMAC over the
// length, an escape-encoded padding-length header, padding, payload,
// and a closing 4-byte HMAC — both HMACs keyed by userKey‖packID,
// the SAME packID for both (the counter advances only once the chunk
// is fully built).
//
// randLen (auth.c's rand_len) already counts the 1-or-3 escape-header
// bytes as part of the padding region: the header is carved out of
// its start, not appended on top of it, so the payload always begins
// at offset 4+randLen and out_size = rand_len + datalength + 8.
func (a *authAES128) packData(data []byte, lastDataLen, fullDataLen, bufferSize int) []byte {
	randLen := a.rng.getRandLen(len(data), lastDataLen, fullDataLen, bufferSize) + 1
	hdr := make([]byte, 3)
	hdrLen := randHeader(hdr, randLen)

	outSize := 2 + 2 + randLen + len(data) + 4
	out := make([]byte, outSize)
	binary.LittleEndian.PutUint16(out[0:2], uint16(outSize))

	key := append(append([]byte{}, a.userKey...), le32(a.packID)...)
	copy(out[2:4], a.hash(key, out[0:2])[:2])

	copy(out[4:4+hdrLen], hdr[:hdrLen])
	copy(out[4+randLen:], data)
	copy(out[outSize-4:], a.hash(key, out[:outSize-4])[:4])
	a.packID++
	return out
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func (a *authAES128) ClientPreEncrypt(data []byte) ([]byte, error) {
	var out []byte
	headBudget := len(data)
	if headBudget > 1200 {
		headBudget = 1200
	}
	if !a.hasSentHeader {
		a.hasSentHeader = true
		head, err := a.packAuthData(data[:headBudget])
		if err != nil {
			return nil, err
		}
		out = append(out, head...)
	} else {
		out = append(out, a.packData(data[:headBudget], 0, 0, 16384)...)
	}

	rest := data[headBudget:]
	const unit = 2000
	last := len(data)
	for len(rest) > 0 {
		n := unit
		if n > len(rest) {
			n = len(rest)
		}
		out = append(out, a.packData(rest[:n], last, len(out), 16384)...)
		last = n
		rest = rest[n:]
	}
	return out, nil
}

func (a *authAES128) ClientPostDecrypt(data []byte) ([]byte, error) {
	a.recvBuf.Append(data)
	var out []byte

	for {
		buf := a.recvBuf.Bytes()
		if len(buf) < 4 {
			break
		}
		key := append(append([]byte{}, a.userKey...), le32(a.recvID)...)
		if !hmac.Equal(a.hash(key, buf[0:2])[:2], buf[2:4]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_aes128 header hmac mismatch")
		}
		length := int(binary.LittleEndian.Uint16(buf[0:2]))
		if length >= 8192 || length < 9 {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_aes128 bad frame length %d", length)
		}
		if len(buf) < length {
			break
		}
		if !hmac.Equal(a.hash(key, buf[:length-4])[:4], buf[length-4:length]) {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_aes128 frame hmac mismatch")
		}

		// randLen already counts the escape-header bytes carved out of
		// its own start (see packData), so the payload begins at
		// 4+randLen, not 4+hdrLen+randLen.
		randLen, _ := readRandHeader(buf[4:])
		if 4+randLen > length-4 {
			a.recvBuf.Reset()
			return nil, fmt.Errorf("obfs: auth_aes128 bad padding length %d", randLen)
		}
		payload := buf[4+randLen : length-4]
		out = append(out, payload...)
		a.recvBuf.Truncate(length)
		a.recvID++
	}
	return out, nil
}

