package cipher

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestEVPBytesToKeyDeterministicAndSized(t *testing.T) {
	k1 := EVPBytesToKey("hunter2", 32)
	k2 := EVPBytesToKey("hunter2", 32)
	if !bytes.Equal(k1, k2) {
		t.Fatalf("EVPBytesToKey not deterministic")
	}
	if len(k1) != 32 {
		t.Fatalf("len = %d, want 32", len(k1))
	}
	other := EVPBytesToKey("different", 32)
	if bytes.Equal(k1, other) {
		t.Fatalf("different passwords produced the same key")
	}
}

func TestEVPBytesToKeyArbitraryLength(t *testing.T) {
	// 16-byte MD5 digests must be chained correctly for lengths that
	// aren't a multiple of 16.
	k := EVPBytesToKey("pw", 17)
	if len(k) != 17 {
		t.Fatalf("len = %d, want 17", len(k))
	}
}

func allMethods() []string {
	return []string{
		MethodAES128CFB, MethodAES192CFB, MethodAES256CFB,
		MethodChaCha20, MethodChaCha20IETF, MethodRC4MD5,
	}
}

func TestRoundTripAllMethods(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog, 1234567890")

	for _, method := range allMethods() {
		method := method
		t.Run(method, func(t *testing.T) {
			keyLen, ivLen, err := KeyIVLen(method)
			if err != nil {
				t.Fatalf("KeyIVLen: %v", err)
			}
			key := make([]byte, keyLen)
			iv := make([]byte, ivLen)
			rand.Read(key)
			rand.Read(iv)

			enc, err := NewContext(method, key, iv)
			if err != nil {
				t.Fatalf("NewContext: %v", err)
			}
			ciphertext := make([]byte, len(plaintext))
			enc.Transform(ciphertext, plaintext)

			dec, err := NewDecryptContext(method, key, iv)
			if err != nil {
				t.Fatalf("NewDecryptContext: %v", err)
			}
			recovered := make([]byte, len(ciphertext))
			dec.Transform(recovered, ciphertext)

			if !bytes.Equal(recovered, plaintext) {
				t.Fatalf("round trip mismatch: got %q, want %q", recovered, plaintext)
			}
			if bytes.Equal(ciphertext, plaintext) {
				t.Fatalf("ciphertext equals plaintext, cipher did nothing")
			}
		})
	}
}

// Stream ciphers must tolerate being fed in arbitrary chunk sizes and
// still produce the same keystream as one large call.
func TestStreamingChunkedTransform(t *testing.T) {
	plaintext := bytes.Repeat([]byte("0123456789abcdef"), 50)
	method := MethodAES256CFB
	keyLen, ivLen, _ := KeyIVLen(method)
	key := make([]byte, keyLen)
	iv := make([]byte, ivLen)
	rand.Read(key)
	rand.Read(iv)

	whole, err := NewContext(method, key, iv)
	if err != nil {
		t.Fatal(err)
	}
	wholeOut := make([]byte, len(plaintext))
	whole.Transform(wholeOut, plaintext)

	chunked, err := NewContext(method, key, iv)
	if err != nil {
		t.Fatal(err)
	}
	chunkedOut := make([]byte, 0, len(plaintext))
	for i := 0; i < len(plaintext); {
		n := 7
		if i+n > len(plaintext) {
			n = len(plaintext) - i
		}
		dst := make([]byte, n)
		chunked.Transform(dst, plaintext[i:i+n])
		chunkedOut = append(chunkedOut, dst...)
		i += n
	}

	if !bytes.Equal(wholeOut, chunkedOut) {
		t.Fatalf("chunked transform diverged from whole transform")
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	if _, _, err := KeyIVLen("rot13"); err == nil {
		t.Fatal("expected error for unknown method")
	}
	if _, err := NewContext("rot13", nil, nil); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestWrongKeyLengthRejected(t *testing.T) {
	_, err := NewContext(MethodAES256CFB, make([]byte, 8), make([]byte, 16))
	if err == nil {
		t.Fatal("expected error for wrong key length")
	}
}

func TestIVReportsConstructionValue(t *testing.T) {
	method := MethodAES128CFB
	keyLen, ivLen, _ := KeyIVLen(method)
	key := make([]byte, keyLen)
	iv := make([]byte, ivLen)
	rand.Read(key)
	rand.Read(iv)

	ctx, err := NewContext(method, key, iv)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ctx.IV(), iv) {
		t.Fatalf("IV() = % x, want % x", ctx.IV(), iv)
	}
}
