// Package buffer provides a growable byte buffer used throughout the
// tunnel pipeline for framing and cipher staging.
package buffer

// Buffer is a mutable byte sequence with explicit capacity. Growing
// preserves existing content; callers own the returned slices exclusively
// (no aliasing is assumed across Buffer values).
type Buffer struct {
	data []byte
}

// New allocates a Buffer with the given initial capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// FromBytes wraps an existing slice as the buffer's initial content.
func FromBytes(b []byte) *Buffer {
	buf := &Buffer{data: make([]byte, len(b))}
	copy(buf.data, b)
	return buf
}

// Len returns the current content length.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the current backing capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the buffer's content. The returned slice is valid until
// the next mutating call.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset empties the buffer without releasing its backing array.
func (b *Buffer) Reset() { b.data = b.data[:0] }

// Grow ensures at least n additional bytes of capacity are available.
func (b *Buffer) Grow(n int) {
	if cap(b.data)-len(b.data) >= n {
		return
	}
	grown := make([]byte, len(b.data), len(b.data)+n)
	copy(grown, b.data)
	b.data = grown
}

// Append adds p to the end of the buffer, growing as needed.
func (b *Buffer) Append(p []byte) {
	b.Grow(len(p))
	b.data = append(b.data, p...)
}

// Truncate drops the first n bytes, shifting the remainder down.
// Used after a framing layer consumes a leading chunk from a rolling
// receive buffer.
func (b *Buffer) Truncate(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	copy(b.data, b.data[n:])
	b.data = b.data[:len(b.data)-n]
}

// SetLen sets the buffer's logical length without clearing memory;
// n must not exceed Cap().
func (b *Buffer) SetLen(n int) {
	b.data = b.data[:n]
}

// Clone returns an independent copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{data: make([]byte, len(b.data))}
	copy(out.data, b.data)
	return out
}

// Concat returns a new Buffer holding b's content followed by p.
func (b *Buffer) Concat(p []byte) *Buffer {
	out := New(len(b.data) + len(p))
	out.Append(b.data)
	out.Append(p)
	return out
}
