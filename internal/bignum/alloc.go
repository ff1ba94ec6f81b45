package bignum

import "unsafe"

// alignment is the byte alignment quadratic_primality_alloc.cpp requests
// from aligned_alloc for every bignum limb buffer.
const alignment = 64

// AlignedBuffer owns a byte slice whose usable portion (Bytes) starts at a
// 64-byte-aligned address, the same contract
// quadratic_allocate_function/quadratic_reallocate_function provide via
// aligned_alloc and a realign-on-grow fallback. Go's allocator gives no
// alignment guarantee for arbitrary sizes, so the buffer simply
// over-allocates by up to alignment-1 bytes and slices into the aligned
// offset.
type AlignedBuffer struct {
	raw   []byte
	Bytes []byte
}

// NewAlignedBuffer allocates a buffer of at least size bytes, aligned to
// alignment.
func NewAlignedBuffer(size int) *AlignedBuffer {
	raw := make([]byte, size+alignment-1)
	return &AlignedBuffer{raw: raw, Bytes: alignSlice(raw, size)}
}

// Grow resizes the buffer to at least newSize bytes, preserving its
// current contents as a prefix and re-establishing alignment — the same
// behaviour as quadratic_reallocate_function's "realloc, then re-align via
// a fresh allocation and copy if the realloc moved us off-alignment".
func (b *AlignedBuffer) Grow(newSize int) {
	if len(b.Bytes) >= newSize {
		return
	}
	next := NewAlignedBuffer(newSize)
	copy(next.Bytes, b.Bytes)
	b.raw, b.Bytes = next.raw, next.Bytes
}

func alignSlice(raw []byte, size int) []byte {
	addr := uintptr(unsafe.Pointer(&raw[0]))
	pad := (alignment - addr%alignment) % alignment
	return raw[pad : pad+uintptr(size)]
}
