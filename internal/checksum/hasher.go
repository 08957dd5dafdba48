// Package checksum computes platform-independent digests of simulation state.
//
// Integers are written little-endian at fixed widths. Lengths are always
// written as 32 bits so 32- and 64-bit builds agree. Floats are normalized
// so that +0, -0 and every NaN produce the same bytes.
package checksum

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hashable is implemented by every value that contributes to a checksum.
type Hashable interface {
	Hash(h *Hasher)
}

// Hasher accumulates bytes into a 64-bit xxhash digest.
type Hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func New() *Hasher {
	return &Hasher{d: xxhash.New()}
}

func (h *Hasher) Write(p []byte) {
	_, _ = h.d.Write(p)
}

func (h *Hasher) WriteUint8(v uint8) {
	h.buf[0] = v
	h.Write(h.buf[:1])
}

func (h *Hasher) WriteBool(v bool) {
	if v {
		h.WriteUint8(1)
	} else {
		h.WriteUint8(0)
	}
}

func (h *Hasher) WriteUint16(v uint16) {
	binary.LittleEndian.PutUint16(h.buf[:2], v)
	h.Write(h.buf[:2])
}

func (h *Hasher) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[:4], v)
	h.Write(h.buf[:4])
}

func (h *Hasher) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:8], v)
	h.Write(h.buf[:8])
}

func (h *Hasher) WriteInt32(v int32) { h.WriteUint32(uint32(v)) }
func (h *Hasher) WriteInt64(v int64) { h.WriteUint64(uint64(v)) }

// WriteLen writes a length or index as 32 bits.
func (h *Hasher) WriteLen(n int) {
	h.WriteUint32(uint32(n))
}

// WriteF32 writes the bit pattern of v, mapping ±0 and NaN to zero bits.
func (h *Hasher) WriteF32(v float32) {
	if v == 0 || v != v {
		h.WriteUint32(0)
		return
	}
	h.WriteUint32(math.Float32bits(v))
}

// WriteF64 is the 64-bit counterpart of WriteF32.
func (h *Hasher) WriteF64(v float64) {
	if v == 0 || v != v {
		h.WriteUint64(0)
		return
	}
	h.WriteUint64(math.Float64bits(v))
}

func (h *Hasher) WriteString(s string) {
	h.WriteLen(len(s))
	_, _ = h.d.WriteString(s)
}

// Sum64 returns the digest of everything written so far.
func (h *Hasher) Sum64() uint64 {
	return h.d.Sum64()
}

// Sum32 truncates the digest to the 32 bits carried in tick checksums.
func (h *Hasher) Sum32() uint32 {
	return uint32(h.d.Sum64())
}

// Of hashes a single value with a fresh hasher.
func Of(v Hashable) uint64 {
	h := New()
	v.Hash(h)
	return h.Sum64()
}
