// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"encoding/binary"
	"io"
)

// Uint is the set of integer widths this index supports for both keys
// and values, per spec: 32 or 64 bits. The compile-time union constraint
// is what rejects any other width; the helpers below pick the 4- or
// 8-byte encoding with a type switch on the value.
type Uint interface {
	uint32 | uint64
}

// widthBytes returns the on-disk width, in bytes, of T.
func widthBytes[T Uint]() int {
	var zero T
	switch any(zero).(type) {
	case uint32:
		return 4
	case uint64:
		return 8
	default:
		panic("ikv: unsupported integer width")
	}
}

// widthBits returns the on-disk width, in bits, of T.
func widthBits[T Uint]() int {
	return widthBytes[T]() * 8
}

// writeUint writes x to w in its natural little-endian width.
func writeUint[T Uint](w io.Writer, x T) error {
	switch v := any(x).(type) {
	case uint32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		_, err := w.Write(buf[:])
		return err
	case uint64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v)
		_, err := w.Write(buf[:])
		return err
	default:
		panic("ikv: unsupported integer width")
	}
}

// uintSlice is a read-only, zero-copy view of a []byte as an array of T,
// mirroring the teacher's uint32Slice/uint64Slice byte-backed views.
type uintSlice[T Uint] []byte

func (s uintSlice[T]) Get(i int) T {
	switch widthBytes[T]() {
	case 4:
		off := i * 4
		return T(binary.LittleEndian.Uint32(s[off : off+4]))
	default:
		off := i * 8
		return T(binary.LittleEndian.Uint64(s[off : off+8]))
	}
}

// maskFor returns (1<<nbits)-1, handling the nbits==64 case where a
// literal shift would overflow.
func maskFor(nbits uint8) uint64 {
	if nbits >= 64 {
		return ^uint64(0)
	}
	if nbits == 0 {
		return 0
	}
	return (uint64(1) << nbits) - 1
}
