// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package directory implements the bucket directory that fronts every
// image: a fixed-size header of (offset, nkeys) entries addressed by the
// low bits of a key, and the 1- or 2-byte footer that records how many
// buckets there are and whether the image is key-compressed.
package directory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

const (
	// EntrySize is the packed byte width of a single BucketEntry.
	EntrySize = 8

	offsetBits = 43
	nkeysBits  = 64 - offsetBits

	// MaxOffset is the largest byte offset a BucketEntry can encode.
	MaxOffset = (uint64(1) << offsetBits) - 1
	// MaxKeysPerBucket is the largest key count a BucketEntry can encode.
	MaxKeysPerBucket = (uint64(1) << nkeysBits) - 1

	compressedFlag = 0x80
	nMask          = 0x7f
)

var (
	// ErrTooManyBuckets is returned when a requested bucket count
	// exceeds what the footer's 7-bit N field can encode.
	ErrTooManyBuckets = errors.New("directory: bucket count exceeds 2^127")
	// ErrOffsetOverflow is returned when a bucket payload offset
	// exceeds the 43 bits a BucketEntry can encode.
	ErrOffsetOverflow = errors.New("directory: offset overflows 43-bit field")
	// ErrBucketOverflow is returned when a bucket's key count
	// exceeds the 21 bits a BucketEntry can encode.
	ErrBucketOverflow = errors.New("directory: bucket key count overflows 21-bit field")
	// ErrShortImage is returned when an image is too short to contain
	// even a footer, or too short to contain the directory its footer
	// describes.
	ErrShortImage = errors.New("directory: image too short")
)

// Entry is a single directory slot: the byte offset (from the start of
// the image) of a bucket's payload, and the number of keys in it.
type Entry struct {
	Offset uint64
	NKeys  uint32
}

// PackEntry packs offset and nkeys into the 8-byte on-disk BucketEntry
// representation: offset in the low 43 bits, nkeys in the high 21 bits.
func PackEntry(offset uint64, nkeys uint32) (uint64, error) {
	if offset > MaxOffset {
		return 0, ErrOffsetOverflow
	}
	if uint64(nkeys) > MaxKeysPerBucket {
		return 0, ErrBucketOverflow
	}
	return offset | (uint64(nkeys) << offsetBits), nil
}

// UnpackEntry reverses PackEntry.
func UnpackEntry(packed uint64) Entry {
	return Entry{
		Offset: packed & MaxOffset,
		NKeys:  uint32(packed >> offsetBits),
	}
}

// Footer describes the trailing metadata of an image.
type Footer struct {
	NBuckets     uint32
	Compressed   bool
	KeyBitsStore uint8 // only meaningful when Compressed
}

// N returns log2(NBuckets).
func (f Footer) N() uint8 {
	return uint8(bits.TrailingZeros32(f.NBuckets))
}

// EncodeUncompressed returns the 1-byte footer for an uncompressed image
// with 2^n buckets.
func EncodeUncompressed(n uint8) ([]byte, error) {
	if n > nMask {
		return nil, ErrTooManyBuckets
	}
	return []byte{n}, nil
}

// EncodeCompressed returns the 2-byte footer for a compressed image with
// 2^n buckets and the given key_bits_store.
func EncodeCompressed(n uint8, keyBitsStore uint8) ([]byte, error) {
	if n > nMask {
		return nil, ErrTooManyBuckets
	}
	return []byte{keyBitsStore, n | compressedFlag}, nil
}

// ParseFooter reads the footer from the tail of image, returning the
// parsed Footer and the byte length of the footer (1 or 2).
func ParseFooter(image []byte) (Footer, int, error) {
	if len(image) < 1 {
		return Footer{}, 0, ErrShortImage
	}
	last := image[len(image)-1]
	if last&compressedFlag == 0 {
		n := last & nMask
		return Footer{NBuckets: 1 << n}, 1, nil
	}
	if len(image) < 2 {
		return Footer{}, 0, ErrShortImage
	}
	n := last & nMask
	keyBitsStore := image[len(image)-2]
	return Footer{
		NBuckets:     1 << n,
		Compressed:   true,
		KeyBitsStore: keyBitsStore,
	}, 2, nil
}

// Directory is a parsed view over the directory prefix of an image: an
// array of nbuckets BucketEntry values, each 8 bytes, little-endian bit
// packed.
type Directory struct {
	entries  []byte // nbuckets * EntrySize bytes, a sub-slice of the image
	nbuckets uint32
}

// Parse builds a Directory over the first nbuckets*EntrySize bytes of
// image.
func Parse(image []byte, nbuckets uint32) (*Directory, error) {
	need := uint64(nbuckets) * EntrySize
	if uint64(len(image)) < need {
		return nil, fmt.Errorf("%w: need %d bytes for %d buckets, have %d", ErrShortImage, need, nbuckets, len(image))
	}
	return &Directory{
		entries:  image[:need],
		nbuckets: nbuckets,
	}, nil
}

// Mask returns nbuckets-1, the bitmask used to select a bucket from a key.
func (d *Directory) Mask() uint64 {
	return uint64(d.nbuckets) - 1
}

// NBuckets returns the number of buckets in the directory.
func (d *Directory) NBuckets() uint32 {
	return d.nbuckets
}

// Get returns the directory entry at bucket index i.
func (d *Directory) Get(i uint32) Entry {
	off := uint64(i) * EntrySize
	packed := binary.LittleEndian.Uint64(d.entries[off : off+EntrySize])
	return UnpackEntry(packed)
}

// Unpacked returns a slice into image starting at bucket i's payload
// offset, along with the bucket's key count.
func (d *Directory) Unpacked(i uint32, image []byte) ([]byte, uint32) {
	e := d.Get(i)
	return image[e.Offset:], e.NKeys
}

// Size returns the total number of keys across all buckets.
func (d *Directory) Size() uint64 {
	var total uint64
	for i := uint32(0); i < d.nbuckets; i++ {
		total += uint64(d.Get(i).NKeys)
	}
	return total
}

// CompressedKeysSize returns the byte length of a packed-key block
// holding nrec keys of keyBitsStore bits each, rounded up to a whole
// 64-bit word (8 bytes).
func CompressedKeysSize(nrec uint32, keyBitsStore uint8) uint64 {
	totalBits := uint64(nrec) * uint64(keyBitsStore)
	words := (totalBits + 63) / 64
	return words * 8
}

// MaxBits returns the number of bits required to represent v (i.e.
// floor(log2(v))+1), or 0 if v is 0.
func MaxBits(v uint64) int {
	return 64 - bits.LeadingZeros64(v)
}

// NextPow2 returns the smallest power of two >= n (n >= 1).
func NextPow2(n uint64) uint32 {
	if n <= 1 {
		return 1
	}
	return uint32(1) << bits.Len64(n-1)
}

// Log2 returns log2(n) for a power-of-two n.
func Log2(n uint32) uint8 {
	return uint8(bits.TrailingZeros32(n))
}
