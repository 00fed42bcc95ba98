// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"fmt"

	"github.com/bpowers/ikv/internal/bitpack"
	"github.com/bpowers/ikv/internal/directory"
	"github.com/bpowers/ikv/internal/mmap"

	"golang.org/x/sys/unix"
)

// CompressedSearcher serves point lookups against a key-compressed
// image, directly against the image bytes.
type CompressedSearcher[K Uint, V Uint] struct {
	image        []byte
	dir          *directory.Directory
	empty        bool
	keyBitsStore uint8
	keyRshiftBy  uint
	keyMask      uint64

	mm *mmap.ReaderAt
}

// NewCompressedSearcher wraps image -- previously produced by
// CompressedBuilder.Serialize -- for lookups. image is not copied.
func NewCompressedSearcher[K Uint, V Uint](image []byte) (*CompressedSearcher[K, V], error) {
	return newCompressedSearcher[K, V](image, nil)
}

// NewCompressedSearcherFromFile mmaps the file at path and wraps it for
// lookups. The returned CompressedSearcher owns the mapping; call Close
// when done with it.
func NewCompressedSearcherFromFile[K Uint, V Uint](path string) (*CompressedSearcher[K, V], error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap.Open(%s): %w", path, err)
	}
	if err := m.Advise(unix.MADV_RANDOM); err != nil {
		return nil, fmt.Errorf("madvise: %w", err)
	}
	s, err := newCompressedSearcher[K, V](m.Data(), m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return s, nil
}

func newCompressedSearcher[K Uint, V Uint](image []byte, mm *mmap.ReaderAt) (*CompressedSearcher[K, V], error) {
	footer, footerLen, err := directory.ParseFooter(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortImage, err)
	}

	preFooter := image[:len(image)-footerLen]
	if len(preFooter) == 0 {
		return &CompressedSearcher[K, V]{image: image, empty: true, mm: mm}, nil
	}

	if !footer.Compressed {
		return nil, ErrWrongVariant
	}

	dir, err := directory.Parse(preFooter, footer.NBuckets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortImage, err)
	}

	n := footer.N()
	return &CompressedSearcher[K, V]{
		image:        image,
		dir:          dir,
		keyBitsStore: footer.KeyBitsStore,
		keyRshiftBy:  uint(n),
		keyMask:      maskFor(footer.KeyBitsStore),
		mm:           mm,
	}, nil
}

// Close releases the underlying mmap, if this CompressedSearcher was
// constructed with NewCompressedSearcherFromFile. It is a no-op
// otherwise.
func (s *CompressedSearcher[K, V]) Close() error {
	if s.mm == nil {
		return nil
	}
	return s.mm.Close()
}

// Size returns the total number of keys stored in the image.
func (s *CompressedSearcher[K, V]) Size() uint64 {
	if s.empty || s.dir == nil {
		return 0
	}
	return s.dir.Size()
}

// Search looks up k and returns its value and true if found, or the
// zero value and false otherwise.
func (s *CompressedSearcher[K, V]) Search(k K) (V, bool) {
	var zero V
	if s.empty {
		return zero, false
	}

	i := uint32(uint64(k) & s.dir.Mask())
	bucketPtr, nkeys := s.dir.Unpacked(i, s.image)
	if nkeys == 0 {
		return zero, false
	}

	reduced := uint64(k) >> s.keyRshiftBy
	reader := bitpack.Reader(bucketPtr)

	idx, found := compressedBinarySearch(reader, nkeys, s.keyBitsStore, s.keyMask, reduced)
	if !found {
		return zero, false
	}

	valuesOff := directory.CompressedKeysSize(nkeys, s.keyBitsStore)
	values := uintSlice[V](bucketPtr[valuesOff:])
	return values.Get(int(idx)), true
}

// compressedBinarySearch performs the lower-bound style search described
// in spec §4.6: narrow [l, u) until the window empties, returning u, then
// verify equality at u explicitly. The explicit check resolves the open
// question the spec flags (returning u unconditionally would conflate
// "not found" with "found at the final position").
func compressedBinarySearch(reader bitpack.Reader, nkeys uint32, keyBitsStore uint8, mask, target uint64) (uint32, bool) {
	l, u := uint32(0), nkeys
	for l < u {
		m := l + (u-l)/2
		v := reader.GetBits(uint64(m)*uint64(keyBitsStore), mask)
		if v < target {
			l = m + 1
		} else {
			u = m
		}
	}
	if u < nkeys {
		if reader.GetBits(uint64(u)*uint64(keyBitsStore), mask) == target {
			return u, true
		}
	}
	return u, false
}
