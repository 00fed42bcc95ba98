// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"fmt"

	"github.com/bpowers/ikv/internal/directory"
	"github.com/bpowers/ikv/internal/mmap"

	"golang.org/x/sys/unix"
)

// Searcher serves point lookups against an uncompressed image, directly
// against the image bytes -- no copy, no deserialization step.
//
// A Searcher never mutates its image and is safe for concurrent Search
// calls from multiple goroutines, as long as nothing else is writing to
// the same underlying bytes.
type Searcher[K Uint, V Uint] struct {
	image []byte
	dir   *directory.Directory
	empty bool

	mm *mmap.ReaderAt // non-nil if the image came from NewSearcherFromFile
}

// NewSearcher wraps image -- previously produced by Builder.Serialize,
// for example into an in-memory buffer -- for lookups. image is not
// copied; the caller must not mutate it afterward.
func NewSearcher[K Uint, V Uint](image []byte) (*Searcher[K, V], error) {
	return newSearcher[K, V](image, nil)
}

// NewSearcherFromFile mmaps the file at path and wraps it for lookups.
// The returned Searcher owns the mapping; call Close when done with it.
func NewSearcherFromFile[K Uint, V Uint](path string) (*Searcher[K, V], error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap.Open(%s): %w", path, err)
	}
	if err := m.Advise(unix.MADV_RANDOM); err != nil {
		return nil, fmt.Errorf("madvise: %w", err)
	}
	s, err := newSearcher[K, V](m.Data(), m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return s, nil
}

func newSearcher[K Uint, V Uint](image []byte, mm *mmap.ReaderAt) (*Searcher[K, V], error) {
	footer, footerLen, err := directory.ParseFooter(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortImage, err)
	}
	if footer.Compressed {
		return nil, ErrWrongVariant
	}

	preFooter := image[:len(image)-footerLen]
	if len(preFooter) == 0 {
		return &Searcher[K, V]{image: image, empty: true, mm: mm}, nil
	}

	dir, err := directory.Parse(preFooter, footer.NBuckets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortImage, err)
	}

	return &Searcher[K, V]{image: image, dir: dir, mm: mm}, nil
}

// Close releases the underlying mmap, if this Searcher was constructed
// with NewSearcherFromFile. It is a no-op otherwise.
func (s *Searcher[K, V]) Close() error {
	if s.mm == nil {
		return nil
	}
	return s.mm.Close()
}

// Size returns the total number of keys stored in the image.
func (s *Searcher[K, V]) Size() uint64 {
	if s.empty || s.dir == nil {
		return 0
	}
	return s.dir.Size()
}

// Search looks up k and returns its value and true if found, or the
// zero value and false otherwise.
func (s *Searcher[K, V]) Search(k K) (V, bool) {
	var zero V
	if s.empty {
		return zero, false
	}

	i := uint32(uint64(k) & s.dir.Mask())
	entry := s.dir.Get(i)
	if entry.NKeys == 0 {
		return zero, false
	}

	bucket := s.image[entry.Offset:]
	sizeK := widthBytes[K]()
	keys := uintSlice[K](bucket[:uint64(entry.NKeys)*uint64(sizeK)])

	idx, found := binarySearchKeys(keys, entry.NKeys, k)
	if !found {
		return zero, false
	}

	values := uintSlice[V](bucket[uint64(entry.NKeys)*uint64(sizeK):])
	return values.Get(idx), true
}

// binarySearchKeys returns the index of k within keys[0:nkeys] (which
// must be sorted ascending) and whether it was found. On a miss, the
// returned index is keys' sorted insertion point for k -- callers that
// only care about presence should check the bool.
func binarySearchKeys[K Uint](keys uintSlice[K], nkeys uint32, k K) (int, bool) {
	lo, hi := 0, int(nkeys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if keys.Get(mid) < k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < int(nkeys) && keys.Get(lo) == k {
		return lo, true
	}
	return lo, false
}
