// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/bpowers/ikv/internal/directory"
)

const defaultWriterBufferSize = 4 * 1024 * 1024

// Builder constructs an uncompressed image: a bucket directory followed
// by, for each bucket, the full keys in ascending order and then the
// full values in the same order (parallel arrays, not interleaved).
//
// Builder is single-use: once Serialize or WriteFile has run, a Builder
// is sealed and any further Serialize or WriteFile call returns
// ErrAlreadySealed. Add has no error result and does not check the seal.
//
// A zero-value Builder is not usable; construct one with NewBuilder.
type Builder[K Uint, V Uint] struct {
	opts    builderOptions
	buildID string

	presized bool
	nBuckets uint32
	buckets  [][]pair[K, V] // used when presized
	staging  []pair[K, V]   // used otherwise

	sealed atomic.Bool
}

// NewBuilder returns a Builder ready to accept Add calls. expectedCount,
// if nonzero, pre-sizes the bucket directory from the anticipated total
// byte volume (len(pairs) * (sizeof(K)+sizeof(V))) and page size; pairs
// are then placed directly into their destination bucket as they arrive.
// If expectedCount is zero, pairs accumulate in a single staging list and
// are partitioned lazily at Serialize time, using the same sizing
// formula applied to the actual count.
func NewBuilder[K Uint, V Uint](expectedCount int, opts ...Option) *Builder[K, V] {
	o := defaultBuilderOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Builder[K, V]{
		opts:    o,
		buildID: newBuildID(),
	}

	if expectedCount > 0 {
		kvTotalBytes := expectedCount * (widthBytes[K]() + widthBytes[V]())
		b.nBuckets = bucketCountFor(kvTotalBytes, o.pageSize)
		b.buckets = make([][]pair[K, V], b.nBuckets)
		b.presized = true
	}

	return b
}

// bucketCountFor implements B = next_pow2(max(1, kvTotalBytes/pageSize)).
func bucketCountFor(kvTotalBytes, pageSize int) uint32 {
	ratio := kvTotalBytes / pageSize
	if ratio < 1 {
		ratio = 1
	}
	return directory.NextPow2(uint64(ratio))
}

// Add inserts a key/value pair. Duplicate keys are permitted; the
// builder does not deduplicate (see spec invariants).
func (b *Builder[K, V]) Add(k K, v V) {
	p := pair[K, V]{key: k, value: v}
	if b.presized {
		mask := uint64(b.nBuckets) - 1
		idx := uint64(k) & mask
		b.buckets[idx] = append(b.buckets[idx], p)
		return
	}
	b.staging = append(b.staging, p)
}

// Len returns the number of pairs added so far.
func (b *Builder[K, V]) Len() int {
	if b.presized {
		n := 0
		for _, bucket := range b.buckets {
			n += len(bucket)
		}
		return n
	}
	return len(b.staging)
}

// Serialize writes the sealed image to w. See package doc and spec §4.3
// for the byte layout. Serialize may be called at most once.
func (b *Builder[K, V]) Serialize(w io.Writer) error {
	if b.sealed.Swap(true) {
		return ErrAlreadySealed
	}

	buckets, nBuckets, total, err := b.partition()
	if err != nil {
		return err
	}

	logger := b.opts.logger.With(slog.String("build_id", b.buildID))

	if total == 0 {
		footer, err := directory.EncodeUncompressed(0)
		if err != nil {
			return err
		}
		_, err = w.Write(footer)
		return err
	}

	bw := bufio.NewWriterSize(w, defaultWriterBufferSize)

	entries := make([]uint64, nBuckets)
	cursor := uint64(nBuckets) * directory.EntrySize
	sizeK, sizeV := widthBytes[K](), widthBytes[V]()
	for i, bucket := range buckets {
		sortPairsByKey(bucket)
		packed, err := directory.PackEntry(cursor, uint32(len(bucket)))
		if err != nil {
			return fmt.Errorf("%w: bucket %d: %v", ErrTooManyPairs, i, err)
		}
		entries[i] = packed
		cursor += uint64(len(bucket)) * uint64(sizeK+sizeV)
	}

	logger.Debug("writing directory", "nbuckets", nBuckets, "total_pairs", total)
	for _, packed := range entries {
		if err := writeUint(bw, packed); err != nil {
			return fmt.Errorf("write directory entry: %w", err)
		}
	}

	logger.Debug("writing bucket payloads")
	for _, bucket := range buckets {
		for _, p := range bucket {
			if err := writeUint(bw, p.key); err != nil {
				return fmt.Errorf("write key: %w", err)
			}
		}
		for _, p := range bucket {
			if err := writeUint(bw, p.value); err != nil {
				return fmt.Errorf("write value: %w", err)
			}
		}
	}

	n := directory.Log2(nBuckets)
	footer, err := directory.EncodeUncompressed(n)
	if err != nil {
		return err
	}
	if _, err := bw.Write(footer); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	return bw.Flush()
}

// partition returns the per-bucket pairs, the bucket count, and the
// total pair count, computing and partitioning lazily if the builder
// wasn't pre-sized.
func (b *Builder[K, V]) partition() ([][]pair[K, V], uint32, int, error) {
	if b.presized {
		total := 0
		for _, bucket := range b.buckets {
			total += len(bucket)
		}
		return b.buckets, b.nBuckets, total, nil
	}

	total := len(b.staging)
	if total == 0 {
		return nil, 0, 0, nil
	}

	sizeK, sizeV := widthBytes[K](), widthBytes[V]()
	nBuckets := bucketCountFor(total*(sizeK+sizeV), b.opts.pageSize)
	mask := uint64(nBuckets) - 1

	buckets := make([][]pair[K, V], nBuckets)
	for _, p := range b.staging {
		idx := uint64(p.key) & mask
		buckets[idx] = append(buckets[idx], p)
	}
	b.staging = nil

	return buckets, nBuckets, total, nil
}

// WriteFile serializes the builder to a newly created file at path,
// publishing it atomically: the image is written to a temporary file in
// the same directory, made read-only, then renamed into place. This
// mirrors the teacher's Builder.Finalize sequence.
func (b *Builder[K, V]) WriteFile(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "ikv-builder.*.image")
	if err != nil {
		return fmt.Errorf("os.CreateTemp (dir %q): %w", dir, err)
	}
	tmpPath := f.Name()

	if err := b.Serialize(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("Serialize: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("f.Close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0444); err != nil {
		return fmt.Errorf("os.Chmod(0444): %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	return nil
}
