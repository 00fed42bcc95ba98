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

	"github.com/bpowers/ikv/internal/bitpack"
	"github.com/bpowers/ikv/internal/directory"
)

// CompressedBuilder constructs a key-compressed image: a bucket
// directory followed by, for each bucket, a bit-packed array holding
// only the high bits of each key (the low bits are implied by the
// bucket index) and then the full values.
//
// Unlike Builder, CompressedBuilder always stages into a single
// unsorted list -- it can't place a pair into its final bucket until
// serialize time, because key_bits_store (and therefore every bucket's
// payload size) depends on the OR of every key that was ever inserted.
//
// CompressedBuilder is single-use, like Builder.
type CompressedBuilder[K Uint, V Uint] struct {
	opts    builderOptions
	buildID string

	staging []pair[K, V]
	kmask   K

	sealed atomic.Bool
}

// NewCompressedBuilder returns a CompressedBuilder ready to accept Add
// calls. expectedCount, if nonzero, is used only to pre-allocate the
// staging list's capacity; it does not change serialized semantics.
func NewCompressedBuilder[K Uint, V Uint](expectedCount int, opts ...Option) *CompressedBuilder[K, V] {
	o := defaultBuilderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &CompressedBuilder[K, V]{
		opts:    o,
		buildID: newBuildID(),
	}
	if expectedCount > 0 {
		b.staging = make([]pair[K, V], 0, expectedCount)
	}
	return b
}

// Add inserts a key/value pair.
func (b *CompressedBuilder[K, V]) Add(k K, v V) {
	b.staging = append(b.staging, pair[K, V]{key: k, value: v})
	b.kmask |= k
}

// Len returns the number of pairs added so far.
func (b *CompressedBuilder[K, V]) Len() int {
	return len(b.staging)
}

// Serialize writes the sealed, key-compressed image to w. See spec §4.4
// for the byte layout and the key_bits_store derivation. Serialize may
// be called at most once.
func (b *CompressedBuilder[K, V]) Serialize(w io.Writer) error {
	if b.sealed.Swap(true) {
		return ErrAlreadySealed
	}

	total := len(b.staging)
	logger := b.opts.logger.With(slog.String("build_id", b.buildID))

	if total == 0 {
		footer, err := directory.EncodeUncompressed(0)
		if err != nil {
			return err
		}
		_, err = w.Write(footer)
		return err
	}

	sizeK, sizeV := widthBytes[K](), widthBytes[V]()
	nBuckets := bucketCountFor(total*(sizeK+sizeV), b.opts.pageSize)
	n := directory.Log2(nBuckets)
	keyRshiftBy := uint(n)

	var keyBitsStore uint8
	if b.kmask != 0 {
		keyBitsStore = uint8(directory.MaxBits(uint64(b.kmask) >> keyRshiftBy))
	}

	mask := uint64(nBuckets) - 1
	buckets := make([][]pair[K, V], nBuckets)
	for _, p := range b.staging {
		idx := uint64(p.key) & mask
		buckets[idx] = append(buckets[idx], p)
	}
	b.staging = nil

	bw := bufio.NewWriterSize(w, defaultWriterBufferSize)

	entries := make([]uint64, nBuckets)
	cursor := uint64(nBuckets) * directory.EntrySize
	for i, bucket := range buckets {
		sortPairsByKey(bucket)
		nkeys := uint32(len(bucket))
		packed, err := directory.PackEntry(cursor, nkeys)
		if err != nil {
			return fmt.Errorf("%w: bucket %d: %v", ErrTooManyPairs, i, err)
		}
		entries[i] = packed
		cursor += directory.CompressedKeysSize(nkeys, keyBitsStore) + uint64(nkeys)*uint64(sizeV)
	}

	logger.Debug("writing directory", "nbuckets", nBuckets, "total_pairs", total, "key_bits_store", keyBitsStore)
	for _, packed := range entries {
		if err := writeUint(bw, packed); err != nil {
			return fmt.Errorf("write directory entry: %w", err)
		}
	}

	logger.Debug("writing compressed bucket payloads")
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		bits := bitpack.NewWriterCapacity(uint64(len(bucket)) * uint64(keyBitsStore))
		for _, p := range bucket {
			bits.AppendBits(uint64(p.key)>>keyRshiftBy, int(keyBitsStore))
		}
		if _, err := bw.Write(bits.Bytes()); err != nil {
			return fmt.Errorf("write packed keys: %w", err)
		}
		for _, p := range bucket {
			if err := writeUint(bw, p.value); err != nil {
				return fmt.Errorf("write value: %w", err)
			}
		}
	}

	footer, err := directory.EncodeCompressed(n, keyBitsStore)
	if err != nil {
		return err
	}
	if _, err := bw.Write(footer); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	return bw.Flush()
}

// WriteFile serializes the builder to a newly created file at path,
// publishing it atomically, mirroring Builder.WriteFile.
func (b *CompressedBuilder[K, V]) WriteFile(path string) error {
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
