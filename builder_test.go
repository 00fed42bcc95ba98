// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildUncompressed[K Uint, V Uint](t *testing.T, pairs map[K]V, expectedCount int) []byte {
	t.Helper()
	b := NewBuilder[K, V](expectedCount)
	for k, v := range pairs {
		b.Add(k, v)
	}
	require.Equal(t, len(pairs), b.Len())

	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf))
	return buf.Bytes()
}

func TestBuilder_roundTrip_small(t *testing.T) {
	pairs := map[uint32]uint32{
		1:  100,
		2:  200,
		3:  300,
		17: 1700,
	}
	image := buildUncompressed(t, pairs, len(pairs))

	s, err := NewSearcher[uint32, uint32](image)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.Equal(t, uint64(len(pairs)), s.Size())
	for k, v := range pairs {
		got, ok := s.Search(k)
		require.True(t, ok, "key %d", k)
		require.Equal(t, v, got)
	}

	_, ok := s.Search(999)
	require.False(t, ok)
}

func TestBuilder_roundTrip_unsized(t *testing.T) {
	pairs := map[uint64]uint64{
		5:    50,
		1000: 10000,
		7:    70,
	}
	image := buildUncompressed(t, pairs, 0)

	s, err := NewSearcher[uint64, uint64](image)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	for k, v := range pairs {
		got, ok := s.Search(k)
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func TestBuilder_empty(t *testing.T) {
	image := buildUncompressed[uint32, uint32](t, nil, 0)
	require.Len(t, image, 1)

	s, err := NewSearcher[uint32, uint32](image)
	require.NoError(t, err)
	require.Equal(t, uint64(0), s.Size())

	_, ok := s.Search(42)
	require.False(t, ok)
}

func TestBuilder_singleElement(t *testing.T) {
	image := buildUncompressed(t, map[uint32]uint32{7: 70}, 1)

	s, err := NewSearcher[uint32, uint32](image)
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.Size())

	v, ok := s.Search(7)
	require.True(t, ok)
	require.Equal(t, uint32(70), v)

	_, ok = s.Search(8)
	require.False(t, ok)
}

func TestBuilder_duplicateKeys(t *testing.T) {
	b := NewBuilder[uint32, uint32](0)
	b.Add(5, 50)
	b.Add(5, 51)
	b.Add(5, 52)

	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf))

	s, err := NewSearcher[uint32, uint32](buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint64(3), s.Size())

	v, ok := s.Search(5)
	require.True(t, ok)
	require.Contains(t, []uint32{50, 51, 52}, v)
}

func TestBuilder_sealedOnce(t *testing.T) {
	b := NewBuilder[uint32, uint32](0)
	b.Add(1, 1)

	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf))

	var buf2 bytes.Buffer
	err := b.Serialize(&buf2)
	require.ErrorIs(t, err, ErrAlreadySealed)
}

func TestBuilder_randomLarge(t *testing.T) {
	const seed = uint64(42)
	pairs := make(map[uint64]uint64)
	for i := 0; len(pairs) < 5000; i++ {
		k := farmKeyStream(seed, i*2)
		pairs[k] = farmKeyStream(seed, i*2+1)
	}

	image := buildUncompressed(t, pairs, len(pairs))

	s, err := NewSearcher[uint64, uint64](image)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.Equal(t, uint64(len(pairs)), s.Size())
	for k, v := range pairs {
		got, ok := s.Search(k)
		require.True(t, ok)
		require.Equal(t, v, got)
	}

	misses := 0
	for i := 100000; i < 101000; i++ {
		k := farmKeyStream(seed, i)
		if _, present := pairs[k]; present {
			continue
		}
		if _, ok := s.Search(k); ok {
			misses++
		}
	}
	require.Zero(t, misses)
}

func TestBuilder_wrongVariant(t *testing.T) {
	image := buildUncompressed(t, map[uint32]uint32{1: 1}, 1)
	_, err := NewCompressedSearcher[uint32, uint32](image)
	require.ErrorIs(t, err, ErrWrongVariant)
}

func TestBuilder_writeFile(t *testing.T) {
	b := NewBuilder[uint32, uint32](0)
	b.Add(1, 11)
	b.Add(2, 22)

	dir := t.TempDir()
	path := dir + "/index.bit"
	require.NoError(t, b.WriteFile(path))

	s, err := NewSearcherFromFile[uint32, uint32](path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, ok := s.Search(2)
	require.True(t, ok)
	require.Equal(t, uint32(22), v)
}
