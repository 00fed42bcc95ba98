// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkRangeAgrees inserts the same contiguous [from, to) key range (each
// key k mapped to k+117, matching the original's check_range fixture)
// into both an uncompressed and a compressed builder, then asserts every
// key resolves to the same value through both searchers. This is the Go
// analogue of the original's ComprVsOrdinal/TestIsTrue, which builds an
// EHCMapIndexer and a HAMapIndexer over identical input and compares
// HACMapSearcher/HAMapSearcher lookups one key at a time.
func checkRangeAgrees[K Uint, V Uint](t *testing.T, from, to uint64) {
	t.Helper()
	require.LessOrEqual(t, from, to)

	n := int(to - from)
	b := NewBuilder[K, V](n)
	cb := NewCompressedBuilder[K, V](n)
	for i := from; i < to; i++ {
		k, v := K(i), V(i+117)
		b.Add(k, v)
		cb.Add(k, v)
	}

	var buf, cbuf bytes.Buffer
	require.NoError(t, b.Serialize(&buf))
	require.NoError(t, cb.Serialize(&cbuf))

	s, err := NewSearcher[K, V](buf.Bytes())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	cs, err := NewCompressedSearcher[K, V](cbuf.Bytes())
	require.NoError(t, err)
	defer func() { _ = cs.Close() }()

	for i := from; i < to; i++ {
		k := K(i)

		gotUncompressed, ok := s.Search(k)
		require.True(t, ok, "uncompressed miss for key %v", k)

		gotCompressed, ok := cs.Search(k)
		require.True(t, ok, "compressed miss for key %v", k)

		require.Equal(t, gotUncompressed, gotCompressed, "disagreement for key %v", k)
	}
}

// TestComprVsOrdinal_agree is scenario S4 / testable property #6: the
// compressed and uncompressed variants must agree on every key for
// identical input.
func TestComprVsOrdinal_agree(t *testing.T) {
	checkRangeAgrees[uint32, uint64](t, 0, 10001)
	checkRangeAgrees[uint64, uint64](t, 10001, 100003)
	checkRangeAgrees[uint64, uint32](t, 111, 88774)
}
