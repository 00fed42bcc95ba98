// Copyright 2021 The bit Authors and Caleb Spare. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bitpack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter_AppendBit(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	for i := 0; i < 100; i++ {
		w.AppendBit(i%2 == 1)
	}
	require.Equal(t, uint64(100), w.Cursor())

	r := Reader(w.Bytes())
	for i := 0; i < 100; i++ {
		require.Equal(t, i%2 == 1, r.GetBit(uint64(i)), "bit %d", i)
	}

	for i := 0; i < 299; i++ {
		w.SetBit(uint64(i), i >= 100)
	}
	r = Reader(w.Bytes())
	for i := 0; i < 299; i++ {
		require.Equal(t, i >= 100, r.GetBit(uint64(i)), "bit %d after SetBit", i)
	}
}

func TestWriter_AppendBits(t *testing.T) {
	t.Parallel()

	const (
		valA, nbitsA = uint64(0x131313), 17
		valB, nbitsB = uint64(0x4545), 13
	)

	w := NewWriter()
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			w.AppendBits(valA, nbitsA)
		} else {
			w.AppendBits(valB, nbitsB)
		}
	}
	require.Equal(t, uint64(50*nbitsA+50*nbitsB), w.Cursor())

	r := Reader(w.Bytes())
	pos := uint64(0)
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			got := r.GetBits(pos, (1<<nbitsA)-1)
			require.Equal(t, valA&((1<<nbitsA)-1), got, "iter %d", i)
			pos += nbitsA
		} else {
			got := r.GetBits(pos, (1<<nbitsB)-1)
			require.Equal(t, valB&((1<<nbitsB)-1), got, "iter %d", i)
			pos += nbitsB
		}
	}
}

func TestWriter_AppendBitsSlice(t *testing.T) {
	t.Parallel()

	values := []uint64{1, 2, 3, 4, 5, 6, 7}
	w := NewWriter()
	w.AppendBitsSlice(values, len(values), 7)

	r := Reader(w.Bytes())
	for i, v := range values {
		got := r.GetBits(uint64(i)*7, (1<<7)-1)
		require.Equal(t, v, got)
	}
}

func TestWriter_AppendBits_edgeWidths(t *testing.T) {
	t.Parallel()

	for _, nbits := range []int{1, 7, 32, 64} {
		w := NewWriter()
		const n = 37
		mask := uint64((1 << nbits) - 1)
		if nbits == 64 {
			mask = ^uint64(0)
		}
		vals := make([]uint64, n)
		for i := range vals {
			vals[i] = uint64(i*2654435761+1) & mask
		}
		for _, v := range vals {
			w.AppendBits(v, nbits)
		}
		r := Reader(w.Bytes())
		for i, want := range vals {
			got := r.GetBits(uint64(i*nbits), mask)
			require.Equal(t, want, got, "nbits=%d i=%d", nbits, i)
		}
	}
}

func TestWriter_GrowthNeverShrinks(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.AppendBits(0xff, 8)
	capBefore := w.CapacityBits()
	require.GreaterOrEqual(t, capBefore, uint64(64))

	// appending within existing capacity must not shrink it
	for i := 0; i < 7; i++ {
		w.AppendBits(0, 8)
	}
	require.GreaterOrEqual(t, w.CapacityBits(), capBefore)
}

func TestReader_GetWord_crossesWordBoundary(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.AppendBits(^uint64(0), 64)
	w.AppendBits(^uint64(0), 64)

	r := Reader(w.Bytes())
	// offset 32 should be all-ones, straddling the two words
	require.Equal(t, ^uint64(0), r.GetWord(32))
}
