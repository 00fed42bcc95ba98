// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

// pair is a single key/value insertion, held in a builder's staging list
// or pre-sized bucket until Serialize partitions and sorts it.
type pair[K Uint, V Uint] struct {
	key   K
	value V
}

// sortPairsByKey sorts a bucket's pairs ascending by key, in place.
// Insertion sort is used for small buckets (the overwhelmingly common
// case with a well-chosen page size); larger buckets fall back to the
// standard library's sort, which is what the teacher's BucketSlice.Swap
// implementation relies on for its own on-disk sort.
func sortPairsByKey[K Uint, V Uint](pairs []pair[K, V]) {
	if len(pairs) < 2 {
		return
	}
	if len(pairs) <= 32 {
		for i := 1; i < len(pairs); i++ {
			for j := i; j > 0 && pairs[j-1].key > pairs[j].key; j-- {
				pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
			}
		}
		return
	}
	sortPairsStd(pairs)
}
