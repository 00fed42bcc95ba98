// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
)

// farmKeyStream derives a deterministic, well-distributed pseudo-random
// uint64 from (seed, i), so large-N tests get a reproducible fixture
// without stashing a giant literal table in source. This stands in for
// the teacher's own practice of turning a small seed into a long key
// stream via a fast non-cryptographic hash rather than a CSPRNG.
func farmKeyStream(seed uint64, i int) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(i))
	return farm.Hash64(buf[:])
}
