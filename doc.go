// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ikv implements a read-optimized, disk-serializable associative
// index mapping fixed-width integer keys to fixed-width integer values.
//
// A Builder (or CompressedBuilder) ingests an unordered batch of key/value
// pairs and Serializes them into a single contiguous byte image: a bucket
// directory addressed by the low bits of the key, followed by each
// bucket's sorted key/value payload, followed by a 1- or 2-byte footer.
// A Searcher (or CompressedSearcher) wraps that image -- a byte slice in
// memory (such as the buffer a Builder serialized into), or a file mmap'd
// by the FromFile constructors -- and answers point lookups directly
// against the image bytes, without copying or deserializing. A Builder
// hands its pairs to a Searcher only through those serialized bytes;
// there is no path that skips Serialize.
//
// The compressed variant stores only the high bits of each key, since the
// low bits are already implied by which bucket a key landed in; each key
// takes key_bits_store bits (the bit length of the OR of all keys shifted
// right by log2 of the bucket count) instead of its full width, at a
// modest CPU cost per lookup.
package ikv
