// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import "errors"

var (
	// ErrAlreadySealed is returned by Serialize/WriteFile if the
	// builder has already been serialized once. Builders are single
	// use -- see the "sealed builder reuse" design note.
	ErrAlreadySealed = errors.New("ikv: builder already serialized")

	// ErrTooManyPairs is returned when a bucket's payload offset or
	// key count is larger than the on-disk BucketEntry format (43-bit
	// offset, 21-bit count) can represent.
	ErrTooManyPairs = errors.New("ikv: too many pairs for the on-disk directory format")

	// ErrShortImage is returned when a Searcher is constructed over a
	// byte slice too short to contain a valid footer and directory.
	ErrShortImage = errors.New("ikv: image too short to be a valid index")

	// ErrWrongVariant is returned when a Searcher is constructed over
	// an image whose footer's compressed flag doesn't match the
	// Searcher variant being constructed.
	ErrWrongVariant = errors.New("ikv: image variant (compressed/uncompressed) does not match searcher")
)
