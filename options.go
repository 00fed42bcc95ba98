// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ikv

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// DefaultPageSize is used when no WithPageSize option is given. Per
// spec: larger pages mean fewer, larger buckets (longer in-bucket
// search); smaller pages mean more buckets (a larger directory, shorter
// in-bucket search).
const DefaultPageSize = 4096

// Option configures a Builder or CompressedBuilder.
type Option func(*builderOptions)

type builderOptions struct {
	pageSize int
	logger   *slog.Logger
}

func defaultBuilderOptions() builderOptions {
	return builderOptions{
		pageSize: DefaultPageSize,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithPageSize overrides the page-size tuning knob used to choose the
// bucket count, both when a Builder is pre-sized from a known record
// count and when the bucket count is computed at Serialize time.
func WithPageSize(pageSize int) Option {
	return func(o *builderOptions) {
		if pageSize > 0 {
			o.pageSize = pageSize
		}
	}
}

// WithLogger sets an optional logger a Builder uses for progress
// updates during Serialize. If not provided, no logging output is
// produced, matching the teacher's WithBuilderLogger default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *builderOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newBuildID() string {
	return uuid.New().String()
}
