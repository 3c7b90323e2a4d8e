// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package source provides random access to the BAM and BAI objects served by
// the htsget server.
package source

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when the named object does not exist.
	ErrNotFound = errors.New("object does not exist")

	// ErrMissingOrInvalidToken is returned when a request carries no usable
	// bearer token.
	ErrMissingOrInvalidToken = errors.New("missing or invalid token")
)

// Source is a store of named objects.
type Source interface {
	// NewRangeReader returns a reader for length bytes of the named object
	// starting at offset.  A length of -1 reads until the end of the object.
	NewRangeReader(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error)
}
