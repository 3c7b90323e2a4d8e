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

// Package bai builds, reads and writes BAI indexes of coordinate sorted BAM
// files, as described in section 5 of the SAM specification.
//
// An index holds one ReferenceSequence per reference.  Each is made of the
// bins of the hierarchical binning scheme, each listing the chunks of the
// alignments that fall in it, a linear index of the first virtual position
// to decode for every 16kbp window, and optional metadata.
package bai

import (
	"github.com/googlegenomics/htsindex/internal/sam"
)

const (
	// WindowSize is the size, in base pairs, of each tiling window of the
	// linear index (SAM specification section 5.1.3).
	WindowSize = 1 << 14

	// MaxIntervalCount is the number of windows of the linear index of a
	// reference sequence (SAM specification section 5.2).
	MaxIntervalCount = 131072

	// MetadataBinID is the ID of the pseudo-bin that stores the metadata of
	// a reference sequence.
	MetadataBinID = 37450

	// The maximum alignment end as constrained by the size of the level zero
	// bin in the SAM specification, section 5.1.1.
	maximumReadLength = 1 << 29
)

// Record is an alignment record as seen by the index builder.
type Record interface {
	// Position returns the 1-based leftmost mapping position, or zero if the
	// record is not placed.
	Position() int32
	// Flags returns the SAM flags of the record.
	Flags() sam.Flags
	// ReferenceLen returns the number of reference bases covered by the
	// record's alignment.
	ReferenceLen() int32
	// Bin returns the bin of the record in the binning scheme.
	Bin() uint16
}
