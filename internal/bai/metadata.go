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

package bai

import (
	"github.com/googlegenomics/htsindex/internal/bgzf"
)

// Metadata summarizes the records of a reference sequence.  It is stored in
// the index as the chunks of the MetadataBinID pseudo-bin.
type Metadata struct {
	// StartPosition and EndPosition bound the records of the reference.
	StartPosition, EndPosition bgzf.VirtualPosition
	MappedCount                uint64
	UnmappedCount              uint64
}

func newMetadata() Metadata {
	return Metadata{StartPosition: bgzf.MaxVirtualPosition}
}

func (m *Metadata) update(record Record, chunk bgzf.Chunk) {
	if record.Flags().IsUnmapped() {
		m.UnmappedCount++
	} else {
		m.MappedCount++
	}

	if chunk.Start < m.StartPosition {
		m.StartPosition = chunk.Start
	}
	if chunk.End > m.EndPosition {
		m.EndPosition = chunk.End
	}
}
