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
	"github.com/googlegenomics/htsindex/internal/genomics"
)

// ReferenceSequence is the index of the records of a single reference.
type ReferenceSequence struct {
	Bins []Bin
	// Intervals is the linear index.  Slot i holds the virtual position of
	// the first record to decode when looking for alignments overlapping
	// [i*WindowSize, (i+1)*WindowSize).
	Intervals []bgzf.VirtualPosition
	// Metadata is nil if the reference never had any records.
	Metadata *Metadata
}

// minimumOffset returns the smallest chunk start of the reference, or
// bgzf.MaxVirtualPosition if it has no chunks.
func (ref *ReferenceSequence) minimumOffset() bgzf.VirtualPosition {
	min := bgzf.MaxVirtualPosition
	for _, bin := range ref.Bins {
		for _, chunk := range bin.Chunks {
			if chunk.Start < min {
				min = chunk.Start
			}
		}
	}
	return min
}

// query returns the chunks that may hold alignments overlapping region,
// given the candidate bins of the region.
func (ref *ReferenceSequence) query(region genomics.Region, bins []uint16) []*bgzf.Chunk {
	var firstReadOffset bgzf.VirtualPosition
	if index := int(region.Start / WindowSize); index < len(ref.Intervals) {
		firstReadOffset = ref.Intervals[index]
	}

	var chunks []*bgzf.Chunk
	for _, bin := range ref.Bins {
		if !regionContainsBin(region, bin.ID, bins) {
			continue
		}
		for _, chunk := range bin.Chunks {
			if chunk.End < firstReadOffset {
				continue
			}
			chunk := chunk
			chunks = append(chunks, &chunk)
		}
	}
	return chunks
}

func regionContainsBin(region genomics.Region, binID uint32, bins []uint16) bool {
	if region.Start == 0 && region.End == 0 {
		return true
	}

	for _, id := range bins {
		if uint32(id) == binID {
			return true
		}
	}
	return false
}
