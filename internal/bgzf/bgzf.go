// Copyright 2017 Google Inc.
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

// Package bgzf provides support for reading and writing BGZF files.
//
// A BGZF file is a series of independently compressed gzip members
// ("blocks") of at most 64KiB each.  Any byte of the uncompressed stream can
// be addressed with a VirtualPosition, which pairs the offset of the block
// inside the compressed file with the offset of the byte inside the block's
// uncompressed data.
package bgzf

import (
	"fmt"
	"sort"
	"strconv"
)

// MaximumBlockSize is the maximum size of a compressed BGZF block.
const MaximumBlockSize = 65536

// MaximumUncompressedSize is the maximum size of the data held by a block.
// Every offset into the data, including the one just past its end, must fit
// in the 16 bits of a VirtualPosition.
const MaximumUncompressedSize = 0xffff

// MaximumDataSize is the amount of uncompressed data that Writer places in a
// single block.  It leaves room for the deflate overhead of incompressible
// data.
const MaximumDataSize = 0xff00

// MaxVirtualPosition is the largest possible virtual position.  No position
// inside a real file compares greater than it.
const MaxVirtualPosition = VirtualPosition(0xffffffffffffffff)

// VirtualPosition stores a BGZF "virtual position".  The lower 16 bits store
// the data offset inside the uncompressed block and the upper 48 bits store
// the offset of the block inside the compressed file.  Comparing two values
// numerically orders them by block first and by data offset second.
type VirtualPosition uint64

// NewVirtualPosition returns a new VirtualPosition with the provided offsets.
// Only the low 48 bits of compressed are used.
func NewVirtualPosition(compressed uint64, uncompressed uint16) VirtualPosition {
	return VirtualPosition(compressed<<16 | uint64(uncompressed))
}

// Compressed returns the offset to the start of the compressed block.
func (v VirtualPosition) Compressed() uint64 {
	return uint64(v >> 16)
}

// Uncompressed returns the offset to the data in the uncompressed block.
func (v VirtualPosition) Uncompressed() uint16 {
	return uint16(v & 0xffff)
}

// String returns a representation of v that can be parsed with
// ParseVirtualPosition.
func (v VirtualPosition) String() string {
	return strconv.FormatUint(uint64(v), 16)
}

// ParseVirtualPosition attempts to parse input into a VirtualPosition.
func ParseVirtualPosition(input string) (VirtualPosition, error) {
	v, err := strconv.ParseUint(input, 16, 64)
	return VirtualPosition(v), err
}

// Chunk specifies a region from Start to End inside a BGZF file.  Start
// addresses the first byte of the region and End the byte just past it.
type Chunk struct {
	Start, End VirtualPosition
}

// NewChunk returns a chunk spanning start to end.
func NewChunk(start, end VirtualPosition) Chunk {
	return Chunk{Start: start, End: end}
}

// String returns a human readable description of the receiver.
func (v *Chunk) String() string {
	return fmt.Sprintf("[%s-%s]", v.Start, v.End)
}

// Merge attempts to merge any intersecting or adjacent chunks in input.
// Merge will not join two chunks if their combined size could exceed
// sizeLimit.  The input slice is sorted in place.
func Merge(input []*Chunk, sizeLimit uint64) []*Chunk {
	if len(input) == 0 {
		return nil
	}

	sort.SliceStable(input, func(i, j int) bool {
		return input[i].Start < input[j].Start
	})

	var (
		merged = []*Chunk{input[0]}
		output = merged[0]
	)
	for i := 1; i < len(input); i++ {
		var size uint64
		if input[i].End.Compressed() == output.Start.Compressed() {
			size = uint64(input[i].End.Uncompressed() - output.Start.Uncompressed())
		} else {
			// Estimate using the maximum size for the last block.
			size = input[i].End.Compressed() - output.Start.Compressed() + MaximumBlockSize
		}

		if input[i].Start <= output.End && size <= sizeLimit {
			if output.End < input[i].End {
				output.End = input[i].End
			}
		} else {
			merged = append(merged, input[i])
			output = merged[len(merged)-1]
		}
	}
	return merged
}
