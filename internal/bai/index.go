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
	"bufio"
	"fmt"
	"io"

	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/binary"
	"github.com/googlegenomics/htsindex/internal/genomics"
)

const baiMagic = "BAI\x01"

// Index is a complete BAI index.
type Index struct {
	// ReferenceSequences holds one entry per reference of the BAM header, in
	// header order.
	ReferenceSequences []ReferenceSequence
	// UnplacedUnmappedCount is the number of records without a reference.
	// It is optional in the file format.
	UnplacedUnmappedCount *uint64
}

// Query returns the chunks that may hold alignments overlapping region.
// Chunks are returned in reference order, then bin order.
func (idx *Index) Query(region genomics.Region) []*bgzf.Chunk {
	bins := binsForRange(region.Start, region.End)

	var chunks []*bgzf.Chunk
	for i := range idx.ReferenceSequences {
		if region.ReferenceID >= 0 && int32(i) != region.ReferenceID {
			continue
		}
		chunks = append(chunks, idx.ReferenceSequences[i].query(region, bins)...)
	}
	return chunks
}

// MinimumOffset returns the smallest chunk start of the index, which is the
// end of the BAM header.  It returns bgzf.MaxVirtualPosition if the index
// has no chunks.
func (idx *Index) MinimumOffset() bgzf.VirtualPosition {
	min := bgzf.MaxVirtualPosition
	for i := range idx.ReferenceSequences {
		if offset := idx.ReferenceSequences[i].minimumOffset(); offset < min {
			min = offset
		}
	}
	return min
}

// ReadIndex reads BAI formatted index data from r.
func ReadIndex(r io.Reader) (*Index, error) {
	r = bufio.NewReader(r)
	if err := binary.ExpectBytes(r, []byte(baiMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}

	var references int32
	if err := binary.Read(r, &references); err != nil {
		return nil, fmt.Errorf("reading reference count: %v", err)
	}
	if references < 0 {
		return nil, fmt.Errorf("invalid reference count (%d references)", references)
	}

	var idx Index
	for i := int32(0); i < references; i++ {
		ref, err := readReferenceSequence(r)
		if err != nil {
			return nil, fmt.Errorf("reading reference %d: %v", i, err)
		}
		idx.ReferenceSequences = append(idx.ReferenceSequences, *ref)
	}

	var unplaced uint64
	switch err := binary.Read(r, &unplaced); err {
	case nil:
		idx.UnplacedUnmappedCount = &unplaced
	case io.EOF:
	default:
		return nil, fmt.Errorf("reading unplaced unmapped count: %v", err)
	}
	return &idx, nil
}

func readReferenceSequence(r io.Reader) (*ReferenceSequence, error) {
	var binCount int32
	if err := binary.Read(r, &binCount); err != nil {
		return nil, fmt.Errorf("reading bin count: %v", err)
	}
	if binCount < 0 {
		return nil, fmt.Errorf("invalid bin count (%d bins)", binCount)
	}

	var ref ReferenceSequence
	for j := int32(0); j < binCount; j++ {
		var header struct {
			ID     uint32
			Chunks int32
		}
		if err := binary.Read(r, &header); err != nil {
			return nil, fmt.Errorf("reading bin header: %v", err)
		}
		if header.Chunks < 0 {
			return nil, fmt.Errorf("invalid chunk count (%d chunks)", header.Chunks)
		}

		if header.ID == MetadataBinID {
			if header.Chunks != 2 {
				return nil, fmt.Errorf("invalid metadata chunk count (%d chunks)", header.Chunks)
			}
			var metadata Metadata
			if err := binary.Read(r, &metadata); err != nil {
				return nil, fmt.Errorf("reading metadata: %v", err)
			}
			ref.Metadata = &metadata
			continue
		}

		bin := Bin{ID: header.ID}
		for k := int32(0); k < header.Chunks; k++ {
			var chunk bgzf.Chunk
			if err := binary.Read(r, &chunk); err != nil {
				return nil, fmt.Errorf("reading chunk: %v", err)
			}
			bin.Chunks = append(bin.Chunks, chunk)
		}
		ref.Bins = append(ref.Bins, bin)
	}

	var intervals int32
	if err := binary.Read(r, &intervals); err != nil {
		return nil, fmt.Errorf("reading interval count: %v", err)
	}
	if intervals < 0 || intervals > MaxIntervalCount {
		return nil, fmt.Errorf("invalid interval count (%d intervals)", intervals)
	}
	ref.Intervals = make([]bgzf.VirtualPosition, intervals)
	if err := binary.Read(r, &ref.Intervals); err != nil {
		return nil, fmt.Errorf("reading intervals: %v", err)
	}
	return &ref, nil
}

// WriteIndex writes idx to w in the BAI format.
func WriteIndex(w io.Writer, idx *Index) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(baiMagic); err != nil {
		return fmt.Errorf("writing magic: %v", err)
	}
	if err := binary.Write(bw, int32(len(idx.ReferenceSequences))); err != nil {
		return fmt.Errorf("writing reference count: %v", err)
	}
	for i := range idx.ReferenceSequences {
		if err := writeReferenceSequence(bw, &idx.ReferenceSequences[i]); err != nil {
			return fmt.Errorf("writing reference %d: %v", i, err)
		}
	}
	if idx.UnplacedUnmappedCount != nil {
		if err := binary.Write(bw, *idx.UnplacedUnmappedCount); err != nil {
			return fmt.Errorf("writing unplaced unmapped count: %v", err)
		}
	}
	return bw.Flush()
}

func writeReferenceSequence(w io.Writer, ref *ReferenceSequence) error {
	binCount := int32(len(ref.Bins))
	if ref.Metadata != nil {
		binCount++
	}
	if err := binary.Write(w, binCount); err != nil {
		return fmt.Errorf("writing bin count: %v", err)
	}

	for _, bin := range ref.Bins {
		header := struct {
			ID     uint32
			Chunks int32
		}{bin.ID, int32(len(bin.Chunks))}
		if err := binary.Write(w, header); err != nil {
			return fmt.Errorf("writing bin header: %v", err)
		}
		if err := binary.Write(w, bin.Chunks); err != nil {
			return fmt.Errorf("writing chunks: %v", err)
		}
	}

	if ref.Metadata != nil {
		header := struct {
			ID     uint32
			Chunks int32
		}{MetadataBinID, 2}
		if err := binary.Write(w, header); err != nil {
			return fmt.Errorf("writing metadata header: %v", err)
		}
		if err := binary.Write(w, ref.Metadata); err != nil {
			return fmt.Errorf("writing metadata: %v", err)
		}
	}

	if err := binary.Write(w, int32(len(ref.Intervals))); err != nil {
		return fmt.Errorf("writing interval count: %v", err)
	}
	if err := binary.Write(w, ref.Intervals); err != nil {
		return fmt.Errorf("writing intervals: %v", err)
	}
	return nil
}
