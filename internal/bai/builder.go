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
	"sort"

	"github.com/googlegenomics/htsindex/internal/bgzf"
)

// Builder accumulates the index of a single reference sequence from its
// records.  The zero value is ready to use.  A Builder is consumed by Build
// and must not be used afterwards.
type Builder struct {
	bins      map[uint32]*BinBuilder
	intervals linearIndex
	metadata  Metadata
	built     bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.init()
	return b
}

func (b *Builder) init() {
	if b.built {
		panic("bai: Builder used after Build")
	}
	if b.intervals != nil {
		return
	}
	b.bins = make(map[uint32]*BinBuilder)
	b.intervals = newLinearIndex()
	b.metadata = newMetadata()
}

// AddRecord adds a record whose encoded bytes span chunk.  Records must be
// added in ascending coordinate order: the linear index keeps the start of
// the most recent chunk touching each window.
func (b *Builder) AddRecord(record Record, chunk bgzf.Chunk) {
	b.init()
	b.updateBins(record, chunk)
	b.intervals.update(record, chunk)
	b.metadata.update(record, chunk)
}

// Build returns the index of the reference sequence.  If no records were
// added, the result has no bins and no metadata.  Bins are sorted by ID.
func (b *Builder) Build() ReferenceSequence {
	b.init()
	b.built = true

	if len(b.bins) == 0 {
		return ReferenceSequence{Intervals: b.intervals}
	}

	bins := make([]Bin, 0, len(b.bins))
	for _, builder := range b.bins {
		bins = append(bins, builder.Build())
	}
	sort.Slice(bins, func(i, j int) bool {
		return bins[i].ID < bins[j].ID
	})

	metadata := b.metadata
	return ReferenceSequence{
		Bins:      bins,
		Intervals: b.intervals,
		Metadata:  &metadata,
	}
}

func (b *Builder) updateBins(record Record, chunk bgzf.Chunk) {
	id := uint32(record.Bin())
	builder, ok := b.bins[id]
	if !ok {
		builder = NewBinBuilder(id)
		b.bins[id] = builder
	}
	builder.AddChunk(chunk)
}

// linearIndex holds, for every window, the virtual position at which to
// start decoding to find the alignments overlapping the window.
type linearIndex []bgzf.VirtualPosition

func newLinearIndex() linearIndex {
	return make(linearIndex, MaxIntervalCount)
}

// update sets every window covered by record to the start of chunk.  The
// last record written to a window wins, so a record processed out of order
// can leave a window pointing past an earlier overlapping record.
func (l linearIndex) update(record Record, chunk bgzf.Chunk) {
	start := int64(record.Position())
	end := start + int64(record.ReferenceLen()) - 1

	first := (start - 1) / WindowSize
	last := (end - 1) / WindowSize
	if first < 0 {
		first = 0
	}
	if last >= int64(len(l)) {
		last = int64(len(l)) - 1
	}
	for i := first; i <= last; i++ {
		l[i] = chunk.Start
	}
}
