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

// Bin lists the chunks of the alignments that fall into one bin.
type Bin struct {
	ID     uint32
	Chunks []bgzf.Chunk
}

// BinBuilder accumulates the chunks of a single bin.
type BinBuilder struct {
	id     uint32
	chunks []bgzf.Chunk
}

// NewBinBuilder returns a builder for the bin with the provided ID.
func NewBinBuilder(id uint32) *BinBuilder {
	return &BinBuilder{id: id}
}

// AddChunk appends chunk to the bin.  Chunks are kept in insertion order and
// are never merged, even when they overlap or touch.
func (b *BinBuilder) AddChunk(chunk bgzf.Chunk) {
	b.chunks = append(b.chunks, chunk)
}

// Build returns the finished bin.
func (b *BinBuilder) Build() Bin {
	return Bin{ID: b.id, Chunks: b.chunks}
}
