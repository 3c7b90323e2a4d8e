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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/genomics"
)

func vp(compressed uint64, uncompressed uint16) bgzf.VirtualPosition {
	return bgzf.NewVirtualPosition(compressed, uncompressed)
}

// testIndex returns an index with three records on the first reference and
// none on the second.
func testIndex() *Index {
	builder := NewBuilder()
	builder.AddRecord(testRecord{100, 0, 50}, bgzf.NewChunk(vp(100, 0), vp(100, 50)))
	builder.AddRecord(testRecord{20000, 0, 50}, bgzf.NewChunk(vp(100, 50), vp(200, 0)))
	builder.AddRecord(testRecord{100000, 0, 100}, bgzf.NewChunk(vp(200, 0), vp(300, 0)))

	unplaced := uint64(3)
	return &Index{
		ReferenceSequences:    []ReferenceSequence{builder.Build(), NewBuilder().Build()},
		UnplacedUnmappedCount: &unplaced,
	}
}

func TestIndex_RoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		index *Index
	}{
		{"built index", testIndex()},
		{"no references", &Index{}},
		{"without unplaced count", &Index{ReferenceSequences: testIndex().ReferenceSequences}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteIndex(&buf, tc.index))

			got, err := ReadIndex(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.index, got)
		})
	}
}

func TestWriteIndex_Layout(t *testing.T) {
	idx := &Index{
		ReferenceSequences: []ReferenceSequence{{
			Bins:      []Bin{{ID: 4681, Chunks: []bgzf.Chunk{bgzf.NewChunk(55, 144)}}},
			Intervals: []bgzf.VirtualPosition{89},
			Metadata:  &Metadata{StartPosition: 55, EndPosition: 144, MappedCount: 1, UnmappedCount: 1},
		}},
	}
	want := []byte{
		'B', 'A', 'I', 1,
		1, 0, 0, 0, // n_ref
		2, 0, 0, 0, // n_bin
		0x49, 0x12, 0, 0, 1, 0, 0, 0, // bin 4681, one chunk
		55, 0, 0, 0, 0, 0, 0, 0, 144, 0, 0, 0, 0, 0, 0, 0,
		0x4a, 0x92, 0, 0, 2, 0, 0, 0, // metadata pseudo-bin
		55, 0, 0, 0, 0, 0, 0, 0, 144, 0, 0, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0,
		1, 0, 0, 0, // n_intv
		89, 0, 0, 0, 0, 0, 0, 0,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, idx))
	assert.Equal(t, want, buf.Bytes())
}

func TestWriteIndex_DenseIntervals(t *testing.T) {
	var buf bytes.Buffer
	idx := &Index{ReferenceSequences: []ReferenceSequence{NewBuilder().Build()}}
	require.NoError(t, WriteIndex(&buf, idx))

	// Magic, n_ref, n_bin, n_intv and the intervals.
	assert.Equal(t, 4+4+4+4+8*MaxIntervalCount, buf.Len())
}

func TestReadIndex_Errors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, testIndex()))
	valid := buf.Bytes()

	testCases := []struct {
		name string
		data []byte
	}{
		{"zero-length", nil},
		{"wrong magic", []byte("BAM\x01\x00\x00\x00\x00")},
		{"truncated reference count", []byte("BAI\x01\x01")},
		{"negative reference count", []byte("BAI\x01\xff\xff\xff\xff")},
		{"negative bin count", []byte("BAI\x01\x01\x00\x00\x00\xff\xff\xff\xff")},
		{"truncated bin", []byte("BAI\x01\x01\x00\x00\x00\x01\x00\x00\x00\x49\x12")},
		{"negative chunk count", []byte("BAI\x01\x01\x00\x00\x00\x01\x00\x00\x00\x49\x12\x00\x00\xff\xff\xff\xff")},
		{"bad metadata chunk count", []byte("BAI\x01\x01\x00\x00\x00\x01\x00\x00\x00\x4a\x92\x00\x00\x01\x00\x00\x00")},
		{"too many intervals", []byte("BAI\x01\x01\x00\x00\x00\x00\x00\x00\x00\x01\x00\x03\x00")},
		{"truncated intervals", valid[:len(valid)/2]},
		{"truncated unplaced count", valid[:len(valid)-3]},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadIndex(bytes.NewReader(tc.data)); err == nil {
				t.Fatal("ReadIndex(): expected error, not success")
			}
		})
	}
}

func TestIndex_Query(t *testing.T) {
	first := bgzf.NewChunk(vp(100, 0), vp(100, 50))
	second := bgzf.NewChunk(vp(100, 50), vp(200, 0))
	third := bgzf.NewChunk(vp(200, 0), vp(300, 0))

	testCases := []struct {
		name   string
		region genomics.Region
		want   []bgzf.Chunk
	}{
		{"all mapped reads", genomics.AllMappedReads, []bgzf.Chunk{first, second, third}},
		{"whole first reference", genomics.Region{ReferenceID: 0}, []bgzf.Chunk{first, second, third}},
		{"empty reference", genomics.Region{ReferenceID: 1}, nil},
		{"missing reference", genomics.Region{ReferenceID: 7}, nil},
		{"second window", genomics.Region{ReferenceID: 0, Start: 19000, End: 21000}, []bgzf.Chunk{second}},
		{"first window", genomics.Region{ReferenceID: 0, Start: 0, End: 200}, []bgzf.Chunk{first}},
		{"open end", genomics.Region{ReferenceID: 0, Start: 99000}, []bgzf.Chunk{third}},
		{"no alignments", genomics.Region{ReferenceID: 0, Start: 200000, End: 300000}, nil},
	}
	idx := testIndex()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got []bgzf.Chunk
			for _, chunk := range idx.Query(tc.region) {
				got = append(got, *chunk)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIndex_MinimumOffset(t *testing.T) {
	assert.Equal(t, vp(100, 0), testIndex().MinimumOffset())
	assert.Equal(t, bgzf.MaxVirtualPosition, (&Index{}).MinimumOffset())
}
