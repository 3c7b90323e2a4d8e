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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/googlegenomics/htsindex/internal/bai"
	"github.com/googlegenomics/htsindex/internal/bam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestBAM(t *testing.T) string {
	t.Helper()

	header := &bam.Header{
		Text:       "@SQ\tSN:chr1\tLN:100000\n@SQ\tSN:chr2\tLN:5000\n",
		References: []bam.Reference{{Name: "chr1", Length: 100000}, {Name: "chr2", Length: 5000}},
	}
	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, header)
	require.NoError(t, err)
	for _, record := range []*bam.Record{
		{Name: "a", ReferenceID: 0, Pos: 99, Cigar: bam.Cigar{10 << 4}, MateReferenceID: -1, MatePos: -1},
		{Name: "b", ReferenceID: 1, Pos: 9, Cigar: bam.Cigar{10 << 4}, MateReferenceID: -1, MatePos: -1},
	} {
		_, err := w.Write(record)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "sample.bam")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestIndexAndQuery(t *testing.T) {
	path := writeTestBAM(t)
	require.NoError(t, runIndex([]string{path}))

	f, err := os.Open(path + ".bai")
	require.NoError(t, err)
	defer f.Close()
	index, err := bai.ReadIndex(f)
	require.NoError(t, err)
	assert.Len(t, index.ReferenceSequences, 2)

	testCases := []struct {
		name  string
		args  []string
		lines int
	}{
		{"all mapped reads", []string{path}, 1},
		{"first reference", []string{"-reference", "chr1", path}, 1},
		{"second reference", []string{"-reference", "chr2", path}, 2},
		{"empty region", []string{"-reference", "chr2", "-start", "50000", "-end", "60000", path}, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, runQuery(tc.args, &out))
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			assert.Len(t, lines, tc.lines)
			assert.True(t, strings.HasPrefix(lines[0], "[0-"), "first chunk %q does not start the file", lines[0])
		})
	}
}

func TestQuery_Errors(t *testing.T) {
	path := writeTestBAM(t)
	require.NoError(t, runIndex([]string{path}))

	testCases := []struct {
		name string
		args []string
	}{
		{"no file", nil},
		{"two files", []string{path, path}},
		{"unknown reference", []string{"-reference", "chr9", path}},
		{"start after end", []string{"-reference", "chr1", "-start", "10", "-end", "5", path}},
		{"missing index", []string{filepath.Join(filepath.Dir(path), "other.bam")}},
		{"unknown flag", []string{"-bogus", path}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, runQuery(tc.args, &out))
		})
	}
}

func TestIndex_Errors(t *testing.T) {
	assert.Error(t, runIndex(nil))
	assert.Error(t, runIndex([]string{filepath.Join(t.TempDir(), "missing.bam")}))
}
