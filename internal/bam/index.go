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

package bam

import (
	"fmt"
	"io"

	"github.com/googlegenomics/htsindex/internal/bai"
)

// BuildIndex reads the coordinate sorted BAM file r and returns its index.
// Records without a reference are counted as unplaced.
func BuildIndex(r io.Reader) (*bai.Index, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	var (
		references = reader.Header().References
		builders   = make([]bai.Builder, len(references))
		unplaced   uint64
		lastID     int32
		lastPos    int32 = -1
	)
	for {
		record, chunk, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		id := record.ReferenceID
		if id < 0 {
			unplaced++
			continue
		}
		if int(id) >= len(references) {
			return nil, fmt.Errorf("record %q has invalid reference ID %d", record.Name, id)
		}
		if id < lastID || (id == lastID && record.Pos < lastPos) {
			return nil, fmt.Errorf("records are not sorted by coordinate (%d:%d after %d:%d)", id, record.Pos, lastID, lastPos)
		}
		lastID, lastPos = id, record.Pos

		builders[id].AddRecord(record, chunk)
	}

	index := &bai.Index{UnplacedUnmappedCount: &unplaced}
	for i := range builders {
		index.ReferenceSequences = append(index.ReferenceSequences, builders[i].Build())
	}
	return index, nil
}
