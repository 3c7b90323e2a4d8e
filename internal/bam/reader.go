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
	"bytes"
	"fmt"
	"io"

	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/binary"
)

// Records larger than this are treated as corrupt.
const maximumRecordSize = 1 << 28

// Reader reads alignment records from a BAM file.
type Reader struct {
	r      *bgzf.Reader
	header *Header
	data   []byte
}

// NewReader reads the BAM header from r and returns a Reader positioned at the
// first record.
func NewReader(r io.Reader) (*Reader, error) {
	br := bgzf.NewReader(r)
	header, err := ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	return &Reader{r: br, header: header}, nil
}

// Header returns the file header.
func (r *Reader) Header() *Header {
	return r.header
}

// Read returns the next record and the chunk of the file that holds it.  It
// returns io.EOF once all records have been read.
func (r *Reader) Read() (*Record, bgzf.Chunk, error) {
	start := r.r.Tell()

	var size int32
	if err := binary.Read(r.r, &size); err != nil {
		if err == io.EOF {
			return nil, bgzf.Chunk{}, io.EOF
		}
		return nil, bgzf.Chunk{}, fmt.Errorf("reading record size: %v", err)
	}
	if size < fixedSize || size > maximumRecordSize {
		return nil, bgzf.Chunk{}, fmt.Errorf("invalid record size (%d bytes)", size)
	}

	if cap(r.data) < int(size) {
		r.data = make([]byte, size)
	}
	data := r.data[:size]
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, bgzf.Chunk{}, fmt.Errorf("reading record: %v", err)
	}
	record, err := decodeRecord(data)
	if err != nil {
		return nil, bgzf.Chunk{}, fmt.Errorf("decoding record at %s: %v", start, err)
	}
	return record, bgzf.NewChunk(start, r.r.Tell()), nil
}

// Writer writes a BAM file.
type Writer struct {
	w   *bgzf.Writer
	buf bytes.Buffer
}

// NewWriter writes header to w and returns a Writer for the records that
// follow.  The header is flushed so that the first record starts a new block.
func NewWriter(w io.Writer, header *Header) (*Writer, error) {
	bw := bgzf.NewWriter(w)
	if err := writeHeader(bw, header); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("flushing header: %v", err)
	}
	return &Writer{w: bw}, nil
}

// Write appends record and returns the chunk of the file that holds it.
func (w *Writer) Write(record *Record) (bgzf.Chunk, error) {
	w.buf.Reset()
	w.buf.Write(make([]byte, 4))
	if err := record.encode(&w.buf); err != nil {
		return bgzf.Chunk{}, fmt.Errorf("encoding record: %v", err)
	}
	data := w.buf.Bytes()
	size := len(data) - 4
	data[0], data[1], data[2], data[3] = byte(size), byte(size>>8), byte(size>>16), byte(size>>24)

	start := w.w.VirtualPosition()
	if _, err := w.w.Write(data); err != nil {
		return bgzf.Chunk{}, fmt.Errorf("writing record: %v", err)
	}
	return bgzf.NewChunk(start, w.w.VirtualPosition()), nil
}

// Flush ends the current block.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes buffered records and terminates the file with an EOF marker.
func (w *Writer) Close() error {
	return w.w.Close()
}
