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

package bgzf

import (
	"errors"
	"fmt"
	"io"
)

// Progress reports the outcome of a single call to Reader.Step.
type Progress struct {
	// N is the number of bytes copied into the caller's buffer.
	N int
	// NeedMore is set when the call crossed a block boundary.  A new block
	// has been loaded but no bytes were produced; call Step again.
	NeedMore bool
}

// Reader decompresses a BGZF stream one block at a time.  A Reader is not
// safe for concurrent use.
type Reader struct {
	r io.Reader
	// position is the number of compressed bytes consumed from r.
	position uint64
	decoder  decoder
	block    Block
}

// NewReader returns a Reader that decompresses the blocks read from r.
// Seek additionally requires r to implement io.Seeker.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Position returns the number of compressed bytes consumed so far.
func (r *Reader) Position() uint64 {
	return r.position
}

// VirtualPosition returns the virtual position of the next byte to be read.
func (r *Reader) VirtualPosition() VirtualPosition {
	return r.block.VirtualPosition()
}

// Tell is like VirtualPosition, except that once the current block has been
// consumed it returns the start of the following block.  This is the form
// used for record boundaries in index files.
func (r *Reader) Tell() VirtualPosition {
	if r.block.cursor == r.block.Len() {
		return NewVirtualPosition(r.position, 0)
	}
	return r.block.VirtualPosition()
}

// Step copies bytes from the current block into p.  When the current block
// is exhausted, Step loads the next block and returns with NeedMore set and
// no bytes copied.  Step returns io.EOF once no blocks remain.  An empty p
// never changes the state of the reader.  After a block fails to decode, the
// bytes it occupied are skipped and the next Step continues with the block
// that follows.
func (r *Reader) Step(p []byte) (Progress, error) {
	if len(p) == 0 {
		return Progress{}, nil
	}
	if n := r.block.read(p); n > 0 {
		return Progress{N: n}, nil
	}

	size, err := r.decoder.readBlock(r.r, &r.block)
	if err != nil {
		r.block.position = r.position
		r.block.data = r.block.data[:0]
		r.block.cursor = 0
		r.position += uint64(size)
		return Progress{}, err
	}
	if size == 0 {
		return Progress{}, io.EOF
	}
	r.block.position = r.position
	r.position += uint64(size)
	return Progress{NeedMore: true}, nil
}

// Read implements io.Reader by calling Step until bytes are produced or the
// stream ends.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		progress, err := r.Step(p)
		if err != nil || !progress.NeedMore {
			return progress.N, err
		}
	}
}

// Seek moves the reader to pos.  It decodes the block starting at the
// compressed offset of pos, discarding any buffered data, and positions the
// cursor at the uncompressed offset.  It returns the position reached, which
// is pos on success.
func (r *Reader) Seek(pos VirtualPosition) (VirtualPosition, error) {
	seeker, ok := r.r.(io.Seeker)
	if !ok {
		return 0, errors.New("underlying reader does not support seeking")
	}

	offset := pos.Compressed()
	if _, err := seeker.Seek(int64(offset), io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking to offset %d: %v", offset, err)
	}

	size, err := r.decoder.readBlock(r.r, &r.block)
	if err != nil {
		return 0, fmt.Errorf("reading block at offset %d: %v", offset, err)
	}
	if size == 0 {
		return 0, fmt.Errorf("no block at offset %d", offset)
	}
	r.block.position = offset
	r.position = offset + uint64(size)

	if err := r.block.seek(int(pos.Uncompressed())); err != nil {
		return 0, fmt.Errorf("seeking inside block at offset %d: %v", offset, err)
	}
	return pos, nil
}
