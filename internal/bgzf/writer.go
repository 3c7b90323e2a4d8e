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

var errClosed = errors.New("write to closed writer")

// Writer compresses data into BGZF blocks of at most MaximumDataSize
// uncompressed bytes.  A Writer is not safe for concurrent use.
type Writer struct {
	w io.Writer
	// position is the number of compressed bytes written to w.
	position uint64
	encoder  encoder
	buffer   []byte
	closed   bool
}

// NewWriter returns a Writer that writes compressed blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buffer: make([]byte, 0, MaximumDataSize)}
}

// VirtualPosition returns the virtual position at which the next byte
// written will be found once the file is complete.
func (w *Writer) VirtualPosition() VirtualPosition {
	return NewVirtualPosition(w.position, uint16(len(w.buffer)))
}

// Write buffers p, emitting a block each time MaximumDataSize bytes have
// accumulated.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosed
	}

	var written int
	for len(p) > 0 {
		n := copy(w.buffer[len(w.buffer):cap(w.buffer)], p)
		w.buffer = w.buffer[:len(w.buffer)+n]
		p = p[n:]
		written += n

		if len(w.buffer) == cap(w.buffer) {
			if err := w.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush emits any buffered data as a block.  Flushing an empty buffer does
// nothing.
func (w *Writer) Flush() error {
	if w.closed {
		return errClosed
	}
	if len(w.buffer) == 0 {
		return nil
	}

	encoded, err := w.encoder.encode(w.buffer)
	if err != nil {
		return fmt.Errorf("encoding block: %v", err)
	}
	if _, err := w.w.Write(encoded); err != nil {
		return fmt.Errorf("writing block: %v", err)
	}
	w.position += uint64(len(encoded))
	w.buffer = w.buffer[:0]
	return nil
}

// Close flushes any buffered data and appends the EOF marker block.  It does
// not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	if _, err := w.w.Write(EOFMarker); err != nil {
		return fmt.Errorf("writing EOF marker: %v", err)
	}
	w.position += uint64(len(EOFMarker))
	return nil
}
