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

package bgzf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

const (
	// HeaderSize is the size of the gzip member header of a BGZF block,
	// including the BC extra subfield.
	HeaderSize = 18

	// TrailerSize is the size of the CRC32 and ISIZE trailer of a block.
	TrailerSize = 8

	// The BSIZE field (total block size minus one) sits at the end of the
	// header.
	blockSizeOffset = 16
)

// EOFMarker is the empty block that terminates a BGZF file.
var EOFMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

var headerTemplate = [HeaderSize]byte{
	0x1f, 0x8b, // gzip ID.
	0x08,       // Compression method (deflate).
	0x04,       // Flags (FEXTRA).
	0x00, 0x00, 0x00, 0x00, // Modification time.
	0x00,       // Extra flags.
	0xff,       // Operating system (unknown).
	0x06, 0x00, // Length of extra data (6 bytes).
	0x42, 0x43, // Extra ID.
	0x02, 0x00, // Length of extra subfield (2 bytes).
	0x00, 0x00, // BSIZE (filled in when encoding).
}

// Block is a single decompressed BGZF block together with a read cursor.
type Block struct {
	// position is the offset of the block inside the compressed file.
	position uint64
	data     []byte
	cursor   int
}

// Len returns the size of the uncompressed data held by the block.
func (b *Block) Len() int {
	return len(b.data)
}

// VirtualPosition returns the address of the next byte to be read from the
// block.
func (b *Block) VirtualPosition() VirtualPosition {
	return NewVirtualPosition(b.position, uint16(b.cursor))
}

func (b *Block) read(p []byte) int {
	n := copy(p, b.data[b.cursor:])
	b.cursor += n
	return n
}

func (b *Block) seek(offset int) error {
	if offset > len(b.data) {
		return fmt.Errorf("data offset %d is past the end of the block (%d bytes)", offset, len(b.data))
	}
	b.cursor = offset
	return nil
}

// decoder reads framed blocks, reusing its buffers between blocks.
type decoder struct {
	header   [HeaderSize]byte
	trailer  [TrailerSize]byte
	cdata    []byte
	inflater io.ReadCloser
	output   bytes.Buffer
}

// readBlock reads a single block from r into b, replacing its contents and
// rewinding its cursor.  It returns the number of bytes consumed from r, or
// zero if r was exhausted before the first header byte.  On error the count
// still reports the bytes consumed before the failure.
func (d *decoder) readBlock(r io.Reader, b *Block) (int, error) {
	n, err := io.ReadFull(r, d.header[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return 0, nil
		}
		return n, fmt.Errorf("reading block header: %v", err)
	}
	size, err := blockSize(d.header[:])
	if err != nil {
		return n, err
	}

	length := size - HeaderSize - TrailerSize
	if cap(d.cdata) < length {
		d.cdata = make([]byte, length)
	}
	d.cdata = d.cdata[:length]
	m, err := io.ReadFull(r, d.cdata)
	n += m
	if err != nil {
		return n, fmt.Errorf("reading compressed data: %v", err)
	}

	m, err = io.ReadFull(r, d.trailer[:])
	n += m
	if err != nil {
		return n, fmt.Errorf("reading block trailer: %v", err)
	}

	if err := d.inflate(b); err != nil {
		return n, err
	}
	return n, nil
}

func (d *decoder) inflate(b *Block) error {
	b.cursor = 0
	if len(d.cdata) == 0 {
		b.data = b.data[:0]
		return nil
	}

	src := bytes.NewReader(d.cdata)
	if d.inflater == nil {
		d.inflater = flate.NewReader(src)
	} else if err := d.inflater.(flate.Resetter).Reset(src, nil); err != nil {
		return fmt.Errorf("resetting decompressor: %v", err)
	}

	d.output.Reset()
	if _, err := d.output.ReadFrom(io.LimitReader(d.inflater, MaximumUncompressedSize+1)); err != nil {
		b.data = b.data[:0]
		return fmt.Errorf("decompressing data: %v", err)
	}
	if d.output.Len() > MaximumUncompressedSize {
		b.data = b.data[:0]
		return fmt.Errorf("decompressed data exceeds %d bytes", MaximumUncompressedSize)
	}
	b.data = append(b.data[:0], d.output.Bytes()...)
	return nil
}

// blockSize validates a block header and returns the total size of the
// block.
func blockSize(header []byte) (int, error) {
	if header[0] != 0x1f || header[1] != 0x8b || header[2] != 0x08 || header[3]&0x04 == 0 {
		return 0, fmt.Errorf("invalid gzip header: %x", header[0:4])
	}
	if header[10] != 6 || header[11] != 0 {
		return 0, fmt.Errorf("unexpected extra length: %x", header[10:12])
	}
	if header[12] != 0x42 || header[13] != 0x43 {
		return 0, fmt.Errorf("unexpected extra ID: %x", header[12:14])
	}
	if header[14] != 2 || header[15] != 0 {
		return 0, fmt.Errorf("unexpected extra subfield length: %x", header[14:16])
	}

	// BSIZE is the total block size minus one.
	size := int(binary.LittleEndian.Uint16(header[blockSizeOffset:])) + 1
	if size < HeaderSize+TrailerSize {
		return 0, fmt.Errorf("invalid block size (%d bytes)", size)
	}
	return size, nil
}

// DecodeBlock decodes a single BGZF block from r and returns the
// uncompressed data and the original block size (or an error).  DecodeBlock
// never reads past the end of the block.  It returns io.EOF if r holds no
// more data.
func DecodeBlock(r io.Reader) ([]byte, int, error) {
	var (
		d     decoder
		block Block
	)
	size, err := d.readBlock(r, &block)
	if err != nil {
		return nil, 0, err
	}
	if size == 0 {
		return nil, 0, io.EOF
	}
	return block.data, size, nil
}

// encoder compresses blocks, reusing its deflate state between blocks.
type encoder struct {
	deflater *flate.Writer
	payload  bytes.Buffer
}

func (e *encoder) encode(data []byte) ([]byte, error) {
	if len(data) > MaximumUncompressedSize {
		return nil, errors.New("data exceeds maximum uncompressed block size")
	}
	if len(data) == 0 {
		return append([]byte(nil), EOFMarker...), nil
	}

	e.payload.Reset()
	if e.deflater == nil {
		deflater, err := flate.NewWriter(&e.payload, flate.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("initializing compressor: %v", err)
		}
		e.deflater = deflater
	} else {
		e.deflater.Reset(&e.payload)
	}
	if _, err := e.deflater.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %v", err)
	}
	if err := e.deflater.Close(); err != nil {
		return nil, fmt.Errorf("closing compressor: %v", err)
	}

	size := HeaderSize + e.payload.Len() + TrailerSize
	if size > MaximumBlockSize {
		return nil, fmt.Errorf("compressed block exceeds maximum block size (%d bytes)", size)
	}

	encoded := make([]byte, 0, size)
	encoded = append(encoded, headerTemplate[:]...)
	binary.LittleEndian.PutUint16(encoded[blockSizeOffset:], uint16(size-1))
	encoded = append(encoded, e.payload.Bytes()...)

	var trailer [TrailerSize]byte
	binary.LittleEndian.PutUint32(trailer[0:], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(trailer[4:], uint32(len(data)))
	return append(encoded, trailer[:]...), nil
}

// EncodeBlock returns a single BGZF block that encodes the bytes in data.
// Encoding no data yields a copy of EOFMarker.
func EncodeBlock(data []byte) ([]byte, error) {
	var e encoder
	return e.encode(data)
}
