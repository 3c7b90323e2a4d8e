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

package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/source"
)

func (server *Server) serveBlock(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, newInvalidInputError("parsing readset ID", err))
		return
	}

	chunk, err := parseChunk(c)
	if err != nil {
		writeError(c, newInvalidInputError("parsing chunk", err))
		return
	}

	src, _, err := server.newSource(c.Request)
	if err != nil {
		writeError(c, newStorageError("creating source", err))
		return
	}

	request := &blockRequest{
		source: src,
		name:   id,
		chunk:  chunk,
	}
	response, err := request.handle(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	defer response.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, response); err != nil {
		log.Printf("[%s] Failed to copy response: %v", c.GetString(requestIDKey), err)
	}
}

func parseChunk(c *gin.Context) (bgzf.Chunk, error) {
	start, err := bgzf.ParseVirtualPosition(c.Query("start"))
	if err != nil {
		return bgzf.Chunk{}, fmt.Errorf("parsing start: %v", err)
	}
	end, err := bgzf.ParseVirtualPosition(c.Query("end"))
	if err != nil {
		return bgzf.Chunk{}, fmt.Errorf("parsing end: %v", err)
	}
	if end < start {
		return bgzf.Chunk{}, fmt.Errorf("chunk %s ends before it starts", &bgzf.Chunk{Start: start, End: end})
	}
	return bgzf.NewChunk(start, end), nil
}

type blockRequest struct {
	source source.Source
	name   string
	chunk  bgzf.Chunk
}

// handle returns the BGZF blocks holding the data of the chunk.  Blocks that
// are only partially covered by the chunk are decoded and re-encoded, all
// other blocks are passed through unchanged.
func (req *blockRequest) handle(ctx context.Context) (io.ReadCloser, error) {
	start, end := req.chunk.Start, req.chunk.End
	head, tail := int64(start.Compressed()), int64(end.Compressed())

	// A chunk ending at the maximum position extends to the end of the file.
	if end == bgzf.MaxVirtualPosition {
		var readers []io.Reader
		if start.Uncompressed() != 0 {
			prefix, length, err := req.reencode(ctx, head, int(start.Uncompressed()), -1)
			if err != nil {
				return nil, err
			}
			readers = append(readers, bytes.NewReader(prefix))
			head += int64(length)
		}
		rest, err := req.source.NewRangeReader(ctx, req.name, head, -1)
		if err != nil {
			return nil, newStorageError("opening body blocks", err)
		}
		readers = append(readers, rest)
		return &multiReadCloser{Reader: io.MultiReader(readers...), closers: []io.Closer{rest}}, nil
	}

	// The simple case is when the chunk resides in a single block.
	if head == tail {
		encoded, _, err := req.reencode(ctx, head, int(start.Uncompressed()), int(end.Uncompressed()))
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(encoded)), nil
	}

	var readers []io.Reader
	var closers []io.Closer

	// Read the first block and reconstruct a prefix block.
	if start.Uncompressed() != 0 {
		encoded, length, err := req.reencode(ctx, head, int(start.Uncompressed()), -1)
		if err != nil {
			return nil, err
		}
		head += int64(length)
		readers = append(readers, bytes.NewReader(encoded))
	}

	// Read any intermediate blocks (no modification needed).
	if tail-head > 0 {
		r, err := req.source.NewRangeReader(ctx, req.name, head, tail-head)
		if err != nil {
			return nil, newStorageError("opening body blocks", err)
		}
		readers = append(readers, r)
		closers = append(closers, r)
	}

	// Read the last block and reconstruct a suffix block.
	if end.Uncompressed() != 0 {
		encoded, _, err := req.reencode(ctx, tail, 0, int(end.Uncompressed()))
		if err != nil {
			for _, closer := range closers {
				closer.Close()
			}
			return nil, err
		}
		readers = append(readers, bytes.NewReader(encoded))
	}

	return &multiReadCloser{
		Reader:  io.MultiReader(readers...),
		closers: closers,
	}, nil
}

// reencode decodes the block at offset and returns a new block holding its
// data in the range [from, to), along with the size of the original block.  A
// negative to selects the rest of the block.
func (req *blockRequest) reencode(ctx context.Context, offset int64, from, to int) ([]byte, int, error) {
	r, err := req.source.NewRangeReader(ctx, req.name, offset, bgzf.MaximumBlockSize)
	if err != nil {
		return nil, 0, newStorageError("opening block", err)
	}
	defer r.Close()

	decoded, length, err := bgzf.DecodeBlock(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding block at offset %d: %v", offset, err)
	}
	if to < 0 {
		to = len(decoded)
	}
	if from > to || to > len(decoded) {
		return nil, 0, newInvalidRangeError(fmt.Errorf("data range [%d, %d) is outside the block at offset %d (%d bytes)", from, to, offset, len(decoded)))
	}

	encoded, err := bgzf.EncodeBlock(decoded[from:to])
	if err != nil {
		return nil, 0, fmt.Errorf("encoding block: %v", err)
	}
	return encoded, length, nil
}

type multiReadCloser struct {
	io.Reader

	closers []io.Closer
}

func (mrc *multiReadCloser) Close() error {
	var errors []error
	for _, closer := range mrc.closers {
		if err := closer.Close(); err != nil {
			errors = append(errors, err)
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("one or more errors: %v", errors)
	}
	return nil
}
