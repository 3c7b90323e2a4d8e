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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/htsindex/internal/bam"
	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/genomics"
	"github.com/googlegenomics/htsindex/internal/source"
)

type ticket struct {
	Htsget struct {
		Format string      `json:"format"`
		URLs   []ticketURL `json:"urls"`
	} `json:"htsget"`
}

type ticketURL struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (server *Server) serveReads(c *gin.Context) {
	ctx := c.Request.Context()

	query := c.Request.URL.Query()
	if err := parseFormat(query.Get("format")); err != nil {
		writeError(c, newUnsupportedFormatError(err))
		return
	}

	id, err := parseID(c)
	if err != nil {
		writeError(c, newInvalidInputError("parsing readset ID", err))
		return
	}

	src, headers, err := server.newSource(c.Request)
	if err != nil {
		writeError(c, newStorageError("creating source", err))
		return
	}

	data, err := src.NewRangeReader(ctx, id, 0, int64(server.blockSizeLimit))
	if err != nil {
		writeError(c, newStorageError("opening data", err))
		return
	}
	defer data.Close()

	region, err := parseRegion(query, data)
	if err != nil {
		writeError(c, newInvalidInputError("parsing region", err))
		return
	}
	if err := region.Validate(); err != nil {
		writeError(c, newInvalidRangeError(err))
		return
	}

	request := &readsRequest{
		source: src,
		indexNames: []string{
			id + ".bai",
			strings.TrimSuffix(id, ".bam") + ".bai",
		},
		blockSizeLimit: server.blockSizeLimit,
		region:         region,
	}
	chunks, err := request.handle(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	base := blockURL(c.Request, id)
	var response ticket
	response.Htsget.Format = "BAM"
	for _, chunk := range chunks {
		values := url.Values{}
		values.Set("start", chunk.Start.String())
		values.Set("end", chunk.End.String())

		u := ticketURL{URL: base + "?" + values.Encode()}
		if len(headers) > 0 {
			// The htsget specification does not support multiple values for a
			// single header.
			u.Headers = make(map[string]string)
			for k, v := range headers {
				u.Headers[k] = v[0]
			}
		}
		response.Htsget.URLs = append(response.Htsget.URLs, u)
	}
	response.Htsget.URLs = append(response.Htsget.URLs, ticketURL{URL: eofMarkerDataURL})

	writeJSON(c, http.StatusOK, &response)
}

// blockURL returns the URL of the block endpoint for id, relative to the host
// the request was sent to.
func blockURL(req *http.Request, id string) string {
	var base string
	if req.Host != "" {
		if req.TLS != nil {
			base = "https://"
		} else {
			base = "http://"
		}
		base += req.Host
	}
	return base + blockPath + id
}

func parseRegion(query url.Values, data io.Reader) (genomics.Region, error) {
	var (
		name  = query.Get("referenceName")
		start = query.Get("start")
		end   = query.Get("end")
	)
	if name == "" && start == "" && end == "" {
		return genomics.AllMappedReads, nil
	}
	if name == "" {
		return genomics.Region{}, errMissingReferenceName
	}

	id, err := bam.GetReferenceID(data, name)
	if err != nil {
		return genomics.Region{}, fmt.Errorf("resolving reference %q: %v", name, err)
	}

	region := genomics.Region{ReferenceID: id}

	if start != "" {
		n, err := strconv.ParseUint(start, 10, 32)
		if err != nil {
			return genomics.Region{}, fmt.Errorf("parsing start: %v", err)
		}
		region.Start = uint32(n)
	}

	if end != "" {
		n, err := strconv.ParseUint(end, 10, 32)
		if err != nil {
			return genomics.Region{}, fmt.Errorf("parsing end: %v", err)
		}
		region.End = uint32(n)
	}

	return region, nil
}

type readsRequest struct {
	source         source.Source
	indexNames     []string
	blockSizeLimit uint64
	region         genomics.Region
}

func (req *readsRequest) handle(ctx context.Context) ([]*bgzf.Chunk, error) {
	var index io.ReadCloser
	var err error
	for _, name := range req.indexNames {
		index, err = req.source.NewRangeReader(ctx, name, 0, -1)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, newStorageError("opening index", err)
	}
	defer index.Close()

	chunks, err := bam.Read(index, req.region)
	if err != nil {
		return nil, fmt.Errorf("reading index: %v", err)
	}
	return bgzf.Merge(chunks, req.blockSizeLimit), nil
}
