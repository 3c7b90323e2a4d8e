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
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/htsindex/internal/bai"
	"github.com/googlegenomics/htsindex/internal/bam"
	"github.com/googlegenomics/htsindex/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlockSizeLimit = 1024 * 1024

func init() {
	gin.SetMode(gin.TestMode)
}

var testHeader = &bam.Header{
	Text: "@HD\tVN:1.6\tSO:coordinate\n" +
		"@SQ\tSN:chr1\tLN:100000\n" +
		"@SQ\tSN:chr2\tLN:5000\tAN:2\n",
	References: []bam.Reference{
		{Name: "chr1", Length: 100000},
		{Name: "chr2", Length: 5000},
	},
}

func testRecords(t *testing.T) []*bam.Record {
	record := func(name string, ref, pos int32, cigar string) *bam.Record {
		c, err := bam.ParseCigar(cigar)
		require.NoError(t, err)
		return &bam.Record{
			Name:            name,
			ReferenceID:     ref,
			Pos:             pos,
			Cigar:           c,
			MateReferenceID: -1,
			MatePos:         -1,
			Seq:             strings.Repeat("A", int(c.ReferenceLen())),
		}
	}
	return []*bam.Record{
		record("r1", 0, 99, "50M"),
		record("r2", 0, 19999, "20M"),
		record("r3", 1, 9, "4M"),
		record("r4", -1, -1, "*"),
	}
}

// writeTestData writes a BAM file and, if index is not empty, its index to
// dir.
func writeTestData(t *testing.T, dir, name, index string) {
	t.Helper()

	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, testHeader)
	require.NoError(t, err)
	for _, record := range testRecords(t) {
		_, err := w.Write(record)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))

	if index == "" {
		return
	}
	idx, err := bam.BuildIndex(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, bai.WriteIndex(&out, idx))
	require.NoError(t, os.WriteFile(filepath.Join(dir, index), out.Bytes(), 0o644))
}

func newTestHandler(t *testing.T) http.Handler {
	dir := t.TempDir()
	writeTestData(t, dir, "sample.bam", "sample.bam.bai")
	writeTestData(t, dir, "short.bam", "short.bai")
	writeTestData(t, dir, "noindex.bam", "")
	return New(StaticSource(source.NewDirectory(dir)), testBlockSizeLimit).Handler()
}

func testQuery(handler http.Handler, url string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", url, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeTicket(t *testing.T, w *httptest.ResponseRecorder) ticket {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response ticket
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "BAM", response.Htsget.Format)
	require.NotEmpty(t, response.Htsget.URLs)
	assert.Equal(t, eofMarkerDataURL, response.Htsget.URLs[len(response.Htsget.URLs)-1].URL)
	return response
}

// fetch follows every URL of the ticket and returns the concatenated data.
func fetch(t *testing.T, handler http.Handler, response ticket) []byte {
	t.Helper()

	var data []byte
	for _, u := range response.Htsget.URLs {
		if strings.HasPrefix(u.URL, "data:") {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(u.URL, "data:;base64,"))
			require.NoError(t, err)
			data = append(data, decoded...)
			continue
		}

		parsed, err := url.Parse(u.URL)
		require.NoError(t, err)
		w := testQuery(handler, parsed.RequestURI(), nil)
		require.Equal(t, http.StatusOK, w.Code, "fetching %s: %s", u.URL, w.Body.String())
		data = append(data, w.Body.Bytes()...)
	}
	return data
}

func readNames(t *testing.T, data []byte) []string {
	t.Helper()

	r, err := bam.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, testHeader, r.Header())

	var names []string
	for {
		record, _, err := r.Read()
		if err == io.EOF {
			return names
		}
		require.NoError(t, err)
		names = append(names, record.Name)
	}
}

func TestReads(t *testing.T) {
	handler := newTestHandler(t)

	testCases := []struct {
		name  string
		url   string
		reads []string
	}{
		{"all mapped reads", "/reads/sample.bam", []string{"r1", "r2", "r3"}},
		{"first reference", "/reads/sample.bam?referenceName=chr1", []string{"r1", "r2"}},
		{"second reference", "/reads/sample.bam?format=BAM&referenceName=chr2", []string{"r3"}},
		{"alternative name", "/reads/sample.bam?referenceName=2", []string{"r3"}},
		{"second window", "/reads/sample.bam?referenceName=chr1&start=19000&end=21000", []string{"r2"}},
		{"short index name", "/reads/short.bam?referenceName=chr1", []string{"r1", "r2"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			response := decodeTicket(t, testQuery(handler, tc.url, nil))
			assert.Equal(t, tc.reads, readNames(t, fetch(t, handler, response)))
		})
	}
}

func TestReads_BlockURLs(t *testing.T) {
	handler := newTestHandler(t)
	response := decodeTicket(t, testQuery(handler, "/reads/sample.bam?referenceName=chr2", nil))

	// The header and the record are in different chunks of the same file.
	require.Len(t, response.Htsget.URLs, 3)
	for _, u := range response.Htsget.URLs[:2] {
		assert.True(t, strings.HasPrefix(u.URL, "http://example.com/block/sample.bam?"), "unexpected URL %q", u.URL)
		assert.Nil(t, u.Headers)
	}
}

func TestErrors(t *testing.T) {
	handler := newTestHandler(t)

	testCases := []struct {
		name string
		url  string
		code int
		err  string
	}{
		{"unknown format", "/reads/sample.bam?format=XYZ", http.StatusBadRequest, "UnsupportedFormat"},
		{"lowercase bam", "/reads/sample.bam?format=bam", http.StatusBadRequest, "UnsupportedFormat"},
		{"invalid ID (trailing slash)", "/reads/sample/", http.StatusBadRequest, "InvalidInput"},
		{"missing object", "/reads/missing.bam", http.StatusNotFound, "NotFound"},
		{"no index files", "/reads/noindex.bam", http.StatusNotFound, "NotFound"},
		{"missing reference name", "/reads/sample.bam?start=10", http.StatusBadRequest, "InvalidInput"},
		{"unknown reference", "/reads/sample.bam?referenceName=chr9", http.StatusBadRequest, "InvalidInput"},
		{"invalid start", "/reads/sample.bam?referenceName=chr1&start=abc", http.StatusBadRequest, "InvalidInput"},
		{"start after end", "/reads/sample.bam?referenceName=chr1&start=200&end=100", http.StatusBadRequest, "InvalidRange"},
		{"invalid block start", "/block/sample.bam?start=zz&end=0", http.StatusBadRequest, "InvalidInput"},
		{"block ends before start", "/block/sample.bam?start=10&end=0", http.StatusBadRequest, "InvalidInput"},
		{"missing block object", "/block/missing.bam?start=0&end=10000", http.StatusNotFound, "NotFound"},
		{"data offset past block", "/block/sample.bam?start=0&end=ffff", http.StatusBadRequest, "InvalidRange"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, tc.err, tc.code, testQuery(handler, tc.url, nil))
		})
	}
}

func TestSourceErrors(t *testing.T) {
	newSource := func(*http.Request) (source.Source, http.Header, error) {
		return nil, nil, source.ErrMissingOrInvalidToken
	}
	handler := New(newSource, testBlockSizeLimit).Handler()

	for _, path := range []string{"/reads/sample.bam", "/block/sample.bam?start=0&end=0"} {
		t.Run(path, func(t *testing.T) {
			expectError(t, "PermissionDenied", http.StatusForbidden, testQuery(handler, path, nil))
		})
	}
}

func TestForwardedHeaders(t *testing.T) {
	dir := t.TempDir()
	writeTestData(t, dir, "sample.bam", "sample.bam.bai")
	newSource := func(req *http.Request) (source.Source, http.Header, error) {
		return source.NewDirectory(dir), http.Header{"Authorization": []string{req.Header.Get("Authorization")}}, nil
	}
	handler := New(newSource, testBlockSizeLimit).Handler()

	header := http.Header{"Authorization": []string{"Bearer token"}}
	response := decodeTicket(t, testQuery(handler, "/reads/sample.bam", header))
	for _, u := range response.Htsget.URLs[:len(response.Htsget.URLs)-1] {
		assert.Equal(t, map[string]string{"Authorization": "Bearer token"}, u.Headers)
	}
}

func TestMiddleware(t *testing.T) {
	handler := newTestHandler(t)

	w := testQuery(handler, "/reads/missing.bam", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = testQuery(handler, "/reads/missing.bam", http.Header{
		requestIDHeader: []string{"my-request"},
		"Origin":        []string{"http://viewer.example.com"},
	})
	assert.Equal(t, "my-request", w.Header().Get(requestIDHeader))
	assert.Equal(t, "http://viewer.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func expectError(t *testing.T, name string, code int, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, code, w.Code, "wrong status code")

	var body struct {
		Htsget struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		} `json:"htsget"`
	}
	if assert.NoError(t, json.NewDecoder(w.Body).Decode(&body), "parsing response") {
		assert.Equal(t, name, body.Htsget.Error, "wrong 'error' field value")
		assert.NotEmpty(t, body.Htsget.Message)
	}
}
