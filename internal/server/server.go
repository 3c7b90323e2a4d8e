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

// Package server implements the reads part of the htsget retrieval API on top
// of BAM files and their BAI indexes.
//
// The version implemented by this package is v1.0.0 defined at:
// http://samtools.github.io/hts-specs/htsget.html.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/source"
	"google.golang.org/api/googleapi"
)

const (
	readsPath = "/reads/"
	blockPath = "/block/"

	requestIDHeader = "X-Request-Id"
	requestIDKey    = "requestID"
)

var (
	eofMarkerDataURL = "data:;base64," + base64.StdEncoding.EncodeToString(bgzf.EOFMarker)

	errInvalidOrUnspecifiedID = errors.New("invalid or unspecified ID")
	errMissingReferenceName   = errors.New("no reference name specified")
)

// NewSourceFunc returns the Source that should satisfy req.  Any headers that
// caused this particular source to be chosen are returned so that the block
// URLs handed to the client can carry them.
type NewSourceFunc func(req *http.Request) (source.Source, http.Header, error)

// StaticSource returns a NewSourceFunc that always uses src.
func StaticSource(src source.Source) NewSourceFunc {
	return func(*http.Request) (source.Source, http.Header, error) {
		return src, nil, nil
	}
}

// Server provides an htsget protocol server.  Must be created with New.
type Server struct {
	newSource      NewSourceFunc
	blockSizeLimit uint64
}

// New returns a Server that reads objects from the sources returned by
// newSource.  Blocks returned from the server will generally not exceed
// blockSizeLimit bytes, though BAM chunks that already exceed this size will
// not be split.
func New(newSource NewSourceFunc, blockSizeLimit uint64) *Server {
	return &Server{newSource: newSource, blockSizeLimit: blockSizeLimit}
}

// Export registers the htsget endpoints and the request middleware with
// router.
func (server *Server) Export(router *gin.Engine) {
	router.Use(requestID(), forwardOrigin())
	router.GET(readsPath+"*id", server.serveReads)
	router.GET(blockPath+"*id", server.serveBlock)
}

// Handler returns a new http.Handler serving the htsget endpoints.
func (server *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	server.Export(router)
	return router
}

// requestID tags each request with a unique ID that is echoed back to the
// client and logged together with the outcome of the request.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()
		log.Printf("[%s] %s %s: %d (%v)", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func forwardOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Next()
	}
}

// parseID returns the object name held by the wildcard id parameter.
func parseID(c *gin.Context) (string, error) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	if id == "" || strings.HasSuffix(id, "/") {
		return "", errInvalidOrUnspecifiedID
	}
	return id, nil
}

func parseFormat(format string) error {
	if format != "" && format != "BAM" {
		return fmt.Errorf("unsupported format %q", format)
	}
	return nil
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %v", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newAPIError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

func newPermissionDeniedError(context string, err error) error {
	return newAPIError("PermissionDenied", http.StatusForbidden, context, err)
}

func newUnsupportedFormatError(err error) error {
	return &apiError{"UnsupportedFormat", http.StatusBadRequest, err}
}

func newNotFoundError(context string, err error) error {
	return newAPIError("NotFound", http.StatusNotFound, context, err)
}

// newStorageError converts errors returned by a source into API errors where
// the cause is known.
func newStorageError(context string, err error) error {
	if err == source.ErrMissingOrInvalidToken {
		return newPermissionDeniedError(context, err)
	}
	if err == source.ErrNotFound {
		return newNotFoundError(context, err)
	}
	if err, ok := err.(*googleapi.Error); ok {
		switch err.Code {
		case http.StatusUnauthorized:
			return newInvalidAuthenticationError(context, err)
		case http.StatusForbidden:
			return newPermissionDeniedError(context, err)
		case http.StatusNotFound:
			return newNotFoundError(context, err)
		}
	}
	return fmt.Errorf("%s: %v", context, err)
}

// writeError writes either a JSON object or bare HTTP error describing err.  A
// JSON object is written only when the error has a name and code defined by
// the htsget specification.
func writeError(c *gin.Context, err error) {
	c.Abort()
	if err, ok := err.(*apiError); ok {
		writeJSON(c, err.code, map[string]interface{}{
			"htsget": map[string]interface{}{
				"error":   err.name,
				"message": fmt.Sprintf("%s: %v", http.StatusText(err.code), err.cause),
			},
		})
		return
	}

	code := http.StatusInternalServerError
	c.String(code, "%s: %v", http.StatusText(code), err)
}

func writeJSON(c *gin.Context, code int, v interface{}) {
	c.Header("Content-Type", "application/json")
	c.Status(code)

	enc := json.NewEncoder(c.Writer)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("[%s] Failed to encode response: %v", c.GetString(requestIDKey), err)
	}
}
