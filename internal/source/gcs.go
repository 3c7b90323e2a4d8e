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

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// GCS serves the objects of a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS returns a Source for bucket that uses client for all requests.
func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: bucket}
}

// NewRangeReader opens the named object of the bucket.
func (g *GCS) NewRangeReader(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(name).NewRangeReader(ctx, offset, length)
	if err == storage.ErrObjectNotExist {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

var (
	defaultClient    *storage.Client
	defaultClientErr error
	initDefault      sync.Once
)

// DefaultClient returns a storage client that uses the application default
// credentials.  The client is created once and shared.
func DefaultClient() (*storage.Client, error) {
	initDefault.Do(func() {
		defaultClient, defaultClientErr = storage.NewClient(context.Background())
	})
	return defaultClient, defaultClientErr
}

// PublicClient returns a storage client that does not use any form of client
// authorization.  It can only be used to read publicly-readable objects.
func PublicClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx, option.WithHTTPClient(http.DefaultClient))
}

// ClientFromBearerToken constructs a storage client that uses the OAuth2
// bearer token found in req to make storage requests.  It also returns the
// authorization header holding the token so that follow-up requests made by
// the caller can be authenticated the same way.
func ClientFromBearerToken(req *http.Request) (*storage.Client, http.Header, error) {
	authorization := req.Header.Get("Authorization")

	fields := strings.Split(authorization, " ")
	if len(fields) != 2 || fields[0] != "Bearer" || fields[1] == "" {
		return nil, nil, ErrMissingOrInvalidToken
	}

	token := oauth2.Token{
		TokenType:   fields[0],
		AccessToken: fields[1],
	}
	client, err := storage.NewClient(req.Context(), option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, nil, fmt.Errorf("creating client with token source: %v", err)
	}
	return client, http.Header{"Authorization": []string{authorization}}, nil
}
