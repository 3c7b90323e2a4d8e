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

// Package client retrieves reads from an htsget server.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client fetches tickets and the data they point to.
type Client struct {
	// Ticket is used for ticket requests.  If nil, http.DefaultClient is used.
	Ticket *http.Client
	// Data is used to fetch the URLs listed in tickets.  If nil,
	// http.DefaultClient is used.
	Data *http.Client
}

// Ticket is the response of the htsget reads endpoint.
type Ticket struct {
	Container struct {
		Format string `json:"format"`
		URLs   []struct {
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		} `json:"urls"`
	} `json:"htsget"`
}

// Fetch requests the ticket at target and writes the data of every URL it
// lists to w, in order.  It returns the number of bytes written.
func (c *Client) Fetch(ctx context.Context, target string, w io.Writer) (int64, error) {
	ticket, err := c.GetTicket(ctx, target)
	if err != nil {
		return 0, err
	}

	var written int64
	for i, blob := range ticket.Container.URLs {
		r, err := c.fetchBlob(ctx, blob.URL, blob.Headers)
		if err != nil {
			return written, fmt.Errorf("blob %d: fetching data: %v", i, err)
		}
		n, err := io.Copy(w, r)
		r.Close()
		written += n
		if err != nil {
			return written, fmt.Errorf("blob %d: copying data: %v", i, err)
		}
	}
	return written, nil
}

// GetTicket requests and decodes the ticket at target.
func (c *Client) GetTicket(ctx context.Context, target string) (*Ticket, error) {
	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %v", err)
	}
	resp, err := httpClient(c.Ticket).Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("requesting ticket: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	var ticket Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("decoding ticket: %v", err)
	}
	return &ticket, nil
}

// AddParameter returns input with the query parameter name set to value.
func AddParameter(input, name, value string) string {
	values := url.Values{}
	values.Set(name, value)
	if strings.Contains(input, "?") {
		return input + "&" + values.Encode()
	}
	return input + "?" + values.Encode()
}

func (c *Client) fetchBlob(ctx context.Context, target string, headers map[string]string) (io.ReadCloser, error) {
	if v := strings.TrimPrefix(target, "data:"); v != target {
		parts := strings.SplitN(v, ",", 2)
		if len(parts) != 2 {
			return nil, errors.New("malformed data URL")
		}

		if strings.Contains(parts[0], ";base64") {
			output, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				return nil, fmt.Errorf("decoding base64 data: %v", err)
			}
			return io.NopCloser(bytes.NewReader(output)), nil
		}
		return io.NopCloser(strings.NewReader(parts[1])), nil
	}

	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %v", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := httpClient(c.Data).Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching data: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp.Body, nil
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func errorFromResponse(resp *http.Response) error {
	var body struct {
		Htsget struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		} `json:"htsget"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Htsget.Error != "" {
		return fmt.Errorf("%s: %s", body.Htsget.Error, body.Htsget.Message)
	}
	return fmt.Errorf("unexpected response status: %q", resp.Status)
}
