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

// This binary provides an htsget client that supports Google authentication.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/googlegenomics/htsindex/internal/client"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const scope = "https://www.googleapis.com/auth/devstorage.read_only"

var (
	reference = flag.String("r", "", "reference name")
	output    = flag.String("o", "", "output filename")
	anonymous = flag.Bool("anonymous", false, "send ticket requests without Google credentials")
)

func main() {
	flag.Parse()

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		defer f.Close()

		w = f
	}

	ctx := context.Background()
	c := &client.Client{}

	// For compatibility with other tools, read the standard cURL certificate
	// authority override from the environment.
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := os.ReadFile(bundle)
		if err != nil {
			log.Fatalf("Failed to read CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			log.Fatalf("Failed to initialize system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatalf("Failed to add certificates from bundle %q", bundle)
		}
		c.Data = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		}
		c.Ticket = c.Data
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.Data)
		log.Printf("Using CA override bundle from %q", bundle)
	}

	if !*anonymous {
		authenticated, err := google.DefaultClient(ctx, scope)
		if err != nil {
			log.Fatalf("Failed to create client: %v", err)
		}
		c.Ticket = authenticated
	}

	for _, target := range flag.Args() {
		log.Printf("Fetching %q", target)
		if *reference != "" {
			target = client.AddParameter(target, "referenceName", *reference)
		}
		n, err := c.Fetch(ctx, target, w)
		if err != nil {
			log.Fatalf("Fetching %q: %v", target, err)
		}
		log.Printf("Wrote %d bytes", n)
	}
}
