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

// This binary provides an htsget server that backs onto BAM files stored in a
// local directory or a GCS bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/htsindex/internal/server"
	"github.com/googlegenomics/htsindex/internal/source"
)

var (
	port      = flag.Int("port", 8080, "HTTP service port")
	blockSize = flag.Uint64("block_size", 1024*1024*1024, "block size soft limit")

	directory = flag.String("directory", "", "directory that contains BAM and BAI files")
	bucket    = flag.String("bucket", "", "GCS bucket that contains BAM and BAI files")
	public    = flag.Bool("public", false, "read the bucket without credentials")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode and forward client bearer tokens")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")
)

func main() {
	flag.Parse()

	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}

	newSource, err := sourceFromFlags()
	if err != nil {
		log.Fatalf("Configuring source: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	handler := server.New(newSource, *blockSize).Handler()

	address := fmt.Sprintf(":%d", *port)
	log.Printf("Serving htsget requests on %s", address)
	if *secure {
		if err := http.ListenAndServeTLS(address, *httpsCert, *httpsKey, handler); err != nil {
			log.Fatalf("HTTPS server returned an error: %v", err)
		}
	} else {
		if err := http.ListenAndServe(address, handler); err != nil {
			log.Fatalf("HTTP server returned an error: %v", err)
		}
	}
}

func sourceFromFlags() (server.NewSourceFunc, error) {
	switch {
	case *directory != "" && *bucket != "":
		return nil, fmt.Errorf("only one of -directory and -bucket may be set")
	case *directory != "":
		return server.StaticSource(source.NewDirectory(*directory)), nil
	case *bucket == "":
		return nil, fmt.Errorf("one of -directory or -bucket must be set")
	case *secure:
		name := *bucket
		// TODO: close the per-request storage client once the response has
		// been written.
		return func(req *http.Request) (source.Source, http.Header, error) {
			client, headers, err := source.ClientFromBearerToken(req)
			if err != nil {
				return nil, nil, err
			}
			return source.NewGCS(client, name), headers, nil
		}, nil
	case *public:
		client, err := source.PublicClient(context.Background())
		if err != nil {
			return nil, err
		}
		return server.StaticSource(source.NewGCS(client, *bucket)), nil
	default:
		client, err := source.DefaultClient()
		if err != nil {
			return nil, err
		}
		return server.StaticSource(source.NewGCS(client, *bucket)), nil
	}
}
