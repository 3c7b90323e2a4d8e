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

// This binary builds BAI indexes for BAM files and queries them.
//
// Usage:
//
//	htsindex [-profile dir] index file.bam...
//	htsindex [-profile dir] query [-reference name] [-start n] [-end n] file.bam
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/googlegenomics/htsindex/internal/bai"
	"github.com/googlegenomics/htsindex/internal/bam"
	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/genomics"
	"github.com/pkg/profile"
)

var profilePath = flag.String("profile", "", "if set, write a CPU profile to this directory")

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	if *profilePath != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profilePath), profile.Quiet).Stop()
	}

	var err error
	switch command, args := flag.Arg(0), flag.Args()[1:]; command {
	case "index":
		err = runIndex(args)
	case "query":
		err = runQuery(args, os.Stdout)
	default:
		log.Printf("Unknown command %q", command)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s [-profile dir] index file.bam...\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s [-profile dir] query [-reference name] [-start n] [-end n] file.bam\n", os.Args[0])
	flag.PrintDefaults()
}

func runIndex(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no BAM files specified")
	}
	for _, path := range args {
		if err := indexFile(path, path+".bai"); err != nil {
			return fmt.Errorf("indexing %s: %v", path, err)
		}
		log.Printf("Wrote %s.bai", path)
	}
	return nil
}

// indexFile builds the index of the BAM file at input and writes it to output.
func indexFile(input, output string) error {
	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	index, err := bam.BuildIndex(bufio.NewReaderSize(in, 1<<20))
	if err != nil {
		return fmt.Errorf("building index: %v", err)
	}

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := bai.WriteIndex(out, index); err != nil {
		out.Close()
		return fmt.Errorf("writing index: %v", err)
	}
	return out.Close()
}

func runQuery(args []string, w io.Writer) error {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	var (
		reference = flags.String("reference", "", "reference name; all mapped reads if empty")
		start     = flags.Uint("start", 0, "0-based start of the region")
		end       = flags.Uint("end", 0, "end of the region; the end of the reference if zero")
		blockSize = flags.Uint64("block_size", 1024*1024*1024, "block size soft limit for merging chunks")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("expected exactly one BAM file, got %d", flags.NArg())
	}

	region, err := resolveRegion(flags.Arg(0), *reference, uint32(*start), uint32(*end))
	if err != nil {
		return err
	}
	chunks, err := queryFile(flags.Arg(0), region, *blockSize)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		fmt.Fprintln(w, chunk)
	}
	return nil
}

func resolveRegion(path, reference string, start, end uint32) (genomics.Region, error) {
	if reference == "" {
		return genomics.AllMappedReads, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return genomics.Region{}, err
	}
	defer f.Close()

	id, err := bam.GetReferenceID(f, reference)
	if err != nil {
		return genomics.Region{}, fmt.Errorf("resolving reference %q: %v", reference, err)
	}
	region := genomics.Region{ReferenceID: id, Start: start, End: end}
	if err := region.Validate(); err != nil {
		return genomics.Region{}, err
	}
	return region, nil
}

// queryFile returns the merged chunks of the BAM file at path that hold the
// header and the reads overlapping region.
func queryFile(path string, region genomics.Region, blockSize uint64) ([]*bgzf.Chunk, error) {
	var index *os.File
	var err error
	for _, name := range []string{path + ".bai", strings.TrimSuffix(path, ".bam") + ".bai"} {
		if index, err = os.Open(name); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening index: %v", err)
	}
	defer index.Close()

	chunks, err := bam.Read(index, region)
	if err != nil {
		return nil, err
	}
	return bgzf.Merge(chunks, blockSize), nil
}
