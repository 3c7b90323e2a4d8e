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

// Package bam provides support for reading, writing and indexing BAM files.
package bam

import (
	"fmt"
	"io"
	"strings"

	"github.com/googlegenomics/htsindex/internal/bai"
	"github.com/googlegenomics/htsindex/internal/bgzf"
	"github.com/googlegenomics/htsindex/internal/binary"
	"github.com/googlegenomics/htsindex/internal/genomics"
	"github.com/googlegenomics/htsindex/internal/sam"
)

const (
	bamMagic = "BAM\x01"

	// This is just to prevent arbitrarily long allocations due to malformed
	// data.  No reference name should be longer than this in practice.
	maximumNameLength = 1024

	// Likewise for the SAM header text and the number of references.
	maximumHeaderLength = 1 << 28
	maximumReferences   = 1 << 24
)

// Reference is a reference sequence listed in a BAM header.
type Reference struct {
	Name   string
	Length int32
}

// Header is the header of a BAM file.
type Header struct {
	// Text is the SAM header text.
	Text       string
	References []Reference
}

// ReferenceID returns the index of the named reference.  Names are matched
// against the binary reference list first and then against the alternative
// names (AN tags) of the SAM header text.
func (h *Header) ReferenceID(name string) (int32, error) {
	for i, ref := range h.References {
		if ref.Name == name {
			return int32(i), nil
		}
	}
	if id, err := sam.GetReferenceID(strings.NewReader(h.Text), name); err == nil && int(id) < len(h.References) {
		return id, nil
	}
	return 0, fmt.Errorf("no reference named %q found", name)
}

// ReadHeader reads a BAM header from the uncompressed stream r.
func ReadHeader(r io.Reader) (*Header, error) {
	if err := binary.ExpectBytes(r, []byte(bamMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}
	var length int32
	if err := binary.Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading SAM header length: %v", err)
	}
	if length < 0 || length > maximumHeaderLength {
		return nil, fmt.Errorf("invalid SAM header length (%d bytes)", length)
	}
	text := make([]byte, length)
	if _, err := io.ReadFull(r, text); err != nil {
		return nil, fmt.Errorf("reading SAM header: %v", err)
	}

	var count int32
	if err := binary.Read(r, &count); err != nil {
		return nil, fmt.Errorf("reading references count: %v", err)
	}
	if count < 0 || count > maximumReferences {
		return nil, fmt.Errorf("invalid references count (%d references)", count)
	}

	header := &Header{Text: strings.TrimRight(string(text), "\x00")}
	for i := int32(0); i < count; i++ {
		if err := binary.Read(r, &length); err != nil {
			return nil, fmt.Errorf("reading name length: %v", err)
		}
		// The name length includes a null terminating character.
		if length < 1 || length > maximumNameLength {
			return nil, fmt.Errorf("invalid name length (%d bytes)", length)
		}
		name := make([]byte, length)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading name: %v", err)
		}
		var size int32
		if err := binary.Read(r, &size); err != nil {
			return nil, fmt.Errorf("reading reference length: %v", err)
		}
		header.References = append(header.References, Reference{
			Name:   string(name[:length-1]),
			Length: size,
		})
	}
	return header, nil
}

func writeHeader(w io.Writer, header *Header) error {
	if _, err := io.WriteString(w, bamMagic); err != nil {
		return fmt.Errorf("writing magic: %v", err)
	}
	if err := binary.Write(w, int32(len(header.Text))); err != nil {
		return fmt.Errorf("writing SAM header length: %v", err)
	}
	if _, err := io.WriteString(w, header.Text); err != nil {
		return fmt.Errorf("writing SAM header: %v", err)
	}
	if err := binary.Write(w, int32(len(header.References))); err != nil {
		return fmt.Errorf("writing references count: %v", err)
	}
	for _, ref := range header.References {
		if len(ref.Name)+1 > maximumNameLength {
			return fmt.Errorf("reference name %q is too long", ref.Name)
		}
		if err := binary.Write(w, int32(len(ref.Name)+1)); err != nil {
			return fmt.Errorf("writing name length: %v", err)
		}
		if _, err := io.WriteString(w, ref.Name+"\x00"); err != nil {
			return fmt.Errorf("writing name: %v", err)
		}
		if err := binary.Write(w, ref.Length); err != nil {
			return fmt.Errorf("writing reference length: %v", err)
		}
	}
	return nil
}

// GetReferenceID attempts to determine the ID for the named genomic reference
// by reading BAM header data from bam.
func GetReferenceID(bam io.Reader, reference string) (int32, error) {
	header, err := ReadHeader(bgzf.NewReader(bam))
	if err != nil {
		return 0, fmt.Errorf("reading header: %v", err)
	}
	return header.ReferenceID(reference)
}

// Read reads index data from bai and returns a set of BGZF chunks covering
// the header and all mapped reads that fall inside the specified region.  The
// first chunk is always the BAM header.
func Read(index io.Reader, region genomics.Region) ([]*bgzf.Chunk, error) {
	idx, err := bai.ReadIndex(index)
	if err != nil {
		return nil, fmt.Errorf("reading index: %v", err)
	}

	header := &bgzf.Chunk{End: idx.MinimumOffset()}
	return append([]*bgzf.Chunk{header}, idx.Query(region)...), nil
}
