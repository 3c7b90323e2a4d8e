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

package bam

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/googlegenomics/htsindex/internal/bai"
	"github.com/googlegenomics/htsindex/internal/binary"
	"github.com/googlegenomics/htsindex/internal/sam"
)

const (
	cigarOps  = "MIDNSHP=X"
	seqBases  = "=ACMGRSVTWYHKDBN"
	fixedSize = 32

	// The bin stored with records that have no position.
	unplacedBin = 4680
)

// CigarOp is a single CIGAR operation, packed as in BAM records.
type CigarOp uint32

// NewCigarOp returns an operation of the given type ('M', 'I', ...) and length.
func NewCigarOp(op byte, length int) (CigarOp, error) {
	code := strings.IndexByte(cigarOps, op)
	if code < 0 {
		return 0, fmt.Errorf("invalid CIGAR operation %q", op)
	}
	if length < 0 || length >= 1<<28 {
		return 0, fmt.Errorf("invalid CIGAR operation length %d", length)
	}
	return CigarOp(uint32(length)<<4 | uint32(code)), nil
}

// Type returns the operation character.
func (c CigarOp) Type() byte {
	if code := int(c & 0xf); code < len(cigarOps) {
		return cigarOps[code]
	}
	return '?'
}

// Len returns the operation length.
func (c CigarOp) Len() int {
	return int(c >> 4)
}

func (c CigarOp) consumesReference() bool {
	switch c.Type() {
	case 'M', 'D', 'N', '=', 'X':
		return true
	}
	return false
}

// Cigar describes how a read aligns to the reference.
type Cigar []CigarOp

// ParseCigar parses the textual form of a CIGAR string such as "8M2I4M".  The
// string "*" denotes an empty CIGAR.
func ParseCigar(s string) (Cigar, error) {
	if s == "*" || s == "" {
		return nil, nil
	}
	var cigar Cigar
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			continue
		}
		length, err := strconv.Atoi(s[start:i])
		if err != nil {
			return nil, fmt.Errorf("parsing length of operation %d: %v", len(cigar), err)
		}
		op, err := NewCigarOp(s[i], length)
		if err != nil {
			return nil, err
		}
		cigar = append(cigar, op)
		start = i + 1
	}
	if start != len(s) {
		return nil, fmt.Errorf("trailing length without operation in %q", s)
	}
	return cigar, nil
}

// ReferenceLen returns the number of reference bases covered by the alignment.
func (c Cigar) ReferenceLen() int32 {
	var n int32
	for _, op := range c {
		if op.consumesReference() {
			n += int32(op.Len())
		}
	}
	return n
}

func (c Cigar) String() string {
	if len(c) == 0 {
		return "*"
	}
	var b strings.Builder
	for _, op := range c {
		b.WriteString(strconv.Itoa(op.Len()))
		b.WriteByte(op.Type())
	}
	return b.String()
}

// Record is a single BAM alignment record.
type Record struct {
	Name string
	// ReferenceID is -1 for records without a reference.
	ReferenceID int32
	// Pos is the 0-based leftmost position, or -1.
	Pos             int32
	MappingQuality  uint8
	Flag            sam.Flags
	Cigar           Cigar
	MateReferenceID int32
	MatePos         int32
	TemplateLen     int32
	// Seq holds bases using the characters "=ACMGRSVTWYHKDBN".
	Seq string
	// Qual holds the raw Phred qualities; nil is written as missing.
	Qual []byte
	// Aux holds the encoded optional fields.
	Aux []byte

	bin     uint16
	decoded bool
}

var _ bai.Record = (*Record)(nil)

// Position returns the 1-based start position, or 0 if the record is not
// placed.
func (r *Record) Position() int32 {
	if r.Pos < 0 {
		return 0
	}
	return r.Pos + 1
}

// Flags returns the record flags.
func (r *Record) Flags() sam.Flags {
	return r.Flag
}

// ReferenceLen returns the number of reference bases covered by the record.
func (r *Record) ReferenceLen() int32 {
	return r.Cigar.ReferenceLen()
}

// Bin returns the bin stored with a decoded record, or the bin computed from
// the alignment span otherwise.
func (r *Record) Bin() uint16 {
	if r.decoded {
		return r.bin
	}
	return r.computeBin()
}

func (r *Record) computeBin() uint16 {
	if r.Pos < 0 {
		return unplacedBin
	}
	end := r.Pos + r.ReferenceLen()
	if end <= r.Pos {
		end = r.Pos + 1
	}
	return bai.RegionToBin(uint32(r.Pos), uint32(end))
}

type fixedFields struct {
	ReferenceID     int32
	Pos             int32
	NameLen         uint8
	MappingQuality  uint8
	Bin             uint16
	CigarOps        uint16
	Flag            uint16
	SeqLen          int32
	MateReferenceID int32
	MatePos         int32
	TemplateLen     int32
}

func decodeRecord(data []byte) (*Record, error) {
	r := bytes.NewReader(data)
	var fixed fixedFields
	if err := binary.Read(r, &fixed); err != nil {
		return nil, fmt.Errorf("reading fixed fields: %v", err)
	}
	if fixed.NameLen < 1 {
		return nil, fmt.Errorf("invalid read name length (%d bytes)", fixed.NameLen)
	}
	if fixed.SeqLen < 0 {
		return nil, fmt.Errorf("invalid sequence length (%d bases)", fixed.SeqLen)
	}
	need := int64(fixedSize) + int64(fixed.NameLen) + 4*int64(fixed.CigarOps) +
		(int64(fixed.SeqLen)+1)/2 + int64(fixed.SeqLen)
	if need > int64(len(data)) {
		return nil, fmt.Errorf("record too short (%d bytes, need %d)", len(data), need)
	}

	rec := &Record{
		ReferenceID:     fixed.ReferenceID,
		Pos:             fixed.Pos,
		MappingQuality:  fixed.MappingQuality,
		Flag:            sam.Flags(fixed.Flag),
		MateReferenceID: fixed.MateReferenceID,
		MatePos:         fixed.MatePos,
		TemplateLen:     fixed.TemplateLen,
		bin:             fixed.Bin,
		decoded:         true,
	}

	rest := data[fixedSize:]
	rec.Name = string(bytes.TrimRight(rest[:fixed.NameLen], "\x00"))
	rest = rest[fixed.NameLen:]

	if fixed.CigarOps > 0 {
		rec.Cigar = make(Cigar, fixed.CigarOps)
		if err := binary.Read(bytes.NewReader(rest[:4*int(fixed.CigarOps)]), rec.Cigar); err != nil {
			return nil, fmt.Errorf("reading CIGAR: %v", err)
		}
		rest = rest[4*int(fixed.CigarOps):]
	}

	n := int(fixed.SeqLen)
	seq := make([]byte, n)
	for i := range seq {
		packed := rest[i/2]
		if i%2 == 0 {
			packed >>= 4
		}
		seq[i] = seqBases[packed&0xf]
	}
	rec.Seq = string(seq)
	rest = rest[(n+1)/2:]

	if n > 0 && rest[0] != 0xff {
		rec.Qual = append([]byte(nil), rest[:n]...)
	}
	rest = rest[n:]

	if len(rest) > 0 {
		rec.Aux = append([]byte(nil), rest...)
	}
	return rec, nil
}

func (r *Record) encode(buf *bytes.Buffer) error {
	name := r.Name
	if name == "" {
		name = "*"
	}
	if len(name)+1 > 255 {
		return fmt.Errorf("read name %q is too long", name)
	}
	if len(r.Cigar) > 0xffff {
		return fmt.Errorf("too many CIGAR operations (%d)", len(r.Cigar))
	}
	if r.Qual != nil && len(r.Qual) != len(r.Seq) {
		return fmt.Errorf("quality length %d does not match sequence length %d", len(r.Qual), len(r.Seq))
	}

	fixed := fixedFields{
		ReferenceID:     r.ReferenceID,
		Pos:             r.Pos,
		NameLen:         uint8(len(name) + 1),
		MappingQuality:  r.MappingQuality,
		Bin:             r.Bin(),
		CigarOps:        uint16(len(r.Cigar)),
		Flag:            uint16(r.Flag),
		SeqLen:          int32(len(r.Seq)),
		MateReferenceID: r.MateReferenceID,
		MatePos:         r.MatePos,
		TemplateLen:     r.TemplateLen,
	}
	if err := binary.Write(buf, fixed); err != nil {
		return fmt.Errorf("writing fixed fields: %v", err)
	}
	buf.WriteString(name)
	buf.WriteByte(0)
	if len(r.Cigar) > 0 {
		if err := binary.Write(buf, r.Cigar); err != nil {
			return fmt.Errorf("writing CIGAR: %v", err)
		}
	}

	packed := make([]byte, (len(r.Seq)+1)/2)
	for i := 0; i < len(r.Seq); i++ {
		code := strings.IndexByte(seqBases, r.Seq[i])
		if code < 0 {
			code = strings.IndexByte(seqBases, 'N')
		}
		if i%2 == 0 {
			packed[i/2] = byte(code) << 4
		} else {
			packed[i/2] |= byte(code)
		}
	}
	buf.Write(packed)

	if r.Qual != nil {
		buf.Write(r.Qual)
	} else {
		buf.Write(bytes.Repeat([]byte{0xff}, len(r.Seq)))
	}
	buf.Write(r.Aux)
	return nil
}
