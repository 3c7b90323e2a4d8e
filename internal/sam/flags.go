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

package sam

// Flags is the bitwise FLAG field of an alignment record, as defined in
// section 1.4 of the SAM specification.
type Flags uint16

const (
	Paired        Flags = 0x1
	ProperPair    Flags = 0x2
	Unmapped      Flags = 0x4
	MateUnmapped  Flags = 0x8
	Reverse       Flags = 0x10
	MateReverse   Flags = 0x20
	Read1         Flags = 0x40
	Read2         Flags = 0x80
	Secondary     Flags = 0x100
	QCFail        Flags = 0x200
	Duplicate     Flags = 0x400
	Supplementary Flags = 0x800
)

// IsUnmapped reports whether the segment is unmapped.
func (f Flags) IsUnmapped() bool {
	return f&Unmapped != 0
}

// IsSecondary reports whether the record is a secondary alignment.
func (f Flags) IsSecondary() bool {
	return f&Secondary != 0
}

// IsSupplementary reports whether the record is a supplementary alignment.
func (f Flags) IsSupplementary() bool {
	return f&Supplementary != 0
}
