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

package bai

// RegionToBin returns the bin of the smallest interval of the binning scheme
// that contains the zero-based, half-open range [start, end).  An empty range
// is treated as covering the single base at start.
//
// This function is derived from the C examples in the SAM specification,
// section 5.3.
func RegionToBin(start, end uint32) uint16 {
	if end <= start {
		end = start + 1
	}
	end--
	switch {
	case start>>14 == end>>14:
		return uint16(((1<<15)-1)/7 + (start >> 14))
	case start>>17 == end>>17:
		return uint16(((1<<12)-1)/7 + (start >> 17))
	case start>>20 == end>>20:
		return uint16(((1<<9)-1)/7 + (start >> 20))
	case start>>23 == end>>23:
		return uint16(((1<<6)-1)/7 + (start >> 23))
	case start>>26 == end>>26:
		return uint16(((1<<3)-1)/7 + (start >> 26))
	}
	return 0
}

// This function is derived from the C examples in the BAM index specification.
func binsForRange(start, end uint32) []uint16 {
	if end == 0 || end > maximumReadLength {
		end = maximumReadLength
	}
	if end <= start {
		return nil
	}
	if start > maximumReadLength {
		return nil
	}

	end--

	bins := []uint16{0}
	for k := uint16(1 + (start >> 26)); k <= uint16(1+(end>>26)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(9 + (start >> 23)); k <= uint16(9+(end>>23)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(73 + (start >> 20)); k <= uint16(73+(end>>20)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(585 + (start >> 17)); k <= uint16(585+(end>>17)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(4681 + (start >> 14)); k <= uint16(4681+(end>>14)); k++ {
		bins = append(bins, k)
	}
	return bins
}
