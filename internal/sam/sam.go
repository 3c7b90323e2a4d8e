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

// Package sam provides support for the textual parts of the SAM format that
// are shared with BAM: header text and alignment flags.
package sam

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`\b(SN|AN):(\S+)\b`)

// GetReferenceID returns the ID of the provided reference name from SAM
// header text.  Alternative names listed in AN tags also match.
func GetReferenceID(r io.Reader, reference string) (int32, error) {
	var current int32

	// @SQ SN:foo LN:5 AN:bar,baz ...
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if !strings.HasPrefix(scanner.Text(), "@SQ") {
			continue
		}
		for _, tag := range tagRe.FindAllStringSubmatch(scanner.Text(), -1) {
			switch tag[1] {
			case "SN":
				if tag[2] == reference {
					return current, nil
				}
			case "AN":
				for _, ref := range strings.Split(tag[2], ",") {
					if reference == ref {
						return current, nil
					}
				}
			}
		}
		current++
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading header: %v", err)
	}
	return 0, fmt.Errorf("reference %q not found", reference)
}
