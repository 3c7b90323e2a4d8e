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

package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// Directory serves the files below a local directory.
type Directory struct {
	root string
}

// NewDirectory returns a Source for the files below root.
func NewDirectory(root string) *Directory {
	return &Directory{root: root}
}

// NewRangeReader opens the named file.  Names use forward slashes and cannot
// refer to files outside of the directory.
func (d *Directory) NewRangeReader(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, fmt.Errorf("invalid offset %d", offset)
	}

	file, err := os.Open(filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+name))))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening %q: %v", name, err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seeking to offset %d: %v", offset, err)
	}
	if length < 0 {
		return file, nil
	}
	return &fileRange{io.LimitReader(file, length), file}, nil
}

// fileRange reads a portion of a file and closes the file when done.
type fileRange struct {
	io.Reader
	file *os.File
}

func (r *fileRange) Close() error {
	return r.file.Close()
}
