/*
 * Copyright (c) 2021 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

// Package workcopy creates private, disposable copies of evidence files.
// Extractors never open evidence directly: SQLite may write journals or
// checkpoint a WAL even for read-only queries, so every source is read from a
// copy that is removed again when the extraction ends.
package workcopy

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DefaultMaxMemory is the size up to which a copy is kept in memory.
const DefaultMaxMemory = 16 << 20

// Copy holds the content of one evidence file. It starts in memory and rolls
// over to a file in a private temporary directory when it grows beyond
// maxMemory or when a path is needed.
type Copy struct {
	name      string
	tempDir   string
	maxMemory int64

	size   int64
	buffer *bytes.Buffer
	dir    string
	file   *os.File
}

// New creates an empty copy for the evidence file name.
func New(name, tempDir string, maxMemory int64) *Copy {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	return &Copy{name: name, tempDir: tempDir, maxMemory: maxMemory, buffer: &bytes.Buffer{}}
}

// Stage copies name from fsys.
func Stage(fsys afero.Fs, name, tempDir string, maxMemory int64) (*Copy, error) {
	src, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	c := New(name, tempDir, maxMemory)
	if _, err := io.Copy(c, src); err != nil {
		c.Close() // nolint:errcheck
		return nil, errors.Wrapf(err, "could not copy %s", name)
	}
	return c, nil
}

func (c *Copy) Write(p []byte) (n int, err error) {
	if c.file != nil {
		n, err = c.file.Write(p)
		c.size += int64(n)
		return n, err
	}

	if c.size+int64(len(p)) > c.maxMemory {
		if err := c.Rollover(); err != nil {
			return 0, err
		}
		return c.Write(p)
	}

	c.size += int64(len(p))
	return c.buffer.Write(p)
}

// Rollover moves the content to disk. It is a no-op if already on disk.
func (c *Copy) Rollover() (err error) {
	if c.file != nil {
		return nil
	}
	c.dir, err = os.MkdirTemp(c.tempDir, "browserartifacts-")
	if err != nil {
		return errors.Wrap(err, "could not create temporary directory")
	}
	c.file, err = os.Create(filepath.Join(c.dir, c.base()))
	if err != nil {
		c.file = nil
		_ = os.RemoveAll(c.dir)
		c.dir = ""
		return errors.Wrap(err, "could not create temporary file")
	}
	if _, err = io.Copy(c.file, c.buffer); err != nil {
		return errors.Wrap(err, "could not fill temporary file")
	}
	c.buffer.Reset()
	return nil
}

// Path returns the location of the copy on disk, rolling it over if needed.
func (c *Copy) Path() (string, error) {
	if err := c.Rollover(); err != nil {
		return "", err
	}
	if err := c.file.Sync(); err != nil {
		return "", err
	}
	return c.file.Name(), nil
}

// StageSidecars copies files that belong to the evidence file, like SQLite
// journals, next to the copy. Missing sidecars are ignored.
func (c *Copy) StageSidecars(fsys afero.Fs, suffixes ...string) error {
	if err := c.Rollover(); err != nil {
		return err
	}
	for _, suffix := range suffixes {
		exists, err := afero.Exists(fsys, c.name+suffix)
		if err != nil || !exists {
			continue
		}
		if err := copyFile(fsys, c.name+suffix, filepath.Join(c.dir, c.base()+suffix)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(fsys afero.Fs, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() // nolint:errcheck
		return errors.Wrapf(err, "could not copy %s", src)
	}
	return out.Close()
}

// Bytes returns the whole content.
func (c *Copy) Bytes() ([]byte, error) {
	if c.file == nil {
		return c.buffer.Bytes(), nil
	}
	b := make([]byte, c.size)
	if _, err := c.file.ReadAt(b, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return b, nil
}

// Size returns the number of bytes in the copy.
func (c *Copy) Size() int64 {
	return c.size
}

// Name returns the name of the evidence file.
func (c *Copy) Name() string {
	return c.name
}

// Close removes the copy and everything staged next to it.
func (c *Copy) Close() error {
	c.buffer.Reset()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	if rmErr := os.RemoveAll(c.dir); rmErr != nil {
		return rmErr
	}
	return err
}

func (c *Copy) base() string {
	base := filepath.Base(filepath.FromSlash(c.name))
	if base == "." || base == string(filepath.Separator) {
		return "evidence"
	}
	return base
}
