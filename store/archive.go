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

package store

import (
	"crypto/sha256"
	"fmt"
	"io"
	"path"
	"strings"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// sqlarTable is the SQLite archive format table. Content is stored
// uncompressed, so sz always equals the length of data.
const sqlarTable = `CREATE TABLE IF NOT EXISTS sqlar(
  name TEXT PRIMARY KEY,  -- name of the file
  mode INT,               -- access permissions
  mtime INT,              -- last modification time
  sz INT,                 -- original file size
  data BLOB               -- content
)`

// archiveName converts a source path into a relative slash separated name.
func archiveName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if len(name) >= 2 && name[1] == ':' {
		name = name[2:]
	}
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

// Archive copies a source file into the sqlar table. The returned Source
// carries the archive name, size and SHA-256 hash; names are made unique
// with a numeric suffix.
func (store *Store) Archive(fsys afero.Fs, name string) (Source, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return Source{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Source{}, err
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", name)
	}

	storePath, err := store.uniqueArchiveName(archiveName(name))
	if err != nil {
		return Source{}, err
	}

	stmt, err := store.cursor.Prepare("INSERT INTO sqlar (name, mode, mtime, sz, data) VALUES ($name, $mode, $mtime, $sz, $data)")
	if err != nil {
		return Source{}, err
	}
	stmt.SetText("$name", storePath)
	stmt.SetInt64("$mode", int64(info.Mode().Perm()))
	stmt.SetInt64("$mtime", info.ModTime().Unix())
	stmt.SetInt64("$sz", info.Size())
	stmt.SetZeroBlob("$data", info.Size())
	if _, err := stmt.Step(); err != nil {
		return Source{}, errors.Wrap(err, "could not insert archive entry")
	}
	if err := stmt.Reset(); err != nil {
		return Source{}, err
	}

	blob, err := store.cursor.OpenBlob("", "sqlar", "data", store.cursor.LastInsertRowID(), true)
	if err != nil {
		return Source{}, err
	}
	defer blob.Close()
	h := sha256.New()
	size, err := io.CopyN(blob, io.TeeReader(f, h), info.Size())
	if err != nil {
		return Source{}, errors.Wrapf(err, "could not archive %s", name)
	}
	return Source{
		Path:        name,
		ArchivePath: storePath,
		Size:        size,
		Hashes:      map[string]string{"SHA-256": fmt.Sprintf("%x", h.Sum(nil))},
	}, nil
}

func (store *Store) uniqueArchiveName(name string) (string, error) {
	ext := path.Ext(name)
	base := name[:len(name)-len(ext)]
	candidate := name
	for i := 0; ; i++ {
		exists, err := store.archived(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

func (store *Store) archived(name string) (bool, error) {
	_, _, err := store.archiveEntry(name)
	if err == errElementNotFound {
		return false, nil
	}
	return err == nil, err
}

func (store *Store) archiveEntry(name string) (rowid, size int64, err error) {
	stmt, err := store.cursor.Prepare("SELECT rowid, sz FROM sqlar WHERE name = $name")
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Reset() // nolint:errcheck
	stmt.SetText("$name", name)
	hasRow, err := stmt.Step()
	if err != nil {
		return 0, 0, err
	}
	if !hasRow {
		return 0, 0, errElementNotFound
	}
	return stmt.GetInt64("rowid"), stmt.GetInt64("sz"), nil
}

// LoadFile opens an archived file.
func (store *Store) LoadFile(name string) (io.ReadCloser, error) {
	rowid, _, err := store.archiveEntry(name)
	if err != nil {
		if err == errElementNotFound {
			return nil, fmt.Errorf("%s is not archived", name)
		}
		return nil, err
	}
	return store.cursor.OpenBlob("", "sqlar", "data", rowid, false)
}

// ArchivedFiles returns the names and sizes of all archived files.
func (store *Store) ArchivedFiles() (map[string]int64, error) {
	stmt, err := store.cursor.Prepare("SELECT name, sz FROM sqlar")
	if err != nil {
		return nil, err
	}
	return archiveRows(stmt)
}

func archiveRows(stmt *sqlite.Stmt) (map[string]int64, error) {
	files := map[string]int64{}
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Reset() // nolint:errcheck
			return nil, err
		}
		if !hasRow {
			break
		}
		files[stmt.GetText("name")] = stmt.GetInt64("sz")
	}
	return files, stmt.Reset()
}

// ArchiveFs loads all archived files into an in-memory file system, each at
// "/" + its archive name.
func (store *Store) ArchiveFs() (afero.Fs, error) {
	files, err := store.ArchivedFiles()
	if err != nil {
		return nil, err
	}
	fsys := afero.NewMemMapFs()
	for name := range files {
		r, err := store.LoadFile(name)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(r)
		r.Close() // nolint:errcheck
		if err != nil {
			return nil, errors.Wrapf(err, "could not read %s", name)
		}
		if err := afero.WriteFile(fsys, "/"+name, data, 0444); err != nil {
			return nil, err
		}
	}
	return afero.NewReadOnlyFs(fsys), nil
}
