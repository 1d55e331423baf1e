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
	"crypto/md5"  // #nosec
	"crypto/sha1" // #nosec
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"
)

// Validate checks all elements against their schemas and compares the
// archive paths referenced by elements with the archived files.
func (store *Store) Validate() (flaws []string, err error) {
	flaws = []string{}
	expectedFiles := map[string]bool{}

	elements, err := store.All()
	if err != nil {
		return nil, err
	}
	for _, element := range elements {
		elementFlaws, elementExpectedFiles, err := store.validateElement(element)
		if err != nil {
			return nil, err
		}
		flaws = append(flaws, elementFlaws...)
		for _, name := range elementExpectedFiles {
			expectedFiles[name] = true
		}
	}

	archived, err := store.ArchivedFiles()
	if err != nil {
		return nil, err
	}

	var additionalFiles []string
	for name := range archived {
		if !expectedFiles[name] {
			additionalFiles = append(additionalFiles, name)
		}
	}
	if len(additionalFiles) > 0 {
		sort.Strings(additionalFiles)
		flaws = append(flaws, fmt.Sprintf("additional files: ('%s')", strings.Join(additionalFiles, "', '")))
	}

	var missingFiles []string
	for name := range expectedFiles {
		if _, ok := archived[name]; !ok {
			missingFiles = append(missingFiles, name)
		}
	}
	if len(missingFiles) > 0 {
		sort.Strings(missingFiles)
		flaws = append(flaws, fmt.Sprintf("missing files: ('%s')", strings.Join(missingFiles, "', '")))
	}
	return flaws, nil
}

func (store *Store) validateElement(element JSONElement) (flaws []string, expectedFiles []string, err error) { // nolint:gocyclo
	schemaFlaws, err := store.validateElementSchema(element)
	if err != nil {
		return nil, nil, err
	}
	flaws = append(flaws, schemaFlaws...)

	var fields map[string]interface{}
	if err := json.Unmarshal(element, &fields); err != nil {
		return nil, nil, err
	}

	for field, value := range fields {
		if !strings.HasSuffix(field, "_path") || field == "source_path" {
			continue
		}
		archivePath, ok := value.(string)
		if !ok {
			flaws = append(flaws, fmt.Sprintf("%s is not a string", field))
			continue
		}
		if strings.Contains(archivePath, "..") {
			flaws = append(flaws, fmt.Sprintf("'..' in %s", archivePath))
			continue
		}
		expectedFiles = append(expectedFiles, archivePath)

		_, archivedSize, err := store.archiveEntry(archivePath)
		if err == errElementNotFound {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		if size, ok := fields["size"].(float64); ok && int64(size) != archivedSize {
			flaws = append(flaws, fmt.Sprintf("wrong size for %s (is %d, expected %d)", archivePath, archivedSize, int64(size)))
		}

		hashes, _ := fields["hashes"].(map[string]interface{})
		for algorithm, expected := range hashes {
			hashFlaw, err := store.checkHash(archivePath, algorithm, expected)
			if err != nil {
				return nil, nil, err
			}
			if hashFlaw != "" {
				flaws = append(flaws, hashFlaw)
			}
		}
	}
	return flaws, expectedFiles, nil
}

func (store *Store) checkHash(archivePath, algorithm string, expected interface{}) (string, error) {
	var h hash.Hash
	switch algorithm {
	case "MD5":
		h = md5.New() // #nosec
	case "SHA1", "SHA-1":
		h = sha1.New() // #nosec
	case "SHA-256":
		h = sha256.New()
	default:
		return fmt.Sprintf("unsupported hash %s for %s", algorithm, archivePath), nil
	}

	r, err := store.LoadFile(archivePath)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(h, r)
	r.Close() // nolint:errcheck
	if err != nil {
		return "", err
	}

	if fmt.Sprintf("%x", h.Sum(nil)) != expected {
		return fmt.Sprintf("hashvalue mismatch %s for %s", algorithm, archivePath), nil
	}
	return "", nil
}
