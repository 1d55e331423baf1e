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

package browserartifacts

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/browserartifacts/record"
)

// Patterns are the lower case doublestar patterns of the files Discover
// reports, per browser family.
var Patterns = map[record.Family][]string{ // nolint:gochecknoglobals
	record.Chromium: {
		"**/history", "**/bookmarks", "**/bookmarks.bak", "**/favicons", "**/web data", "**/login data",
		"**/login data for account",
	},
	record.Firefox: {
		"**/places.sqlite", "**/downloads.sqlite", "**/formhistory.sqlite",
	},
	record.IELegacy: {
		"**/index.dat", "**/webcache/webcachev*.dat", "**/favorites/**/*.url",
	},
	record.SafariEdgeLegacy: {
		"**/safari/history.db", "**/safari/bookmarks.plist", "**/safari/downloads.plist",
	},
}

// Discover walks the directory tree below root and returns all files that
// match one of the Patterns, in lexical order. Matching is case insensitive.
func Discover(fsys afero.Fs, root string) ([]Source, error) {
	if fsys == nil {
		fsys = afero.NewReadOnlyFs(afero.NewOsFs())
	}
	if root == "" {
		root = "."
	}
	if _, err := fsys.Stat(root); err != nil {
		return nil, errors.Wrap(err, "could not access discovery root")
	}
	walkFs := fsys
	if filepath.Clean(root) != "." {
		walkFs = afero.NewBasePathFs(fsys, root)
	}
	iofs := afero.NewIOFS(walkFs)

	var sources []Source
	err := doublestar.GlobWalk(iofs, "**", func(name string, d fs.DirEntry) error {
		if family, ok := match(name); ok {
			sources = append(sources, Source{Path: filepath.Join(root, filepath.FromSlash(name)), Family: family})
		}
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrap(err, "discovery failed")
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

func match(name string) (record.Family, bool) {
	lower := strings.ToLower(name)
	for _, family := range record.Families {
		for _, pattern := range Patterns[family] {
			if ok, _ := doublestar.Match(pattern, lower); ok {
				return family, true
			}
		}
	}
	return 0, false
}
