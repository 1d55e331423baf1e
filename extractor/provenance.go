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

package extractor

import (
	"path"
	"strings"

	"github.com/forensicanalysis/browserartifacts/record"
)

var chromiumProducts = []struct {
	marker  string
	product string
}{
	{"google/chrome sxs", "Google Chrome Canary"},
	{"google/chrome", "Google Chrome"},
	{"microsoft/edge", "Microsoft Edge"},
	{"bravesoftware", "Brave"},
	{"yandex", "Yandex Browser"},
	{"opera software", "Opera"},
	{"ucbrowser", "UC Browser"},
	{"salamweb", "SalamWeb"},
	{"vivaldi", "Vivaldi"},
	{"chromium", "Chromium"},
}

var defaultProducts = map[record.Family]string{
	record.Chromium:         "Chromium",
	record.Firefox:          "Mozilla Firefox",
	record.IELegacy:         "Internet Explorer",
	record.SafariEdgeLegacy: "Safari",
}

// provenance derives the browser product and the profile or user from the
// location of a source file.
func provenance(family record.Family, name string) record.Provenance {
	p := record.Provenance{Family: family, SourcePath: name, Browser: defaultProducts[family]}
	slashed := strings.ReplaceAll(name, "\\", "/")
	lower := strings.ToLower(slashed)

	switch family {
	case record.Chromium:
		for _, c := range chromiumProducts {
			if strings.Contains(lower, c.marker) {
				p.Browser = c.product
				break
			}
		}
		p.Profile = profileDir(slashed)
	case record.Firefox:
		p.Profile = profileDir(slashed)
	case record.IELegacy, record.SafariEdgeLegacy:
		p.Profile = userName(slashed)
		if strings.Contains(lower, "microsoftedge") {
			p.Browser = "Microsoft Edge Legacy"
		}
	}
	return p
}

func profileDir(slashed string) string {
	dir := path.Base(path.Dir(slashed))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// userName finds the account name in Windows and macOS home directory paths.
func userName(slashed string) string {
	parts := strings.Split(slashed, "/")
	for i, part := range parts[:len(parts)-1] {
		switch strings.ToLower(part) {
		case "users", "documents and settings":
			if parts[i+1] != "" {
				return parts[i+1]
			}
		}
	}
	return ""
}
