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

package record

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Key is the identity of a record for deduplication: the normalized URL, the
// artifact type and the second the timestamp falls into. Records without a
// URL carry a Detail taken from their raw fields so that distinct form
// entries or icons do not collapse into one.
type Key struct {
	URL    string
	Type   ArtifactType
	Bucket int64
	Detail string
}

// Less orders keys by URL, then type, then bucket, then detail.
func (k Key) Less(o Key) bool {
	if k.URL != o.URL {
		return k.URL < o.URL
	}
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	if k.Bucket != o.Bucket {
		return k.Bucket < o.Bucket
	}
	return k.Detail < o.Detail
}

// detailFields lists per artifact type the raw field alternatives that
// identify a record without a URL. The first present name of each group is
// used, so Chromium "name" and Firefox "fieldname" key the same.
var detailFields = map[ArtifactType][][]string{
	FormData: {{"name", "fieldname", "username_value"}, {"value"}},
	Favicon:  {{"url", "icon_url"}},
}

func detail(t ArtifactType, raw map[string]interface{}) string {
	groups, ok := detailFields[t]
	if !ok || len(raw) == 0 {
		return ""
	}
	parts := make([]string, 0, len(groups))
	found := false
	for _, names := range groups {
		part := ""
		for _, name := range names {
			if v, ok := raw[name]; ok && v != nil {
				part = fmt.Sprint(v)
				found = true
				break
			}
		}
		parts = append(parts, part)
	}
	if !found {
		return ""
	}
	return strings.Join(parts, "\x00")
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
	"ws":    "80",
	"wss":   "443",
}

// NormalizeURL lower-cases scheme and host and removes default ports. Path,
// query, fragment and user info are kept as they are.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	i := strings.Index(raw, ":")
	if i <= 0 {
		return raw
	}
	scheme := strings.ToLower(raw[:i])
	rest := raw[i+1:]
	if !strings.HasPrefix(rest, "//") {
		return scheme + ":" + rest
	}

	// authority is everything up to the first path, query or fragment separator
	authority := rest[2:]
	tail := ""
	if j := strings.IndexAny(authority, "/?#"); j >= 0 {
		authority, tail = authority[:j], authority[j:]
	}

	userinfo := ""
	if j := strings.LastIndex(authority, "@"); j >= 0 {
		userinfo, authority = authority[:j+1], authority[j+1:]
	}

	host, port := authority, ""
	if h, p, err := net.SplitHostPort(authority); err == nil {
		host, port = h, p
		if strings.Contains(h, ":") {
			host = "[" + h + "]"
		}
	}
	host = strings.ToLower(host)
	if port != "" && defaultPorts[scheme] == port {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + userinfo + host + tail
}

// Host returns the lower case host name of a URL without port, or "" if it has none.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
