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
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/browserartifacts/timestamp"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"scheme and host", "HTTP://Example.COM/Path?Q=A#Frag", "http://example.com/Path?Q=A#Frag"},
		{"default http port", "http://example.com:80/", "http://example.com/"},
		{"default https port", "https://example.com:443", "https://example.com"},
		{"other port", "https://example.com:8443/x", "https://example.com:8443/x"},
		{"http port on https", "https://example.com:80/", "https://example.com:80/"},
		{"userinfo", "ftp://User@FTP.Example.com:21/file", "ftp://User@ftp.example.com/file"},
		{"ipv6", "http://[::1]:80/", "http://[::1]/"},
		{"opaque", "Mailto:Someone@Example.com", "mailto:Someone@Example.com"},
		{"no scheme", "example.com/path", "example.com/path"},
		{"empty", "", ""},
		{"trim", "  https://a.b/  ", "https://a.b/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.url))
		})
	}
}

func TestKey(t *testing.T) {
	p := Provenance{Family: Chromium, SourcePath: "History"}
	a := New(HistoryVisit, p)
	a.URL = "HTTPS://Example.com:443/a"
	a.Timestamp = timestamp.Instant(1617280496000000)
	b := New(HistoryVisit, p)
	b.URL = "https://example.com/a"
	b.Timestamp = timestamp.Instant(1617280496999999)
	assert.Equal(t, a.Key(), b.Key())

	c := a.Clone()
	c.Timestamp += 1000000
	assert.NotEqual(t, a.Key(), c.Key())
	assert.True(t, a.Key().Less(c.Key()))

	d := a.Clone()
	d.ArtifactType = Bookmark
	assert.NotEqual(t, a.Key(), d.Key())

	e := a.Clone()
	e.Timestamp = timestamp.Unknown
	f := b.Clone()
	f.Timestamp = timestamp.Unknown
	assert.Equal(t, e.Key(), f.Key())
	assert.True(t, e.Key().Less(a.Key()))
}

func TestKey_Detail(t *testing.T) {
	form := func(family Family, raw map[string]interface{}) *Record {
		r := New(FormData, Provenance{Family: family, SourcePath: "Web Data"})
		r.Timestamp = timestamp.Instant(1617280496000000)
		r.RawFields = raw
		return r
	}
	tests := []struct {
		name  string
		a, b  *Record
		equal bool
	}{
		{"different field", form(Chromium, map[string]interface{}{"name": "name", "value": "Alice"}), form(Chromium, map[string]interface{}{"name": "email", "value": "alice@example.com"}), false},
		{"different value", form(Chromium, map[string]interface{}{"name": "name", "value": "Alice"}), form(Chromium, map[string]interface{}{"name": "name", "value": "Bob"}), false},
		{"same entry", form(Chromium, map[string]interface{}{"name": "name", "value": "Alice", "count": int64(1)}), form(Chromium, map[string]interface{}{"name": "name", "value": "Alice", "count": int64(3)}), true},
		{"across families", form(Chromium, map[string]interface{}{"name": "email", "value": "a@example.com"}), form(Firefox, map[string]interface{}{"fieldname": "email", "value": "a@example.com", "guid": "x"}), true},
		{"no raw fields", form(Chromium, nil), form(Firefox, map[string]interface{}{}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.equal {
				assert.Equal(t, tt.a.Key(), tt.b.Key())
			} else {
				assert.NotEqual(t, tt.a.Key(), tt.b.Key())
				assert.NotEqual(t, tt.a.Key().Less(tt.b.Key()), tt.b.Key().Less(tt.a.Key()))
			}
		})
	}

	icon := New(Favicon, Provenance{Family: Chromium, SourcePath: "Favicons"})
	icon.RawFields["url"] = "https://example.com/favicon.ico"
	assert.Equal(t, "https://example.com/favicon.ico", icon.Key().Detail)
	icon.URL = "https://example.com/"
	assert.Empty(t, icon.Key().Detail)
}

func TestRecord_Validate(t *testing.T) {
	p := Provenance{Family: Firefox, SourcePath: "places.sqlite"}
	withURL := func(r *Record) *Record { r.URL = "https://example.com"; return r }
	tests := []struct {
		name    string
		record  *Record
		wantErr bool
	}{
		{"valid", withURL(New(HistoryVisit, p)), false},
		{"missing url", New(Download, p), true},
		{"favicon without url", New(Favicon, p), false},
		{"no source", withURL(New(Bookmark, Provenance{Family: Firefox})), true},
		{"no family", withURL(New(Bookmark, Provenance{SourcePath: "x"})), true},
		{"bad type", withURL(New(ArtifactType(42), p)), true},
		{"negative count", func() *Record { r := withURL(New(HistoryVisit, p)); r.VisitCount = Int64(-1); return r }(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	r := New(HistoryVisit, Provenance{Family: Chromium, SourcePath: "History"})
	r.VisitCount = Int64(3)
	r.RawFields["nested"] = map[string]interface{}{"a": []interface{}{1}}

	c := r.Clone()
	*c.VisitCount = 4
	c.Audit[0].SourcePath = "other"
	c.RawFields["nested"].(map[string]interface{})["a"] = nil

	assert.Equal(t, int64(3), *r.VisitCount)
	assert.Equal(t, "History", r.Audit[0].SourcePath)
	assert.Equal(t, []interface{}{1}, r.RawFields["nested"].(map[string]interface{})["a"])
}

func TestRecord_JSON(t *testing.T) {
	r := New(Download, Provenance{Family: SafariEdgeLegacy, SourcePath: "Downloads.plist", Profile: "alice"})
	r.URL = "https://example.com/setup.exe"
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"artifact_type": "DOWNLOAD",
		"url": "https://example.com/setup.exe",
		"timestamp": null,
		"provenance": {"browser_family": "SAFARI_EDGE_LEGACY", "source_path": "Downloads.plist", "profile": "alice"},
		"audit": [{"browser_family": "SAFARI_EDGE_LEGACY", "source_path": "Downloads.plist", "profile": "alice"}]
	}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Download, back.ArtifactType)
	assert.Equal(t, timestamp.Unknown, back.Timestamp)
	assert.Equal(t, SafariEdgeLegacy, back.Provenance.Family)
}

func TestParseFamily(t *testing.T) {
	tests := []struct {
		in      string
		want    Family
		wantErr bool
	}{
		{"CHROMIUM", Chromium, false},
		{"firefox", Firefox, false},
		{"ie_legacy", IELegacy, false},
		{"safari", SafariEdgeLegacy, false},
		{"edge", Chromium, false},
		{"netscape", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFamily(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFamily() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFailureFromError(t *testing.T) {
	err := &Error{Kind: SchemaMismatch, Query: "downloads", Err: fmt.Errorf("no such column: referrer")}
	f := FailureFromError(fmt.Errorf("wrapped: %w", err), Chromium, "History", "")
	assert.Equal(t, Failure{
		Kind:       SchemaMismatch,
		Family:     Chromium,
		SourcePath: "History",
		Query:      "downloads",
		Reason:     "no such column: referrer",
	}, f)
	assert.Equal(t, SchemaMismatch, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(fmt.Errorf("plain")))
	assert.True(t, TimestampOutOfRange.Warning())
	assert.False(t, MappingError.Warning())
}
