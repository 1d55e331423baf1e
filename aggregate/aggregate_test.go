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

package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/timestamp"
)

const t0 = timestamp.Instant(1617280496000000)

var (
	chrome  = record.Provenance{Family: record.Chromium, SourcePath: "/a/History", Browser: "Google Chrome", Profile: "Default"}
	firefox = record.Provenance{Family: record.Firefox, SourcePath: "/b/places.sqlite", Browser: "Mozilla Firefox"}
	ie      = record.Provenance{Family: record.IELegacy, SourcePath: "/c/index.dat", Browser: "Internet Explorer"}
)

func visit(p record.Provenance, url, title string, ts timestamp.Instant, count *int64) record.Record {
	r := record.New(record.HistoryVisit, p)
	r.URL = url
	r.Title = title
	r.Timestamp = ts
	r.VisitCount = count
	return *r
}

func TestMerge_CrossFamily(t *testing.T) {
	a := visit(chrome, "https://Example.com:443/login", "", t0+100, record.Int64(2))
	a.RawFields["transition"] = int64(1)
	b := visit(firefox, "https://example.com/login", "Login", t0+900000, record.Int64(3))
	b.RawFields["transition"] = int64(7)
	b.RawFields["visit_type"] = int64(1)
	b.Referrer = "https://example.com/"

	records, stats := Merge([]record.Record{a, b})
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Login", r.Title)
	assert.Equal(t, int64(5), *r.VisitCount)
	assert.Equal(t, chrome, r.Provenance)
	assert.Equal(t, []record.Provenance{chrome, firefox}, r.Audit)
	assert.Equal(t, t0+100, r.Timestamp)
	assert.Equal(t, "https://example.com/", r.Referrer)
	assert.Equal(t, int64(1), r.RawFields["transition"])
	assert.NotContains(t, r.RawFields, "visit_type")
	assert.Equal(t, map[string]interface{}{
		firefox.String(): map[string]interface{}{"transition": int64(7), "visit_type": int64(1)},
	}, r.RawFields[MergedRawFields])

	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 2, stats.Input)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, map[record.Family]int{record.Chromium: 1}, stats.ByFamily)
	assert.NoError(t, stats.Check())
}

func TestMerge_RawFieldsVerbatim(t *testing.T) {
	a := visit(chrome, "https://example.com/", "", t0, nil)
	a.RawFields["hidden"] = int64(0)
	a.RawFields["title_raw"] = ""
	b := visit(firefox, "https://example.com/", "", t0, nil)
	b.RawFields["hidden"] = int64(1)
	b.RawFields["title_raw"] = "ff"
	c := visit(ie, "https://example.com/", "", t0, nil)
	c.RawFields["hits"] = int64(9)

	records, _ := Merge([]record.Record{a, b, c})
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, record.Chromium, r.Provenance.Family)
	assert.Equal(t, int64(0), r.RawFields["hidden"])
	assert.Equal(t, "", r.RawFields["title_raw"])
	assert.NotContains(t, r.RawFields, "hits")
	assert.Equal(t, map[string]interface{}{
		firefox.String(): map[string]interface{}{"hidden": int64(1), "title_raw": "ff"},
		ie.String():      map[string]interface{}{"hits": int64(9)},
	}, r.RawFields[MergedRawFields])

	// merging the result with itself changes nothing
	again, _ := Merge(append(records, records...))
	require.Len(t, again, 1)
	assert.Equal(t, r.RawFields, again[0].RawFields)
	assert.Equal(t, r.Audit, again[0].Audit)

	// a chain of merges keeps every source
	ab, _ := Merge([]record.Record{a, b})
	chained, _ := Merge([]record.Record{ab[0], c})
	require.Len(t, chained, 1)
	assert.Equal(t, r.RawFields, chained[0].RawFields)
}

func TestMerge_FormDataWithoutURL(t *testing.T) {
	form := func(p record.Provenance, name, value string, ts timestamp.Instant) record.Record {
		r := record.New(record.FormData, p)
		r.Timestamp = ts
		r.RawFields["name"] = name
		r.RawFields["value"] = value
		return *r
	}
	tests := []struct {
		name    string
		records []record.Record
		want    int
	}{
		{"same instant", []record.Record{
			form(chrome, "name", "Alice", t0),
			form(chrome, "email", "alice@example.com", t0),
			form(chrome, "phone", "555-0100", t0),
		}, 3},
		{"unknown time", []record.Record{
			form(chrome, "name", "Alice", timestamp.Unknown),
			form(chrome, "name", "Bob", timestamp.Unknown),
		}, 2},
		{"duplicate entry", []record.Record{
			form(chrome, "name", "Alice", t0),
			form(chrome, "name", "Alice", t0+10),
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, stats := Merge(tt.records)
			assert.Len(t, records, tt.want)
			assert.Equal(t, len(tt.records)-tt.want, stats.Merged)
			assert.NoError(t, stats.Check())
		})
	}
}

func TestMerge_Distinct(t *testing.T) {
	records, stats := Merge([]record.Record{
		visit(chrome, "https://example.com/", "", t0, nil),
		visit(chrome, "https://example.com/", "", t0+1000000, nil),
		visit(chrome, "https://example.com/", "", timestamp.Unknown, nil),
		visit(firefox, "https://example.com/other", "", t0, nil),
	})
	assert.Len(t, records, 4)
	assert.Equal(t, 0, stats.Merged)
	assert.Equal(t, 1, stats.UnknownTimestamps)
	assert.Equal(t, t0, stats.Earliest)
	assert.Equal(t, t0+1000000, stats.Latest)
	assert.Equal(t, []DomainCount{{Domain: "example.com", Count: 4}}, stats.TopDomains)

	for i := 1; i < len(records); i++ {
		assert.True(t, records[i-1].Key().Less(records[i].Key()))
	}
}

func TestBetterTitle(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"both empty", "", "", ""},
		{"first empty", "", "x", "x"},
		{"second empty", "x", "", "x"},
		{"longer wins", "Home", "Home page", "Home page"},
		{"longer first", "Home page", "Home", "Home page"},
		{"tie", "Beta", "Alfa", "Alfa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, betterTitle(tt.a, tt.b))
			assert.Equal(t, tt.want, betterTitle(tt.b, tt.a))
		})
	}
}

func TestMerge_VisitCounts(t *testing.T) {
	tests := []struct {
		name    string
		records []record.Record
		want    *int64
	}{
		{"none", []record.Record{visit(chrome, "https://a.example/", "", t0, nil), visit(firefox, "https://a.example/", "", t0, nil)}, nil},
		{"one", []record.Record{visit(chrome, "https://a.example/", "", t0, nil), visit(firefox, "https://a.example/", "", t0, record.Int64(4))}, record.Int64(4)},
		{"summed", []record.Record{visit(chrome, "https://a.example/", "", t0, record.Int64(1)), visit(firefox, "https://a.example/", "", t0, record.Int64(4))}, record.Int64(5)},
		{"same source", []record.Record{visit(chrome, "https://a.example/", "", t0, record.Int64(4)), visit(chrome, "https://a.example/", "", t0+5, record.Int64(4))}, record.Int64(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, _ := Merge(tt.records)
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].VisitCount)
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	input := []record.Record{
		visit(chrome, "https://example.com/", "Example", t0, record.Int64(2)),
		visit(firefox, "https://example.com/", "", t0+10, record.Int64(3)),
		visit(ie, "https://example.org/", "", timestamp.Unknown, nil),
	}
	once, _ := Merge(input)
	twice, _ := Merge(append(append([]record.Record{}, input...), input...))
	again, stats := Merge(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, once, again)
	assert.Equal(t, 0, stats.Merged)
}

func TestAggregator_NoSharedState(t *testing.T) {
	r := visit(chrome, "https://example.com/", "", t0, record.Int64(1))
	a := New(nil)
	a.Add(r)
	*r.VisitCount = 100
	r.RawFields["late"] = true

	records, _ := a.Finalize()
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), *records[0].VisitCount)
	assert.NotContains(t, records[0].RawFields, "late")

	records, stats := a.Finalize()
	assert.Empty(t, records)
	assert.Equal(t, 0, stats.Total)
}

func TestAggregator_Failures(t *testing.T) {
	a := New(nil)
	a.Add(visit(ie, "https://example.org/", "", t0, nil))
	a.AddFailures(
		record.Failure{Kind: record.SchemaMismatch, Family: record.Firefox, SourcePath: "/x"},
		record.Failure{Kind: record.TimestampOutOfRange, Family: record.IELegacy, SourcePath: "/c/index.dat"},
	)
	_, stats := a.Finalize()
	require.Len(t, stats.Failures, 1)
	require.Len(t, stats.Warnings, 1)
	assert.Equal(t, record.SchemaMismatch, stats.Failures[0].Kind)
	assert.Equal(t, map[record.ArtifactType]int{record.HistoryVisit: 1}, stats.ByType)
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.co.uk/path", "example.co.uk"},
		{"https://login.example.com:8443/", "example.com"},
		{"http://192.168.0.1/admin", "192.168.0.1"},
		{"about:blank", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, registrableDomain(tt.url))
		})
	}
}
