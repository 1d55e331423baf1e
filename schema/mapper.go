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

// Package schema maps raw rows read from browser storage onto canonical
// records. The mapping tables are static: one Mapping per family and query.
package schema

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/timestamp"
)

// Row is one row as read from storage: column name to value.
type Row map[string]interface{}

// Mapping describes how the columns of one query become a record.
type Mapping struct {
	// Type is the artifact type of every row, unless TypeColumn is set.
	Type record.ArtifactType
	// TypeColumn names a column whose value is looked up in TypeCodes.
	// Codes mapped to 0 and codes missing from the table produce no record.
	TypeColumn string
	TypeCodes  map[string]record.ArtifactType

	URL        string
	Title      string
	VisitCount string
	Time       string
	Referrer   string

	// Encoding overrides the native time encoding of the family.
	Encoding *timestamp.Encoding
	// DecodeURL percent-decodes the URL once.
	DecodeURL bool
}

func (m Mapping) mapped(column string) bool {
	switch column {
	case "":
		return false
	case m.URL, m.Title, m.VisitCount, m.Time, m.Referrer:
		return true
	}
	return false
}

// Mapper converts rows into records.
type Mapper struct {
	Normalizer *timestamp.Normalizer
	tables     map[record.Family]map[string]Mapping
}

// New returns a Mapper with the built-in mapping tables.
func New(normalizer *timestamp.Normalizer) *Mapper {
	if normalizer == nil {
		normalizer = timestamp.Default
	}
	return &Mapper{Normalizer: normalizer, tables: tables}
}

// Lookup returns the mapping of a query.
func (m *Mapper) Lookup(family record.Family, query string) (Mapping, bool) {
	mapping, ok := m.tables[family][query]
	return mapping, ok
}

// Queries returns the sorted names of all queries mapped for family.
func (m *Mapper) Queries(family record.Family) []string {
	var queries []string
	for query := range m.tables[family] {
		queries = append(queries, query)
	}
	sort.Strings(queries)
	return queries
}

// Map converts a row into zero or one record.
//
// A nil record and a nil error mean that the row maps to no artifact, for
// example a redirect entry. A nil record and an error of kind MappingError mean
// the row lacked a required field. A record together with an error of kind
// TimestampOutOfRange means the record is valid but its time was implausible
// and has been set to Unknown.
func (m *Mapper) Map(family record.Family, query string, row Row, p record.Provenance) (*record.Record, error) {
	mapping, ok := m.Lookup(family, query)
	if !ok {
		return nil, record.Errorf(record.MappingError, "no mapping for %s query %q", family, query)
	}

	artifactType := mapping.Type
	if mapping.TypeColumn != "" {
		code := strings.ToLower(stringValue(row[mapping.TypeColumn]))
		artifactType = mapping.TypeCodes[code]
		if artifactType == 0 {
			return nil, nil
		}
	}

	r := record.New(artifactType, p)
	r.URL = strings.TrimSpace(stringValue(row[mapping.URL]))
	if mapping.DecodeURL {
		r.URL = decodeOnce(r.URL)
	}
	if r.URL == "" && artifactType.RequiresURL() {
		return nil, record.Errorf(record.MappingError, "%s row without %s", artifactType, mapping.URL)
	}
	r.Title = stringValue(row[mapping.Title])
	r.Referrer = stringValue(row[mapping.Referrer])
	if mapping.DecodeURL {
		r.Referrer = decodeOnce(r.Referrer)
	}

	if mapping.VisitCount != "" {
		if count, ok := intValue(row[mapping.VisitCount]); ok && count >= 0 {
			r.VisitCount = &count
		}
	}

	for column, value := range row {
		if mapping.mapped(column) {
			continue
		}
		r.RawFields[column] = rawValue(value)
	}

	var warning error
	if mapping.Time != "" {
		enc := family.Encoding()
		if mapping.Encoding != nil {
			enc = *mapping.Encoding
		}
		raw := row[mapping.Time]
		r.Timestamp, warning = m.Normalizer.Convert(enc, raw)
		if warning != nil {
			r.RawFields[mapping.Time] = rawValue(raw)
			warning = &record.Error{Kind: record.TimestampOutOfRange, Query: query, Err: warning}
		}
	}

	return r, warning
}

func decodeOnce(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

func stringValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func intValue(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > 1<<63-1 {
			return 0, false
		}
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	case []byte:
		return intValue(string(v))
	}
	return 0, false
}

// rawValue keeps values as they are, except for byte slices holding text.
func rawValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok && utf8.Valid(b) {
		return string(b)
	}
	return v
}
