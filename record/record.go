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

// Package record defines the canonical browser artifact record that every
// extractor emits, together with its provenance, identity key and the failure
// kinds reported during extraction.
package record

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/browserartifacts/timestamp"
)

// ArtifactType classifies a record.
type ArtifactType int

// Artifact types.
const (
	HistoryVisit ArtifactType = iota + 1
	Bookmark
	Download
	Favicon
	FormData
	CacheLog
)

var artifactTypeNames = map[ArtifactType]string{
	HistoryVisit: "HISTORY_VISIT",
	Bookmark:     "BOOKMARK",
	Download:     "DOWNLOAD",
	Favicon:      "FAVICON",
	FormData:     "FORM_DATA",
	CacheLog:     "CACHE_LOG",
}

// ArtifactTypes lists all artifact types in their canonical order.
var ArtifactTypes = []ArtifactType{HistoryVisit, Bookmark, Download, Favicon, FormData, CacheLog}

func (t ArtifactType) String() string {
	if name, ok := artifactTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ArtifactType(%d)", int(t))
}

// RequiresURL reports whether records of this type are meaningless without a URL.
func (t ArtifactType) RequiresURL() bool {
	return t == HistoryVisit || t == Bookmark || t == Download
}

// MarshalText implements encoding.TextMarshaler.
func (t ArtifactType) MarshalText() ([]byte, error) {
	if _, ok := artifactTypeNames[t]; !ok {
		return nil, fmt.Errorf("invalid artifact type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ArtifactType) UnmarshalText(b []byte) error {
	v, err := ParseArtifactType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseArtifactType parses the upper case name of an artifact type.
func ParseArtifactType(s string) (ArtifactType, error) {
	for t, name := range artifactTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown artifact type %q", s)
}

// Family is a browser storage family.
type Family int

// Browser storage families.
const (
	Chromium Family = iota + 1
	Firefox
	IELegacy
	SafariEdgeLegacy
)

var familyNames = map[Family]string{
	Chromium:         "CHROMIUM",
	Firefox:          "FIREFOX",
	IELegacy:         "IE_LEGACY",
	SafariEdgeLegacy: "SAFARI_EDGE_LEGACY",
}

// Families lists all families in their canonical order.
var Families = []Family{Chromium, Firefox, IELegacy, SafariEdgeLegacy}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Valid reports whether f is one of the known families.
func (f Family) Valid() bool {
	_, ok := familyNames[f]
	return ok
}

// Encoding returns the native time encoding of the family.
func (f Family) Encoding() timestamp.Encoding {
	switch f {
	case Chromium:
		return timestamp.ChromiumMicros
	case IELegacy:
		return timestamp.FileTime
	case SafariEdgeLegacy:
		return timestamp.CoreDataSeconds
	default:
		return timestamp.UnixMicros
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid family %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(b []byte) error {
	v, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFamily parses a family name. Lower case and a few common browser names
// are accepted as well.
func ParseFamily(s string) (Family, error) {
	for f, name := range familyNames {
		if strings.EqualFold(name, s) {
			return f, nil
		}
	}
	switch strings.ToLower(s) {
	case "chrome", "edge", "brave", "opera":
		return Chromium, nil
	case "ie", "internetexplorer", "webcache":
		return IELegacy, nil
	case "safari", "edgelegacy":
		return SafariEdgeLegacy, nil
	}
	return 0, fmt.Errorf("unknown browser family %q", s)
}

// Provenance identifies where a record came from.
type Provenance struct {
	Family     Family `json:"browser_family"`
	SourcePath string `json:"source_path"`
	Profile    string `json:"profile,omitempty"`
	Browser    string `json:"browser,omitempty"`
}

func (p Provenance) String() string {
	if p.Profile != "" {
		return fmt.Sprintf("%s:%s#%s", p.Family, p.SourcePath, p.Profile)
	}
	return fmt.Sprintf("%s:%s", p.Family, p.SourcePath)
}

// Record is the canonical browser artifact.
type Record struct {
	ArtifactType ArtifactType           `json:"artifact_type"`
	URL          string                 `json:"url,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Referrer     string                 `json:"referrer,omitempty"`
	Timestamp    timestamp.Instant      `json:"timestamp"`
	VisitCount   *int64                 `json:"visit_count,omitempty"`
	Provenance   Provenance             `json:"provenance"`
	Audit        []Provenance           `json:"audit,omitempty"`
	RawFields    map[string]interface{} `json:"raw_fields,omitempty"`
}

// New returns a record of the given type with an Unknown timestamp and its
// provenance as the only audit entry.
func New(t ArtifactType, p Provenance) *Record {
	return &Record{
		ArtifactType: t,
		Timestamp:    timestamp.Unknown,
		Provenance:   p,
		Audit:        []Provenance{p},
		RawFields:    map[string]interface{}{},
	}
}

// Key returns the identity key of the record.
func (r *Record) Key() Key {
	k := Key{URL: NormalizeURL(r.URL), Type: r.ArtifactType, Bucket: r.Timestamp.Bucket()}
	if k.URL == "" {
		k.Detail = detail(r.ArtifactType, r.RawFields)
	}
	return k
}

// Validate checks the fields every consumer relies on.
func (r *Record) Validate() error {
	if _, ok := artifactTypeNames[r.ArtifactType]; !ok {
		return errors.Errorf("invalid artifact type %d", int(r.ArtifactType))
	}
	if !r.Provenance.Family.Valid() {
		return errors.Errorf("invalid browser family %d", int(r.Provenance.Family))
	}
	if r.Provenance.SourcePath == "" {
		return errors.New("missing source path")
	}
	if r.ArtifactType.RequiresURL() && r.URL == "" {
		return errors.Errorf("%s requires an url", r.ArtifactType)
	}
	if r.VisitCount != nil && *r.VisitCount < 0 {
		return errors.Errorf("negative visit count %d", *r.VisitCount)
	}
	return nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() Record {
	c := *r
	if r.VisitCount != nil {
		v := *r.VisitCount
		c.VisitCount = &v
	}
	c.Audit = append([]Provenance(nil), r.Audit...)
	c.RawFields = cloneValue(r.RawFields).(map[string]interface{})
	return c
}

func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[k] = cloneValue(e)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(v))
		for i, e := range v {
			l[i] = cloneValue(e)
		}
		return l
	case []byte:
		return append([]byte(nil), v...)
	default:
		return v
	}
}

// Int64 returns a pointer to i, for VisitCount literals.
func Int64(i int64) *int64 {
	return &i
}
