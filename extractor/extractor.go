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

// Package extractor reads browser artifacts of one storage family from a
// single source file and converts them to canonical records.
//
// Extractors never fail as a whole: every problem is recorded as a
// record.Failure in the Result and extraction continues with the next row,
// query or structure. Evidence is opened read-only; databases are only
// opened on private working copies.
package extractor

import (
	"context"
	"fmt"
	"path"
	"runtime/debug"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/schema"
	"github.com/forensicanalysis/browserartifacts/workcopy"
)

// Extractor reads one family of browser artifacts.
type Extractor interface {
	Family() record.Family
	Extract(ctx context.Context, fsys afero.Fs, name string) Result
}

// Result is everything an extraction produced.
type Result struct {
	Records  []record.Record
	Failures []record.Failure
}

// Readable reports whether the source could be opened and recognized.
func (r Result) Readable() bool {
	for _, f := range r.Failures {
		if f.Kind.SourceLevel() {
			return false
		}
	}
	return true
}

// Options configure extractors.
type Options struct {
	Mapper *schema.Mapper
	Logger *zap.Logger
	// TempDir is where working copies are created, the system default if empty.
	TempDir string
	// MaxMemory is the size up to which working copies stay in memory.
	MaxMemory int64
}

func (o Options) withDefaults() Options {
	if o.Mapper == nil {
		o.Mapper = schema.New(nil)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MaxMemory <= 0 {
		o.MaxMemory = workcopy.DefaultMaxMemory
	}
	return o
}

// For returns the extractor of a family.
func For(family record.Family, opts Options) (Extractor, error) {
	b := base{family: family, opts: opts.withDefaults()}
	switch family {
	case record.Chromium:
		return &Chromium{b}, nil
	case record.Firefox:
		return &Firefox{b}, nil
	case record.IELegacy:
		return &WebCache{b}, nil
	case record.SafariEdgeLegacy:
		return &Safari{b}, nil
	}
	return nil, fmt.Errorf("no extractor for %s", family)
}

// Infer guesses the family of a source from its file name.
func Infer(name string) (record.Family, bool) {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	switch base {
	case "history", "bookmarks", "bookmarks.bak", "favicons", "web data", "login data", "login data for account":
		return record.Chromium, true
	case "places.sqlite", "downloads.sqlite", "formhistory.sqlite":
		return record.Firefox, true
	case "index.dat":
		return record.IELegacy, true
	case "history.db", "bookmarks.plist", "downloads.plist":
		return record.SafariEdgeLegacy, true
	}
	if strings.HasPrefix(base, "webcachev") && strings.HasSuffix(base, ".dat") {
		return record.IELegacy, true
	}
	if path.Ext(base) == ".url" {
		return record.IELegacy, true
	}
	return 0, false
}

type base struct {
	family record.Family
	opts   Options
}

// Family returns the family the extractor reads.
func (b *base) Family() record.Family {
	return b.family
}

// run executes fn with a fresh session and turns panics into failures.
func (b *base) run(fsys afero.Fs, name string, fn func(s *session)) (result Result) {
	s := &session{
		base:       b,
		fsys:       fsys,
		name:       name,
		provenance: provenance(b.family, name),
	}
	defer func() {
		if r := recover(); r != nil {
			s.opts.Logger.Error("extractor panic", zap.String("source", name), zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			s.fail(record.UnreadableSource, "", fmt.Errorf("internal error: %v", r))
		}
		s.opts.Logger.Info("extracted source",
			zap.Stringer("family", b.family),
			zap.String("source", name),
			zap.Int("records", len(s.result.Records)),
			zap.Int("failures", len(s.result.Failures)),
		)
		result = s.result
	}()
	fn(s)
	return s.result
}

type session struct {
	*base
	fsys       afero.Fs
	name       string
	provenance record.Provenance
	result     Result
}

// add maps a row and keeps the record and any failure.
func (s *session) add(query string, row schema.Row) {
	r, err := s.opts.Mapper.Map(s.family, query, row, s.provenance)
	if err != nil {
		failure := record.FailureFromError(err, s.family, s.name, query)
		s.opts.Logger.Debug("row not mapped cleanly", zap.String("source", s.name), zap.String("query", query),
			zap.Stringer("kind", failure.Kind), zap.String("reason", failure.Reason))
		s.result.Failures = append(s.result.Failures, failure)
	}
	if r != nil {
		s.result.Records = append(s.result.Records, *r)
	}
}

func (s *session) fail(kind record.Kind, query string, err error) {
	s.opts.Logger.Debug("extraction failure", zap.String("source", s.name), zap.String("query", query),
		zap.Stringer("kind", kind), zap.Error(err))
	s.result.Failures = append(s.result.Failures, record.Failure{
		Kind:       kind,
		Family:     s.family,
		SourcePath: s.name,
		Query:      query,
		Reason:     err.Error(),
	})
}

// stage creates the working copy of the source.
func (s *session) stage() (*workcopy.Copy, bool) {
	c, err := workcopy.Stage(s.fsys, s.name, s.opts.TempDir, s.opts.MaxMemory)
	if err != nil {
		s.fail(record.UnreadableSource, "", err)
		return nil, false
	}
	return c, true
}

// peek returns the first n bytes of the source.
func (s *session) peek(n int) ([]byte, bool) {
	f, err := s.fsys.Open(s.name)
	if err != nil {
		s.fail(record.UnreadableSource, "", err)
		return nil, false
	}
	defer f.Close()

	b := make([]byte, n)
	read, err := f.Read(b)
	if err != nil && read == 0 {
		s.fail(record.UnreadableSource, "", fmt.Errorf("could not read %s: %w", s.name, err))
		return nil, false
	}
	return b[:read], true
}
