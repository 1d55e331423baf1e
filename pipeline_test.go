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
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/forensicanalysis/browserartifacts/aggregate"
	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/timestamp"
)

const (
	chromeHistory = "/evidence/Users/a/AppData/Local/Google/Chrome/User Data/Default/History"
	firefoxPlaces = "/evidence/Users/a/AppData/Roaming/Mozilla/Firefox/Profiles/x.default/places.sqlite"
)

// sqliteFile builds a SQLite database and returns its content.
func sqliteFile(t *testing.T, statements ...string) []byte {
	p := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := sql.Open("sqlite", p)
	require.NoError(t, err)
	for _, statement := range statements {
		_, err := db.Exec(statement)
		require.NoError(t, err, statement)
	}
	require.NoError(t, db.Close())
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return b
}

func evidence(t *testing.T) afero.Fs {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, chromeHistory, sqliteFile(t,
		`CREATE TABLE urls(id INTEGER PRIMARY KEY, url TEXT, title TEXT)`,
		`CREATE TABLE visits(url INTEGER, visit_time INTEGER)`,
		`INSERT INTO urls VALUES (1, 'https://example.com/', 'Example Domain')`,
		`INSERT INTO visits VALUES (1, 13261754096000000)`,
	), 0644))
	require.NoError(t, afero.WriteFile(fsys, firefoxPlaces, sqliteFile(t,
		`CREATE TABLE moz_places(id INTEGER PRIMARY KEY, url TEXT, title TEXT)`,
		`CREATE TABLE moz_historyvisits(place_id INTEGER, visit_date INTEGER)`,
		`INSERT INTO moz_places VALUES (1, 'https://EXAMPLE.com/', 'Example')`,
		`INSERT INTO moz_historyvisits VALUES (1, 1617280496250000)`,
	), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/evidence/notes.txt", []byte("notes"), 0644))
	return fsys
}

func TestPipeline_Run(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := &Pipeline{Fs: evidence(t), Workers: 2, Metrics: NewMetrics(reg)}

	result, err := p.Run(context.Background(), []Source{
		{Path: chromeHistory},
		{Path: firefoxPlaces, Family: record.Firefox},
		{Path: "/missing/History"},
		{Path: "/evidence/notes.txt"},
	})
	require.NoError(t, err)
	assert.False(t, result.Cancelled)
	assert.Equal(t, 2, result.Readable)
	require.Len(t, result.Sources, 4)
	assert.Equal(t, record.Chromium, result.Sources[0].Family)
	assert.True(t, result.Sources[0].Readable)
	assert.Equal(t, 1, result.Sources[1].Records)
	assert.Equal(t, record.Chromium, result.Sources[2].Family)
	assert.True(t, result.Sources[2].Ran)
	assert.False(t, result.Sources[2].Readable)
	assert.Equal(t, 0, result.Sources[2].Records)
	assert.False(t, result.Sources[3].Ran)
	assert.Equal(t, record.Family(0), result.Sources[3].Family)

	require.Len(t, result.Records, 1)
	r := result.Records[0]
	assert.Equal(t, "https://example.com/", r.URL)
	assert.Equal(t, "Example Domain", r.Title)
	assert.Equal(t, timestamp.Instant(1617280496000000), r.Timestamp)
	assert.Equal(t, record.Chromium, r.Provenance.Family)
	require.Len(t, r.Audit, 2)
	assert.Equal(t, firefoxPlaces, r.Audit[1].SourcePath)

	assert.Equal(t, 1, result.Stats.Total)
	assert.Equal(t, 2, result.Stats.Input)
	assert.Equal(t, 1, result.Stats.Merged)
	assert.NoError(t, result.Stats.Check())

	var kinds []record.Kind
	unreadable := 0
	for _, f := range result.Failures {
		kinds = append(kinds, f.Kind)
		if f.Kind == record.UnreadableSource {
			unreadable++
			assert.Equal(t, "/missing/History", f.SourcePath)
		}
	}
	assert.Equal(t, []record.Kind{record.SchemaMismatch, record.UnreadableSource, record.UnknownFamily}, kinds)
	assert.Equal(t, 1, unreadable)
	assert.Equal(t, result.Stats.Failures, result.Failures)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.Merged))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.Sources.WithLabelValues("CHROMIUM", "readable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.Sources.WithLabelValues("CHROMIUM", "unreadable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.Records.WithLabelValues("FIREFOX", "HISTORY_VISIT")))
}

func TestPipeline_NoData(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/places.sqlite", []byte("garbage"), 0644))

	tests := []struct {
		name    string
		sources []Source
	}{
		{"no sources", nil},
		{"unreadable", []Source{{Path: "/places.sqlite"}}},
		{"missing", []Source{{Path: "/missing/History"}}},
		{"unknown", []Source{{Path: "/readme.md"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := (&Pipeline{Fs: fsys}).Run(context.Background(), tt.sources)
			assert.True(t, errors.Is(err, ErrNoData))
			require.NotNil(t, result)
			assert.Empty(t, result.Records)
			assert.Equal(t, len(tt.sources), len(result.Failures))
		})
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := (&Pipeline{Fs: evidence(t)}).Run(ctx, []Source{{Path: chromeHistory}, {Path: firefoxPlaces}})
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.True(t, result.Cancelled)
	assert.Empty(t, result.Records)
}

type memorySink struct {
	records []record.Record
	stats   *aggregate.Stats
}

func (s *memorySink) AddRecords(records []record.Record) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *memorySink) AddStats(stats aggregate.Stats) error {
	s.stats = &stats
	return nil
}

func TestPublish(t *testing.T) {
	result, err := (&Pipeline{Fs: evidence(t)}).Run(context.Background(), []Source{{Path: firefoxPlaces}})
	require.NoError(t, err)

	sink := &memorySink{}
	require.NoError(t, Publish(result, sink))
	assert.Equal(t, result.Records, sink.records)
	require.NotNil(t, sink.stats)
	assert.Equal(t, 1, sink.stats.Total)
}
