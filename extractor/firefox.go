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
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/schema"
)

// Firefox extracts places.sqlite, downloads.sqlite and formhistory.sqlite.
type Firefox struct {
	base
}

var (
	firefoxHistory = variant{
		query: schema.FirefoxHistory,
		sql: `SELECT moz_historyvisits.id AS visit_id, moz_places.url, moz_places.title, moz_places.visit_count,
			moz_places.hidden, moz_places.typed, moz_places.last_visit_date, moz_historyvisits.visit_date,
			moz_historyvisits.visit_type, moz_historyvisits.from_visit, source.url AS from_url
		FROM moz_historyvisits
		JOIN moz_places ON moz_places.id = moz_historyvisits.place_id
		LEFT JOIN moz_historyvisits AS previous ON previous.id = moz_historyvisits.from_visit
		LEFT JOIN moz_places AS source ON source.id = previous.place_id`,
		requires: map[string][]string{
			"moz_places":        {"id", "url", "title", "visit_count", "hidden", "typed", "last_visit_date"},
			"moz_historyvisits": {"id", "place_id", "visit_date", "visit_type", "from_visit"},
		},
	}
	firefoxHistoryMinimal = variant{
		query: schema.FirefoxHistoryMinimal,
		sql: `SELECT moz_places.url, moz_places.title, moz_historyvisits.visit_date
		FROM moz_historyvisits JOIN moz_places ON moz_places.id = moz_historyvisits.place_id`,
		requires: map[string][]string{
			"moz_places":        {"id", "url", "title"},
			"moz_historyvisits": {"place_id", "visit_date"},
		},
	}
	firefoxBookmarks = variant{
		query: schema.FirefoxBookmarks,
		sql: `SELECT moz_bookmarks.id AS bookmark_id, moz_bookmarks.parent,
			COALESCE(moz_bookmarks.title, moz_places.title) AS title, moz_places.url,
			moz_bookmarks.dateAdded AS date_added, moz_bookmarks.lastModified AS last_modified
		FROM moz_bookmarks JOIN moz_places ON moz_places.id = moz_bookmarks.fk
		WHERE moz_bookmarks.type = 1`,
		requires: map[string][]string{
			"moz_bookmarks": {"id", "type", "fk", "parent", "title", "dateAdded", "lastModified"},
			"moz_places":    {"id", "url", "title"},
		},
	}
	firefoxAnnotatedDownloads = variant{
		query: schema.FirefoxAnnotatedDownloads,
		sql: `SELECT moz_places.url, moz_places.title, moz_annos.content,
			moz_annos.dateAdded AS date_added, moz_annos.lastModified AS last_modified
		FROM moz_annos
		JOIN moz_anno_attributes ON moz_anno_attributes.id = moz_annos.anno_attribute_id
		JOIN moz_places ON moz_places.id = moz_annos.place_id
		WHERE moz_anno_attributes.name = 'downloads/destinationFileURI'`,
		requires: map[string][]string{
			"moz_annos":           {"place_id", "anno_attribute_id", "content", "dateAdded", "lastModified"},
			"moz_anno_attributes": {"id", "name"},
			"moz_places":          {"id", "url", "title"},
		},
	}
	firefoxFormHistory = variant{
		query: schema.FirefoxFormHistory,
		sql: `SELECT id, fieldname, value, timesUsed AS times_used, firstUsed AS first_used,
			lastUsed AS last_used, guid
		FROM moz_formhistory`,
		requires: map[string][]string{
			"moz_formhistory": {"id", "fieldname", "value", "timesUsed", "firstUsed", "lastUsed", "guid"},
		},
	}
	firefoxFormHistoryMinimal = variant{
		query:    schema.FirefoxFormHistoryMinimal,
		sql:      `SELECT fieldname, value FROM moz_formhistory`,
		requires: map[string][]string{"moz_formhistory": {"fieldname", "value"}},
	}
)

// moz_downloads lives in places.sqlite before Firefox 24 and in
// downloads.sqlite in some versions around it.
func firefoxDownloads(query string) []variant {
	return []variant{
		{
			query: query,
			sql: `SELECT id, name, source, target, startTime AS start_time, endTime AS end_time, state,
				referrer, currBytes AS curr_bytes, maxBytes AS max_bytes, mimeType AS mime_type
			FROM moz_downloads`,
			requires: map[string][]string{
				"moz_downloads": {"id", "name", "source", "target", "startTime", "endTime", "state", "referrer",
					"currBytes", "maxBytes", "mimeType"},
			},
		},
		{
			query:    query,
			sql:      `SELECT name, source, target, startTime AS start_time FROM moz_downloads`,
			requires: map[string][]string{"moz_downloads": {"name", "source", "target", "startTime"}},
		},
	}
}

// Extract reads one Firefox database.
func (e *Firefox) Extract(ctx context.Context, fsys afero.Fs, name string) Result {
	return e.run(fsys, name, func(s *session) {
		header, ok := s.peek(len(sqliteMagic))
		if !ok {
			return
		}
		if !isSQLite(header) {
			s.fail(record.UnreadableSource, "", errors.New("not a SQLite database"))
			return
		}

		db, ok := s.openDatabase(ctx)
		if !ok {
			return
		}
		defer db.Close()

		tables, err := db.tables(ctx)
		if err != nil {
			s.fail(record.UnreadableSource, "", err)
			return
		}

		known := false
		if tables["moz_places"] {
			known = true
			if tables["moz_historyvisits"] {
				s.runVariants(ctx, db, firefoxHistory, firefoxHistoryMinimal)
			} else {
				s.fail(record.SchemaMismatch, schema.FirefoxHistory, errors.New("no moz_historyvisits table"))
			}
			if tables["moz_bookmarks"] {
				s.runVariants(ctx, db, firefoxBookmarks)
			}
			if tables["moz_annos"] && tables["moz_anno_attributes"] {
				s.runVariants(ctx, db, firefoxAnnotatedDownloads)
			}
		}
		if tables["moz_downloads"] {
			known = true
			query := schema.FirefoxDownloads
			if tables["moz_places"] {
				query = schema.FirefoxPlacesDownloads
			}
			s.runVariants(ctx, db, firefoxDownloads(query)...)
		}
		if tables["moz_formhistory"] {
			known = true
			s.runVariants(ctx, db, firefoxFormHistory, firefoxFormHistoryMinimal)
		}
		if !known {
			s.fail(record.SchemaMismatch, "", errors.New("no known Firefox tables"))
		}
	})
}
