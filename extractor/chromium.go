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
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/schema"
)

// Chromium extracts Chrome, Edge, Brave, Opera and other Chromium based
// browsers: the History, Favicons, Web Data and Login Data databases and the
// Bookmarks JSON file.
type Chromium struct {
	base
}

var (
	chromiumHistory = variant{
		query: schema.ChromiumHistory,
		sql: `SELECT visits.id AS visit_id, urls.url, urls.title, urls.visit_count, urls.typed_count,
			urls.last_visit_time, urls.hidden, visits.visit_time, visits.transition, visits.visit_duration,
			source.url AS from_url
		FROM visits
		JOIN urls ON urls.id = visits.url
		LEFT JOIN visits AS previous ON previous.id = visits.from_visit
		LEFT JOIN urls AS source ON source.id = previous.url`,
		requires: map[string][]string{
			"urls":   {"id", "url", "title", "visit_count", "typed_count", "last_visit_time", "hidden"},
			"visits": {"id", "url", "visit_time", "from_visit", "transition", "visit_duration"},
		},
	}
	chromiumHistoryMinimal = variant{
		query: schema.ChromiumHistoryMinimal,
		sql: `SELECT urls.url, urls.title, visits.visit_time
		FROM visits JOIN urls ON urls.id = visits.url`,
		requires: map[string][]string{
			"urls":   {"id", "url", "title"},
			"visits": {"url", "visit_time"},
		},
	}
	chromiumDownloads = variant{
		query: schema.ChromiumDownloads,
		sql: `SELECT downloads.id, downloads_url_chains.url, downloads_url_chains.chain_index,
			downloads.target_path, downloads.current_path, downloads.start_time, downloads.end_time,
			downloads.received_bytes, downloads.total_bytes, downloads.state, downloads.danger_type,
			downloads.interrupt_reason, downloads.opened, downloads.referrer, downloads.tab_url,
			downloads.mime_type
		FROM downloads JOIN downloads_url_chains ON downloads_url_chains.id = downloads.id`,
		requires: map[string][]string{
			"downloads": {"id", "target_path", "current_path", "start_time", "end_time", "received_bytes",
				"total_bytes", "state", "danger_type", "interrupt_reason", "opened", "referrer", "tab_url",
				"mime_type"},
			"downloads_url_chains": {"id", "url", "chain_index"},
		},
	}
	chromiumDownloadsMinimal = variant{
		query: schema.ChromiumDownloadsMinimal,
		sql: `SELECT downloads.id, downloads_url_chains.url, downloads.current_path, downloads.start_time,
			downloads.received_bytes
		FROM downloads JOIN downloads_url_chains ON downloads_url_chains.id = downloads.id`,
		requires: map[string][]string{
			"downloads":            {"id", "current_path", "start_time", "received_bytes"},
			"downloads_url_chains": {"id", "url"},
		},
	}
	chromiumDownloadsLegacy = variant{
		query: schema.ChromiumDownloadsLegacy,
		sql:   `SELECT id, url, full_path, start_time, received_bytes, total_bytes, state FROM downloads`,
		requires: map[string][]string{
			"downloads": {"id", "url", "full_path", "start_time", "received_bytes", "total_bytes", "state"},
		},
	}
	chromiumStarred = variant{
		query: schema.ChromiumStarred,
		sql: `SELECT urls.url, starred.title, starred.date_added
		FROM starred JOIN urls ON urls.id = starred.url_id`,
		requires: map[string][]string{
			"starred": {"url_id", "title", "date_added"},
			"urls":    {"id", "url"},
		},
	}
	chromiumFavicons = variant{
		query: schema.ChromiumFavicons,
		sql: `SELECT icon_mapping.page_url, favicons.url AS icon_url, favicon_bitmaps.last_updated,
			favicon_bitmaps.last_requested, favicon_bitmaps.width, favicon_bitmaps.height
		FROM icon_mapping
		JOIN favicon_bitmaps ON favicon_bitmaps.icon_id = icon_mapping.icon_id
		LEFT JOIN favicons ON favicons.id = icon_mapping.icon_id`,
		requires: map[string][]string{
			"icon_mapping":    {"page_url", "icon_id"},
			"favicon_bitmaps": {"icon_id", "last_updated", "last_requested", "width", "height"},
			"favicons":        {"id", "url"},
		},
	}
	chromiumFaviconsMinimal = variant{
		query: schema.ChromiumFaviconsMinimal,
		sql: `SELECT icon_mapping.page_url, favicon_bitmaps.last_updated
		FROM icon_mapping JOIN favicon_bitmaps ON favicon_bitmaps.icon_id = icon_mapping.icon_id`,
		requires: map[string][]string{
			"icon_mapping":    {"page_url", "icon_id"},
			"favicon_bitmaps": {"icon_id", "last_updated"},
		},
	}
	chromiumAutofill = variant{
		query:    schema.ChromiumAutofill,
		sql:      `SELECT name, value, count, date_created, date_last_used FROM autofill`,
		requires: map[string][]string{"autofill": {"name", "value", "count", "date_created", "date_last_used"}},
	}
	chromiumAutofillLegacy = variant{
		query: schema.ChromiumAutofillLegacy,
		sql: `SELECT autofill.name, autofill.value, autofill.count, autofill_dates.date_created
		FROM autofill JOIN autofill_dates ON autofill_dates.pair_id = autofill.pair_id`,
		requires: map[string][]string{
			"autofill":       {"name", "value", "count", "pair_id"},
			"autofill_dates": {"pair_id", "date_created"},
		},
	}
	// password columns are never selected
	chromiumLogins = variant{
		query: schema.ChromiumLogins,
		sql: `SELECT origin_url, action_url, signon_realm, username_value, date_created, date_last_used,
			times_used
		FROM logins`,
		requires: map[string][]string{
			"logins": {"origin_url", "action_url", "signon_realm", "username_value", "date_created",
				"date_last_used", "times_used"},
		},
	}
	chromiumLoginsMinimal = variant{
		query:    schema.ChromiumLogins,
		sql:      `SELECT origin_url, action_url, username_value, date_created FROM logins`,
		requires: map[string][]string{"logins": {"origin_url", "action_url", "username_value", "date_created"}},
	}
)

// Extract reads one Chromium source file.
func (e *Chromium) Extract(ctx context.Context, fsys afero.Fs, name string) Result {
	return e.run(fsys, name, func(s *session) {
		header, ok := s.peek(len(sqliteMagic))
		if !ok {
			return
		}
		if !isSQLite(header) {
			s.chromiumBookmarks()
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
		if tables["urls"] {
			known = true
			s.runVariants(ctx, db, chromiumHistory, chromiumHistoryMinimal)
			if tables["downloads"] {
				s.runVariants(ctx, db, chromiumDownloads, chromiumDownloadsMinimal, chromiumDownloadsLegacy)
			} else {
				s.fail(record.SchemaMismatch, schema.ChromiumDownloads, errors.New("no downloads table"))
			}
			if tables["starred"] {
				s.runVariants(ctx, db, chromiumStarred)
			}
		}
		if tables["icon_mapping"] {
			known = true
			s.runVariants(ctx, db, chromiumFavicons, chromiumFaviconsMinimal)
		}
		if tables["autofill"] {
			known = true
			s.runVariants(ctx, db, chromiumAutofill, chromiumAutofillLegacy)
		}
		if tables["logins"] {
			known = true
			s.runVariants(ctx, db, chromiumLogins, chromiumLoginsMinimal)
		}
		if !known {
			s.fail(record.SchemaMismatch, "", errors.New("no known Chromium tables"))
		}
	})
}

// chromiumBookmarks reads the Bookmarks JSON file.
func (s *session) chromiumBookmarks() {
	c, ok := s.stage()
	if !ok {
		return
	}
	defer c.Close()

	data, err := c.Bytes()
	if err != nil {
		s.fail(record.UnreadableSource, schema.ChromiumBookmarks, err)
		return
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !gjson.ValidBytes(data) {
		s.fail(record.UnreadableSource, schema.ChromiumBookmarks, errors.New("not a SQLite database or JSON document"))
		return
	}
	roots := gjson.GetBytes(data, "roots")
	if !roots.IsObject() {
		s.fail(record.SchemaMismatch, schema.ChromiumBookmarks, errors.New("no bookmark roots"))
		return
	}
	roots.ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() {
			s.chromiumBookmarkNode(value, "")
		}
		return true
	})
}

func (s *session) chromiumBookmarkNode(node gjson.Result, folder string) {
	switch node.Get("type").String() {
	case "url":
		row := schema.Row{
			"url":        node.Get("url").String(),
			"name":       node.Get("name").String(),
			"date_added": node.Get("date_added").String(),
			"guid":       node.Get("guid").String(),
			"id":         node.Get("id").String(),
			"folder":     folder,
		}
		if lastUsed := node.Get("date_last_used"); lastUsed.Exists() {
			row["date_last_used"] = lastUsed.String()
		}
		s.add(schema.ChromiumBookmarks, row)
	default:
		path := strings.TrimPrefix(folder+"/"+node.Get("name").String(), "/")
		for _, child := range node.Get("children").Array() {
			s.chromiumBookmarkNode(child, path)
		}
	}
}
