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
	"howett.net/plist"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/schema"
)

// Safari extracts History.db, Bookmarks.plist (including the Reading List)
// and Downloads.plist.
type Safari struct {
	base
}

var (
	safariHistory = variant{
		query: schema.SafariHistory,
		sql: `SELECT history_visits.id AS visit_id, history_items.url, history_visits.title,
			history_visits.visit_time, history_items.visit_count, history_visits.load_successful,
			history_items.domain_expansion, source_items.url AS redirect_source_url
		FROM history_visits
		LEFT JOIN history_items ON history_items.id = history_visits.history_item
		LEFT JOIN history_visits AS source_visits ON source_visits.id = history_visits.redirect_source
		LEFT JOIN history_items AS source_items ON source_items.id = source_visits.history_item`,
		requires: map[string][]string{
			"history_visits": {"id", "history_item", "title", "visit_time", "load_successful", "redirect_source"},
			"history_items":  {"id", "url", "visit_count", "domain_expansion"},
		},
	}
	safariHistoryMinimal = variant{
		query: schema.SafariHistoryMinimal,
		sql: `SELECT history_items.url, history_visits.title, history_visits.visit_time
		FROM history_visits LEFT JOIN history_items ON history_items.id = history_visits.history_item`,
		requires: map[string][]string{
			"history_visits": {"history_item", "title", "visit_time"},
			"history_items":  {"id", "url"},
		},
	}
)

const readingListTitle = "com.apple.ReadingList"

// Extract reads one Safari source file.
func (e *Safari) Extract(ctx context.Context, fsys afero.Fs, name string) Result {
	return e.run(fsys, name, func(s *session) {
		header, ok := s.peek(len(sqliteMagic))
		if !ok {
			return
		}
		if !isSQLite(header) {
			if !isPlist(header) {
				s.fail(record.UnreadableSource, "", errors.New("not a SQLite database or property list"))
				return
			}
			s.safariPlist()
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
		if !tables["history_visits"] || !tables["history_items"] {
			s.fail(record.SchemaMismatch, schema.SafariHistory, errors.New("no history_visits and history_items tables"))
			return
		}
		s.runVariants(ctx, db, safariHistory, safariHistoryMinimal)
	})
}

func (s *session) safariPlist() {
	c, ok := s.stage()
	if !ok {
		return
	}
	defer c.Close()

	data, err := c.Bytes()
	if err != nil {
		s.fail(record.UnreadableSource, "", err)
		return
	}
	var root map[string]interface{}
	if _, err := plist.Unmarshal(data, &root); err != nil {
		s.fail(record.UnreadableSource, "", errors.Wrap(err, "could not parse property list"))
		return
	}

	switch {
	case root["DownloadHistory"] != nil:
		s.safariDownloads(root["DownloadHistory"])
	case root["WebBookmarkType"] != nil || root["Children"] != nil:
		s.safariBookmarkNode(root, "", false)
	default:
		s.fail(record.SchemaMismatch, "", errors.New("unknown Safari property list"))
	}
}

func (s *session) safariBookmarkNode(node map[string]interface{}, folder string, readingList bool) {
	switch node["WebBookmarkType"] {
	case "WebBookmarkTypeLeaf":
		row := schema.Row{
			"url":          node["URLString"],
			"uuid":         node["WebBookmarkUUID"],
			"folder":       folder,
			"reading_list": readingList,
		}
		if uri, ok := node["URIDictionary"].(map[string]interface{}); ok {
			row["title"] = uri["title"]
		}
		if rl, ok := node["ReadingList"].(map[string]interface{}); ok {
			row["reading_list"] = true
			row["date_added"] = rl["DateAdded"]
			if v, ok := rl["DateLastViewed"]; ok {
				row["date_last_viewed"] = v
			}
			if v, ok := rl["PreviewText"]; ok {
				row["preview_text"] = v
			}
		}
		s.add(schema.SafariBookmarks, row)
	case "WebBookmarkTypeProxy":
	default:
		title, _ := node["Title"].(string)
		if title == readingListTitle {
			readingList = true
		}
		if title != "" {
			folder = strings.TrimPrefix(folder+"/"+title, "/")
		}
		children, _ := node["Children"].([]interface{})
		for _, child := range children {
			if m, ok := child.(map[string]interface{}); ok {
				s.safariBookmarkNode(m, folder, readingList)
			}
		}
	}
}

var safariDownloadKeys = map[string]string{
	"DownloadEntryURL":                "url",
	"DownloadEntryPath":               "target_path",
	"DownloadEntryDateAddedKey":       "date_added",
	"DownloadEntryDateFinishedKey":    "date_finished",
	"DownloadEntryProgressTotalToLoad": "bytes_total",
	"DownloadEntryProgressBytesSoFar": "bytes_received",
	"DownloadEntryIdentifier":         "identifier",
	"DownloadEntryRemoveWhenDoneKey":  "remove_when_done",
}

func (s *session) safariDownloads(history interface{}) {
	entries, ok := history.([]interface{})
	if !ok {
		s.fail(record.SchemaMismatch, schema.SafariDownloads, errors.New("DownloadHistory is not a list"))
		return
	}
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		row := schema.Row{}
		for key, value := range m {
			if column, ok := safariDownloadKeys[key]; ok {
				row[column] = value
			} else {
				row[key] = value
			}
		}
		s.add(schema.SafariDownloads, row)
	}
}

// isPlist reports whether header starts a binary or XML property list.
func isPlist(header []byte) bool {
	return bytes.HasPrefix(header, []byte("bplist")) || bytes.HasPrefix(bytes.TrimSpace(header), []byte("<?xml"))
}
