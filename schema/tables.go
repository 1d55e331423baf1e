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

package schema

import (
	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/timestamp"
)

// Query names of the Chromium extractor.
const (
	ChromiumHistory          = "history"
	ChromiumHistoryMinimal   = "history_minimal"
	ChromiumDownloads        = "downloads"
	ChromiumDownloadsMinimal = "downloads_minimal"
	ChromiumDownloadsLegacy  = "downloads_legacy"
	ChromiumStarred          = "starred"
	ChromiumBookmarks        = "bookmarks"
	ChromiumFavicons         = "favicons"
	ChromiumFaviconsMinimal  = "favicons_minimal"
	ChromiumAutofill         = "autofill"
	ChromiumAutofillLegacy   = "autofill_legacy"
	ChromiumLogins           = "logins"
)

// Query names of the Firefox extractor.
const (
	FirefoxHistory            = "history"
	FirefoxHistoryMinimal     = "history_minimal"
	FirefoxBookmarks          = "bookmarks"
	FirefoxDownloads          = "downloads"
	FirefoxPlacesDownloads    = "downloads_places"
	FirefoxAnnotatedDownloads = "downloads_annos"
	FirefoxFormHistory        = "formhistory"
	FirefoxFormHistoryMinimal = "formhistory_minimal"
)

// Query names of the Internet Explorer extractor.
const (
	IEIndexDat         = "index_dat"
	IEWebCache         = "webcache"
	IEInternetShortcut = "internet_shortcut"
)

// Query names of the Safari and legacy Edge extractor.
const (
	SafariHistory        = "history"
	SafariHistoryMinimal = "history_minimal"
	SafariBookmarks      = "bookmarks"
	SafariDownloads      = "downloads"
)

// Entry type codes of IE cache containers.
const (
	EntryVisited  = "visited"
	EntryCache    = "cache"
	EntryLeak     = "leak"
	EntryRedirect = "redirect"
)

func encoding(e timestamp.Encoding) *timestamp.Encoding {
	return &e
}

var ieEntryTypes = map[string]record.ArtifactType{
	EntryVisited:  record.HistoryVisit,
	EntryCache:    record.CacheLog,
	EntryLeak:     record.CacheLog,
	EntryRedirect: 0,
}

var (
	chromiumHistory = Mapping{
		Type:       record.HistoryVisit,
		URL:        "url",
		Title:      "title",
		VisitCount: "visit_count",
		Time:       "visit_time",
		Referrer:   "from_url",
	}
	chromiumDownloads = Mapping{
		Type:     record.Download,
		URL:      "url",
		Time:     "start_time",
		Referrer: "referrer",
	}
	chromiumFavicons = Mapping{
		Type: record.Favicon,
		URL:  "page_url",
		Time: "last_updated",
	}
	chromiumAutofill = Mapping{
		Type:     record.FormData,
		Time:     "date_created",
		Encoding: encoding(timestamp.UnixSeconds),
	}

	firefoxHistory = Mapping{
		Type:       record.HistoryVisit,
		URL:        "url",
		Title:      "title",
		VisitCount: "visit_count",
		Time:       "visit_date",
		Referrer:   "from_url",
	}
	firefoxDownloads = Mapping{
		Type:     record.Download,
		URL:      "source",
		Time:     "start_time",
		Referrer: "referrer",
	}
	firefoxFormHistory = Mapping{
		Type: record.FormData,
		Time: "last_used",
	}

	safariHistory = Mapping{
		Type:       record.HistoryVisit,
		URL:        "url",
		Title:      "title",
		VisitCount: "visit_count",
		Time:       "visit_time",
		Referrer:   "redirect_source_url",
		DecodeURL:  true,
	}
)

var tables = map[record.Family]map[string]Mapping{
	record.Chromium: {
		ChromiumHistory:          chromiumHistory,
		ChromiumHistoryMinimal:   chromiumHistory,
		ChromiumDownloads:        chromiumDownloads,
		ChromiumDownloadsMinimal: chromiumDownloads,
		ChromiumDownloadsLegacy: {
			Type:     record.Download,
			URL:      "url",
			Time:     "start_time",
			Encoding: encoding(timestamp.UnixSeconds),
		},
		ChromiumStarred: {
			Type:  record.Bookmark,
			URL:   "url",
			Title: "title",
			Time:  "date_added",
		},
		ChromiumBookmarks: {
			Type:  record.Bookmark,
			URL:   "url",
			Title: "name",
			Time:  "date_added",
		},
		ChromiumFavicons:        chromiumFavicons,
		ChromiumFaviconsMinimal: chromiumFavicons,
		ChromiumAutofill:        chromiumAutofill,
		ChromiumAutofillLegacy:  chromiumAutofill,
		ChromiumLogins: {
			Type: record.FormData,
			URL:  "origin_url",
			Time: "date_created",
		},
	},
	record.Firefox: {
		FirefoxHistory:         firefoxHistory,
		FirefoxHistoryMinimal:  firefoxHistory,
		FirefoxDownloads:       firefoxDownloads,
		FirefoxPlacesDownloads: firefoxDownloads,
		FirefoxBookmarks: {
			Type:  record.Bookmark,
			URL:   "url",
			Title: "title",
			Time:  "date_added",
		},
		FirefoxAnnotatedDownloads: {
			Type:  record.Download,
			URL:   "url",
			Title: "title",
			Time:  "date_added",
		},
		FirefoxFormHistory:        firefoxFormHistory,
		FirefoxFormHistoryMinimal: firefoxFormHistory,
	},
	record.IELegacy: {
		IEIndexDat: {
			TypeColumn: "entry_type",
			TypeCodes:  ieEntryTypes,
			URL:        "url",
			VisitCount: "hits",
			Time:       "last_accessed",
		},
		IEWebCache: {
			TypeColumn: "entry_type",
			TypeCodes:  ieEntryTypes,
			URL:        "url",
			Time:       "time",
		},
		IEInternetShortcut: {
			Type:  record.Bookmark,
			URL:   "url",
			Title: "name",
			Time:  "modified",
		},
	},
	record.SafariEdgeLegacy: {
		SafariHistory:        safariHistory,
		SafariHistoryMinimal: safariHistory,
		SafariBookmarks: {
			Type:      record.Bookmark,
			URL:       "url",
			Title:     "title",
			Time:      "date_added",
			DecodeURL: true,
		},
		SafariDownloads: {
			Type:      record.Download,
			URL:       "url",
			Time:      "date_added",
			DecodeURL: true,
		},
	},
}
