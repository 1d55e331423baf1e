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
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/schema"
	"github.com/forensicanalysis/browserartifacts/timestamp"
)

// WebCache extracts Internet Explorer and legacy Edge artifacts: MSIE cache
// index.dat files, ESE WebCacheV01.dat/WebCacheV24.dat databases and
// Internet Shortcut (.url) files.
type WebCache struct {
	base
}

const (
	indexDatSignature  = "Client UrlCache MMF Ver "
	indexDatFirstBlock = 0x4000
	indexDatBlockSize  = 0x80

	eseSignatureOffset = 4
	eseSignature       = 0x89abcdef

	scanChunkSize = 1 << 20
	scanOverlap   = 8 << 10
	// how far before an URL string a FILETIME is looked for
	scanTimeWindow = 256
)

var (
	urlPattern      = regexp.MustCompile(`(?:Visited: [^@\x00-\x1f]{1,64}@)?(?:https?|ftp|file)://[\x21-\x7e]{3,2048}`)
	utf16RunPattern = regexp.MustCompile(`(?:[\x20-\x7e]\x00){12,}`)
	historyPrefix   = regexp.MustCompile(`^:\d{16}: `)
	shortcutHeader  = []byte("[InternetShortcut]")
)

// Extract reads one IE artifact.
func (e *WebCache) Extract(ctx context.Context, fsys afero.Fs, name string) Result {
	return e.run(fsys, name, func(s *session) {
		header, ok := s.peek(indexDatFirstBlock)
		if !ok {
			return
		}
		switch {
		case bytes.HasPrefix(header, []byte(indexDatSignature)):
			s.indexDat()
		case len(header) >= eseSignatureOffset+4 &&
			binary.LittleEndian.Uint32(header[eseSignatureOffset:]) == eseSignature:
			s.scanWebCache(ctx)
		case strings.EqualFold(path.Ext(name), ".url") ||
			bytes.Contains(bytes.ToLower(header), bytes.ToLower(shortcutHeader)):
			s.internetShortcut()
		default:
			s.fail(record.UnreadableSource, "", errors.New("unknown Internet Explorer artifact format"))
		}
	})
}

// indexDat walks the hash-independent block area of an MSIE cache file and
// reads every URL, LEAK and REDR record.
func (s *session) indexDat() {
	c, ok := s.stage()
	if !ok {
		return
	}
	defer c.Close()

	data, err := c.Bytes()
	if err != nil {
		s.fail(record.UnreadableSource, schema.IEIndexDat, err)
		return
	}
	version := ""
	if len(data) >= len(indexDatSignature)+3 {
		version = strings.TrimRight(string(data[len(indexDatSignature):len(indexDatSignature)+3]), "\x00")
	}
	container := path.Base(path.Dir(strings.ReplaceAll(s.name, "\\", "/")))

	corrupt := 0
	for offset := indexDatFirstBlock; offset+indexDatBlockSize <= len(data); offset += indexDatBlockSize {
		signature := string(data[offset : offset+4])
		if signature != "URL " && signature != "LEAK" && signature != "REDR" {
			continue
		}
		blocks := int(binary.LittleEndian.Uint32(data[offset+4:]))
		if blocks == 0 || blocks > (len(data)-offset)/indexDatBlockSize {
			corrupt++
			continue
		}
		entry := data[offset : offset+blocks*indexDatBlockSize]

		row := schema.Row{"offset": int64(offset), "format_version": version, "container": container}
		if signature == "REDR" {
			row["entry_type"] = schema.EntryRedirect
			row["url"] = cString(entry, 0x10)
		} else {
			entryType, user, url := parseLocation(cString(entry, int(binary.LittleEndian.Uint32(entry[0x34:]))))
			if signature == "LEAK" {
				entryType = schema.EntryLeak
			}
			row["entry_type"] = entryType
			row["url"] = url
			row["last_modified"] = binary.LittleEndian.Uint64(entry[0x08:])
			row["last_accessed"] = binary.LittleEndian.Uint64(entry[0x10:])
			row["hits"] = binary.LittleEndian.Uint32(entry[0x54:])
			if user != "" {
				row["user"] = user
			}
			if cacheFile := cString(entry, int(binary.LittleEndian.Uint32(entry[0x3c:]))); cacheFile != "" {
				row["cache_file"] = cacheFile
			}
		}
		s.add(schema.IEIndexDat, row)
		offset += (blocks - 1) * indexDatBlockSize
	}
	if corrupt > 0 {
		s.fail(record.MappingError, schema.IEIndexDat, errors.Errorf("%d records with invalid block count", corrupt))
	}
}

// parseLocation splits history locations like "Visited: user@url" and
// ":2021040120210402: user@url" into their parts. Other locations are cache entries.
func parseLocation(location string) (entryType, user, url string) {
	var rest string
	switch {
	case strings.HasPrefix(location, "Visited: "):
		rest = strings.TrimPrefix(location, "Visited: ")
	case historyPrefix.MatchString(location):
		rest = location[len(":2021040120210402: "):]
	default:
		return schema.EntryCache, "", location
	}
	if i := strings.Index(rest, "@"); i > 0 && !strings.Contains(rest[:i], "/") {
		return schema.EntryVisited, rest[:i], rest[i+1:]
	}
	return schema.EntryVisited, "", rest
}

func cString(b []byte, offset int) string {
	if offset <= 0 || offset >= len(b) {
		return ""
	}
	end := bytes.IndexByte(b[offset:], 0)
	if end < 0 {
		end = len(b) - offset
	}
	return string(b[offset : offset+end])
}

// scanWebCache recovers URLs from an ESE database by scanning its pages for
// ASCII and UTF-16 URL strings. The time of an entry is the closest plausible
// FILETIME before the string, which is a heuristic.
func (s *session) scanWebCache(ctx context.Context) {
	f, err := s.fsys.Open(s.name)
	if err != nil {
		s.fail(record.UnreadableSource, schema.IEWebCache, err)
		return
	}
	defer f.Close()

	seen := map[string]bool{}
	reader := bufio.NewReaderSize(f, scanChunkSize)
	chunk := make([]byte, 0, scanChunkSize+scanOverlap)
	var base int64
	for {
		if ctx.Err() != nil {
			s.fail(record.UnreadableSource, schema.IEWebCache, ctx.Err())
			return
		}
		buf := make([]byte, scanChunkSize)
		n, err := io.ReadFull(reader, buf)
		chunk = append(chunk, buf[:n]...)
		final := err != nil
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			s.fail(record.UnreadableSource, schema.IEWebCache, err)
			final = true
		}

		limit := len(chunk)
		if !final && limit > scanOverlap {
			limit -= scanOverlap
		}
		s.scanChunk(chunk, base, limit, seen)

		if final {
			return
		}
		base += int64(limit)
		chunk = append(chunk[:0], chunk[limit:]...)
	}
}

func (s *session) scanChunk(chunk []byte, base int64, limit int, seen map[string]bool) {
	for _, loc := range urlPattern.FindAllIndex(chunk, -1) {
		if loc[0] >= limit {
			break
		}
		s.webCacheEntry(string(chunk[loc[0]:loc[1]]), base+int64(loc[0]), "ascii", s.nearbyFileTime(chunk, loc[0]), seen)
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	for _, run := range utf16RunPattern.FindAllIndex(chunk, -1) {
		if run[0] >= limit {
			break
		}
		text, err := decoder.Bytes(chunk[run[0]:run[1]])
		if err != nil {
			continue
		}
		for _, loc := range urlPattern.FindAllIndex(text, -1) {
			start := run[0] + 2*loc[0]
			s.webCacheEntry(string(text[loc[0]:loc[1]]), base+int64(start), "utf-16le", s.nearbyFileTime(chunk, start), seen)
		}
	}
}

func (s *session) webCacheEntry(location string, offset int64, encoding string, filetime interface{}, seen map[string]bool) {
	entryType, user, url := parseLocation(location)
	key := entryType + "\x00" + url + "\x00" + timeKey(filetime)
	if seen[key] {
		return
	}
	seen[key] = true

	row := schema.Row{
		"entry_type":          entryType,
		"url":                 url,
		"time":                filetime,
		"offset":              offset,
		"encoding":            encoding,
		"timestamp_heuristic": true,
	}
	if user != "" {
		row["user"] = user
	}
	s.add(schema.IEWebCache, row)
}

func timeKey(v interface{}) string {
	if ft, ok := v.(uint64); ok {
		return string(binary.LittleEndian.AppendUint64(nil, ft))
	}
	return ""
}

// nearbyFileTime returns the closest plausible FILETIME stored before start, or nil.
func (s *session) nearbyFileTime(chunk []byte, start int) interface{} {
	lowest := start - scanTimeWindow
	if lowest < 0 {
		lowest = 0
	}
	for i := start - 8; i >= lowest; i-- {
		v := binary.LittleEndian.Uint64(chunk[i : i+8])
		if v == 0 {
			continue
		}
		if _, err := s.opts.Mapper.Normalizer.Convert(timestamp.FileTime, v); err == nil {
			return v
		}
	}
	return nil
}

// internetShortcut reads a Windows .url file.
func (s *session) internetShortcut() {
	c, ok := s.stage()
	if !ok {
		return
	}
	defer c.Close()

	data, err := c.Bytes()
	if err != nil {
		s.fail(record.UnreadableSource, schema.IEInternetShortcut, err)
		return
	}

	name := path.Base(strings.ReplaceAll(s.name, "\\", "/"))
	row := schema.Row{"name": strings.TrimSuffix(name, path.Ext(name))}
	if info, err := s.fsys.Stat(s.name); err == nil {
		row["modified"] = info.ModTime()
	}

	section := ""
	scanner := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(line)
			continue
		}
		if section != "[internetshortcut]" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "url":
			row["url"] = strings.TrimSpace(value)
		case "iconfile":
			row["icon_file"] = strings.TrimSpace(value)
		}
	}
	s.add(schema.IEInternetShortcut, row)
}
