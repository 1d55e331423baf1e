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

// Package timestamp converts the time encodings used by browser databases
// into a single canonical instant: microseconds since the Unix epoch, UTC.
//
// Supported encodings
//
//     ChromiumMicros   microseconds since 1601-01-01 (Chromium, WebKit)
//     UnixMicros       microseconds since 1970-01-01 (Firefox PRTime)
//     FileTime         100ns ticks since 1601-01-01 (Windows FILETIME)
//     CoreDataSeconds  seconds since 2001-01-01, may be fractional (Safari)
//     UnixSeconds      seconds since 1970-01-01 (time_t)
//
// Values that are missing, negative or implausible are normalized to Unknown,
// never to the epoch.
package timestamp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Instant is a point in time in microseconds since 1970-01-01T00:00:00Z.
type Instant int64

// Unknown marks a record whose source carried no usable time. The zero Instant
// is a legitimate value (the Unix epoch) and must not be used for this.
const Unknown Instant = math.MinInt64

const (
	// microseconds between 1601-01-01 and 1970-01-01
	webkitOffset int64 = 11644473600000000
	// microseconds between 1970-01-01 and 2001-01-01
	coreDataOffset int64 = 978307200000000

	microsPerSecond = 1000000
)

// FromTime returns the instant of t.
func FromTime(t time.Time) Instant {
	return Instant(t.UnixMicro())
}

// Known reports whether i is not Unknown.
func (i Instant) Known() bool {
	return i != Unknown
}

// Time returns i as UTC time. Unknown is returned as the zero time.Time.
func (i Instant) Time() time.Time {
	if !i.Known() {
		return time.Time{}
	}
	return time.UnixMicro(int64(i)).UTC()
}

// Bucket returns the second i falls into. All Unknown instants share one bucket.
func (i Instant) Bucket() int64 {
	if !i.Known() {
		return math.MinInt64
	}
	micros := int64(i)
	bucket := micros / microsPerSecond
	if micros < 0 && micros%microsPerSecond != 0 {
		bucket--
	}
	return bucket
}

func (i Instant) String() string {
	if !i.Known() {
		return "unknown"
	}
	return i.Time().Format(time.RFC3339Nano)
}

// MarshalJSON encodes known instants as integer microseconds and Unknown as null.
func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.Known() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(int64(i), 10)), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (i *Instant) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*i = Unknown
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid instant %s: %w", s, err)
	}
	*i = Instant(v)
	return nil
}

// Encoding identifies how a raw time value is stored.
type Encoding int

// Time encodings found in browser artifacts.
const (
	UnixMicros Encoding = iota
	ChromiumMicros
	FileTime
	CoreDataSeconds
	UnixSeconds
)

var encodingNames = map[Encoding]string{
	UnixMicros:      "unix-micros",
	ChromiumMicros:  "chromium-micros",
	FileTime:        "filetime",
	CoreDataSeconds: "coredata-seconds",
	UnixSeconds:     "unix-seconds",
}

func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// ParseEncoding looks up an encoding by its String form.
func ParseEncoding(s string) (Encoding, error) {
	for e, name := range encodingNames {
		if strings.EqualFold(name, s) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown time encoding %q", s)
}

// Encoder is implemented by anything that knows its native time encoding,
// most notably a browser family.
type Encoder interface {
	Encoding() Encoding
}

// RangeError reports a raw value that could not be turned into a plausible
// instant. It is a warning: the value becomes Unknown and processing goes on.
type RangeError struct {
	Encoding Encoding
	Raw      interface{}
	Reason   string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("timestamp %v (%s) out of range: %s", e.Raw, e.Encoding, e.Reason)
}
