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

package timestamp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultFutureSlack is how far past the current time an instant may lie.
const DefaultFutureSlack = 365 * 24 * time.Hour

// DefaultEarliest is the lower bound for plausible browser timestamps.
var DefaultEarliest = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// Default is used by the package level functions.
var Default = NewNormalizer()

// A Normalizer converts raw values and checks them against a plausible range
// [Earliest, Now()+FutureSlack].
type Normalizer struct {
	Earliest    time.Time
	FutureSlack time.Duration
	Now         func() time.Time
}

// NewNormalizer returns a Normalizer with the default bounds.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		Earliest:    DefaultEarliest,
		FutureSlack: DefaultFutureSlack,
		Now:         time.Now,
	}
}

// ToCanonical converts raw using the native encoding of family.
func ToCanonical(family Encoder, raw interface{}) (Instant, error) {
	return Default.ToCanonical(family, raw)
}

// Convert converts raw using the given encoding.
func Convert(enc Encoding, raw interface{}) (Instant, error) {
	return Default.Convert(enc, raw)
}

// ToCanonical converts raw using the native encoding of family.
func (n *Normalizer) ToCanonical(family Encoder, raw interface{}) (Instant, error) {
	return n.Convert(family.Encoding(), raw)
}

// Convert turns raw into an Instant. Missing values (nil, empty, zero) yield
// Unknown without an error. Negative, unparsable, overflowing or implausible
// values yield Unknown and a *RangeError.
func (n *Normalizer) Convert(enc Encoding, raw interface{}) (Instant, error) {
	if t, ok := raw.(time.Time); ok {
		if t.IsZero() {
			return Unknown, nil
		}
		return n.check(enc, raw, FromTime(t))
	}

	v, err := parseNumber(raw)
	if err != nil {
		return Unknown, &RangeError{Encoding: enc, Raw: raw, Reason: err.Error()}
	}
	if v.absent() {
		return Unknown, nil
	}
	if v.negative() {
		return Unknown, &RangeError{Encoding: enc, Raw: raw, Reason: "negative value"}
	}

	micros, ok := v.micros(enc)
	if !ok {
		return Unknown, &RangeError{Encoding: enc, Raw: raw, Reason: "overflow"}
	}
	return n.check(enc, raw, Instant(micros))
}

func (n *Normalizer) check(enc Encoding, raw interface{}, i Instant) (Instant, error) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	if int64(i) < n.Earliest.UnixMicro() {
		return Unknown, &RangeError{Encoding: enc, Raw: raw, Reason: "before " + n.Earliest.Format("2006-01-02")}
	}
	if int64(i) > now().Add(n.FutureSlack).UnixMicro() {
		return Unknown, &RangeError{Encoding: enc, Raw: raw, Reason: "in the future"}
	}
	return i, nil
}

type number struct {
	i       int64
	f       float64
	isFloat bool
	empty   bool
}

func (v number) absent() bool {
	if v.empty {
		return true
	}
	if v.isFloat {
		return v.f == 0
	}
	return v.i == 0
}

func (v number) negative() bool {
	if v.isFloat {
		return v.f < 0
	}
	return v.i < 0
}

// micros applies the encoding. The value is known to be positive.
func (v number) micros(enc Encoding) (int64, bool) {
	switch enc {
	case ChromiumMicros:
		m, ok := v.scaled(1)
		return m - webkitOffset, ok
	case FileTime:
		if v.isFloat {
			return floatToInt(v.f/10 - float64(webkitOffset))
		}
		return v.i/10 - webkitOffset, true
	case CoreDataSeconds:
		m, ok := v.scaled(microsPerSecond)
		if !ok || m > math.MaxInt64-coreDataOffset {
			return 0, false
		}
		return m + coreDataOffset, true
	case UnixSeconds:
		return v.scaled(microsPerSecond)
	default:
		return v.scaled(1)
	}
}

func (v number) scaled(factor int64) (int64, bool) {
	if v.isFloat {
		return floatToInt(v.f * float64(factor))
	}
	if v.i > math.MaxInt64/factor {
		return 0, false
	}
	return v.i * factor, true
}

func floatToInt(f float64) (int64, bool) {
	f = math.Round(f)
	if math.IsNaN(f) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

type parseError string

func (e parseError) Error() string { return string(e) }

func parseNumber(raw interface{}) (number, error) { // nolint:gocyclo
	switch v := raw.(type) {
	case nil:
		return number{empty: true}, nil
	case int:
		return number{i: int64(v)}, nil
	case int8:
		return number{i: int64(v)}, nil
	case int16:
		return number{i: int64(v)}, nil
	case int32:
		return number{i: int64(v)}, nil
	case int64:
		return number{i: v}, nil
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return number{i: int64(v)}, nil
	case uint16:
		return number{i: int64(v)}, nil
	case uint32:
		return number{i: int64(v)}, nil
	case uint64:
		return fromUint(v)
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case []byte:
		return parseString(string(v))
	case string:
		return parseString(v)
	default:
		return number{}, parseError(fmt.Sprintf("unsupported type %T", raw))
	}
}

func fromUint(u uint64) (number, error) {
	if u > math.MaxInt64 {
		return number{}, parseError("overflow")
	}
	return number{i: int64(u)}, nil
}

func fromFloat(f float64) (number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return number{}, parseError("not a finite number")
	}
	return number{f: f, isFloat: true}, nil
}

func parseString(s string) (number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return number{empty: true}, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{i: i}, nil
	} else if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return number{}, parseError("overflow")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return number{}, parseError("not a number")
	}
	return fromFloat(f)
}
