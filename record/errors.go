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

package record

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies extraction failures.
type Kind int

// Failure kinds. TimestampOutOfRange is a warning, all others are errors.
const (
	UnreadableSource Kind = iota + 1
	SchemaMismatch
	MappingError
	TimestampOutOfRange
	UnknownFamily
)

var kindNames = map[Kind]string{
	UnreadableSource:    "UnreadableSource",
	SchemaMismatch:      "SchemaMismatch",
	MappingError:        "MappingError",
	TimestampOutOfRange: "TimestampOutOfRange",
	UnknownFamily:       "UnknownFamily",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Warning reports whether failures of this kind are informational.
func (k Kind) Warning() bool {
	return k == TimestampOutOfRange
}

// SourceLevel reports whether the kind means that nothing could be read from the source.
func (k Kind) SourceLevel() bool {
	return k == UnreadableSource || k == UnknownFamily
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown failure kind %q", b)
}

// Error is a classified extraction error.
type Error struct {
	Kind       Kind
	Family     Family
	SourcePath string
	Query      string
	Err        error
}

// NewError wraps err with a kind. A nil err yields a nil *Error.
func NewError(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.SourcePath != "" {
		msg += " " + e.SourcePath
	}
	if e.Query != "" {
		msg += " [" + e.Query + "]"
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Cause returns the cause, for github.com/pkg/errors.
func (e *Error) Cause() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Failure is one entry of the failure report. Failures are values so they can
// be collected from concurrent extractors without sharing.
type Failure struct {
	Kind       Kind   `json:"kind"`
	Family     Family `json:"browser_family,omitempty"`
	SourcePath string `json:"source_path"`
	Query      string `json:"query,omitempty"`
	Reason     string `json:"reason"`
}

func (f Failure) String() string {
	s := fmt.Sprintf("%s %s", f.Kind, f.SourcePath)
	if f.Query != "" {
		s += " [" + f.Query + "]"
	}
	return s + ": " + f.Reason
}

// FailureFromError converts err into a Failure. Fields missing on err are
// taken from the arguments.
func FailureFromError(err error, family Family, sourcePath, query string) Failure {
	f := Failure{Kind: MappingError, Family: family, SourcePath: sourcePath, Query: query, Reason: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		f.Kind = e.Kind
		f.Reason = e.Err.Error()
		if e.Family != 0 {
			f.Family = e.Family
		}
		if e.SourcePath != "" {
			f.SourcePath = e.SourcePath
		}
		if e.Query != "" {
			f.Query = e.Query
		}
	}
	return f
}
