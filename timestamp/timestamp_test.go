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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2021-04-01T12:34:56Z
const want = Instant(1617280496000000)

func fixedNormalizer() *Normalizer {
	n := NewNormalizer()
	n.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return n
}

type family Encoding

func (f family) Encoding() Encoding { return Encoding(f) }

func TestNormalizer_Convert(t *testing.T) {
	type args struct {
		enc Encoding
		raw interface{}
	}
	tests := []struct {
		name    string
		args    args
		want    Instant
		wantErr bool
	}{
		{"chromium", args{ChromiumMicros, int64(13261754096000000)}, want, false},
		{"chromium string", args{ChromiumMicros, "13261754096000000"}, want, false},
		{"firefox", args{UnixMicros, int64(1617280496000000)}, want, false},
		{"filetime", args{FileTime, int64(132617540960000000)}, want, false},
		{"filetime uint64", args{FileTime, uint64(132617540960000000)}, want, false},
		{"coredata float", args{CoreDataSeconds, 638973296.0}, want, false},
		{"coredata fraction", args{CoreDataSeconds, 638973296.25}, want + 250000, false},
		{"coredata int", args{CoreDataSeconds, int64(638973296)}, want, false},
		{"unix seconds", args{UnixSeconds, int64(1617280496)}, want, false},
		{"time", args{ChromiumMicros, time.Unix(1617280496, 0)}, want, false},
		{"bytes", args{UnixMicros, []byte("1617280496000000")}, want, false},
		{"nil", args{ChromiumMicros, nil}, Unknown, false},
		{"zero", args{ChromiumMicros, int64(0)}, Unknown, false},
		{"zero float", args{CoreDataSeconds, 0.0}, Unknown, false},
		{"empty", args{UnixMicros, ""}, Unknown, false},
		{"zero time", args{UnixMicros, time.Time{}}, Unknown, false},
		{"negative", args{UnixMicros, int64(-1)}, Unknown, true},
		{"negative coredata", args{CoreDataSeconds, -5.5}, Unknown, true},
		{"absurd string", args{ChromiumMicros, "99999999999999999999"}, Unknown, true},
		{"absurd uint64", args{FileTime, uint64(18446744073709551615)}, Unknown, true},
		{"unix seconds overflow", args{UnixSeconds, int64(9223372036854775807)}, Unknown, true},
		{"garbage", args{UnixMicros, "yesterday"}, Unknown, true},
		{"unsupported", args{UnixMicros, true}, Unknown, true},
		{"before 1990", args{UnixMicros, int64(1000)}, Unknown, true},
		{"chromium small", args{ChromiumMicros, int64(5)}, Unknown, true},
		{"far future", args{UnixMicros, int64(4102444800000000)}, Unknown, true},
	}
	n := fixedNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Convert(tt.args.enc, tt.args.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("Convert() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				var rangeErr *RangeError
				assert.ErrorAs(t, err, &rangeErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_ToCanonical(t *testing.T) {
	n := fixedNormalizer()
	got, err := n.ToCanonical(family(ChromiumMicros), int64(13261754096000000))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "2021-04-01T12:34:56Z", got.String())
}

func TestChromiumAndFileTimeAgree(t *testing.T) {
	n := fixedNormalizer()
	chromium, err := n.Convert(ChromiumMicros, int64(13271152096000000))
	require.NoError(t, err)
	ie, err := n.Convert(FileTime, int64(132711520960000000))
	require.NoError(t, err)
	assert.Equal(t, chromium, ie)
}

func TestInstant_Bucket(t *testing.T) {
	tests := []struct {
		name string
		i    Instant
		want int64
	}{
		{"exact", want, 1617280496},
		{"within second", want + 999999, 1617280496},
		{"epoch", 0, 0},
		{"before epoch", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.i.Bucket())
		})
	}
	assert.Equal(t, Unknown.Bucket(), Unknown.Bucket())
	assert.NotEqual(t, Instant(0).Bucket(), Unknown.Bucket())
}

func TestInstant_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Instant `json:"a"`
		B Instant `json:"b"`
		C Instant `json:"c"`
	}{want, Unknown, 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1617280496000000, "b": null, "c": 0}`, string(b))

	var v struct {
		A Instant `json:"a"`
		B Instant `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1617280496000000, "b": null}`), &v))
	assert.Equal(t, want, v.A)
	assert.Equal(t, Unknown, v.B)
}

func TestParseEncoding(t *testing.T) {
	for _, enc := range []Encoding{UnixMicros, ChromiumMicros, FileTime, CoreDataSeconds, UnixSeconds} {
		got, err := ParseEncoding(enc.String())
		assert.NoError(t, err)
		assert.Equal(t, enc, got)
	}
	_, err := ParseEncoding("julian")
	assert.Error(t, err)
}
