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

package store

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forensicanalysis/browserartifacts/record"
)

func Test_flatten(t *testing.T) {
	tests := []struct {
		name   string
		nested map[string]interface{}
		want   map[string]interface{}
	}{
		{"flat", map[string]interface{}{"url": "x"}, map[string]interface{}{"url": "x"}},
		{"nested", map[string]interface{}{"provenance": map[string]interface{}{"profile": "Default"}}, map[string]interface{}{"provenance.profile": "Default"}},
		{"list", map[string]interface{}{"audit": []interface{}{map[string]interface{}{"browser": "Brave"}}}, map[string]interface{}{"audit.0.browser": "Brave"}},
		{"null", map[string]interface{}{"timestamp": nil}, map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flatten(tt.nested))
		})
	}
}

func Test_lower(t *testing.T) {
	tests := []struct {
		name string
		f    interface{}
		want interface{}
	}{
		{"Map", map[string]interface{}{"SourcePath": "B"}, map[string]interface{}{"source_path": "B"}},
		{"List", []interface{}{"A", "B"}, []interface{}{"A", "B"}},
		{"Empty", map[string]interface{}{"A": "", "B": []string{}, "C": 0}, map[string]interface{}{"c": 0}},
		{"Unset family", map[string]interface{}{"Family": record.Family(0), "Kind": record.MappingError}, map[string]interface{}{"kind": record.MappingError}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lower(tt.f); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lower() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_isEmptyValue(t *testing.T) {
	var emptyPointer *int
	tests := []struct {
		name string
		v    reflect.Value
		want bool
	}{
		{"List", reflect.ValueOf([]string{}), true},
		{"Pointer", reflect.ValueOf(emptyPointer), true},
		{"Zero", reflect.ValueOf(0), false},
		{"Family", reflect.ValueOf(record.Firefox), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmptyValue(tt.v); got != tt.want {
				t.Errorf("isEmptyValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_typeMap(t *testing.T) {
	rm := newTypeMap()
	rm.add("browser-artifact", "url")
	rm.addAll("browser-artifact", map[string]interface{}{"url": "x", "title": "y"})
	assert.True(t, rm.changed)
	assert.Equal(t, map[string]map[string]bool{"browser-artifact": {"url": true, "title": true}}, rm.all())
}
