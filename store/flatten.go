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
	"encoding"
	"fmt"
	"reflect"
	"strconv"

	"github.com/stoewer/go-strcase"
)

// flatten returns a one level deep copy of nested with dotted keys, for
// example {"a": {"b": [1]}} becomes {"a.b.0": 1}.
func flatten(nested map[string]interface{}) map[string]interface{} {
	flat := map[string]interface{}{}
	flattenInto(flat, "", nested)
	return flat
}

func flattenInto(flat map[string]interface{}, prefix string, nested interface{}) {
	if nested == nil {
		return
	}
	value := reflect.ValueOf(nested)
	switch value.Kind() {
	case reflect.Map:
		for _, k := range value.MapKeys() {
			flattenInto(flat, join(prefix, fmt.Sprint(k.Interface())), value.MapIndex(k).Interface())
		}
	case reflect.Slice:
		for i := 0; i < value.Len(); i++ {
			flattenInto(flat, join(prefix, strconv.Itoa(i)), value.Index(i).Interface())
		}
	default:
		flat[prefix] = nested
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// lower converts the keys of maps created by structs.Map to snake case and
// drops empty values.
func lower(f interface{}) interface{} {
	switch f := f.(type) {
	case []interface{}:
		for i := range f {
			if !isEmptyValue(reflect.ValueOf(f[i])) {
				f[i] = lower(f[i])
			}
		}
		return f
	case map[string]interface{}:
		lf := make(map[string]interface{}, len(f))
		for k, v := range f {
			if !isEmptyValue(reflect.ValueOf(v)) {
				lf[strcase.SnakeCase(k)] = lower(v)
			}
		}
		return lf
	default:
		return f
	}
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Invalid:
		return true
	}
	// enums without a text form, like an unset browser family
	if m, ok := v.Interface().(encoding.TextMarshaler); ok {
		if _, err := m.MarshalText(); err != nil {
			return true
		}
	}
	return false
}
