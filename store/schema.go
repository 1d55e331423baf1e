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
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

// Element types written by this package.
const (
	ArtifactType = "browser-artifact"
	StatsType    = "browser-stats"
	SourceType   = "browser-source"
)

const provenanceSchema = `{
	"type": "object",
	"required": ["browser_family", "source_path"],
	"properties": {
		"browser_family": {"enum": ["CHROMIUM", "FIREFOX", "IE_LEGACY", "SAFARI_EDGE_LEGACY"]},
		"source_path": {"type": "string", "minLength": 1},
		"profile": {"type": "string"},
		"browser": {"type": "string"}
	}
}`

var builtinSchemas = map[string]string{ // nolint:gochecknoglobals
	ArtifactType: `{
		"type": "object",
		"required": ["type", "artifact_type", "timestamp", "provenance"],
		"properties": {
			"id": {"type": "string"},
			"type": {"const": "browser-artifact"},
			"artifact_type": {"enum": ["HISTORY_VISIT", "BOOKMARK", "DOWNLOAD", "FAVICON", "FORM_DATA", "CACHE_LOG"]},
			"url": {"type": "string"},
			"title": {"type": "string"},
			"referrer": {"type": "string"},
			"timestamp": {"type": ["integer", "null"]},
			"visit_count": {"type": "integer", "minimum": 0},
			"provenance": ` + provenanceSchema + `,
			"audit": {"type": "array", "items": ` + provenanceSchema + `, "minItems": 1},
			"raw_fields": {"type": "object"}
		}
	}`,
	SourceType: `{
		"type": "object",
		"required": ["type", "path"],
		"properties": {
			"type": {"const": "browser-source"},
			"path": {"type": "string", "minLength": 1},
			"archive_path": {"type": "string"},
			"size": {"type": "integer", "minimum": 0}
		}
	}`,
}

var errSchemaNotFound = errors.New("schema not found")

type schemaMap struct {
	sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

func newSchemaMap() *schemaMap {
	return &schemaMap{schemas: map[string]*jsonschema.Schema{}}
}

func (sm *schemaMap) load(id string) (*jsonschema.Schema, bool) {
	sm.RLock()
	defer sm.RUnlock()
	schema, ok := sm.schemas[id]
	return schema, ok
}

func (sm *schemaMap) store(id string, schema *jsonschema.Schema) {
	sm.Lock()
	defer sm.Unlock()
	sm.schemas[id] = schema
}

func (store *Store) loadSchemas() error {
	for id, content := range builtinSchemas {
		schema := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(content), schema); err != nil {
			return errors.Wrapf(err, "unmarshal error %s", id)
		}
		store.SetSchema(id, schema)
	}
	return nil
}

// SetSchema inserts or replaces the json schema of an element type.
func (store *Store) SetSchema(id string, schema *jsonschema.Schema) {
	store.schemas.store(id, schema)
}

// Schema returns the json schema of an element type.
func (store *Store) Schema(id string) (*jsonschema.Schema, error) {
	if schema, ok := store.schemas.load(id); ok {
		return schema, nil
	}
	return nil, errSchemaNotFound
}

// SchemaIDs returns the sorted element types that have a schema.
func (store *Store) SchemaIDs() []string {
	store.schemas.RLock()
	defer store.schemas.RUnlock()
	var ids []string
	for id := range store.schemas.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (store *Store) validateElementSchema(element JSONElement) (flaws []string, err error) {
	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() {
		return []string{"element needs to have a type"}, nil
	}

	schema, err := store.Schema(elementType.String())
	if err != nil {
		if err == errSchemaNotFound {
			return nil, nil // no schema for element
		}
		return nil, errors.Wrap(err, "could not get schema")
	}

	errs, err := schema.ValidateBytes(context.Background(), element)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate element: %s", verr))
	}
	return flaws, nil
}
