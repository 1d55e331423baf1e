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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/browserartifacts/aggregate"
	"github.com/forensicanalysis/browserartifacts/record"
)

// AddRecords inserts canonical records as browser-artifact elements in one
// transaction.
func (store *Store) AddRecords(records []record.Record) error {
	elements := make([]JSONElement, 0, len(records))
	for i := range records {
		element, err := artifactElement(&records[i])
		if err != nil {
			return errors.Wrapf(err, "could not convert record %d", i)
		}
		elements = append(elements, element)
	}
	_, err := store.InsertBatch(elements)
	return err
}

// artifactElement encodes a record as element. Raw fields that cannot be
// encoded are replaced by an entry in the errors attribute.
func artifactElement(r *record.Record) (JSONElement, error) {
	b, marshalErr := json.Marshal(r)
	if marshalErr != nil {
		reduced := *r
		reduced.RawFields = nil
		var err error
		if b, err = json.Marshal(&reduced); err != nil {
			return nil, err
		}
		if b, err = withErrors(b, fmt.Sprintf("raw fields dropped: %s", marshalErr)); err != nil {
			return nil, err
		}
	}

	m, err := decodeObject(b)
	if err != nil {
		return nil, err
	}
	m[discriminator] = ArtifactType
	m["id"] = ArtifactType + "--" + uuid.New().String()
	return json.Marshal(m)
}

// decodeObject keeps numbers as json.Number so that 64 bit raw values
// survive re-encoding.
func decodeObject(b []byte) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.UseNumber()
	return m, decoder.Decode(&m)
}

func withErrors(element []byte, msg string) ([]byte, error) {
	m, err := decodeObject(element)
	if err != nil {
		return nil, err
	}
	m["errors"] = []string{msg}
	return json.Marshal(m)
}

type statsElement struct {
	Type            string
	RunID           string
	aggregate.Stats `structs:",flatten"`
}

// AddStats inserts the statistics of a run as browser-stats element.
func (store *Store) AddStats(stats aggregate.Stats) error {
	_, err := store.InsertStruct(statsElement{Type: StatsType, RunID: uuid.New().String(), Stats: stats})
	return err
}

// Source describes an evidence file that was processed.
type Source struct {
	Type        string
	Path        string
	Family      string
	ArchivePath string
	Size        int64
	Hashes      map[string]string
	Readable    bool
}

// AddSource records a processed evidence file as browser-source element.
func (store *Store) AddSource(source Source) (string, error) {
	source.Type = SourceType
	return store.InsertStruct(source)
}
