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

// Package aggregate deduplicates canonical records from all sources and
// computes the run statistics.
package aggregate

import (
	"reflect"
	"sort"

	"github.com/imdario/mergo"
	"go.uber.org/zap"

	"github.com/forensicanalysis/browserartifacts/record"
)

// Aggregator merges records by identity key. It has a single owner and is
// not safe for concurrent use.
type Aggregator struct {
	logger   *zap.Logger
	index    map[record.Key]int
	records  []record.Record
	failures []record.Failure
	input    int
	merged   int
}

// New creates an empty Aggregator.
func New(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger, index: map[record.Key]int{}}
}

// Merge deduplicates records and returns them sorted by identity key
// together with their statistics.
func Merge(records []record.Record) ([]record.Record, Stats) {
	a := New(nil)
	a.Add(records...)
	return a.Finalize()
}

// Add takes copies of the records and merges them into the set.
func (a *Aggregator) Add(records ...record.Record) {
	for i := range records {
		a.input++
		r := records[i].Clone()
		if len(r.Audit) == 0 {
			r.Audit = []record.Provenance{r.Provenance}
		}
		if r.RawFields == nil {
			r.RawFields = map[string]interface{}{}
		}

		key := r.Key()
		if j, ok := a.index[key]; ok {
			a.merge(&a.records[j], r)
			a.merged++
			continue
		}
		a.index[key] = len(a.records)
		a.records = append(a.records, r)
	}
}

// AddFailures records extraction failures and warnings.
func (a *Aggregator) AddFailures(failures ...record.Failure) {
	a.failures = append(a.failures, failures...)
}

// Finalize returns the deduplicated records in key order and the statistics.
// The Aggregator is empty afterwards.
func (a *Aggregator) Finalize() ([]record.Record, Stats) {
	records := a.records
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Key().Less(records[j].Key())
	})
	stats := computeStats(records, a.failures)
	stats.Input = a.input
	stats.Merged = a.merged

	a.logger.Info("aggregated records",
		zap.Int("input", a.input), zap.Int("records", len(records)), zap.Int("merged", a.merged),
		zap.Int("failures", len(stats.Failures)), zap.Int("warnings", len(stats.Warnings)))

	*a = Aggregator{logger: a.logger, index: map[record.Key]int{}}
	return records, stats
}

func (a *Aggregator) merge(dst *record.Record, src record.Record) {
	dst.Title = betterTitle(dst.Title, src.Title)

	known := hasProvenance(dst.Audit, src.Provenance)
	switch {
	case src.VisitCount == nil:
	case dst.VisitCount == nil:
		dst.VisitCount = record.Int64(*src.VisitCount)
	case known:
		if *src.VisitCount > *dst.VisitCount {
			*dst.VisitCount = *src.VisitCount
		}
	default:
		*dst.VisitCount += *src.VisitCount
	}

	for _, p := range src.Audit {
		if !hasProvenance(dst.Audit, p) {
			dst.Audit = append(dst.Audit, p)
		}
	}

	if dst.Referrer == "" {
		dst.Referrer = src.Referrer
	}
	a.mergeRawFields(dst, src)
}

// MergedRawFields is the raw field under which the raw fields of merged
// records are kept, keyed by their provenance. The primary record's own raw
// fields are never changed by a merge.
const MergedRawFields = "merged_raw_fields"

func (a *Aggregator) mergeRawFields(dst *record.Record, src record.Record) {
	merged, _ := dst.RawFields[MergedRawFields].(map[string]interface{})
	if merged == nil {
		merged = map[string]interface{}{}
	}
	add := func(key string, fields map[string]interface{}) {
		if existing, ok := merged[key].(map[string]interface{}); ok {
			// same source: only fill gaps
			if err := mergo.Merge(&existing, fields); err != nil {
				a.logger.Debug("could not merge raw fields", zap.String("source", key), zap.Error(err))
			}
			return
		}
		merged[key] = fields
	}

	if nested, ok := src.RawFields[MergedRawFields].(map[string]interface{}); ok {
		for key, fields := range nested {
			if m, ok := fields.(map[string]interface{}); ok && key != dst.Provenance.String() {
				add(key, m)
			}
		}
	}
	own := ownRawFields(src.RawFields)
	if len(own) > 0 && (src.Provenance != dst.Provenance || !reflect.DeepEqual(own, ownRawFields(dst.RawFields))) {
		add(src.Provenance.String(), own)
	}
	if len(merged) > 0 {
		dst.RawFields[MergedRawFields] = merged
	}
}

func ownRawFields(raw map[string]interface{}) map[string]interface{} {
	own := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k != MergedRawFields {
			own[k] = v
		}
	}
	return own
}

// betterTitle prefers the non-empty, then the longer, then the
// lexicographically smaller title.
func betterTitle(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case len(a) != len(b):
		if len(b) > len(a) {
			return b
		}
		return a
	case b < a:
		return b
	}
	return a
}

func hasProvenance(audit []record.Provenance, p record.Provenance) bool {
	for _, q := range audit {
		if q == p {
			return true
		}
	}
	return false
}
