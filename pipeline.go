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

package browserartifacts

import (
	"context"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forensicanalysis/browserartifacts/aggregate"
	"github.com/forensicanalysis/browserartifacts/extractor"
	"github.com/forensicanalysis/browserartifacts/record"
)

// ErrNoData is returned when none of the sources could be read.
var ErrNoData = errors.New("no readable browser artifact source")

// Source is a candidate file. A zero Family is inferred from the file name.
type Source struct {
	Path   string        `json:"path"`
	Family record.Family `json:"family,omitempty"`
}

// Result of a pipeline run.
type Result struct {
	Records []record.Record `json:"records"`
	Stats   aggregate.Stats `json:"stats"`
	// Failures are the errors of the run, the same as Stats.Failures.
	Failures []record.Failure `json:"failures,omitempty"`
	// Cancelled is set if the run was cancelled before all sources were dispatched.
	Cancelled bool `json:"cancelled,omitempty"`
	// Readable is the number of sources that could be read.
	Readable int `json:"readable"`
	// Sources reports the outcome per source, in input order.
	Sources []SourceStatus `json:"sources"`
}

// SourceStatus is the outcome of one source.
type SourceStatus struct {
	Source
	Ran      bool `json:"ran"`
	Readable bool `json:"readable"`
	Records  int  `json:"records"`
}

// Pipeline extracts, normalizes and deduplicates browser artifacts.
type Pipeline struct {
	// Fs is the evidence file system, the read-only OS file system if nil.
	Fs afero.Fs
	// Workers bounds the number of concurrent extractions, GOMAXPROCS if zero.
	Workers   int
	Logger    *zap.Logger
	Metrics   *Metrics
	Extractor extractor.Options
}

// Run extracts all sources and aggregates the results.
//
// Cancelling ctx stops the dispatch of further sources. Extractions that
// already started run to completion, their results are kept and ctx.Err() is
// returned together with the partial result.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*Result, error) { // nolint:funlen
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fsys := p.Fs
	if fsys == nil {
		fsys = afero.NewReadOnlyFs(afero.NewOsFs())
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	opts := p.Extractor
	if opts.Logger == nil {
		opts.Logger = logger
	}

	slots := make([]extractor.Result, len(sources))
	ran := make([]bool, len(sources))
	inflight := context.WithoutCancel(ctx)
	cancelled := false
	statuses := make([]SourceStatus, len(sources))
	for i, source := range sources {
		statuses[i].Source = source
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, source := range sources {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		family := source.Family
		if family == 0 {
			inferred, ok := extractor.Infer(source.Path)
			if !ok {
				slots[i] = unknownFamily(source.Path, errors.New("family could not be inferred from the file name"))
				continue
			}
			family = inferred
		}
		statuses[i].Family = family
		e, err := extractor.For(family, opts)
		if err != nil {
			slots[i] = unknownFamily(source.Path, err)
			continue
		}

		i := i
		path := source.Path
		g.Go(func() error {
			// the slot may have been waited for while the run was cancelled
			if ctx.Err() != nil {
				return nil
			}
			ran[i] = true
			start := time.Now()
			slots[i] = e.Extract(inflight, fsys, path)
			p.Metrics.observeSource(e.Family(), slots[i], time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		for i := range sources {
			if !ran[i] && len(slots[i].Failures) == 0 {
				cancelled = true
			}
		}
	}

	agg := aggregate.New(logger)
	readable := 0
	for i, slot := range slots {
		statuses[i].Ran = ran[i]
		statuses[i].Records = len(slot.Records)
		if ran[i] && slot.Readable() {
			statuses[i].Readable = true
			readable++
		}
		agg.Add(slot.Records...)
		agg.AddFailures(slot.Failures...)
	}
	records, stats := agg.Finalize()
	p.Metrics.observeStats(stats)

	result := &Result{
		Records:   records,
		Stats:     stats,
		Failures:  stats.Failures,
		Cancelled: cancelled,
		Readable:  readable,
		Sources:   statuses,
	}
	logger.Info("pipeline finished",
		zap.Int("sources", len(sources)), zap.Int("readable", readable), zap.Int("records", len(records)),
		zap.Int("failures", len(stats.Failures)), zap.Int("warnings", len(stats.Warnings)), zap.Bool("cancelled", cancelled))

	if cancelled {
		return result, ctx.Err()
	}
	if readable == 0 {
		return result, ErrNoData
	}
	return result, nil
}

func unknownFamily(path string, err error) extractor.Result {
	return extractor.Result{Failures: []record.Failure{{
		Kind:       record.UnknownFamily,
		SourcePath: path,
		Reason:     err.Error(),
	}}}
}

// Sink receives the output of a run, for example a store.Store.
type Sink interface {
	AddRecords(records []record.Record) error
	AddStats(stats aggregate.Stats) error
}

// Publish hands the records and stats of a result to a sink.
func Publish(result *Result, sink Sink) error {
	if err := sink.AddRecords(result.Records); err != nil {
		return errors.Wrap(err, "could not add records")
	}
	return errors.Wrap(sink.AddStats(result.Stats), "could not add stats")
}
