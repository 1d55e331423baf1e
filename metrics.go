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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forensicanalysis/browserartifacts/aggregate"
	"github.com/forensicanalysis/browserartifacts/extractor"
	"github.com/forensicanalysis/browserartifacts/record"
)

// Metrics are the Prometheus collectors of a pipeline. A nil *Metrics
// records nothing.
type Metrics struct {
	Sources        *prometheus.CounterVec
	Records        *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
	Merged         prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg, if it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sources: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "browserartifacts_sources_total",
			Help: "The total number of extracted sources",
		}, []string{"family", "status"}), // status is readable or unreadable
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "browserartifacts_records_extracted_total",
			Help: "The total number of records before deduplication",
		}, []string{"family", "type"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "browserartifacts_failures_total",
			Help: "The total number of extraction failures and warnings",
		}, []string{"family", "kind"}),
		SourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "browserartifacts_source_duration_seconds",
			Help:    "The time needed to extract one source",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"family"}),
		Merged: factory.NewCounter(prometheus.CounterOpts{
			Name: "browserartifacts_records_merged_total",
			Help: "The total number of records merged into an existing record",
		}),
	}
}

func (m *Metrics) observeSource(family record.Family, result extractor.Result, d time.Duration) {
	if m == nil {
		return
	}
	status := "readable"
	if !result.Readable() {
		status = "unreadable"
	}
	m.Sources.WithLabelValues(family.String(), status).Inc()
	m.SourceDuration.WithLabelValues(family.String()).Observe(d.Seconds())
	for _, r := range result.Records {
		m.Records.WithLabelValues(family.String(), r.ArtifactType.String()).Inc()
	}
	for _, f := range result.Failures {
		m.Failures.WithLabelValues(family.String(), f.Kind.String()).Inc()
	}
}

func (m *Metrics) observeStats(stats aggregate.Stats) {
	if m == nil {
		return
	}
	m.Merged.Add(float64(stats.Merged))
}

// WriteMetrics writes all metrics of g in the text format to path, for the
// node exporter textfile collector.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
