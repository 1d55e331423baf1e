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

package aggregate

import (
	"fmt"
	"net"
	"sort"

	"golang.org/x/net/publicsuffix"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/timestamp"
)

// TopDomainsLimit is the number of domains kept in Stats.TopDomains.
const TopDomainsLimit = 10

// Stats summarizes a deduplicated record set. Failures holds all errors of
// the run and Warnings the informational failures.
type Stats struct {
	Total             int                         `json:"total"`
	Input             int                         `json:"input"`
	Merged            int                         `json:"merged"`
	ByFamily          map[record.Family]int       `json:"by_family"`
	ByType            map[record.ArtifactType]int `json:"by_type"`
	Earliest          timestamp.Instant           `json:"earliest"`
	Latest            timestamp.Instant           `json:"latest"`
	UnknownTimestamps int                         `json:"unknown_timestamps"`
	TopDomains        []DomainCount               `json:"top_domains,omitempty"`
	Failures          []record.Failure            `json:"failures,omitempty"`
	Warnings          []record.Failure            `json:"warnings,omitempty"`
}

// DomainCount is the number of records of one registrable domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Check verifies that the per-family and per-type counts add up to Total.
func (s Stats) Check() error {
	families, types := 0, 0
	for _, n := range s.ByFamily {
		families += n
	}
	for _, n := range s.ByType {
		types += n
	}
	if families != s.Total || types != s.Total {
		return fmt.Errorf("inconsistent stats: total %d, families %d, types %d", s.Total, families, types)
	}
	return nil
}

func computeStats(records []record.Record, failures []record.Failure) Stats {
	s := Stats{
		Total:    len(records),
		ByFamily: map[record.Family]int{},
		ByType:   map[record.ArtifactType]int{},
		Earliest: timestamp.Unknown,
		Latest:   timestamp.Unknown,
	}
	domains := map[string]int{}
	for _, r := range records {
		s.ByFamily[r.Provenance.Family]++
		s.ByType[r.ArtifactType]++

		if !r.Timestamp.Known() {
			s.UnknownTimestamps++
		} else {
			if !s.Earliest.Known() || r.Timestamp < s.Earliest {
				s.Earliest = r.Timestamp
			}
			if !s.Latest.Known() || r.Timestamp > s.Latest {
				s.Latest = r.Timestamp
			}
		}

		if domain := registrableDomain(r.URL); domain != "" {
			domains[domain]++
		}
	}
	s.TopDomains = topDomains(domains, TopDomainsLimit)

	for _, f := range failures {
		if f.Kind.Warning() {
			s.Warnings = append(s.Warnings, f)
		} else {
			s.Failures = append(s.Failures, f)
		}
	}
	return s
}

// registrableDomain returns the eTLD+1 of the URL host, or the host itself
// for IP addresses and single label names.
func registrableDomain(raw string) string {
	host := record.Host(raw)
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

func topDomains(domains map[string]int, limit int) []DomainCount {
	var counts []DomainCount
	for domain, n := range domains {
		counts = append(counts, DomainCount{Domain: domain, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Domain < counts[j].Domain
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
