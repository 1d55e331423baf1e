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

// Package browserartifacts extracts browsing activity from the storage of
// Chromium based browsers, Firefox, Internet Explorer and Safari or legacy
// Edge, and unifies it into one time-normalized, deduplicated record stream.
//
// Pipeline
//
// A Pipeline runs one extractor per source file on a bounded worker pool:
//     sources ─► extractor.For(family) ─► schema.Mapper ─► timestamp.Normalizer
//                                                │
//     Sink ◄── Result ◄── aggregate.Aggregator ◄─┘
// Sources are usually found with Discover. Failures never abort a run, they
// are reported in Result.Failures and Result.Stats.
//
// Timestamps
//
// All times are microseconds since the Unix epoch in UTC. Chromium
// (microseconds since 1601), Firefox (microseconds since 1970), Windows
// FILETIME (100ns ticks since 1601) and Core Data (seconds since 2001) are
// converted by the timestamp package. Missing or implausible values become
// timestamp.Unknown.
package browserartifacts
