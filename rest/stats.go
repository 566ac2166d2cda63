// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

// Stats aggregates the work performed by a reader or writer over its
// lifetime. Values are reported to the host's progress sink on close,
// even after a failed or partial run.
type Stats struct {
	BytesRead   int64
	DocsRead    int64
	ScrollsRead int64

	BytesWritten int64
	DocsWritten  int64
	DocsRetried  int64
	BulkRetries  int64
	BulkRequests int64
}

// Aggregate folds other into s.
func (s *Stats) Aggregate(other Stats) {
	s.BytesRead += other.BytesRead
	s.DocsRead += other.DocsRead
	s.ScrollsRead += other.ScrollsRead
	s.BytesWritten += other.BytesWritten
	s.DocsWritten += other.DocsWritten
	s.DocsRetried += other.DocsRetried
	s.BulkRetries += other.BulkRetries
	s.BulkRequests += other.BulkRequests
}

// ProgressReporter is the host-provided progress sink. Progress carries a
// human-readable liveness status; Report delivers the aggregated
// statistics record exactly once, at close time.
//
// Construction without a reporter is legal: the heartbeat stays off and
// statistics are simply not delivered anywhere.
type ProgressReporter interface {
	Progress(status string)
	Report(stats Stats)
}
