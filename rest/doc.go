// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

// Package rest implements the data-movement core of the connector:
// planning how an index's shards map to partitions, the per-partition
// scroll read loop with its liveness heartbeat, and the bulk write path
// with document-level retries.
//
// One ScrollReader or BulkWriter instance serves one host-scheduled
// worker. Instances are not safe for concurrent use; the only background
// activity is the reader's heartbeat, which shares nothing with the
// fetch loop beyond its stop flag.
package rest
