// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned from methods of closed readers and writers.
var ErrClosed = errors.New("instance closed")

// ConfigurationError reports a missing or invalid required setting. It is
// fatal and never retried.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: setting [%s]: %s", e.Setting, e.Reason)
}

// NotFoundError reports a read against a resource that does not exist
// while missing-as-empty is disabled.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource [%s] does not exist", e.Resource)
}

// ClusterHealthError reports a resource in a disallowed health state.
type ClusterHealthError struct {
	Resource string
	Status   string
}

func (e *ClusterHealthError) Error() string {
	return fmt.Sprintf("resource [%s] has status [%s]; bailing out (set %s to proceed anyway)",
		e.Resource, e.Status, "opensearch.index.read.allow.red.status")
}

// BulkWriteError reports documents that permanently failed after the
// write retry policy was exhausted. It always carries per-document
// detail; the writer never drops data silently.
type BulkWriteError struct {
	Docs []BulkResponseItem
}

func (e *BulkWriteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bulk write failed for %d document(s):", len(e.Docs))
	for _, d := range e.Docs {
		id := d.DocumentID
		if id == "" {
			id = fmt.Sprintf("@%d", d.Position)
		}
		fmt.Fprintf(&b, " [%s status=%d %s: %s]", id, d.Status, d.Error.Type, d.Error.Reason)
	}
	return b.String()
}

// DocumentIDs returns the identifiers of the failed documents, falling
// back to the batch position for documents written without an id.
func (e *BulkWriteError) DocumentIDs() []string {
	out := make([]string, 0, len(e.Docs))
	for _, d := range e.Docs {
		if d.DocumentID != "" {
			out = append(out, d.DocumentID)
		} else {
			out = append(out, fmt.Sprintf("@%d", d.Position))
		}
	}
	return out
}
