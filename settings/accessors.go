// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package settings

import (
	"fmt"
	"strconv"
	"time"
)

func (s *Settings) intValue(name, def string) (int, error) {
	v := s.GetWithDefault(name, def)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("setting [%s]: invalid integer %q", name, v)
	}
	return n, nil
}

func (s *Settings) durationValue(name, def string) (time.Duration, error) {
	v := s.GetWithDefault(name, def)
	d, err := parseTimeValue(v)
	if err != nil {
		return 0, fmt.Errorf("setting [%s]: %w", name, err)
	}
	return d, nil
}

// Nodes returns the comma-separated list of nodes to bootstrap from.
func (s *Settings) Nodes() string {
	return s.GetWithDefault(OpenSearchNodes, DefaultNodes)
}

func (s *Settings) Port() (int, error) {
	return s.intValue(OpenSearchPort, DefaultPort)
}

func (s *Settings) NodesPathPrefix() string {
	return s.Get(OpenSearchNodesPathPrefix)
}

// Resource returns the read resource, falling back to the shared
// resource property.
func (s *Settings) ResourceRead() string {
	return s.GetWithDefault(OpenSearchResourceRead, s.Get(OpenSearchResource))
}

// ResourceWrite returns the write resource, falling back to the shared
// resource property.
func (s *Settings) ResourceWrite() string {
	return s.GetWithDefault(OpenSearchResourceWrite, s.Get(OpenSearchResource))
}

func (s *Settings) Query() string {
	return s.Get(OpenSearchQuery)
}

// MaxDocsPerPartition returns the per-partition document bound, or 0
// when unset (no subdivision).
func (s *Settings) MaxDocsPerPartition() (int, error) {
	if !s.Has(OpenSearchMaxDocsPerPartition) {
		return 0, nil
	}
	return s.intValue(OpenSearchMaxDocsPerPartition, "0")
}

func (s *Settings) ShardPreference() string {
	return s.GetWithDefault(OpenSearchShardPreference, DefaultShardPreference)
}

func (s *Settings) NodesWANOnly() bool {
	return parseBool(s.Get(OpenSearchNodesWANOnly), false)
}

// NodesDiscovery defaults to the negation of WAN-only mode unless
// explicitly set; discovering cluster nodes makes no sense over a WAN.
func (s *Settings) NodesDiscovery() bool {
	if s.Has(OpenSearchNodesDiscovery) {
		return parseBool(s.Get(OpenSearchNodesDiscovery), true)
	}
	return !s.NodesWANOnly()
}

// NodesResolveHostnames defaults to the negation of WAN-only mode unless
// explicitly set.
func (s *Settings) NodesResolveHostnames() bool {
	if s.Has(OpenSearchNodesResolveHostnames) {
		return parseBool(s.Get(OpenSearchNodesResolveHostnames), true)
	}
	return !s.NodesWANOnly()
}

func (s *Settings) NodesClientOnly() bool {
	return parseBool(s.Get(OpenSearchNodesClientOnly), false)
}

func (s *Settings) NodesIngestOnly() bool {
	return parseBool(s.Get(OpenSearchNodesIngestOnly), false)
}

// NodesDataOnly defaults to true unless another node-restriction mode is
// in effect.
func (s *Settings) NodesDataOnly() bool {
	if s.Has(OpenSearchNodesDataOnly) {
		return parseBool(s.Get(OpenSearchNodesDataOnly), true)
	}
	return !s.NodesWANOnly() && !s.NodesClientOnly() && !s.NodesIngestOnly()
}

func (s *Settings) HTTPTimeout() (time.Duration, error) {
	return s.durationValue(OpenSearchHTTPTimeout, DefaultHTTPTimeout)
}

func (s *Settings) HTTPRetries() (int, error) {
	return s.intValue(OpenSearchHTTPRetries, DefaultHTTPRetries)
}

func (s *Settings) ScrollKeepAlive() (time.Duration, error) {
	return s.durationValue(OpenSearchScrollKeepAlive, DefaultScrollKeepAlive)
}

func (s *Settings) ScrollSize() (int, error) {
	return s.intValue(OpenSearchScrollSize, DefaultScrollSize)
}

// ScrollLimit returns the maximum number of documents to read per
// partition; -1 means unbounded.
func (s *Settings) ScrollLimit() (int64, error) {
	v := s.GetWithDefault(OpenSearchScrollLimit, DefaultScrollLimit)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting [%s]: invalid integer %q", OpenSearchScrollLimit, v)
	}
	return n, nil
}

func (s *Settings) HeartbeatLead() (time.Duration, error) {
	return s.durationValue(OpenSearchHeartbeatLead, DefaultHeartbeatLead)
}

func (s *Settings) BatchSizeBytes() (int, error) {
	v := s.GetWithDefault(OpenSearchBatchSizeBytes, DefaultBatchSizeBytes)
	n, err := parseByteSize(v)
	if err != nil {
		return 0, fmt.Errorf("setting [%s]: %w", OpenSearchBatchSizeBytes, err)
	}
	return n, nil
}

func (s *Settings) BatchSizeEntries() (int, error) {
	return s.intValue(OpenSearchBatchSizeEntries, DefaultBatchSizeEntries)
}

// BatchWriteRetryCount bounds retries of an individual conflict-classed
// document failure, such as a version conflict from a concurrent update.
func (s *Settings) BatchWriteRetryCount() (int, error) {
	return s.intValue(OpenSearchBatchWriteRetryCount, DefaultBatchWriteRetryCount)
}

// BatchWriteRetryLimit bounds attempts of the whole batch-retry loop.
func (s *Settings) BatchWriteRetryLimit() (int, error) {
	return s.intValue(OpenSearchBatchWriteRetryLimit, DefaultBatchWriteRetryLimit)
}

func (s *Settings) BatchWriteRetryWait() (time.Duration, error) {
	return s.durationValue(OpenSearchBatchWriteRetryWait, DefaultBatchWriteRetryWait)
}

func (s *Settings) BatchWriteRetryPolicy() string {
	return s.GetWithDefault(OpenSearchBatchWriteRetryPolicy, DefaultBatchWriteRetryPolicy)
}

func (s *Settings) BatchRefreshAfterWrite() bool {
	return parseBool(s.Get(OpenSearchBatchWriteRefresh), parseBool(DefaultBatchWriteRefresh, true))
}

func (s *Settings) BatchFlushManual() bool {
	return parseBool(s.Get(OpenSearchBatchFlushManual), false)
}

func (s *Settings) IndexAutoCreate() bool {
	return parseBool(s.Get(OpenSearchIndexAutoCreate), true)
}

func (s *Settings) IndexReadMissingAsEmpty() bool {
	return parseBool(s.Get(OpenSearchIndexReadMissingAsEmpty), false)
}

func (s *Settings) IndexReadAllowRedStatus() bool {
	return parseBool(s.Get(OpenSearchIndexReadAllowRedStatus), false)
}

func (s *Settings) InputAsJSON() bool {
	return parseBool(s.Get(OpenSearchInputJSON), false)
}

func (s *Settings) OutputAsJSON() bool {
	return parseBool(s.Get(OpenSearchOutputJSON), false)
}

func (s *Settings) Operation() string {
	return s.GetWithDefault(OpenSearchWriteOperation, DefaultWriteOperation)
}

func (s *Settings) IngestPipeline() string {
	return s.Get(OpenSearchIngestPipeline)
}

func (s *Settings) UpdateRetryOnConflict() (int, error) {
	return s.intValue(OpenSearchUpdateRetryOnConflict, "0")
}

// UpdateScriptInline honours the deprecated bare script property before
// the inline one.
func (s *Settings) UpdateScriptInline() string {
	return s.getLegacy(OpenSearchUpdateScriptLegacy, OpenSearchUpdateScriptInline, "")
}

// ReadFieldEmptyAsNull honours the deprecated key ordering before the
// current one.
func (s *Settings) ReadFieldEmptyAsNull() bool {
	return parseBool(s.getLegacy(OpenSearchReadFieldEmptyAsNullLegacy, OpenSearchReadFieldEmptyAsNull, "yes"), true)
}

func (s *Settings) ReadMetadata() bool {
	return parseBool(s.Get(OpenSearchReadMetadata), false)
}

func (s *Settings) ReadMetadataField() string {
	return s.GetWithDefault(OpenSearchReadMetadataField, "_metadata")
}

func (s *Settings) ReadMetadataVersion() bool {
	return parseBool(s.Get(OpenSearchReadMetadataVersion), false)
}

func (s *Settings) NetworkSSLEnabled() bool {
	return parseBool(s.Get(OpenSearchNetUseSSL), false)
}

func (s *Settings) NetworkHTTPAuthUser() string {
	return s.Get(OpenSearchNetHTTPAuthUser)
}

func (s *Settings) NetworkHTTPAuthPass() string {
	return s.Get(OpenSearchNetHTTPAuthPass)
}

// InternalVersion returns the cluster-version marker stamped by the
// planner, or the empty string when absent.
func (s *Settings) InternalVersion() string {
	return s.Get(InternalVersion)
}

// InputSliceID returns the sliced-scroll slice id stamped by the
// planner, or -1 when the partition is not sliced.
func (s *Settings) InputSliceID() (int, error) {
	return s.intValue(OpenSearchInputSliceID, "-1")
}

// InputSliceMax returns the sliced-scroll slice count stamped by the
// planner, or 0 when the partition is not sliced.
func (s *Settings) InputSliceMax() (int, error) {
	return s.intValue(OpenSearchInputSliceMax, "0")
}
