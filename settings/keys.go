// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package settings

// Configuration property names. The namespace follows the original
// opensearch-hadoop connector so existing job configurations keep working.
const (
	OpenSearchNodes = "opensearch.nodes"
	OpenSearchPort  = "opensearch.port"

	OpenSearchResource      = "opensearch.resource"
	OpenSearchResourceRead  = "opensearch.resource.read"
	OpenSearchResourceWrite = "opensearch.resource.write"

	OpenSearchQuery               = "opensearch.query"
	OpenSearchMaxDocsPerPartition = "opensearch.input.max.docs.per.partition"
	OpenSearchShardPreference     = "opensearch.read.shard.preference"

	OpenSearchNodesWANOnly          = "opensearch.nodes.wan.only"
	OpenSearchNodesDiscovery        = "opensearch.nodes.discovery"
	OpenSearchNodesResolveHostnames = "opensearch.nodes.resolve.hostname"
	OpenSearchNodesDataOnly         = "opensearch.nodes.data.only"
	OpenSearchNodesClientOnly       = "opensearch.nodes.client.only"
	OpenSearchNodesIngestOnly       = "opensearch.nodes.ingest.only"
	OpenSearchNodesPathPrefix       = "opensearch.nodes.path.prefix"

	OpenSearchHTTPTimeout = "opensearch.http.timeout"
	OpenSearchHTTPRetries = "opensearch.http.retries"

	OpenSearchScrollKeepAlive = "opensearch.scroll.keepalive"
	OpenSearchScrollSize      = "opensearch.scroll.size"
	OpenSearchScrollLimit     = "opensearch.scroll.limit"

	OpenSearchHeartbeatLead = "opensearch.action.heart.beat.lead"

	OpenSearchBatchSizeBytes        = "opensearch.batch.size.bytes"
	OpenSearchBatchSizeEntries      = "opensearch.batch.size.entries"
	OpenSearchBatchWriteRetryCount  = "opensearch.batch.write.retry.count"
	OpenSearchBatchWriteRetryLimit  = "opensearch.batch.write.retry.limit"
	OpenSearchBatchWriteRetryWait   = "opensearch.batch.write.retry.wait"
	OpenSearchBatchWriteRetryPolicy = "opensearch.batch.write.retry.policy"
	OpenSearchBatchWriteRefresh     = "opensearch.batch.write.refresh"
	OpenSearchBatchFlushManual      = "opensearch.batch.flush.manual"

	OpenSearchIndexAutoCreate         = "opensearch.index.auto.create"
	OpenSearchIndexReadMissingAsEmpty = "opensearch.index.read.missing.as.empty"
	OpenSearchIndexReadAllowRedStatus = "opensearch.index.read.allow.red.status"

	OpenSearchInputJSON  = "opensearch.input.json"
	OpenSearchOutputJSON = "opensearch.output.json"

	OpenSearchWriteOperation        = "opensearch.write.operation"
	OpenSearchIngestPipeline        = "opensearch.ingest.pipeline"
	OpenSearchUpdateRetryOnConflict = "opensearch.update.retry.on.conflict"

	// Update script settings. The bare "opensearch.update.script" key is
	// deprecated in favour of the ".inline" form.
	OpenSearchUpdateScriptLegacy = "opensearch.update.script"
	OpenSearchUpdateScriptInline = "opensearch.update.script.inline"

	// Empty-field handling. The "field.read" ordering of the key is
	// deprecated in favour of the "read.field" form.
	OpenSearchReadFieldEmptyAsNullLegacy = "opensearch.field.read.empty.as.null"
	OpenSearchReadFieldEmptyAsNull       = "opensearch.read.field.empty.as.null"

	OpenSearchReadMetadata        = "opensearch.read.metadata"
	OpenSearchReadMetadataField   = "opensearch.read.metadata.field"
	OpenSearchReadMetadataVersion = "opensearch.read.metadata.version"

	OpenSearchNetUseSSL              = "opensearch.net.ssl"
	OpenSearchNetHTTPAuthUser        = "opensearch.net.http.auth.user"
	OpenSearchNetHTTPAuthPass        = "opensearch.net.http.auth.pass"
	OpenSearchSecurityAuthentication = "opensearch.security.authentication"
)

// Internal properties, set by the connector itself and carried inside
// partition overlays. Never documented for end users.
const (
	InternalVersion     = "opensearch.internal.opensearch.version"
	InternalClusterName = "opensearch.internal.opensearch.cluster.name"
	InternalClusterUUID = "opensearch.internal.opensearch.cluster.uuid"

	// Sliced-scroll overlay for shards subdivided by the planner.
	OpenSearchInputSliceID  = "opensearch.input.slice.id"
	OpenSearchInputSliceMax = "opensearch.input.slice.max"
)

// Defaults applied by the typed accessors when a property is unset.
const (
	DefaultNodes           = "localhost"
	DefaultPort            = "9200"
	DefaultShardPreference = "any"

	DefaultHTTPTimeout = "1m"
	DefaultHTTPRetries = "3"

	DefaultScrollKeepAlive = "10m"
	DefaultScrollSize      = "1000"
	DefaultScrollLimit     = "-1"

	DefaultHeartbeatLead = "15s"

	DefaultBatchSizeBytes        = "1mb"
	DefaultBatchSizeEntries      = "1000"
	DefaultBatchWriteRetryCount  = "3"
	DefaultBatchWriteRetryLimit  = "50"
	DefaultBatchWriteRetryWait   = "10s"
	DefaultBatchWriteRetryPolicy = "simple"
	DefaultBatchWriteRefresh     = "true"
	DefaultBatchFlushManual      = "false"

	DefaultWriteOperation = "index"
)
