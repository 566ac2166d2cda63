// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vchrombie/opensearch-hadoop/rest"
	"github.com/vchrombie/opensearch-hadoop/resttest"
	"github.com/vchrombie/opensearch-hadoop/settings"
)

func TestFindPartitionsOnePerShard(t *testing.T) {
	cluster := &resttest.Cluster{Index: "logs", ShardCount: 3}
	client := cluster.Client(t)

	partitions, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
		Client:   client,
		Settings: settings.FromMap(map[string]string{settings.OpenSearchResourceRead: "logs"}),
	})
	require.NoError(t, err)
	require.Len(t, partitions, 3)

	for i, p := range partitions {
		assert.Equal(t, "logs", p.Resource)
		assert.Equal(t, i, p.ShardID)
		assert.Equal(t, []string{cluster.Addr()}, p.HostNames)

		// the overlay is self-contained: pinned host plus the cluster
		// version marker stamped at planning time
		overlay := settings.New()
		require.NoError(t, overlay.Load(p.SerializedSettings))
		assert.Equal(t, cluster.Addr(), overlay.Nodes())
		assert.Equal(t, "2.11.0", overlay.InternalVersion())
	}
}

func TestFindPartitionsMissingResource(t *testing.T) {
	t.Run("missing is an error", func(t *testing.T) {
		cluster := &resttest.Cluster{Index: "logs", Missing: true}
		_, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
			Client:   cluster.Client(t),
			Settings: settings.FromMap(map[string]string{settings.OpenSearchResourceRead: "logs"}),
		})
		var notFound *rest.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "logs", notFound.Resource)
	})

	t.Run("missing as empty", func(t *testing.T) {
		cluster := &resttest.Cluster{Index: "logs", Missing: true}
		partitions, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
			Client: cluster.Client(t),
			Settings: settings.FromMap(map[string]string{
				settings.OpenSearchResourceRead:            "logs",
				settings.OpenSearchIndexReadMissingAsEmpty: "true",
			}),
		})
		require.NoError(t, err)
		assert.Empty(t, partitions)
	})
}

func TestFindPartitionsNoResource(t *testing.T) {
	cluster := &resttest.Cluster{Index: "logs"}
	_, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
		Client:   cluster.Client(t),
		Settings: settings.New(),
	})
	var confErr *rest.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, settings.OpenSearchResourceRead, confErr.Setting)
}

func TestFindPartitionsRedHealth(t *testing.T) {
	t.Run("red bails out", func(t *testing.T) {
		cluster := &resttest.Cluster{Index: "logs", Health: "red"}
		_, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
			Client:   cluster.Client(t),
			Settings: settings.FromMap(map[string]string{settings.OpenSearchResourceRead: "logs"}),
		})
		var healthErr *rest.ClusterHealthError
		require.ErrorAs(t, err, &healthErr)
		assert.Equal(t, "red", healthErr.Status)
	})

	t.Run("red allowed when configured", func(t *testing.T) {
		cluster := &resttest.Cluster{Index: "logs", Health: "red"}
		partitions, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
			Client: cluster.Client(t),
			Settings: settings.FromMap(map[string]string{
				settings.OpenSearchResourceRead:            "logs",
				settings.OpenSearchIndexReadAllowRedStatus: "true",
			}),
		})
		require.NoError(t, err)
		assert.Len(t, partitions, 1)
	})
}

func TestFindPartitionsUnknownPreference(t *testing.T) {
	cluster := &resttest.Cluster{Index: "logs"}
	_, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
		Client: cluster.Client(t),
		Settings: settings.FromMap(map[string]string{
			settings.OpenSearchResourceRead:    "logs",
			settings.OpenSearchShardPreference: "nearest",
		}),
	})
	var confErr *rest.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, settings.OpenSearchShardPreference, confErr.Setting)
}

func TestFindPartitionsSubdividesLargeShards(t *testing.T) {
	cluster := &resttest.Cluster{
		Index:      "logs",
		ShardCount: 2,
		ShardDocs:  map[int]int64{0: 250, 1: 80},
	}
	partitions, err := rest.FindPartitions(context.Background(), rest.PlannerConfig{
		Client: cluster.Client(t),
		Settings: settings.FromMap(map[string]string{
			settings.OpenSearchResourceRead:        "logs",
			settings.OpenSearchMaxDocsPerPartition: "100",
		}),
	})
	require.NoError(t, err)
	// shard 0 splits into ceil(250/100)=3 slices, shard 1 stays whole
	require.Len(t, partitions, 4)

	var shard0 []rest.PartitionDefinition
	for _, p := range partitions {
		if p.ShardID == 0 {
			shard0 = append(shard0, p)
		}
	}
	require.Len(t, shard0, 3)
	for i, p := range shard0 {
		overlay := settings.New()
		require.NoError(t, overlay.Load(p.SerializedSettings))
		id, err := overlay.InputSliceID()
		require.NoError(t, err)
		max, err := overlay.InputSliceMax()
		require.NoError(t, err)
		assert.Equal(t, i, id)
		assert.Equal(t, 3, max)
	}

	assert.ElementsMatch(t, []int{0, 1}, cluster.CountedShards())
}
