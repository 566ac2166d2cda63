// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package mr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vchrombie/opensearch-hadoop/mr"
	"github.com/vchrombie/opensearch-hadoop/rest"
	"github.com/vchrombie/opensearch-hadoop/resttest"
	"github.com/vchrombie/opensearch-hadoop/settings"
)

func testSplit() *mr.Split {
	overlay := settings.FromMap(map[string]string{
		settings.InternalVersion: "2.11.0",
	})
	return mr.NewSplit(rest.PartitionDefinition{
		Resource:           "logs",
		SerializedSettings: overlay.Save(),
	})
}

func testCluster() *resttest.Cluster {
	return &resttest.Cluster{
		Index: "logs",
		Pages: [][]resttest.Hit{
			{
				{ID: "a", Source: []byte(`{"n":1}`)},
				{ID: "b", Source: []byte(`{"n":2}`)},
			},
		},
	}
}

func TestRecordReader(t *testing.T) {
	cluster := testCluster()
	reader, err := mr.OpenSplit(testSplit(), rest.ReaderConfig{Client: cluster.Client(t)})
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	var ids []string
	for reader.Advance(ctx) {
		ids = append(ids, reader.Current().ID)
	}
	require.NoError(t, reader.Err())
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.EqualValues(t, 1, reader.Progress())
	assert.EqualValues(t, 2, reader.Stats().DocsRead)
	require.NoError(t, reader.Close())
}

func TestStreamReader(t *testing.T) {
	cluster := testCluster()
	reader, err := mr.OpenSplitStream(testSplit(), rest.ReaderConfig{Client: cluster.Client(t)})
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	var (
		key   string
		value any
		ids   []string
	)
	for {
		more, err := reader.Next(ctx, &key, &value)
		require.NoError(t, err)
		if !more {
			break
		}
		ids = append(ids, key)
		assert.NotNil(t, value)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}
