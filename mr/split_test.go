// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package mr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vchrombie/opensearch-hadoop/rest"
)

func samplePartition() rest.PartitionDefinition {
	return rest.PartitionDefinition{
		Resource:           "logs",
		ShardID:            2,
		HostNames:          []string{"10.0.0.2:9300", "10.0.0.1:9300"},
		SerializedSettings: "opensearch.nodes=10.0.0.2:9300\n",
	}
}

func TestSplitRoundTrip(t *testing.T) {
	split := NewSplit(samplePartition())

	data, err := split.MarshalBinary()
	require.NoError(t, err)

	var restored Split
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, split.Partition(), restored.Partition())
}

func TestSplitLocationsVerbatim(t *testing.T) {
	split := NewSplit(samplePartition())
	// locality hints keep the planner's preference order
	assert.Equal(t, []string{"10.0.0.2:9300", "10.0.0.1:9300"}, split.Locations())
}

func TestSplitLength(t *testing.T) {
	assert.EqualValues(t, 1, NewSplit(samplePartition()).Length())
	assert.EqualValues(t, 1, NewSplit(rest.PartitionDefinition{}).Length())
}

func TestFileSplitRoundTrip(t *testing.T) {
	split := NewFileSplit("/warehouse/logs/part-00002", samplePartition())

	data, err := split.MarshalBinary()
	require.NoError(t, err)

	var restored FileSplit
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, split.Path(), restored.Path())
	assert.Equal(t, split.Partition(), restored.Partition())
}
