// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vchrombie/opensearch-hadoop/rest"
	"github.com/vchrombie/opensearch-hadoop/resttest"
	"github.com/vchrombie/opensearch-hadoop/settings"
)

type testReporter struct {
	mu      sync.Mutex
	ticks   int
	reports []rest.Stats
}

func (r *testReporter) Progress(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *testReporter) Report(stats rest.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, stats)
}

func (r *testReporter) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func plannedPartition(extra map[string]string) rest.PartitionDefinition {
	overlay := settings.FromMap(map[string]string{
		settings.InternalVersion: "2.11.0",
	})
	overlay.Merge(extra)
	return rest.PartitionDefinition{
		Resource:           "logs",
		ShardID:            0,
		SerializedSettings: overlay.Save(),
	}
}

func TestScrollReaderStreamsAllPages(t *testing.T) {
	cluster := &resttest.Cluster{
		Index: "logs",
		Pages: [][]resttest.Hit{
			{
				{ID: "a", Source: []byte(`{"n":1}`)},
				{ID: "b", Source: []byte(`{"n":2}`)},
			},
			{
				{ID: "c", Source: []byte(`{"n":3}`)},
			},
		},
	}

	reader, err := rest.NewScrollReader(rest.ReaderConfig{
		Partition: plannedPartition(nil),
		Client:    cluster.Client(t),
	})
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	var ids []string
	for {
		rec, err := reader.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ids = append(ids, rec.ID)
		require.IsType(t, map[string]any{}, rec.Value)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.EqualValues(t, 3, reader.Total())
	assert.EqualValues(t, 3, reader.Read())

	// exhausted readers keep returning io.EOF
	_, err = reader.Next(ctx)
	assert.Equal(t, io.EOF, err)

	stats := reader.Stats()
	assert.EqualValues(t, 3, stats.DocsRead)
	assert.Positive(t, stats.BytesRead)
	// initial search plus one continuation per remaining page plus the
	// empty page signalling exhaustion
	assert.EqualValues(t, 3, stats.ScrollsRead)
}

func TestScrollReaderJSONPassthrough(t *testing.T) {
	cluster := &resttest.Cluster{
		Index: "logs",
		Pages: [][]resttest.Hit{{{ID: "a", Source: []byte(`{"n":1}`)}}},
	}

	reader, err := rest.NewScrollReader(rest.ReaderConfig{
		Partition: plannedPartition(map[string]string{
			settings.OpenSearchOutputJSON: "true",
		}),
		Client: cluster.Client(t),
	})
	require.NoError(t, err)
	defer reader.Close()

	rec, err := reader.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, rec.Value)
}

func TestScrollReaderScrollLimit(t *testing.T) {
	cluster := &resttest.Cluster{
		Index: "logs",
		Pages: [][]resttest.Hit{{
			{ID: "a", Source: []byte(`{}`)},
			{ID: "b", Source: []byte(`{}`)},
			{ID: "c", Source: []byte(`{}`)},
		}},
	}

	reader, err := rest.NewScrollReader(rest.ReaderConfig{
		Partition: plannedPartition(map[string]string{
			settings.OpenSearchScrollLimit: "2",
		}),
		Client: cluster.Client(t),
	})
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	var n int
	for {
		_, err := reader.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestScrollReaderRequiresPlannedSettings(t *testing.T) {
	cluster := &resttest.Cluster{Index: "logs"}
	_, err := rest.NewScrollReader(rest.ReaderConfig{
		Partition: rest.PartitionDefinition{
			Resource:           "logs",
			SerializedSettings: settings.New().Save(),
		},
		Client: cluster.Client(t),
	})
	var confErr *rest.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, settings.InternalVersion, confErr.Setting)
}

func TestScrollReaderCloseReleasesScroll(t *testing.T) {
	cluster := &resttest.Cluster{
		Index: "logs",
		Pages: [][]resttest.Hit{{{ID: "a", Source: []byte(`{}`)}}},
	}
	reporter := &testReporter{}

	reader, err := rest.NewScrollReader(rest.ReaderConfig{
		Partition: plannedPartition(nil),
		Client:    cluster.Client(t),
		Reporter:  reporter,
	})
	require.NoError(t, err)

	_, err = reader.Next(context.Background())
	require.NoError(t, err)

	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())

	assert.Equal(t, 1, cluster.ClearScrollRequests())
	// the statistics record is delivered exactly once, even across
	// repeated closes
	require.Len(t, reporter.reports, 1)
	assert.EqualValues(t, 1, reporter.reports[0].DocsRead)

	_, err = reader.Next(context.Background())
	assert.ErrorIs(t, err, rest.ErrClosed)
}

func TestScrollReaderHeartbeatDuringSlowFetch(t *testing.T) {
	cluster := &resttest.Cluster{
		Index:       "logs",
		Pages:       [][]resttest.Hit{{{ID: "a", Source: []byte(`{}`)}}},
		SearchDelay: 300 * time.Millisecond,
	}
	reporter := &testReporter{}

	reader, err := rest.NewScrollReader(rest.ReaderConfig{
		Partition: plannedPartition(map[string]string{
			settings.OpenSearchHeartbeatLead: "100ms",
		}),
		Client:   cluster.Client(t),
		Reporter: reporter,
	})
	require.NoError(t, err)

	_, err = reader.Next(context.Background())
	require.NoError(t, err)
	// the fetch took three times the lead; the heartbeat must have
	// ticked at a shorter interval than the lead throughout
	assert.GreaterOrEqual(t, reporter.tickCount(), 2)

	require.NoError(t, reader.Close())
	seen := reporter.tickCount()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, seen, reporter.tickCount())
}

func TestScrollReaderFetchFailureIsTerminal(t *testing.T) {
	cluster := &resttest.Cluster{Index: "logs"}
	srv := httptest.NewServer(cluster.Handler())
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
		Transport:    http.DefaultTransport,
	})
	require.NoError(t, err)

	reader, err := rest.NewScrollReader(rest.ReaderConfig{
		Partition: plannedPartition(nil),
		Client:    client,
	})
	require.NoError(t, err)
	defer reader.Close()

	srv.Close()

	_, err = reader.Next(context.Background())
	require.Error(t, err)

	_, again := reader.Next(context.Background())
	assert.Equal(t, err, again)
}
