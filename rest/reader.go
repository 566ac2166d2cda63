// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/vchrombie/opensearch-hadoop/settings"
)

type readerState int

const (
	readerInitialized readerState = iota
	readerStreaming
	readerExhausted
	readerFailed
	readerClosed
)

// ReaderConfig holds the collaborators for a partition read.
type ReaderConfig struct {
	// Partition is the unit of work, produced by FindPartitions.
	Partition PartitionDefinition
	// Settings carries the host-side job configuration. The partition's
	// serialized overlay is applied on top of a copy; neither the host
	// settings nor the overlay are mutated.
	Settings *settings.Settings
	// Client performs store requests. When nil, a client is built from
	// the merged settings, which pins it to the partition's hosts.
	Client elastictransport.Interface
	// Reporter receives heartbeat ticks while a fetch is in flight and
	// the final statistics record at close. Nil disables both.
	Reporter ProgressReporter
	// Logger is optional; nil disables logging.
	Logger *zap.Logger
	// MeterProvider defaults to the global provider when nil.
	MeterProvider metric.MeterProvider
}

// ScrollReader streams the documents of one partition in store order.
// It is owned by a single worker and is not safe for concurrent use;
// the heartbeat goroutine it manages shares no reader state.
type ScrollReader struct {
	client   elastictransport.Interface
	settings *settings.Settings
	decoder  Decoder
	reporter ProgressReporter
	hb       *heartbeat
	log      *zap.Logger
	metrics  metrics

	resource  string
	shard     int
	query     string
	keepAlive time.Duration
	size      int
	limit     int64
	sliceID   int
	sliceMax  int

	readMeta    bool
	metaField   string
	metaVersion bool

	state    readerState
	err      error
	scrollID string
	buffer   []scrollHit
	pos      int
	read     int64
	total    int64
	stats    Stats
	reported bool
}

type totalHits struct {
	Value int64
}

// UnmarshalJSON accepts both the bare-integer and the object form of
// hits.total, which differ across store versions.
func (t *totalHits) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Value int64 `json:"value"`
		}
		if err := jsoniter.Unmarshal(data, &obj); err != nil {
			return err
		}
		t.Value = obj.Value
		return nil
	}
	return jsoniter.Unmarshal(data, &t.Value)
}

type scrollHit struct {
	ID      string          `json:"_id"`
	Version *int64          `json:"_version"`
	Source  json.RawMessage `json:"_source"`
}

type scrollResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total totalHits   `json:"total"`
		Hits  []scrollHit `json:"hits"`
	} `json:"hits"`
}

// NewScrollReader validates the configuration and returns a reader ready
// to stream. No request is issued until the first Next call.
func NewScrollReader(cfg ReaderConfig) (*ScrollReader, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := settings.New().WithLogger(log)
	if cfg.Settings != nil {
		s = cfg.Settings.Copy()
	}
	if err := s.Load(cfg.Partition.SerializedSettings); err != nil {
		return nil, fmt.Errorf("loading partition settings: %w", err)
	}
	if s.InternalVersion() == "" {
		return nil, &ConfigurationError{
			Setting: settings.InternalVersion,
			Reason:  "no cluster version marker; partition settings must come from the planner",
		}
	}

	resource := cfg.Partition.Resource
	if resource == "" {
		resource = s.ResourceRead()
	}
	if resource == "" {
		return nil, &ConfigurationError{Setting: settings.OpenSearchResourceRead, Reason: "no resource configured"}
	}

	keepAlive, err := s.ScrollKeepAlive()
	if err != nil {
		return nil, err
	}
	size, err := s.ScrollSize()
	if err != nil {
		return nil, err
	}
	limit, err := s.ScrollLimit()
	if err != nil {
		return nil, err
	}
	sliceID, err := s.InputSliceID()
	if err != nil {
		return nil, err
	}
	sliceMax, err := s.InputSliceMax()
	if err != nil {
		return nil, err
	}

	client := cfg.Client
	if client == nil {
		c, err := NewClient(s)
		if err != nil {
			return nil, err
		}
		client = c
	}

	ms, err := newMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, err
	}

	var hb *heartbeat
	if cfg.Reporter != nil {
		lead, err := s.HeartbeatLead()
		if err != nil {
			return nil, err
		}
		hb = newHeartbeat(lead, "reading "+resource, cfg.Reporter, log)
	}

	return &ScrollReader{
		client:      client,
		settings:    s,
		decoder:     NewDecoder(s),
		reporter:    cfg.Reporter,
		hb:          hb,
		log:         log,
		metrics:     ms,
		resource:    resource,
		shard:       cfg.Partition.ShardID,
		query:       s.Query(),
		keepAlive:   keepAlive,
		size:        size,
		limit:       limit,
		sliceID:     sliceID,
		sliceMax:    sliceMax,
		readMeta:    s.ReadMetadata(),
		metaField:   s.ReadMetadataField(),
		metaVersion: s.ReadMetadataVersion(),
		state:       readerInitialized,
	}, nil
}

// Next returns the next document of the partition. It returns io.EOF
// once the partition is drained; any other error is terminal and every
// subsequent call returns the same error.
func (r *ScrollReader) Next(ctx context.Context) (Record, error) {
	switch r.state {
	case readerClosed:
		return Record{}, ErrClosed
	case readerFailed:
		return Record{}, r.err
	case readerExhausted:
		return Record{}, io.EOF
	}

	if r.limit >= 0 && r.read >= r.limit {
		r.state = readerExhausted
		return Record{}, io.EOF
	}

	for r.pos >= len(r.buffer) {
		if err := r.fetch(ctx); err != nil {
			r.state = readerFailed
			r.err = err
			return Record{}, err
		}
		if r.state == readerExhausted {
			return Record{}, io.EOF
		}
	}

	hit := r.buffer[r.pos]
	r.pos++
	r.read++
	r.stats.DocsRead++
	r.stats.BytesRead += int64(len(hit.Source))
	r.metrics.docsRead.Add(ctx, 1)
	r.metrics.bytesRead.Add(ctx, int64(len(hit.Source)))

	rec, err := r.decoder.Decode(hit.ID, hit.Source)
	if err != nil {
		r.state = readerFailed
		r.err = err
		return Record{}, err
	}
	if r.readMeta {
		r.attachMetadata(&rec, hit)
	}
	return rec, nil
}

// attachMetadata folds document metadata into map-shaped records under
// the configured metadata field. JSON passthrough records are left as-is.
func (r *ScrollReader) attachMetadata(rec *Record, hit scrollHit) {
	value, ok := rec.Value.(map[string]any)
	if !ok {
		return
	}
	meta := map[string]any{"_index": r.resource, "_id": hit.ID}
	if r.metaVersion && hit.Version != nil {
		meta["_version"] = *hit.Version
	}
	value[r.metaField] = meta
}

// fetch issues the next store round trip: the initial search on the
// first call, a scroll continuation afterwards. The heartbeat covers the
// whole blocking window.
func (r *ScrollReader) fetch(ctx context.Context) error {
	if r.hb != nil {
		r.hb.Start()
	}

	var (
		resp scrollResponse
		err  error
	)
	if r.state == readerInitialized {
		resp, err = r.open(ctx)
	} else {
		resp, err = r.continueScroll(ctx)
	}
	if err != nil {
		return err
	}

	if resp.ScrollID != "" {
		r.scrollID = resp.ScrollID
	}
	r.stats.ScrollsRead++
	r.metrics.scrollsRead.Add(ctx, 1)

	if r.state == readerInitialized {
		r.total = resp.Hits.Total.Value
		r.state = readerStreaming
		r.log.Debug("opened scroll",
			zap.String("resource", r.resource),
			zap.Int("shard", r.shard),
			zap.Int64("total", r.total),
		)
	}

	r.buffer = resp.Hits.Hits
	r.pos = 0
	if len(r.buffer) == 0 {
		r.state = readerExhausted
	}
	return nil
}

func (r *ScrollReader) open(ctx context.Context) (scrollResponse, error) {
	body, err := queryBody(r.query, r.sliceID, r.sliceMax)
	if err != nil {
		return scrollResponse{}, err
	}
	size := r.size
	res, err := (esapi.SearchRequest{
		Index:      []string{r.resource},
		Body:       body,
		Scroll:     r.keepAlive,
		Size:       &size,
		Preference: "_shards:" + strconv.Itoa(r.shard),
	}).Do(ctx, r.client)
	if err != nil {
		return scrollResponse{}, fmt.Errorf("opening scroll on [%s] shard %d: %w", r.resource, r.shard, err)
	}
	return decodeScrollResponse(res)
}

func (r *ScrollReader) continueScroll(ctx context.Context) (scrollResponse, error) {
	res, err := (esapi.ScrollRequest{
		ScrollID: r.scrollID,
		Scroll:   r.keepAlive,
	}).Do(ctx, r.client)
	if err != nil {
		return scrollResponse{}, fmt.Errorf("continuing scroll on [%s] shard %d: %w", r.resource, r.shard, err)
	}
	return decodeScrollResponse(res)
}

func decodeScrollResponse(res *esapi.Response) (scrollResponse, error) {
	defer res.Body.Close()
	if res.IsError() {
		return scrollResponse{}, fmt.Errorf("scroll request failed: %s", res.String())
	}
	var out scrollResponse
	if err := jsoniter.NewDecoder(res.Body).Decode(&out); err != nil {
		return scrollResponse{}, fmt.Errorf("decoding scroll response: %w", err)
	}
	return out, nil
}

// Read returns the number of documents delivered so far.
func (r *ScrollReader) Read() int64 { return r.read }

// Total returns the document count reported when the scroll was opened,
// or 0 before streaming starts.
func (r *ScrollReader) Total() int64 { return r.total }

// Stats returns a snapshot of the reader's counters.
func (r *ScrollReader) Stats() Stats { return r.stats }

// Close releases the server-side scroll context and reports the final
// statistics. The heartbeat is stopped before anything else so no tick
// can be delivered once Close returns. Safe to call more than once and
// from any state.
func (r *ScrollReader) Close() error {
	if r.state == readerClosed {
		return nil
	}
	if r.hb != nil {
		r.hb.Stop()
	}
	if r.scrollID != "" {
		res, err := (esapi.ClearScrollRequest{
			ScrollID: []string{r.scrollID},
		}).Do(context.Background(), r.client)
		if err != nil {
			r.log.Warn("failed clearing scroll", zap.Error(err))
		} else {
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
		}
		r.scrollID = ""
	}
	if r.reporter != nil && !r.reported {
		r.reporter.Report(r.stats)
		r.reported = true
	}
	r.state = readerClosed
	return nil
}
