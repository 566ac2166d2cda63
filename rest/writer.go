// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"go.elastic.co/fastjson"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/vchrombie/opensearch-hadoop/settings"
)

// WriterConfig holds the collaborators for a bulk write session.
type WriterConfig struct {
	// Settings carries the job configuration: target resource, write
	// operation, batch thresholds and the retry policy.
	Settings *settings.Settings
	// Client performs store requests. When nil, a client is built from
	// Settings.
	Client elastictransport.Interface
	// Reporter receives the final statistics record at close. Nil
	// disables reporting.
	Reporter ProgressReporter
	// Logger is optional; nil disables logging.
	Logger *zap.Logger
	// MeterProvider defaults to the global provider when nil.
	MeterProvider metric.MeterProvider

	// CompressionLevel holds the gzip compression level, from 0 (no
	// compression) to 9. The special value -1 selects the default level.
	CompressionLevel int
}

// Document is one item of a write batch. Body holds the document source
// as bulk-API JSON; for the update operation that means the wrapped
// {"doc": ...} or scripted form.
type Document struct {
	// Index optionally routes the document to an index other than the
	// session's write resource.
	Index string
	// ID is the document id; empty lets the store assign one.
	ID string
	Body io.WriterTo
}

type docRef struct {
	id string
	// pos is the document's position in the batch as added, stable
	// across retry rounds.
	pos int
}

// BulkWriter accumulates documents into bulk requests, flushing when the
// configured byte or entry threshold is crossed. Partial failures are
// retried per the configured policy; documents that remain failed after
// retries surface in a BulkWriteError carrying per-document detail. A
// writer is owned by a single worker and is not safe for concurrent use.
type BulkWriter struct {
	client   elastictransport.Interface
	reporter ProgressReporter
	log      *zap.Logger
	metrics  metrics

	resource        string
	operation       string
	metaPrefix      string
	pipeline        string
	retryOnConflict int

	sizeBytes   int
	sizeEntries int
	retryCount  int
	retryLimit  int
	retryWait   time.Duration
	retryPolicy string
	refresh     bool
	manual      bool

	jsonw      fastjson.Writer
	writer     io.Writer
	gzipw      *gzip.Writer
	buf        bytes.Buffer
	copyBuf    []byte
	itemsAdded int
	refs       []docRef
	batchPos   int

	stats    Stats
	closed   bool
	reported bool
}

// NewBulkWriter validates the configuration and returns a writer ready
// to accept documents.
func NewBulkWriter(cfg WriterConfig) (*BulkWriter, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := cfg.Settings
	if s == nil {
		s = settings.New()
	}

	resource := s.ResourceWrite()
	if resource == "" {
		return nil, &ConfigurationError{Setting: settings.OpenSearchResourceWrite, Reason: "no resource configured"}
	}
	operation := s.Operation()
	switch operation {
	case "index", "create", "update":
	default:
		return nil, &ConfigurationError{
			Setting: settings.OpenSearchWriteOperation,
			Reason:  fmt.Sprintf("unknown write operation %q (expected index, create or update)", operation),
		}
	}
	switch s.BatchWriteRetryPolicy() {
	case "simple", "exponential", "none":
	default:
		return nil, &ConfigurationError{
			Setting: settings.OpenSearchBatchWriteRetryPolicy,
			Reason:  fmt.Sprintf("unknown retry policy %q (expected simple, exponential or none)", s.BatchWriteRetryPolicy()),
		}
	}

	sizeBytes, err := s.BatchSizeBytes()
	if err != nil {
		return nil, err
	}
	sizeEntries, err := s.BatchSizeEntries()
	if err != nil {
		return nil, err
	}
	retryCount, err := s.BatchWriteRetryCount()
	if err != nil {
		return nil, err
	}
	retryLimit, err := s.BatchWriteRetryLimit()
	if err != nil {
		return nil, err
	}
	retryWait, err := s.BatchWriteRetryWait()
	if err != nil {
		return nil, err
	}
	retryOnConflict, err := s.UpdateRetryOnConflict()
	if err != nil {
		return nil, err
	}

	if cfg.CompressionLevel < -1 || cfg.CompressionLevel > 9 {
		return nil, fmt.Errorf(
			"expected CompressionLevel in range [-1,9], got %d",
			cfg.CompressionLevel,
		)
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

	w := &BulkWriter{
		client:          client,
		reporter:        cfg.Reporter,
		log:             log,
		metrics:         ms,
		resource:        resource,
		operation:       operation,
		metaPrefix:      `{"` + operation + `":{`,
		pipeline:        s.IngestPipeline(),
		retryOnConflict: retryOnConflict,
		sizeBytes:       sizeBytes,
		sizeEntries:     sizeEntries,
		retryCount:      retryCount,
		retryLimit:      retryLimit,
		retryWait:       retryWait,
		retryPolicy:     s.BatchWriteRetryPolicy(),
		refresh:         s.BatchRefreshAfterWrite(),
		manual:          s.BatchFlushManual(),
	}
	if cfg.CompressionLevel != gzip.NoCompression {
		w.gzipw, _ = gzip.NewWriterLevel(&w.buf, cfg.CompressionLevel)
		w.writer = w.gzipw
	} else {
		w.writer = &w.buf
	}
	return w, nil
}

// Items returns the number of buffered documents.
func (w *BulkWriter) Items() int {
	return w.itemsAdded
}

// Len returns the number of buffered bytes.
func (w *BulkWriter) Len() int {
	return w.buf.Len()
}

// Stats returns a snapshot of the writer's counters.
func (w *BulkWriter) Stats() Stats {
	return w.stats
}

// Add encodes a document into the buffer, flushing first when either
// batch threshold is already crossed. Thresholds are disabled in manual
// flush mode.
func (w *BulkWriter) Add(ctx context.Context, doc Document) error {
	if w.closed {
		return ErrClosed
	}
	if doc.Body == nil {
		return fmt.Errorf("document @%d has no body", w.batchPos)
	}
	if !w.manual && w.itemsAdded > 0 &&
		(w.itemsAdded >= w.sizeEntries || w.buf.Len() >= w.sizeBytes) {
		if err := w.Flush(ctx); err != nil {
			return err
		}
	}

	w.writeMeta(doc.Index, doc.ID)
	if _, err := doc.Body.WriteTo(w.writer); err != nil {
		return fmt.Errorf("failed to write document body: %w", err)
	}
	if _, err := w.writer.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	w.refs = append(w.refs, docRef{id: doc.ID, pos: w.batchPos})
	w.itemsAdded++
	w.batchPos++
	return nil
}

func (w *BulkWriter) writeMeta(index, documentID string) {
	w.jsonw.RawString(w.metaPrefix)
	first := true
	if documentID != "" {
		w.jsonw.RawString(`"_id":`)
		w.jsonw.String(documentID)
		first = false
	}
	if index != "" {
		if !first {
			w.jsonw.RawByte(',')
		}
		w.jsonw.RawString(`"_index":`)
		w.jsonw.String(index)
		first = false
	}
	if w.operation == "update" && w.retryOnConflict > 0 {
		if !first {
			w.jsonw.RawByte(',')
		}
		w.jsonw.RawString(`"retry_on_conflict":`)
		w.jsonw.Int64(int64(w.retryOnConflict))
	}
	w.jsonw.RawString("}}\n")
	w.writer.Write(w.jsonw.Bytes())
	w.jsonw.Reset()
}

// Flush sends the buffered batch, retrying retryable outcomes until the
// batch succeeds or the attempt limit is reached. Document-level 409s
// are additionally bounded by the per-document conflict retry count.
// On exhaustion the still-failing documents are returned inside a
// BulkWriteError; no document is ever dropped silently.
func (w *BulkWriter) Flush(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	if w.itemsAdded == 0 {
		return nil
	}

	payload, refs, err := w.takeBuffer()
	if err != nil {
		return err
	}

	attempts := w.retryLimit
	if attempts < 1 {
		attempts = 1
	}
	bo := w.newBackOff()
	conflicts := make(map[int]int)
	var permanent []BulkResponseItem

	for attempt := 1; ; attempt++ {
		w.stats.BulkRequests++
		start := time.Now()
		stat, status, err := w.send(ctx, payload)
		w.metrics.flushDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
				return err
			}
			// The whole request was rejected; resend it unchanged.
			if attempt >= attempts {
				for _, ref := range refs {
					item := BulkResponseItem{DocumentID: ref.id, Status: status, Position: ref.pos}
					item.Error.Reason = http.StatusText(status)
					permanent = append(permanent, item)
				}
				return &BulkWriteError{Docs: permanent}
			}
			w.log.Debug("bulk request rejected, retrying",
				zap.Int("status", status),
				zap.Int("attempt", attempt),
			)
			w.stats.BulkRetries++
			w.stats.DocsRetried += int64(len(refs))
			w.metrics.docsRetried.Add(ctx, int64(len(refs)))
			if err := w.wait(ctx, bo); err != nil {
				return err
			}
			continue
		}

		w.stats.DocsWritten += stat.Indexed
		w.stats.BytesWritten += int64(len(payload))
		w.metrics.docsWritten.Add(ctx, stat.Indexed)
		w.metrics.bytesWritten.Add(ctx, int64(len(payload)))

		var retry []BulkResponseItem
		nextConflicts := make(map[int]int)
		for _, item := range stat.FailedDocs {
			ref := refs[item.Position]
			if item.DocumentID == "" {
				item.DocumentID = ref.id
			}
			switch {
			case item.Status == http.StatusTooManyRequests || item.Status == http.StatusServiceUnavailable:
				nextConflicts[len(retry)] = conflicts[item.Position]
				retry = append(retry, item)
			case item.Status == http.StatusConflict && conflicts[item.Position] < w.retryCount:
				nextConflicts[len(retry)] = conflicts[item.Position] + 1
				retry = append(retry, item)
			default:
				item.Position = ref.pos
				permanent = append(permanent, item)
			}
		}

		if len(retry) == 0 {
			break
		}
		if attempt >= attempts {
			for _, item := range retry {
				item.Position = refs[item.Position].pos
				permanent = append(permanent, item)
			}
			break
		}

		payload, refs, err = w.rebuild(payload, refs, retry)
		if err != nil {
			return err
		}
		conflicts = nextConflicts
		w.stats.BulkRetries++
		w.stats.DocsRetried += int64(len(retry))
		w.metrics.docsRetried.Add(ctx, int64(len(retry)))
		if err := w.wait(ctx, bo); err != nil {
			return err
		}
	}

	if w.refresh {
		w.refreshIndex(ctx)
	}
	if len(permanent) > 0 {
		return &BulkWriteError{Docs: permanent}
	}
	return nil
}

// takeBuffer finalizes the buffered payload, snapshots it and resets the
// buffer for the next batch.
func (w *BulkWriter) takeBuffer() ([]byte, []docRef, error) {
	if w.gzipw != nil {
		if err := w.gzipw.Close(); err != nil {
			return nil, nil, fmt.Errorf("failed closing the gzip writer: %w", err)
		}
	}
	if cap(w.copyBuf) < w.buf.Len() {
		w.copyBuf = slices.Grow(w.copyBuf, w.buf.Len()-cap(w.copyBuf))
		w.copyBuf = w.copyBuf[:cap(w.copyBuf)]
	}
	n := copy(w.copyBuf, w.buf.Bytes())
	w.copyBuf = w.copyBuf[:n]

	refs := w.refs
	w.refs = nil
	w.itemsAdded = 0
	w.batchPos = 0
	w.buf.Reset()
	if w.gzipw != nil {
		w.gzipw.Reset(&w.buf)
	}
	return w.copyBuf, refs, nil
}

func (w *BulkWriter) send(ctx context.Context, payload []byte) (bulkResponseStat, int, error) {
	req := esapi.BulkRequest{
		Index:      w.resource,
		Body:       bytes.NewReader(payload),
		Header:     make(http.Header),
		FilterPath: []string{"items.*._index", "items.*._id", "items.*.status", "items.*.error.type", "items.*.error.reason"},
		Pipeline:   w.pipeline,
	}
	if w.gzipw != nil {
		req.Header.Set("Content-Encoding", "gzip")
	}

	var stat bulkResponseStat
	res, err := req.Do(ctx, w.client)
	if err != nil {
		return stat, 0, fmt.Errorf("failed to execute the request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return stat, res.StatusCode, fmt.Errorf("flush failed: %s", res.String())
	}
	if err := jsoniter.NewDecoder(res.Body).Decode(&stat); err != nil {
		return stat, res.StatusCode, fmt.Errorf("error decoding bulk response: %w", err)
	}
	return stat, res.StatusCode, nil
}

// rebuild assembles the next round's payload from the documents still
// retryable, copying their action and source lines out of the previous
// payload.
func (w *BulkWriter) rebuild(payload []byte, refs []docRef, retry []BulkResponseItem) ([]byte, []docRef, error) {
	src := payload
	if w.gzipw != nil {
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress request payload: %w", err)
		}
		src, err = io.ReadAll(gr)
		gr.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress request payload: %w", err)
		}
	}

	nextRefs := make([]docRef, 0, len(retry))
	lastln := 0
	lastIdx := 0
	for _, item := range retry {
		// two lines per document: action then source
		startln := item.Position * 2
		endln := startln + 2
		startIdx := indexnth(src[lastIdx:], startln-lastln, '\n') + 1
		endIdx := indexnth(src[lastIdx:], endln-lastln, '\n') + 1

		w.writer.Write(src[lastIdx:][startIdx:endIdx])

		lastln = endln
		lastIdx += endIdx
		nextRefs = append(nextRefs, docRef{id: refs[item.Position].id, pos: refs[item.Position].pos})
	}

	w.refs = nextRefs
	w.itemsAdded = len(nextRefs)
	return w.takeBuffer()
}

// indexnth returns the index of the nth instance of sep in s.
// It returns -1 if sep is not present in s or nth is 0.
func indexnth(s []byte, nth int, sep rune) int {
	if nth == 0 {
		return -1
	}

	count := 0
	return bytes.IndexFunc(s, func(r rune) bool {
		if r == sep {
			count++
		}
		return nth == count
	})
}

func (w *BulkWriter) newBackOff() backoff.BackOff {
	switch w.retryPolicy {
	case "exponential":
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = w.retryWait
		bo.MaxElapsedTime = 0
		return bo
	case "none":
		return &backoff.ZeroBackOff{}
	default:
		return backoff.NewConstantBackOff(w.retryWait)
	}
}

func (w *BulkWriter) wait(ctx context.Context, bo backoff.BackOff) error {
	d := bo.NextBackOff()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshIndex makes just-written documents visible to search. Failures
// are logged, not returned; the write itself already succeeded.
func (w *BulkWriter) refreshIndex(ctx context.Context) {
	res, err := (esapi.IndicesRefreshRequest{
		Index: []string{w.resource},
	}).Do(ctx, w.client)
	if err != nil {
		w.log.Warn("failed refreshing index after write",
			zap.String("resource", w.resource),
			zap.Error(err),
		)
		return
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

// Close flushes any buffered documents, reports the final statistics and
// marks the writer closed. Safe to call more than once.
func (w *BulkWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	err := w.Flush(ctx)
	w.closed = true
	if w.reporter != nil && !w.reported {
		w.reporter.Report(w.stats)
		w.reported = true
	}
	return err
}
