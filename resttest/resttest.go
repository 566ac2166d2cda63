// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

// Package resttest provides an in-process store mock for exercising the
// planner, reader and writer against canned cluster state.
package resttest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"go.elastic.co/apm/module/apmelasticsearch/v2"

	"github.com/elastic/go-elasticsearch/v8"
)

// Hit is one canned search hit.
type Hit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// Cluster describes the canned state served by the mock. Zero values
// give a healthy single-shard cluster with no documents.
type Cluster struct {
	// Index is the resource the mock knows about. Requests naming any
	// other resource are answered with 404.
	Index string
	// ShardCount is the number of primary shards; defaults to 1.
	ShardCount int
	// Health is the cluster health status; defaults to "green".
	Health string
	// Missing makes the existence check report the index absent.
	Missing bool
	// ShardDocs holds per-shard document counts served by _count.
	ShardDocs map[int]int64
	// Pages holds the scroll pages served in order: the search request
	// returns Pages[0], each scroll continuation the next page.
	Pages [][]Hit
	// Total overrides hits.total; defaults to the sum of page sizes.
	Total int64
	// SearchDelay is slept before answering search and scroll requests.
	SearchDelay time.Duration
	// BulkHandler overrides the default all-created bulk response.
	BulkHandler http.HandlerFunc

	mu            sync.Mutex
	addr          string
	searchCount   int
	scrollCount   int
	clearCount    int
	bulkCount     int
	refreshCount  int
	countRequests []int
}

// StartServer starts an httptest server around the cluster mock. The
// server is closed via t.Cleanup.
func (c *Cluster) StartServer(t testing.TB) *httptest.Server {
	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)
	c.mu.Lock()
	c.addr = strings.TrimPrefix(srv.URL, "http://")
	c.mu.Unlock()
	return srv
}

// Client starts the mock server and returns a store client pointed at it.
func (c *Cluster) Client(t testing.TB) *elasticsearch.Client {
	srv := c.StartServer(t)
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
		Transport:    apmelasticsearch.WrapRoundTripper(http.DefaultTransport),
	})
	require.NoError(t, err)
	return client
}

// Addr returns the host:port the mock is listening on.
func (c *Cluster) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addr == "" {
		return "127.0.0.1:9200"
	}
	return c.addr
}

// SearchRequests returns the number of search requests served.
func (c *Cluster) SearchRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchCount
}

// ScrollRequests returns the number of scroll continuations served.
func (c *Cluster) ScrollRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scrollCount
}

// ClearScrollRequests returns the number of scroll deletions served.
func (c *Cluster) ClearScrollRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearCount
}

// BulkRequests returns the number of bulk requests served.
func (c *Cluster) BulkRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulkCount
}

// RefreshRequests returns the number of refresh requests served.
func (c *Cluster) RefreshRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshCount
}

// CountedShards returns the shards probed via _count, in request order.
func (c *Cluster) CountedShards() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.countRequests))
	copy(out, c.countRequests)
	return out
}

func (c *Cluster) shardCount() int {
	if c.ShardCount <= 0 {
		return 1
	}
	return c.ShardCount
}

func (c *Cluster) health() string {
	if c.Health == "" {
		return "green"
	}
	return c.Health
}

func (c *Cluster) total() int64 {
	if c.Total > 0 {
		return c.Total
	}
	var n int64
	for _, page := range c.Pages {
		n += int64(len(page))
	}
	return n
}

// Handler returns the mock's HTTP handler. Every response carries the
// product header the client library insists on.
func (c *Cluster) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"cluster_name": "resttest",
			"cluster_uuid": "resttest-uuid",
			"version":      map[string]any{"number": "2.11.0"},
		})
	})

	mux.HandleFunc("HEAD /{index}", func(w http.ResponseWriter, r *http.Request) {
		if c.Missing || r.PathValue("index") != c.Index {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /_cluster/health/{index}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": c.health()})
	})

	mux.HandleFunc("/{index}/_search_shards", func(w http.ResponseWriter, r *http.Request) {
		shards := make([]any, 0, c.shardCount())
		for i := 0; i < c.shardCount(); i++ {
			shards = append(shards, []any{map[string]any{
				"state":   "STARTED",
				"primary": true,
				"node":    "dn0",
				"shard":   i,
				"index":   c.Index,
			}})
		}
		writeJSON(w, map[string]any{
			"nodes": map[string]any{
				"dn0": map[string]any{
					"name":              "dn0",
					"transport_address": c.Addr(),
				},
			},
			"shards": shards,
		})
	})

	mux.HandleFunc("/{index}/_count", func(w http.ResponseWriter, r *http.Request) {
		shard := -1
		if pref := r.URL.Query().Get("preference"); strings.HasPrefix(pref, "_shards:") {
			shard, _ = strconv.Atoi(strings.TrimPrefix(pref, "_shards:"))
		}
		c.mu.Lock()
		c.countRequests = append(c.countRequests, shard)
		c.mu.Unlock()
		writeJSON(w, map[string]any{"count": c.ShardDocs[shard]})
	})

	mux.HandleFunc("POST /{index}/_search", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(c.SearchDelay)
		c.mu.Lock()
		c.searchCount++
		c.mu.Unlock()
		c.writePage(w, 0)
	})

	// the client sends scroll continuations as GET or POST depending on
	// whether a body is attached; deletions are method-routed below
	mux.HandleFunc("/_search/scroll", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(c.SearchDelay)
		c.mu.Lock()
		c.scrollCount++
		c.mu.Unlock()
		id := r.URL.Query().Get("scroll_id")
		if id == "" {
			var body struct {
				ScrollID string `json:"scroll_id"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			id = body.ScrollID
		}
		page, _ := strconv.Atoi(strings.TrimPrefix(id, "scroll-"))
		c.writePage(w, page)
	})

	clearScroll := func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.clearCount++
		c.mu.Unlock()
		writeJSON(w, map[string]any{"succeeded": true})
	}
	mux.HandleFunc("DELETE /_search/scroll", clearScroll)
	mux.HandleFunc("DELETE /_search/scroll/{ids}", clearScroll)

	bulk := func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.bulkCount++
		c.mu.Unlock()
		if c.BulkHandler != nil {
			c.BulkHandler(w, r)
			return
		}
		_, _, resp := DecodeBulkRequest(r)
		writeJSON(w, resp)
	}
	mux.HandleFunc("POST /_bulk", bulk)
	mux.HandleFunc("POST /{index}/_bulk", bulk)

	refresh := func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.refreshCount++
		c.mu.Unlock()
		writeJSON(w, map[string]any{"_shards": map[string]any{"failed": 0}})
	}
	mux.HandleFunc("POST /_refresh", refresh)
	mux.HandleFunc("POST /{index}/_refresh", refresh)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		mux.ServeHTTP(w, r)
	})
}

func (c *Cluster) writePage(w http.ResponseWriter, page int) {
	var hits []Hit
	if page < len(c.Pages) {
		hits = c.Pages[page]
	}
	if hits == nil {
		hits = []Hit{}
	}
	writeJSON(w, map[string]any{
		"_scroll_id": fmt.Sprintf("scroll-%d", page+1),
		"hits": map[string]any{
			"total": map[string]any{"value": c.total()},
			"hits":  hits,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}

// BulkResponse mirrors the wire shape of a _bulk response.
type BulkResponse struct {
	Items []map[string]BulkResponseItem `json:"items"`
}

// BulkResponseItem is one item of a bulk response.
type BulkResponseItem struct {
	Index      string     `json:"_index,omitempty"`
	DocumentID string     `json:"_id,omitempty"`
	Status     int        `json:"status"`
	Error      *BulkError `json:"error,omitempty"`
}

// BulkError is the error detail of a failed bulk item.
type BulkError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// DecodeBulkRequest decodes a /_bulk request's body, returning the action
// metadata lines, the document sources and an all-created response.
func DecodeBulkRequest(r *http.Request) ([]map[string]any, [][]byte, BulkResponse) {
	body := r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(body)
		if err != nil {
			panic(err)
		}
		defer gr.Close()
		body = gr
	}

	scanner := bufio.NewScanner(body)
	var actions []map[string]any
	var docs [][]byte
	var resp BulkResponse
	for scanner.Scan() {
		action := make(map[string]map[string]any)
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			panic(err)
		}
		var actionType string
		var meta map[string]any
		for actionType, meta = range action {
		}
		if !scanner.Scan() {
			panic("expected source")
		}

		doc := append([]byte{}, scanner.Bytes()...)
		if !json.Valid(doc) {
			panic(fmt.Errorf("invalid JSON: %s", doc))
		}
		docs = append(docs, doc)
		actions = append(actions, map[string]any{actionType: meta})

		item := BulkResponseItem{Status: http.StatusCreated}
		if id, ok := meta["_id"].(string); ok {
			item.DocumentID = id
		}
		resp.Items = append(resp.Items, map[string]BulkResponseItem{actionType: item})
	}
	return actions, docs, resp
}
