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
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vchrombie/opensearch-hadoop/settings"
)

// PartitionDefinition identifies one shard-read unit. It is created once
// at planning time and never mutated; each definition is owned by exactly
// one split for its lifetime.
type PartitionDefinition struct {
	// Resource is the index or alias this partition reads.
	Resource string `json:"resource"`
	// ShardID is the shard this partition maps to. Subdivided shards
	// produce several definitions sharing a ShardID, disambiguated by
	// the slice overlay inside SerializedSettings.
	ShardID int `json:"shard"`
	// HostNames lists candidate hosts for the shard's copies, in
	// preference order. Exposed verbatim as split locality hints.
	HostNames []string `json:"hosts"`
	// SerializedSettings is the configuration overlay for this
	// partition: host pinned to the chosen node plus any
	// partition-specific overrides, in settings blob form.
	SerializedSettings string `json:"settings"`
}

func (p PartitionDefinition) String() string {
	return fmt.Sprintf("PartitionDefinition[resource=%s shard=%d hosts=%v]", p.Resource, p.ShardID, p.HostNames)
}

// PlannerConfig holds the collaborators used for partition planning.
type PlannerConfig struct {
	// Client performs store requests. When nil, a client is built from
	// Settings.
	Client elastictransport.Interface
	// Settings describes the target resource, the optional query, the
	// shard preference policy and the optional per-partition document
	// bound.
	Settings *settings.Settings
	// Logger is optional; nil disables logging.
	Logger *zap.Logger
}

type searchShardsResponse struct {
	Nodes map[string]struct {
		Name             string `json:"name"`
		TransportAddress string `json:"transport_address"`
	} `json:"nodes"`
	Shards [][]struct {
		State   string `json:"state"`
		Primary bool   `json:"primary"`
		Node    string `json:"node"`
		Shard   int    `json:"shard"`
		Index   string `json:"index"`
	} `json:"shards"`
}

type clusterHealthResponse struct {
	Status string `json:"status"`
}

type clusterInfoResponse struct {
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     struct {
		Number string `json:"number"`
	} `json:"version"`
}

// FindPartitions turns the configured resource into an ordered set of
// partition definitions, one per shard copy set selected by the shard
// preference policy, subdividing shards that exceed the configured
// per-partition document bound.
func FindPartitions(ctx context.Context, cfg PlannerConfig) ([]PartitionDefinition, error) {
	s := cfg.Settings
	if s == nil {
		s = settings.New()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		c, err := NewClient(s)
		if err != nil {
			return nil, err
		}
		client = c
	}

	resource := s.ResourceRead()
	if resource == "" {
		return nil, &ConfigurationError{Setting: settings.OpenSearchResourceRead, Reason: "no resource configured"}
	}

	exists, err := resourceExists(ctx, client, resource)
	if err != nil {
		return nil, err
	}
	if !exists {
		if s.IndexReadMissingAsEmpty() {
			log.Info("resource missing, reading as empty", zap.String("resource", resource))
			return nil, nil
		}
		return nil, &NotFoundError{Resource: resource}
	}

	var (
		health clusterHealthResponse
		shards searchShardsResponse
		info   clusterInfoResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := (esapi.ClusterHealthRequest{Index: []string{resource}}).Do(gctx, client)
		if err != nil {
			return fmt.Errorf("cluster health for [%s]: %w", resource, err)
		}
		defer res.Body.Close()
		return jsoniter.NewDecoder(res.Body).Decode(&health)
	})
	g.Go(func() error {
		res, err := (esapi.SearchShardsRequest{Index: []string{resource}}).Do(gctx, client)
		if err != nil {
			return fmt.Errorf("search shards for [%s]: %w", resource, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("search shards for [%s]: %s", resource, res.String())
		}
		return jsoniter.NewDecoder(res.Body).Decode(&shards)
	})
	g.Go(func() error {
		res, err := (esapi.InfoRequest{}).Do(gctx, client)
		if err != nil {
			return fmt.Errorf("cluster info: %w", err)
		}
		defer res.Body.Close()
		return jsoniter.NewDecoder(res.Body).Decode(&info)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if health.Status == "red" && !s.IndexReadAllowRedStatus() {
		return nil, &ClusterHealthError{Resource: resource, Status: health.Status}
	}

	hostsPerShard, err := selectShardHosts(s.ShardPreference(), shards)
	if err != nil {
		return nil, err
	}

	base := s.Copy()
	if info.Version.Number != "" {
		base.Set(settings.InternalVersion, info.Version.Number)
	}
	if info.ClusterName != "" {
		base.Set(settings.InternalClusterName, info.ClusterName)
	}
	if info.ClusterUUID != "" {
		base.Set(settings.InternalClusterUUID, info.ClusterUUID)
	}

	maxDocs, err := s.MaxDocsPerPartition()
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int64, len(hostsPerShard))
	if maxDocs > 0 {
		cg, cctx := errgroup.WithContext(ctx)
		cg.SetLimit(4)
		results := make([]int64, len(shards.Shards))
		for i := range shards.Shards {
			if len(shards.Shards[i]) == 0 {
				continue
			}
			shardID := shards.Shards[i][0].Shard
			idx := i
			cg.Go(func() error {
				n, err := countShardDocs(cctx, client, resource, shardID, s.Query())
				if err != nil {
					return err
				}
				results[idx] = n
				return nil
			})
		}
		if err := cg.Wait(); err != nil {
			return nil, err
		}
		for i := range shards.Shards {
			if len(shards.Shards[i]) > 0 {
				counts[shards.Shards[i][0].Shard] = results[i]
			}
		}
	}

	shardIDs := make([]int, 0, len(hostsPerShard))
	for id := range hostsPerShard {
		shardIDs = append(shardIDs, id)
	}
	sort.Ints(shardIDs)

	var partitions []PartitionDefinition
	for _, shardID := range shardIDs {
		hosts := hostsPerShard[shardID]
		slices := 1
		if maxDocs > 0 {
			if count := counts[shardID]; count > int64(maxDocs) {
				slices = int((count + int64(maxDocs) - 1) / int64(maxDocs))
			}
		}
		for slice := 0; slice < slices; slice++ {
			overlay := base.Copy()
			if len(hosts) > 0 {
				overlay.Set(settings.OpenSearchNodes, strings.Join(hosts, ","))
			}
			if slices > 1 {
				overlay.Set(settings.OpenSearchInputSliceID, strconv.Itoa(slice))
				overlay.Set(settings.OpenSearchInputSliceMax, strconv.Itoa(slices))
			}
			partitions = append(partitions, PartitionDefinition{
				Resource:           resource,
				ShardID:            shardID,
				HostNames:          hosts,
				SerializedSettings: overlay.Save(),
			})
		}
	}

	log.Info("created partitions",
		zap.Int("partitions", len(partitions)),
		zap.String("resource", resource),
		zap.String("preference", s.ShardPreference()),
	)
	return partitions, nil
}

func resourceExists(ctx context.Context, client elastictransport.Interface, resource string) (bool, error) {
	res, err := (esapi.IndicesExistsRequest{Index: []string{resource}}).Do(ctx, client)
	if err != nil {
		return false, fmt.Errorf("checking resource [%s]: %w", resource, err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("checking resource [%s]: %s", resource, res.String())
	}
}

// selectShardHosts applies the shard preference policy, returning
// candidate hosts per shard id in preference order.
func selectShardHosts(preference string, shards searchShardsResponse) (map[int][]string, error) {
	local, _ := os.Hostname()
	out := make(map[int][]string, len(shards.Shards))
	for _, group := range shards.Shards {
		var primary string
		var replicas []string
		shardID := -1
		for _, sc := range group {
			if sc.State != "STARTED" && sc.State != "RELOCATING" {
				continue
			}
			shardID = sc.Shard
			node, ok := shards.Nodes[sc.Node]
			if !ok {
				continue
			}
			if sc.Primary {
				primary = node.TransportAddress
			} else {
				replicas = append(replicas, node.TransportAddress)
			}
		}
		if shardID < 0 {
			continue
		}
		var hosts []string
		switch strings.TrimPrefix(strings.ToLower(preference), "_") {
		case "primary":
			if primary != "" {
				hosts = []string{primary}
			}
		case "any", "":
			if primary != "" {
				hosts = append(hosts, primary)
			}
			hosts = append(hosts, replicas...)
		case "local":
			if primary != "" {
				hosts = append(hosts, primary)
			}
			hosts = append(hosts, replicas...)
			for i, h := range hosts {
				if local != "" && strings.Contains(h, local) {
					hosts[0], hosts[i] = hosts[i], hosts[0]
					break
				}
			}
		default:
			return nil, &ConfigurationError{
				Setting: settings.OpenSearchShardPreference,
				Reason:  fmt.Sprintf("unknown shard preference %q (expected primary, any or local)", preference),
			}
		}
		out[shardID] = hosts
	}
	return out, nil
}

func countShardDocs(ctx context.Context, client elastictransport.Interface, resource string, shard int, query string) (int64, error) {
	var body io.Reader
	if query != "" {
		b, err := queryBody(query, -1, 0)
		if err != nil {
			return 0, err
		}
		body = b
	}
	res, err := (esapi.CountRequest{
		Index:      []string{resource},
		Body:       body,
		Preference: "_shards:" + strconv.Itoa(shard),
	}).Do(ctx, client)
	if err != nil {
		return 0, fmt.Errorf("counting docs in shard %d of [%s]: %w", shard, resource, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("counting docs in shard %d of [%s]: %s", shard, resource, res.String())
	}
	var out struct {
		Count int64 `json:"count"`
	}
	if err := jsoniter.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// queryBody renders the configured query into a search body. The query
// may be a full DSL object (starting with '{'), a "?q=..." URI fragment,
// or a bare query-string expression; an empty query matches everything.
// A non-negative sliceID adds the sliced-scroll clause.
func queryBody(query string, sliceID, sliceMax int) (io.Reader, error) {
	body := make(map[string]any, 2)
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		body["query"] = map[string]any{"match_all": map[string]any{}}
	case strings.HasPrefix(query, "{"):
		var dsl map[string]any
		if err := jsoniter.UnmarshalFromString(query, &dsl); err != nil {
			return nil, &ConfigurationError{Setting: settings.OpenSearchQuery, Reason: fmt.Sprintf("invalid query DSL: %v", err)}
		}
		if q, ok := dsl["query"]; ok {
			body["query"] = q
		} else {
			body["query"] = dsl
		}
	default:
		qs := strings.TrimPrefix(query, "?")
		qs = strings.TrimPrefix(qs, "q=")
		body["query"] = map[string]any{"query_string": map[string]any{"query": qs}}
	}
	if sliceID >= 0 && sliceMax > 1 {
		body["slice"] = map[string]any{"id": sliceID, "max": sliceMax}
	}
	raw, err := jsoniter.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}
