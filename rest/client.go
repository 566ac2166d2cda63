// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/vchrombie/opensearch-hadoop/settings"
)

// NewClient builds a store client from configuration: bootstrap nodes,
// port pinning, TLS scheme, path prefix and the resolved authentication
// method.
func NewClient(s *settings.Settings) (*elasticsearch.Client, error) {
	port, err := s.Port()
	if err != nil {
		return nil, err
	}
	retries, err := s.HTTPRetries()
	if err != nil {
		return nil, err
	}
	timeout, err := s.HTTPTimeout()
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if s.NetworkSSLEnabled() {
		scheme = "https"
	}
	prefix := s.NodesPathPrefix()
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	var addresses []string
	for _, node := range strings.Split(s.Nodes(), ",") {
		node = strings.TrimSpace(node)
		if node == "" {
			continue
		}
		if !strings.Contains(node, "://") {
			if !strings.Contains(node, ":") {
				node = fmt.Sprintf("%s:%d", node, port)
			}
			node = scheme + "://" + node
		}
		addresses = append(addresses, node+prefix)
	}
	if len(addresses) == 0 {
		return nil, &ConfigurationError{Setting: settings.OpenSearchNodes, Reason: "no nodes configured"}
	}

	cfg := elasticsearch.Config{
		Addresses:  addresses,
		MaxRetries: retries,
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
	}

	method, err := ResolveAuthenticationMethod(s)
	if err != nil {
		return nil, err
	}
	if method == AuthBasic {
		user, err := NewUserProvider(s).User(context.Background())
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, &ConfigurationError{
				Setting: settings.OpenSearchNetHTTPAuthUser,
				Reason:  "basic authentication requested but no user configured",
			}
		}
		cfg.Username = user.Name
		cfg.Password = user.Password
	}

	return elasticsearch.NewClient(cfg)
}
