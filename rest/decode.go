// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/vchrombie/opensearch-hadoop/settings"
)

// Record is one document delivered by a partition read.
type Record struct {
	ID    string
	Value any
}

// Decoder materializes a raw document source into a record value. It is
// selected once at reader construction; there is no per-record dispatch
// beyond this single capability.
type Decoder interface {
	Decode(id string, source []byte) (Record, error)
}

// NewDecoder picks the decode strategy configured for s: raw JSON
// passthrough when output-as-JSON is set, generic maps otherwise.
func NewDecoder(s *settings.Settings) Decoder {
	if s.OutputAsJSON() {
		return JSONDecoder{}
	}
	return MapDecoder{}
}

// JSONDecoder passes document sources through as JSON strings.
type JSONDecoder struct{}

func (JSONDecoder) Decode(id string, source []byte) (Record, error) {
	return Record{ID: id, Value: string(source)}, nil
}

// MapDecoder decodes document sources into generic maps.
type MapDecoder struct{}

func (MapDecoder) Decode(id string, source []byte) (Record, error) {
	var value map[string]any
	if err := jsoniter.Unmarshal(source, &value); err != nil {
		return Record{}, fmt.Errorf("decoding document [%s]: %w", id, err)
	}
	return Record{ID: id, Value: value}, nil
}
