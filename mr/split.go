// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

// Package mr adapts partition planning and reading to a split-based
// execution model: splits carry partition descriptors across process
// boundaries and record readers stream them on the worker side.
package mr

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/vchrombie/opensearch-hadoop/rest"
)

// Split wraps one partition definition as a unit of scheduled work. A
// split never merges or re-partitions the definition it carries.
type Split struct {
	partition rest.PartitionDefinition
}

// NewSplit returns a split carrying the given partition.
func NewSplit(partition rest.PartitionDefinition) *Split {
	return &Split{partition: partition}
}

// Partition returns the wrapped partition definition.
func (s *Split) Partition() rest.PartitionDefinition {
	return s.partition
}

// Locations returns the partition's hosts verbatim, as scheduler
// locality hints.
func (s *Split) Locations() []string {
	return s.partition.HostNames
}

// Length returns a nominal non-zero length. The true document count is
// not known at planning time and schedulers only require the value to be
// positive.
func (s *Split) Length() int64 {
	return 1
}

func (s *Split) String() string {
	return fmt.Sprintf("Split[%s]", s.partition)
}

// MarshalBinary serializes the split for transport to a worker. The
// round trip through UnmarshalBinary is lossless.
func (s *Split) MarshalBinary() ([]byte, error) {
	return jsoniter.Marshal(s.partition)
}

// UnmarshalBinary restores a split serialized by MarshalBinary.
func (s *Split) UnmarshalBinary(data []byte) error {
	return jsoniter.Unmarshal(data, &s.partition)
}

// FileSplit decorates a split with a synthetic path, for hosts that
// schedule work by file location.
type FileSplit struct {
	Split
	path string
}

// NewFileSplit returns a file-shaped split for the given partition.
func NewFileSplit(path string, partition rest.PartitionDefinition) *FileSplit {
	return &FileSplit{Split: Split{partition: partition}, path: path}
}

// Path returns the synthetic path the split was created with.
func (f *FileSplit) Path() string {
	return f.path
}

type fileSplitWire struct {
	Path      string                   `json:"path"`
	Partition rest.PartitionDefinition `json:"partition"`
}

func (f *FileSplit) MarshalBinary() ([]byte, error) {
	return jsoniter.Marshal(fileSplitWire{Path: f.path, Partition: f.partition})
}

func (f *FileSplit) UnmarshalBinary(data []byte) error {
	var wire fileSplitWire
	if err := jsoniter.Unmarshal(data, &wire); err != nil {
		return err
	}
	f.path = wire.Path
	f.partition = wire.Partition
	return nil
}
