// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package mr

import (
	"context"
	"errors"
	"io"

	"github.com/vchrombie/opensearch-hadoop/rest"
)

// RecordReader streams the documents of one split through an
// advance/current cursor.
type RecordReader struct {
	reader  *rest.ScrollReader
	current rest.Record
	err     error
}

// OpenSplit opens a record reader over the given split. The Partition
// field of cfg is overwritten with the split's partition.
func OpenSplit(split *Split, cfg rest.ReaderConfig) (*RecordReader, error) {
	cfg.Partition = split.Partition()
	reader, err := rest.NewScrollReader(cfg)
	if err != nil {
		return nil, err
	}
	return &RecordReader{reader: reader}, nil
}

// Advance moves the cursor to the next record, returning false when the
// split is drained or an error occurred. Err distinguishes the two.
func (r *RecordReader) Advance(ctx context.Context) bool {
	rec, err := r.reader.Next(ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return false
	}
	r.current = rec
	return true
}

// Current returns the record the cursor is on. Only valid after a true
// Advance.
func (r *RecordReader) Current() rest.Record {
	return r.current
}

// Err returns the terminal error, if any. Exhaustion is not an error.
func (r *RecordReader) Err() error {
	return r.err
}

// Progress reports the fraction of the split consumed, in [0, 1].
func (r *RecordReader) Progress() float32 {
	total := r.reader.Total()
	if total <= 0 {
		return 0
	}
	p := float32(r.reader.Read()) / float32(total)
	if p > 1 {
		p = 1
	}
	return p
}

// Stats returns the underlying reader's counters.
func (r *RecordReader) Stats() rest.Stats {
	return r.reader.Stats()
}

// Close releases the underlying reader. Safe to call more than once.
func (r *RecordReader) Close() error {
	return r.reader.Close()
}

// StreamReader exposes the split through the legacy next(key, value)
// contract, where the document id is the key and the decoded source the
// value.
type StreamReader struct {
	reader *rest.ScrollReader
}

// OpenSplitStream opens a legacy stream reader over the given split.
func OpenSplitStream(split *Split, cfg rest.ReaderConfig) (*StreamReader, error) {
	cfg.Partition = split.Partition()
	reader, err := rest.NewScrollReader(cfg)
	if err != nil {
		return nil, err
	}
	return &StreamReader{reader: reader}, nil
}

// Next fills key and value with the next document, returning false on
// exhaustion and an error on failure.
func (r *StreamReader) Next(ctx context.Context, key *string, value *any) (bool, error) {
	rec, err := r.reader.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	if key != nil {
		*key = rec.ID
	}
	if value != nil {
		*value = rec.Value
	}
	return true, nil
}

// Progress reports the fraction of the split consumed, in [0, 1].
func (r *StreamReader) Progress() float32 {
	total := r.reader.Total()
	if total <= 0 {
		return 0
	}
	p := float32(r.reader.Read()) / float32(total)
	if p > 1 {
		p = 1
	}
	return p
}

// Close releases the underlying reader. Safe to call more than once.
func (r *StreamReader) Close() error {
	return r.reader.Close()
}
