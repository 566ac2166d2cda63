// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	docsRead      metric.Int64Counter
	bytesRead     metric.Int64Counter
	scrollsRead   metric.Int64Counter
	docsWritten   metric.Int64Counter
	docsRetried   metric.Int64Counter
	bytesWritten  metric.Int64Counter
	flushDuration metric.Float64Histogram
}

type counterMetric struct {
	name        string
	description string
	unit        string
	p           *metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("github.com/vchrombie/opensearch-hadoop/rest")
	ms := metrics{}
	counters := []counterMetric{
		{
			name:        "opensearch.docs.read",
			description: "The number of documents read from scroll responses.",
			p:           &ms.docsRead,
		},
		{
			name:        "opensearch.bytes.read",
			description: "The number of document source bytes read.",
			unit:        "by",
			p:           &ms.bytesRead,
		},
		{
			name:        "opensearch.scrolls.count",
			description: "The number of scroll round trips performed.",
			p:           &ms.scrollsRead,
		},
		{
			name:        "opensearch.docs.written",
			description: "The number of documents accepted by bulk requests.",
			p:           &ms.docsWritten,
		},
		{
			name:        "opensearch.docs.retried",
			description: "The number of documents re-enqueued after a retryable bulk outcome.",
			p:           &ms.docsRetried,
		},
		{
			name:        "opensearch.bytes.written",
			description: "The total number of bytes written to bulk request bodies.",
			unit:        "by",
			p:           &ms.bytesWritten,
		},
	}
	for _, c := range counters {
		if err := newInt64Counter(meter, c); err != nil {
			return ms, err
		}
	}

	h, err := meter.Float64Histogram(
		"opensearch.flushed.latency",
		metric.WithUnit("s"),
		metric.WithDescription("The amount of time a bulk request took, in seconds."),
	)
	if err != nil {
		return ms, fmt.Errorf("failed creating opensearch.flushed.latency metric: %w", err)
	}
	ms.flushDuration = h
	return ms, nil
}

func newInt64Counter(meter metric.Meter, c counterMetric) error {
	unit := c.unit
	if unit == "" {
		unit = "1"
	}
	m, err := meter.Int64Counter(
		c.name,
		metric.WithUnit(unit),
		metric.WithDescription(c.description),
	)
	if err != nil {
		return fmt.Errorf("failed creating %s metric: %w", c.name, err)
	}
	*c.p = m
	return nil
}
