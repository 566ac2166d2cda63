// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingReporter struct {
	mu      sync.Mutex
	ticks   []string
	reports []Stats
}

func (r *recordingReporter) Progress(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, status)
}

func (r *recordingReporter) Report(stats Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, stats)
}

func (r *recordingReporter) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func TestHeartbeatInterval(t *testing.T) {
	reporter := &recordingReporter{}
	// long leads tick one second early, short leads at half the lead
	assert.Equal(t, 9*time.Second, newHeartbeat(10*time.Second, "s", reporter, zap.NewNop()).interval)
	assert.Equal(t, 4*time.Second, newHeartbeat(5*time.Second, "s", reporter, zap.NewNop()).interval)
	assert.Equal(t, time.Second, newHeartbeat(2*time.Second, "s", reporter, zap.NewNop()).interval)
	assert.Equal(t, 50*time.Millisecond, newHeartbeat(100*time.Millisecond, "s", reporter, zap.NewNop()).interval)
}

func TestHeartbeatTicks(t *testing.T) {
	reporter := &recordingReporter{}
	hb := newHeartbeat(100*time.Millisecond, "reading logs", reporter, zap.NewNop())
	hb.Start()
	defer hb.Stop()

	require.Eventually(t, func() bool {
		return reporter.tickCount() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	reporter.mu.Lock()
	status := reporter.ticks[0]
	reporter.mu.Unlock()
	assert.Equal(t, "reading logs", status)
}

func TestHeartbeatStopIsSynchronous(t *testing.T) {
	reporter := &recordingReporter{}
	hb := newHeartbeat(20*time.Millisecond, "s", reporter, zap.NewNop())
	hb.Start()

	require.Eventually(t, func() bool {
		return reporter.tickCount() >= 1
	}, 2*time.Second, time.Millisecond)

	hb.Stop()
	seen := reporter.tickCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, seen, reporter.tickCount())
}

func TestHeartbeatStopIdempotent(t *testing.T) {
	reporter := &recordingReporter{}
	hb := newHeartbeat(10*time.Millisecond, "s", reporter, zap.NewNop())
	hb.Start()
	hb.Stop()
	hb.Stop()
}

func TestHeartbeatStopBeforeStart(t *testing.T) {
	reporter := &recordingReporter{}
	hb := newHeartbeat(10*time.Millisecond, "s", reporter, zap.NewNop())
	// must not block waiting for a goroutine that never ran
	hb.Stop()
	assert.Zero(t, reporter.tickCount())
}
