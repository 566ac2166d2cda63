// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// heartbeat signals liveness to the host scheduler while a blocking page
// fetch is in flight. A single store round trip can legitimately take
// longer than the scheduler's stall timeout, so the signal must be
// independent of actual I/O progress.
//
// The timer goroutine and the fetch loop share no state beyond the
// stopped flag and the stop channel.
type heartbeat struct {
	interval time.Duration
	status   string
	reporter ProgressReporter
	log      *zap.Logger

	started atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// newHeartbeat derives the tick interval from the configured lead: one
// second short of the lead when the lead allows it, half the lead
// otherwise. Either way ticks are strictly more frequent than the lead.
func newHeartbeat(lead time.Duration, status string, reporter ProgressReporter, log *zap.Logger) *heartbeat {
	interval := lead / 2
	if lead > 2*time.Second {
		interval = lead - time.Second
	}
	return &heartbeat{
		interval: interval,
		status:   status,
		reporter: reporter,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (h *heartbeat) Start() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	h.log.Debug("starting heartbeat", zap.Duration("interval", h.interval))
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				h.reporter.Progress(h.status)
			}
		}
	}()
}

// Stop halts the heartbeat synchronously: once it returns, no further
// tick is delivered. Safe to call more than once, and before Start.
func (h *heartbeat) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}
	close(h.stop)
	if h.started.Load() {
		<-h.done
	}
}
