// Copyright 2026 FCCU Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watchdog supervises the goroutine that periodically calls
// Drain: the caller registers a heartbeat once and reports it on every
// scheduler tick; the watchdog panics if no report arrives within the
// timeout.
// This is the external scheduler's supervision, not the scheduler itself;
// Drain remains a plain synchronous method the caller invokes on its own
// cadence.
package watchdog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeartbeatStatus is the status reported for a registered heartbeat.
type HeartbeatStatus int

const (
	StatusOK HeartbeatStatus = iota
	StatusWarning
	StatusError
)

type heartbeat struct {
	id                   uuid.UUID
	lastStatus           atomic.Int32
	lastBeatUnix         atomic.Int64
	warningCount         atomic.Uint32
	warningsUntilFailure uint64
	timeoutSeconds       uint64
	received             atomic.Uint64
}

// Watchdog tracks registered heartbeats and panics the process if one goes
// missing or reports too many consecutive warnings.
type Watchdog struct {
	mu         sync.Mutex
	heartbeats map[string]*heartbeat
	badBeat    chan uuid.UUID
	ctx        context.Context
	ticker     *time.Ticker
	id         uuid.UUID
	logger     *zap.SugaredLogger
}

// New creates a Watchdog. Call Start in its own goroutine.
func New(ctx context.Context, ticker *time.Ticker, logger *zap.SugaredLogger) *Watchdog {
	return &Watchdog{
		heartbeats: make(map[string]*heartbeat),
		badBeat:    make(chan uuid.UUID, 16),
		ctx:        ctx,
		ticker:     ticker,
		id:         uuid.New(),
		logger:     logger,
	}
}

// Start runs the supervision loop until ctx is cancelled. It panics on an
// overdue or errored heartbeat.
func (w *Watchdog) Start() {
	for {
		select {
		case id := <-w.badBeat:
			name := w.nameFor(id)
			panic(fmt.Sprintf("watchdog[%s]: heartbeat errored: %s (%s)", w.id, name, id))
		case <-w.ticker.C:
			if name, hb, overdue := w.findOverdue(); hb != nil {
				panic(fmt.Sprintf("watchdog[%s]: heartbeat overdue: %s (%s) %d beats received, %ds overdue",
					w.id, name, hb.id, hb.received.Load(), overdue))
			}
		case <-w.ctx.Done():
			w.logger.Infow("watchdog stopping", "watchdog_id", w.id)
			return
		}
	}
}

func (w *Watchdog) findOverdue() (string, *heartbeat, int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now().Unix()
	for name, hb := range w.heartbeats {
		if hb.timeoutSeconds == 0 {
			continue
		}
		overdue := now - hb.lastBeatUnix.Load() - int64(hb.timeoutSeconds)
		if overdue > 0 {
			delete(w.heartbeats, name)
			return name, hb, overdue
		}
	}
	return "", nil, 0
}

// RegisterHeartbeat registers name with the given consecutive-warning
// failure threshold and timeout (seconds, 0 disables the timeout check).
// It panics if name is already registered.
func (w *Watchdog) RegisterHeartbeat(name string, warningsUntilFailure, timeoutSeconds uint64) uuid.UUID {
	id := uuid.New()
	hb := &heartbeat{id: id, warningsUntilFailure: warningsUntilFailure, timeoutSeconds: timeoutSeconds}
	hb.lastBeatUnix.Store(time.Now().Unix())

	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.heartbeats[name]; ok {
		panic(fmt.Sprintf("watchdog: heartbeat already registered: %s (%s)", name, existing.id))
	}
	w.heartbeats[name] = hb
	w.logger.Infow("registered heartbeat", "name", name, "heartbeat_id", id)
	return id
}

// UnregisterHeartbeat removes a heartbeat on a normal exit.
func (w *Watchdog) UnregisterHeartbeat(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, hb := range w.heartbeats {
		if hb.id == id {
			delete(w.heartbeats, name)
			return
		}
	}
}

// ReportHeartbeatStatus records a status for id. An Error status, or a
// Warning count reaching warningsUntilFailure, queues the heartbeat for
// the panic path on the next Start loop iteration.
func (w *Watchdog) ReportHeartbeatStatus(id uuid.UUID, status HeartbeatStatus) {
	w.mu.Lock()
	var name string
	var hb *heartbeat
	for n, h := range w.heartbeats {
		if h.id == id {
			name, hb = n, h
			break
		}
	}
	if hb == nil {
		w.mu.Unlock()
		w.logger.Warnw("heartbeat status reported for unknown id", "heartbeat_id", id)
		return
	}

	hb.lastStatus.Store(int32(status))
	hb.lastBeatUnix.Store(time.Now().Unix())
	hb.received.Add(1)

	var warnings uint32
	switch status {
	case StatusWarning:
		warnings = hb.warningCount.Add(1)
	case StatusOK:
		hb.warningCount.Store(0)
	}
	failOnWarnings := hb.warningsUntilFailure != 0 && warnings >= uint32(hb.warningsUntilFailure)
	w.mu.Unlock()

	if status == StatusError {
		w.logger.Errorw("heartbeat reported error", "name", name, "heartbeat_id", id)
		w.badBeat <- id
		return
	}
	if failOnWarnings {
		w.logger.Errorw("heartbeat exceeded consecutive warnings", "name", name, "heartbeat_id", id, "warnings", warnings)
		w.badBeat <- id
	}
}

func (w *Watchdog) nameFor(id uuid.UUID) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, hb := range w.heartbeats {
		if hb.id == id {
			return name
		}
	}
	return ""
}
