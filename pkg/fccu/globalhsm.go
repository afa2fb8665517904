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

package fccu

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
)

// System-level event names dispatched to the GlobalHsm.
const (
	EventFaultReported  = "fault_reported"
	EventAllCleared     = "all_cleared"
	EventCriticalDetect = "critical_detected"
	EventShutdownReq    = "shutdown_requested"
	EventDegradeRecover = "degrade_recovered"
)

// Global HSM state names.
const (
	StateIdle     = "idle"
	StateActive   = "active"
	StateDegraded = "degraded"
	StateShutdown = "shutdown"
)

// GlobalHsmContext tracks the aggregate fault metrics that drive
// system-level transitions.
type GlobalHsmContext struct {
	ActiveCount       uint32
	CriticalCount     uint32
	ShutdownRequested bool
}

// GlobalHsm is the system-level state machine: Idle/Active/Degraded/
// Shutdown. It wraps a looplab/fsm.FSM behind a mutex so Report (producer)
// and Drain (consumer) goroutines can both dispatch safely.
type GlobalHsm struct {
	mu  sync.Mutex
	ctx GlobalHsmContext
	sm  *fsm.FSM
}

// NewGlobalHsm builds a GlobalHsm starting in StateIdle.
func NewGlobalHsm() *GlobalHsm {
	h := &GlobalHsm{}
	h.sm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventFaultReported, Src: []string{StateIdle}, Dst: StateActive},
			{Name: EventAllCleared, Src: []string{StateActive}, Dst: StateIdle},
			{Name: EventCriticalDetect, Src: []string{StateActive}, Dst: StateDegraded},
			{Name: EventShutdownReq, Src: []string{StateActive, StateDegraded}, Dst: StateShutdown},
			{Name: EventDegradeRecover, Src: []string{StateDegraded}, Dst: StateActive},
		},
		fsm.Callbacks{
			"enter_" + StateIdle: func(_ context.Context, e *fsm.Event) {
				h.ctx.ActiveCount = 0
				h.ctx.CriticalCount = 0
			},
			"enter_" + StateShutdown: func(_ context.Context, e *fsm.Event) {
				h.ctx.ShutdownRequested = true
			},
		},
	)
	return h
}

// Dispatch sends an event to the state machine. It returns false (and
// leaves state unchanged) if the event is not valid from the current
// state, mirroring the original HSM's Dispatch semantics of a no-op on an
// unhandled event rather than a hard error.
func (h *GlobalHsm) Dispatch(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Event(context.Background(), event) == nil
}

func (h *GlobalHsm) IsIdle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Is(StateIdle)
}

func (h *GlobalHsm) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Is(StateActive)
}

func (h *GlobalHsm) IsDegraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Is(StateDegraded)
}

func (h *GlobalHsm) IsShutdown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Is(StateShutdown)
}

// CurrentStateName returns the current state as a string, for diagnostics.
func (h *GlobalHsm) CurrentStateName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Current()
}

// Context returns a snapshot of the aggregate fault metrics.
func (h *GlobalHsm) Context() GlobalHsmContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}

// IncrementCritical bumps the advisory critical-fault count; the engine
// calls it right after each CriticalDetected dispatch, whether or not that
// dispatch changed state.
func (h *GlobalHsm) IncrementCritical() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx.CriticalCount++
}

// SetActiveCount updates the advisory active-fault count. The bitmap, not
// this field, is the authoritative active set.
func (h *GlobalHsm) SetActiveCount(n uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx.ActiveCount = n
}

// Reset returns the machine to StateIdle with a zeroed context.
func (h *GlobalHsm) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = GlobalHsmContext{}
	h.sm.SetState(StateIdle)
}
