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

// Per-fault event names dispatched to a PerFaultHsm.
const (
	EventDetected      = "detected"
	EventConfirmed     = "confirmed"
	EventRecoveryStart = "recovery_start"
	EventRecoveryDone  = "recovery_done"
	EventClearFault    = "clear_fault"
)

// Per-fault HSM state names.
const (
	StateDormant    = "dormant"
	StateDetected   = "detected"
	StateActiveFlt  = "active"
	StateRecovering = "recovering"
	StateCleared    = "cleared"
)

// PerFaultContext tracks the lifecycle metadata for one bound fault index.
type PerFaultContext struct {
	FaultIndex      FaultIndex
	OccurrenceCount uint32
	ErrThreshold    uint32
}

// PerFaultHsm manages the Dormant/Detected/Active/Recovering/Cleared
// lifecycle of a single critical fault. Confirmed is only ever dispatched
// by the engine after the fault table's occurrence counter (not this
// context's OccurrenceCount) reaches threshold; the internal guard here is
// a second, defensive check against the HSM's own locally tracked count.
type PerFaultHsm struct {
	mu  sync.Mutex
	ctx PerFaultContext
	sm  *fsm.FSM
}

// NewPerFaultHsm builds an unbound PerFaultHsm starting in StateDormant.
func NewPerFaultHsm() *PerFaultHsm {
	h := &PerFaultHsm{}
	h.sm = fsm.NewFSM(
		StateDormant,
		fsm.Events{
			{Name: EventDetected, Src: []string{StateDormant}, Dst: StateDetected},
			{Name: EventDetected, Src: []string{StateDetected}, Dst: StateDetected},
			{Name: EventConfirmed, Src: []string{StateDetected}, Dst: StateActiveFlt},
			{Name: EventClearFault, Src: []string{StateDetected}, Dst: StateCleared},
			{Name: EventRecoveryStart, Src: []string{StateActiveFlt}, Dst: StateRecovering},
			{Name: EventClearFault, Src: []string{StateActiveFlt}, Dst: StateCleared},
			{Name: EventRecoveryDone, Src: []string{StateRecovering}, Dst: StateCleared},
			{Name: EventClearFault, Src: []string{StateCleared}, Dst: StateDormant},
		},
		fsm.Callbacks{
			"before_" + EventDetected: func(_ context.Context, e *fsm.Event) {
				h.ctx.OccurrenceCount++
			},
			"before_" + EventConfirmed: func(_ context.Context, e *fsm.Event) {
				if h.ctx.OccurrenceCount < h.ctx.ErrThreshold {
					e.Cancel(errGuardNotMet)
				}
			},
			"enter_" + StateDormant: func(_ context.Context, e *fsm.Event) {
				h.ctx.OccurrenceCount = 0
			},
		},
	)
	return h
}

var errGuardNotMet = &guardError{"per-fault hsm: occurrence count below threshold"}

type guardError struct{ msg string }

func (g *guardError) Error() string { return g.msg }

// Bind associates this slot with a fault index and confirmation threshold,
// resetting its state to Dormant. A zero threshold confirms on the first
// occurrence.
func (h *PerFaultHsm) Bind(index FaultIndex, threshold uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if threshold == 0 {
		threshold = 1
	}
	h.ctx = PerFaultContext{FaultIndex: index, ErrThreshold: threshold}
	h.sm.SetState(StateDormant)
}

// Reset returns the machine to Dormant with a zeroed occurrence count,
// keeping the binding intact.
func (h *PerFaultHsm) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx.OccurrenceCount = 0
	h.sm.SetState(StateDormant)
}

// Dispatch sends an event, reporting whether the transition (including any
// guard) succeeded.
func (h *PerFaultHsm) Dispatch(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Event(context.Background(), event) == nil
}

func (h *PerFaultHsm) IsDormant() bool    { return h.is(StateDormant) }
func (h *PerFaultHsm) IsDetected() bool   { return h.is(StateDetected) }
func (h *PerFaultHsm) IsActive() bool     { return h.is(StateActiveFlt) }
func (h *PerFaultHsm) IsRecovering() bool { return h.is(StateRecovering) }
func (h *PerFaultHsm) IsCleared() bool    { return h.is(StateCleared) }

func (h *PerFaultHsm) is(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Is(state)
}

func (h *PerFaultHsm) CurrentStateName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sm.Current()
}

func (h *PerFaultHsm) Context() PerFaultContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}
