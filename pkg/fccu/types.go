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

// Package fccu implements a Fault Collection and Control Unit: a
// priority-queued, wait-free fault report path feeding a single consumer
// that drains entries, tracks per-fault lifecycle via a two-layer hierarchy
// of state machines, and dispatches integrator-supplied policy hooks.
//
// The engine allocates every backing store once at construction time from
// a Config and performs no further heap allocation on Report or Drain.
package fccu

// Priority ranks a fault report for admission and drain ordering. Lower
// values drain first and are admitted more readily under backpressure.
type Priority uint8

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityMedium   Priority = 2
	PriorityLow      Priority = 3
)

// FaultIndex identifies a registered fault slot.
type FaultIndex = uint16

// HookAction is the disposition an integrator's Hook returns for a drained
// FaultEvent.
type HookAction uint8

const (
	// HookHandled marks the fault handled: the engine clears its activity
	// bit, dispatches ClearFault to its bound HSM, and fires AllCleared on
	// the global HSM once no fault remains active.
	HookHandled HookAction = iota
	// HookEscalate re-queues the entry one priority level higher (a
	// Critical entry is not re-queued), bypassing the admission gate (a
	// raw ring push).
	HookEscalate
	// HookDefer leaves the event's effects in place for a later drain
	// pass; the engine takes no additional action now.
	HookDefer
	// HookShutdown invokes the shutdown callback and latches the engine
	// into a shutdown-requested state.
	HookShutdown
)

// BackpressureLevel summarizes total queue occupancy across all levels.
type BackpressureLevel uint8

const (
	BackpressureNormal   BackpressureLevel = 0
	BackpressureWarning  BackpressureLevel = 1
	BackpressureCritical BackpressureLevel = 2
	BackpressureFull     BackpressureLevel = 3
)

func (b BackpressureLevel) String() string {
	switch b {
	case BackpressureNormal:
		return "normal"
	case BackpressureWarning:
		return "warning"
	case BackpressureCritical:
		return "critical"
	case BackpressureFull:
		return "full"
	}
	return "unknown"
}

// FaultEntry is the producer-side record pushed onto the priority queue.
type FaultEntry struct {
	FaultIndex  FaultIndex
	Priority    Priority
	Detail      uint32
	TimestampUs uint64
}

// FaultEvent is handed to hooks and bus notifiers at drain time.
type FaultEvent struct {
	FaultIndex      FaultIndex
	Priority        Priority
	FaultCode       uint32
	Detail          uint32
	TimestampUs     uint64
	OccurrenceCount uint32
	IsFirst         bool
}

// RecentFaultInfo is a compact snapshot kept in the recent-faults ring.
type RecentFaultInfo struct {
	FaultIndex  FaultIndex
	Detail      uint32
	Priority    Priority
	TimestampUs uint64
}

// FaultStatistics is a point-in-time snapshot returned by GetStatistics.
// The per-priority arrays cover the four named priority levels; reports on
// levels beyond PriorityLow are counted in the totals only.
type FaultStatistics struct {
	TotalReported    uint64
	TotalProcessed   uint64
	TotalDropped     uint64
	PriorityReported [4]uint64
	PriorityDropped  [4]uint64
}

// Hook is the integrator-supplied policy callback invoked once per drained
// FaultEvent. ctx is an opaque value passed through from RegisterHook.
type Hook func(event FaultEvent, ctx any) HookAction

// OverflowFunc is invoked when a report is denied by admission control or
// the ring is physically full.
type OverflowFunc func(index FaultIndex, priority Priority, ctx any)

// ShutdownFunc is invoked when a hook returns HookShutdown.
type ShutdownFunc func(ctx any)

// BusNotifier is invoked for every drained FaultEvent, independent of the
// hook's disposition, to forward the event onto an external message bus.
type BusNotifier func(event FaultEvent, ctx any)

// Reporter is a small value handle carrying a single engine's bound Report
// method, suitable for handing to a producer module without exposing the rest of
// the engine's surface.
type Reporter struct {
	report func(index FaultIndex, detail uint32, priority Priority) error
}

// Report forwards to the bound engine's Report method. An unbound Reporter
// is a no-op.
func (r Reporter) Report(index FaultIndex, detail uint32, priority Priority) error {
	if r.report == nil {
		return nil
	}
	return r.report(index, detail, priority)
}
