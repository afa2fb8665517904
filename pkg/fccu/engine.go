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
	"sync"
	"time"
)

// Config sizes a CollectorEngine at construction time. Every backing store
// (rings, table, bitmap, HSM pool, recent ring) is allocated once from
// Config and never resized; Report and Drain allocate nothing further.
type Config struct {
	// MaxFaults bounds the number of distinct fault indices, [1,256].
	MaxFaults uint16
	// QueueDepth is the per-level ring capacity, rounded up to a power
	// of two.
	QueueDepth uint32
	// QueueLevels is the number of priority levels, [1,8].
	QueueLevels uint8
	// MaxPerFaultHsm bounds the per-fault HSM pool size, <=16.
	MaxPerFaultHsm uint8
	// RecentRingSize bounds the recent-faults ring, default 16 if zero.
	RecentRingSize uint32
	// NowUs optionally overrides the microsecond clock stamped onto
	// entries and events. The source must never go backward. If nil, the
	// engine measures time.Since an epoch captured at construction, which
	// uses the runtime's monotonic reading and is immune to wall-clock
	// steps.
	NowUs func() uint64
}

// DefaultConfig returns the standard sizing: 64 faults, 4 levels of 32
// entries, 8 HSM slots, a 16-entry recent ring.
func DefaultConfig() Config {
	return Config{
		MaxFaults:      64,
		QueueDepth:     32,
		QueueLevels:    4,
		MaxPerFaultHsm: 8,
		RecentRingSize: 16,
	}
}

func (c Config) validate() error {
	if c.MaxFaults == 0 || c.MaxFaults > 256 {
		return ErrInvalidConfig
	}
	if c.QueueLevels == 0 || c.QueueLevels > 8 {
		return ErrInvalidConfig
	}
	if c.MaxPerFaultHsm > 16 {
		return ErrInvalidConfig
	}
	if c.QueueDepth == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// CollectorEngine is the fault collection and control unit: a priority
// report path, a fault table, an activity bitmap, a two-layer HSM, and
// the statistics/recent-ring/hook-dispatch machinery that ties them
// together.
//
// Concurrency follows the SPSC discipline: exactly one goroutine may call
// Report (the producer) and exactly one may call Drain (the consumer); the
// two sides synchronize only through the SPSC rings and the atomic bitmap
// and counters.
type CollectorEngine struct {
	cfg Config

	queue  *priorityQueueSet
	table  *faultTable
	bitmap *activityBitmap
	stats  statistics
	recent *recentRing

	global   *GlobalHsm
	hsmPool  []*PerFaultHsm
	hsmCount int

	mu                sync.Mutex // guards callback fields + shutdown latch
	defaultHook       Hook
	defaultHookCtx    any
	overflowFn        OverflowFunc
	overflowCtx       any
	shutdownFn        ShutdownFunc
	shutdownCtx       any
	busNotifier       BusNotifier
	busNotifierCtx    any
	shutdownRequested bool

	nowUs func() uint64
}

// NewCollectorEngine validates cfg and allocates every backing store once.
func NewCollectorEngine(cfg Config) (*CollectorEngine, error) {
	if cfg.RecentRingSize == 0 {
		cfg.RecentRingSize = 16
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &CollectorEngine{
		cfg:    cfg,
		queue:  newPriorityQueueSet(cfg.QueueLevels, cfg.QueueDepth),
		table:  newFaultTable(cfg.MaxFaults),
		bitmap: newActivityBitmap(cfg.MaxFaults),
		recent: newRecentRing(cfg.RecentRingSize),
		global: NewGlobalHsm(),
		nowUs:  cfg.NowUs,
	}
	if e.nowUs == nil {
		epoch := time.Now()
		e.nowUs = func() uint64 { return uint64(time.Since(epoch).Microseconds()) }
	}
	e.hsmPool = make([]*PerFaultHsm, cfg.MaxPerFaultHsm)
	for i := range e.hsmPool {
		e.hsmPool[i] = NewPerFaultHsm()
	}
	return e, nil
}

// RegisterFault adds a fault definition. attr is an opaque attribute word
// stored with the registration (it is not copied onto FaultEvent);
// threshold, if zero, defaults to 1 (confirm on first occurrence).
func (e *CollectorEngine) RegisterFault(index FaultIndex, faultCode, attr, threshold uint32) error {
	return e.table.register(index, faultCode, attr, threshold)
}

// RegisterHook attaches a per-fault policy hook invoked at drain time. The
// fault must already be registered.
func (e *CollectorEngine) RegisterHook(index FaultIndex, hook Hook, ctx any) error {
	return e.table.setHook(index, hook, ctx)
}

// SetDefaultHook sets the fallback hook used when a fault has no
// per-fault hook registered.
func (e *CollectorEngine) SetDefaultHook(hook Hook, ctx any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultHook, e.defaultHookCtx = hook, ctx
}

// SetOverflowCallback sets the callback invoked when a report is denied by
// admission control or the ring is physically full.
func (e *CollectorEngine) SetOverflowCallback(fn OverflowFunc, ctx any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overflowFn, e.overflowCtx = fn, ctx
}

// SetShutdownCallback sets the callback invoked when a hook returns
// HookShutdown.
func (e *CollectorEngine) SetShutdownCallback(fn ShutdownFunc, ctx any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdownFn, e.shutdownCtx = fn, ctx
}

// SetBusNotifier sets the callback invoked for every drained event,
// independent of the hook's disposition. The notifier must not call back
// into Report on this engine.
func (e *CollectorEngine) SetBusNotifier(fn BusNotifier, ctx any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busNotifier, e.busNotifierCtx = fn, ctx
}

// BindFaultHsm allocates the next free PerFaultHsm slot and binds it to
// index. Binding does not require the fault to already be registered, but
// an unregistered binding receives no events until registration. Slots are
// consumed monotonically; there is no unbind.
func (e *CollectorEngine) BindFaultHsm(index FaultIndex, threshold uint32) error {
	if !e.table.valid(index) {
		return ErrInvalidIndex
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hsmCount >= len(e.hsmPool) {
		return ErrHsmSlotFull
	}
	slot := e.hsmCount
	e.hsmPool[slot].Bind(index, threshold)
	e.hsmCount++
	e.table.entries[index].hsmSlot = slot
	return nil
}

func (e *CollectorEngine) hsmForIndex(index FaultIndex) *PerFaultHsm {
	slot := e.table.entries[index].hsmSlot
	if slot < 0 {
		return nil
	}
	return e.hsmPool[slot]
}

// Report admits a fault occurrence onto the priority queue. A priority
// beyond the configured level count is clamped to the lowest level. On
// success the fault's activity bit is set and the per-fault and global
// HSMs are advanced; on an admission or capacity rejection the drop is
// counted, the overflow callback fires, and ErrQueueFull is returned.
func (e *CollectorEngine) Report(index FaultIndex, detail uint32, priority Priority) error {
	if _, err := e.table.get(index); err != nil {
		return err
	}

	level := e.queue.clampLevel(priority)
	entry := FaultEntry{
		FaultIndex:  index,
		Priority:    priority,
		Detail:      detail,
		TimestampUs: e.nowUs(),
	}

	if !e.queue.pushWithAdmission(level, entry) {
		e.stats.addDropped(level)
		e.mu.Lock()
		fn, ctx := e.overflowFn, e.overflowCtx
		e.mu.Unlock()
		if fn != nil {
			fn(index, priority, ctx)
		}
		return ErrQueueFull
	}

	e.bitmap.set(index)
	e.stats.addReported(level)

	if hsm := e.hsmForIndex(index); hsm != nil {
		hsm.Dispatch(EventDetected)
	}

	if e.global.IsIdle() {
		e.global.Dispatch(EventFaultReported)
	}
	if priority == PriorityCritical && !e.global.IsDegraded() {
		e.global.Dispatch(EventCriticalDetect)
		e.global.IncrementCritical()
	}
	e.global.SetActiveCount(e.bitmap.popcount())

	return nil
}

// GetReporter returns a lightweight handle bound to this engine's Report
// method, the dependency-injection seam for producer modules.
func (e *CollectorEngine) GetReporter() Reporter {
	return Reporter{report: e.Report}
}

// Drain processes every currently queued entry in priority order and
// returns the number processed. Once shutdown has been latched, Drain
// returns 0 without consuming anything.
func (e *CollectorEngine) Drain() int {
	if e.IsShutdownRequested() {
		return 0
	}
	processed := 0
	for {
		entry, _, ok := e.queue.pop()
		if !ok {
			break
		}
		e.processEntry(entry)
		processed++
	}
	return processed
}

func (e *CollectorEngine) processEntry(entry FaultEntry) {
	if !e.table.valid(entry.FaultIndex) {
		// Corrupt index; Report validates, so this should not happen.
		return
	}
	ent := &e.table.entries[entry.FaultIndex]

	occCount := e.table.incrementOccurrence(entry.FaultIndex)

	event := FaultEvent{
		FaultIndex:      entry.FaultIndex,
		Priority:        entry.Priority,
		FaultCode:       ent.faultCode,
		Detail:          entry.Detail,
		TimestampUs:     entry.TimestampUs,
		OccurrenceCount: occCount,
		IsFirst:         occCount == 1,
	}

	e.recent.add(RecentFaultInfo{
		FaultIndex:  event.FaultIndex,
		Detail:      event.Detail,
		Priority:    event.Priority,
		TimestampUs: event.TimestampUs,
	})

	e.mu.Lock()
	notifier, notifierCtx := e.busNotifier, e.busNotifierCtx
	e.mu.Unlock()
	if notifier != nil {
		notifier(event, notifierCtx)
	}

	// The table's occurrence counter, not the HSM's own, gates the
	// confirmation; the HSM's internal guard only rejects spurious early
	// confirmations.
	if occCount >= ent.threshold {
		if hsm := e.hsmForIndex(entry.FaultIndex); hsm != nil {
			hsm.Dispatch(EventConfirmed)
		}
	}

	hook, hookCtx := ent.hook, ent.hookCtx
	if hook == nil {
		e.mu.Lock()
		hook, hookCtx = e.defaultHook, e.defaultHookCtx
		e.mu.Unlock()
	}
	action := HookHandled
	if hook != nil {
		action = hook(event, hookCtx)
	}

	switch action {
	case HookHandled:
		e.bitmap.clear(entry.FaultIndex)
		if hsm := e.hsmForIndex(entry.FaultIndex); hsm != nil {
			hsm.Dispatch(EventClearFault)
		}
		if e.bitmap.popcount() == 0 {
			e.global.Dispatch(EventAllCleared)
		}
	case HookEscalate:
		e.handleEscalation(entry)
	case HookDefer:
		// Entry consumed, activity bit stays set.
	case HookShutdown:
		e.mu.Lock()
		e.shutdownRequested = true
		fn, ctx := e.shutdownFn, e.shutdownCtx
		e.mu.Unlock()
		e.global.Dispatch(EventShutdownReq)
		if fn != nil {
			fn(ctx)
		}
	}

	e.stats.totalProcessed.Add(1)
}

// handleEscalation re-enqueues a consumed entry one level higher with a
// fresh timestamp, bypassing the admission gate (an escalated entry is
// already in the system and preempts normal backpressure). Escalating a
// Critical entry is a no-op; a physically full target ring counts the
// entry as dropped.
func (e *CollectorEngine) handleEscalation(original FaultEntry) {
	pri := e.queue.clampLevel(original.Priority)
	if pri == 0 {
		return
	}
	escalated := original
	escalated.Priority = Priority(pri - 1)
	escalated.TimestampUs = e.nowUs()

	if !e.queue.push(pri-1, escalated) {
		e.stats.totalDropped.Add(1)
	}
}

// IsFaultActive reports whether index currently has its activity bit set.
func (e *CollectorEngine) IsFaultActive(index FaultIndex) bool {
	if !e.table.valid(index) {
		return false
	}
	return e.bitmap.isSet(index)
}

// ActiveFaultCount returns the number of currently active faults.
func (e *CollectorEngine) ActiveFaultCount() uint32 {
	return e.bitmap.popcount()
}

// ClearFault clears a single fault's activity bit and occurrence counter,
// dispatching ClearFault to its bound HSM slot (if any). Clearing the last
// active fault fires AllCleared, which returns the global HSM to Idle from
// Active; a Degraded or Shutdown machine ignores it.
func (e *CollectorEngine) ClearFault(index FaultIndex) error {
	if !e.table.valid(index) {
		return ErrInvalidIndex
	}
	e.bitmap.clear(index)
	e.table.resetOccurrence(index)
	if hsm := e.hsmForIndex(index); hsm != nil {
		hsm.Dispatch(EventClearFault)
	}
	if e.bitmap.popcount() == 0 {
		e.global.Dispatch(EventAllCleared)
	}
	return nil
}

// ClearAllFaults zeroes the bitmap and every occurrence counter, resets
// every bound per-fault HSM, and fires AllCleared. It is idempotent.
func (e *CollectorEngine) ClearAllFaults() {
	e.bitmap.clearAll()
	for i := range e.table.entries {
		e.table.entries[i].occurrence.Store(0)
	}
	for i := 0; i < e.hsmCount; i++ {
		e.hsmPool[i].Reset()
	}
	e.global.Dispatch(EventAllCleared)
}

// GetStatistics returns a point-in-time snapshot of lifetime counters.
func (e *CollectorEngine) GetStatistics() FaultStatistics {
	stats := FaultStatistics{
		TotalReported:  e.stats.totalReported.Load(),
		TotalProcessed: e.stats.totalProcessed.Load(),
		TotalDropped:   e.stats.totalDropped.Load(),
	}
	for i := range stats.PriorityReported {
		stats.PriorityReported[i] = e.stats.reported[i].Load()
		stats.PriorityDropped[i] = e.stats.dropped[i].Load()
	}
	return stats
}

// ResetStatistics zeroes the lifetime counters without touching active
// fault state.
func (e *CollectorEngine) ResetStatistics() {
	e.stats.reset()
}

// GetBackpressureLevel buckets total queue occupancy into a coarse level.
func (e *CollectorEngine) GetBackpressureLevel() BackpressureLevel {
	return e.queue.backpressureLevel()
}

// ForEachRecent walks the recent-faults ring newest-first, visiting at
// most maxCount entries (or every retained entry if maxCount is negative)
// and stopping early if fn returns false.
func (e *CollectorEngine) ForEachRecent(fn func(RecentFaultInfo) bool, maxCount int) {
	e.recent.forEach(fn, maxCount)
}

// GetGlobalHsm exposes the system-level state machine for inspection.
func (e *CollectorEngine) GetGlobalHsm() *GlobalHsm {
	return e.global
}

// GlobalState returns the current system-level state name.
func (e *CollectorEngine) GlobalState() string {
	return e.global.CurrentStateName()
}

// IsShutdownRequested reports whether a hook has ever requested shutdown.
// The latch is cleared only by constructing a new engine.
func (e *CollectorEngine) IsShutdownRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdownRequested
}
