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
	"testing"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFccu(t *testing.T) {
	RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "CollectorEngine Suite")
}

func smallConfig() Config {
	return Config{MaxFaults: 16, QueueDepth: 8, QueueLevels: 4, MaxPerFaultHsm: 4}
}

func deferHook(_ FaultEvent, _ any) HookAction   { return HookDefer }
func handledHook(_ FaultEvent, _ any) HookAction { return HookHandled }

var _ = ginkgo.Describe("CollectorEngine", func() {
	var engine *CollectorEngine

	ginkgo.BeforeEach(func() {
		var err error
		engine, err = NewCollectorEngine(smallConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	ginkgo.Context("registration", func() {
		ginkgo.It("rejects an out-of-range index", func() {
			Expect(engine.RegisterFault(16, 0x1001, 0, 1)).To(MatchError(ErrInvalidIndex))
		})

		ginkgo.It("rejects double registration and leaves the entry unchanged", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 3)).To(Succeed())
			Expect(engine.RegisterFault(0, 0x2002, 0, 1)).To(MatchError(ErrAlreadyRegistered))

			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityLow)).To(Succeed())
			engine.Drain()
			var code uint32
			engine.ForEachRecent(func(info RecentFaultInfo) bool {
				code = engine.table.entries[info.FaultIndex].faultCode
				return false
			}, 1)
			Expect(code).To(Equal(uint32(0x1001)))
		})

		ginkgo.It("requires registration before a hook can be attached", func() {
			Expect(engine.RegisterHook(5, handledHook, nil)).To(MatchError(ErrNotRegistered))
		})
	})

	ginkgo.Context("report path", func() {
		ginkgo.It("activates the fault and moves the global HSM off Idle before any drain", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 1)).To(Succeed())
			Expect(engine.Report(0, 0xAA, PriorityMedium)).To(Succeed())

			Expect(engine.IsFaultActive(0)).To(BeTrue())
			Expect(engine.ActiveFaultCount()).To(Equal(uint32(1)))
			Expect(engine.GlobalState()).To(Equal(StateActive))
		})

		ginkgo.It("rejects reports past MaxFaults with InvalidIndex", func() {
			Expect(engine.Report(16, 0, PriorityLow)).To(MatchError(ErrInvalidIndex))
		})

		ginkgo.It("rejects reports for an unregistered fault index", func() {
			Expect(engine.Report(3, 0, PriorityLow)).To(MatchError(ErrNotRegistered))
		})

		ginkgo.It("drives the global HSM to Degraded on a Critical report", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityCritical)).To(Succeed())

			Expect(engine.GlobalState()).To(Equal(StateDegraded))
			Expect(engine.GetGlobalHsm().Context().CriticalCount).To(Equal(uint32(1)))
		})

		ginkgo.It("clamps a priority beyond the configured level count to the lowest level", func() {
			narrow, err := NewCollectorEngine(Config{MaxFaults: 4, QueueDepth: 8, QueueLevels: 2, MaxPerFaultHsm: 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(narrow.RegisterFault(0, 1, 0, 1)).To(Succeed())

			Expect(narrow.Report(0, 0, PriorityLow)).To(Succeed())
			Expect(narrow.queue.size(1)).To(Equal(uint32(1)), "Low must land on the last configured level")
		})
	})

	ginkgo.Context("drain path", func() {
		ginkgo.It("delivers a FaultEvent to the registered hook", func() {
			Expect(engine.RegisterFault(0, 0xA001, 0, 1)).To(Succeed())

			var seen FaultEvent
			called := 0
			Expect(engine.RegisterHook(0, func(e FaultEvent, _ any) HookAction {
				seen = e
				called++
				return HookHandled
			}, nil)).To(Succeed())

			Expect(engine.Report(0, 0x11, PriorityHigh)).To(Succeed())
			Expect(engine.Drain()).To(Equal(1))

			Expect(called).To(Equal(1))
			Expect(seen.FaultIndex).To(Equal(FaultIndex(0)))
			Expect(seen.FaultCode).To(Equal(uint32(0xA001)))
			Expect(seen.Detail).To(Equal(uint32(0x11)))
			Expect(seen.OccurrenceCount).To(Equal(uint32(1)))
			Expect(seen.IsFirst).To(BeTrue())
		})

		ginkgo.It("clears the fault and returns the global HSM to Idle on Handled", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, handledHook, nil)).To(Succeed())
			Expect(engine.Report(0, 0xAA, PriorityMedium)).To(Succeed())

			Expect(engine.Drain()).To(Equal(1))
			Expect(engine.IsFaultActive(0)).To(BeFalse())
			Expect(engine.GlobalState()).To(Equal(StateIdle))
		})

		ginkgo.It("treats a missing hook as Handled", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 1)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityMedium)).To(Succeed())
			engine.Drain()
			Expect(engine.IsFaultActive(0)).To(BeFalse())
		})

		ginkgo.It("leaves the fault active on Defer", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityMedium)).To(Succeed())

			Expect(engine.Drain()).To(Equal(1))
			Expect(engine.IsFaultActive(0)).To(BeTrue())
			Expect(engine.GetStatistics().TotalProcessed).To(Equal(uint64(1)))
		})

		ginkgo.It("falls back to the default hook when no per-fault hook is set", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 1)).To(Succeed())
			called := 0
			engine.SetDefaultHook(func(_ FaultEvent, _ any) HookAction {
				called++
				return HookDefer
			}, nil)
			Expect(engine.Report(0, 0, PriorityLow)).To(Succeed())
			engine.Drain()
			Expect(called).To(Equal(1))
			Expect(engine.IsFaultActive(0)).To(BeTrue())
		})

		ginkgo.It("invokes hooks in strict priority order across levels", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.RegisterFault(1, 2, 0, 1)).To(Succeed())

			var order []FaultIndex
			record := func(e FaultEvent, _ any) HookAction {
				order = append(order, e.FaultIndex)
				return HookHandled
			}
			Expect(engine.RegisterHook(0, record, nil)).To(Succeed())
			Expect(engine.RegisterHook(1, record, nil)).To(Succeed())

			// Lower-priority report issued first; the later Critical one
			// must still drain first.
			Expect(engine.Report(0, 0, PriorityMedium)).To(Succeed())
			Expect(engine.Report(1, 0, PriorityCritical)).To(Succeed())

			Expect(engine.Drain()).To(Equal(2))
			Expect(order).To(Equal([]FaultIndex{1, 0}))
		})

		ginkgo.It("notifies the bus for every drained event regardless of hook action", func() {
			Expect(engine.RegisterFault(0, 0x1001, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())
			notified := 0
			engine.SetBusNotifier(func(_ FaultEvent, _ any) { notified++ }, nil)

			Expect(engine.Report(0, 0, PriorityLow)).To(Succeed())
			Expect(engine.Report(0, 1, PriorityLow)).To(Succeed())
			engine.Drain()
			Expect(notified).To(Equal(2))
		})
	})

	ginkgo.Context("priority admission control", func() {
		ginkgo.It("denies Low reports at the 60% gate and invokes the overflow callback", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())
			overflowCalls := 0
			engine.SetOverflowCallback(func(FaultIndex, Priority, any) {
				overflowCalls++
			}, nil)

			// QueueDepth=8: the Low gate is depth < (8*60)/100 = 4.
			for i := 0; i < 4; i++ {
				Expect(engine.Report(0, uint32(i), PriorityLow)).To(Succeed())
			}
			Expect(engine.Report(0, 0xFF, PriorityLow)).To(MatchError(ErrQueueFull))
			Expect(overflowCalls).To(Equal(1))

			stats := engine.GetStatistics()
			Expect(stats.TotalReported).To(Equal(uint64(4)))
			Expect(stats.TotalDropped).To(Equal(uint64(1)))
			Expect(stats.PriorityReported[PriorityLow]).To(Equal(uint64(4)))
			Expect(stats.PriorityDropped[PriorityLow]).To(Equal(uint64(1)))
		})

		ginkgo.It("always admits Critical reports while the ring has physical room", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())
			for i := 0; i < 8; i++ {
				Expect(engine.Report(0, 0, PriorityCritical)).To(Succeed())
			}
			Expect(engine.Report(0, 0, PriorityCritical)).To(MatchError(ErrQueueFull))
		})
	})

	ginkgo.Context("per-fault HSM binding", func() {
		ginkgo.It("moves Dormant -> Detected on report and confirms at the table threshold", func() {
			Expect(engine.RegisterFault(0, 1, 0, 2)).To(Succeed())
			Expect(engine.BindFaultHsm(0, 2)).To(Succeed())
			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())

			hsm := engine.hsmForIndex(0)
			Expect(engine.Report(0, 0, PriorityHigh)).To(Succeed())
			Expect(hsm.IsDetected()).To(BeTrue(), "Detected is dispatched on the producer side")

			engine.Drain()
			Expect(hsm.IsDetected()).To(BeTrue(), "one occurrence is below the threshold of 2")

			Expect(engine.Report(0, 0, PriorityHigh)).To(Succeed())
			engine.Drain()
			Expect(hsm.IsActive()).To(BeTrue(), "second occurrence crosses the threshold")
		})

		ginkgo.It("allows binding before registration but delivers no events until registered", func() {
			Expect(engine.BindFaultHsm(2, 1)).To(Succeed())
			hsm := engine.hsmForIndex(2)
			Expect(engine.Report(2, 0, PriorityLow)).To(MatchError(ErrNotRegistered))
			Expect(hsm.IsDormant()).To(BeTrue())
		})

		ginkgo.It("returns ErrHsmSlotFull once the pool is exhausted", func() {
			for i := FaultIndex(0); i < 4; i++ {
				Expect(engine.BindFaultHsm(i, 1)).To(Succeed())
			}
			Expect(engine.BindFaultHsm(4, 1)).To(MatchError(ErrHsmSlotFull))
		})
	})

	ginkgo.Context("hook escalation", func() {
		ginkgo.It("re-enqueues one level higher with the admission gate bypassed", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			var priorities []Priority
			Expect(engine.RegisterHook(0, func(e FaultEvent, _ any) HookAction {
				priorities = append(priorities, e.Priority)
				if len(priorities) == 1 {
					return HookEscalate
				}
				return HookHandled
			}, nil)).To(Succeed())

			Expect(engine.Report(0, 0, PriorityMedium)).To(Succeed())
			Expect(engine.Drain()).To(Equal(2), "the escalated re-push drains in the same pass")

			Expect(priorities).To(Equal([]Priority{PriorityMedium, PriorityHigh}))
			Expect(engine.IsFaultActive(0)).To(BeFalse())
		})

		ginkgo.It("treats escalation of a Critical entry as a no-op", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			calls := 0
			Expect(engine.RegisterHook(0, func(FaultEvent, any) HookAction {
				calls++
				return HookEscalate
			}, nil)).To(Succeed())

			Expect(engine.Report(0, 0, PriorityCritical)).To(Succeed())
			Expect(engine.Drain()).To(Equal(1))
			Expect(calls).To(Equal(1))
		})
	})

	ginkgo.Context("shutdown", func() {
		ginkgo.BeforeEach(func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, func(FaultEvent, any) HookAction {
				return HookShutdown
			}, nil)).To(Succeed())
		})

		ginkgo.It("latches shutdown-requested and invokes the shutdown callback", func() {
			shutdownCalls := 0
			engine.SetShutdownCallback(func(_ any) { shutdownCalls++ }, nil)

			Expect(engine.Report(0, 0, PriorityCritical)).To(Succeed())
			engine.Drain()

			Expect(engine.IsShutdownRequested()).To(BeTrue())
			Expect(shutdownCalls).To(Equal(1))
			Expect(engine.GlobalState()).To(Equal(StateShutdown))
		})

		ginkgo.It("suspends draining once latched while reports keep accumulating", func() {
			Expect(engine.Report(0, 0, PriorityHigh)).To(Succeed())
			engine.Drain()
			Expect(engine.IsShutdownRequested()).To(BeTrue())

			Expect(engine.Report(0, 1, PriorityHigh)).To(Succeed())
			Expect(engine.Drain()).To(Equal(0))
			Expect(engine.queue.totalSize()).To(Equal(uint32(1)), "the latched drain must not consume")
		})
	})

	ginkgo.Context("clearing faults", func() {
		ginkgo.It("ClearFault drops the bit, zeroes the counter, and idles the global HSM", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.RegisterHook(0, deferHook, nil)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityHigh)).To(Succeed())
			engine.Drain()
			Expect(engine.IsFaultActive(0)).To(BeTrue())

			Expect(engine.ClearFault(0)).To(Succeed())
			Expect(engine.IsFaultActive(0)).To(BeFalse())
			Expect(engine.ActiveFaultCount()).To(Equal(uint32(0)))
			Expect(engine.GlobalState()).To(Equal(StateIdle))
			Expect(engine.table.entries[0].occurrence.Load()).To(Equal(uint32(0)))
		})

		ginkgo.It("ClearAllFaults clears every active fault and is idempotent", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.RegisterFault(1, 2, 0, 1)).To(Succeed())
			Expect(engine.BindFaultHsm(0, 1)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityHigh)).To(Succeed())
			Expect(engine.Report(1, 0, PriorityHigh)).To(Succeed())
			Expect(engine.ActiveFaultCount()).To(Equal(uint32(2)))

			engine.ClearAllFaults()
			Expect(engine.ActiveFaultCount()).To(Equal(uint32(0)))
			Expect(engine.hsmForIndex(0).IsDormant()).To(BeTrue())

			engine.ClearAllFaults()
			Expect(engine.ActiveFaultCount()).To(Equal(uint32(0)))
		})
	})

	ginkgo.Context("statistics", func() {
		ginkgo.It("tracks reported and processed totals across reports and drains", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityLow)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityHigh)).To(Succeed())
			engine.Drain()

			stats := engine.GetStatistics()
			Expect(stats.TotalReported).To(Equal(uint64(2)))
			Expect(stats.TotalProcessed).To(Equal(uint64(2)))
			Expect(stats.PriorityReported[PriorityHigh]).To(Equal(uint64(1)))
			Expect(stats.PriorityReported[PriorityLow]).To(Equal(uint64(1)))
		})

		ginkgo.It("ResetStatistics zeroes every counter", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			Expect(engine.Report(0, 0, PriorityLow)).To(Succeed())
			engine.Drain()

			engine.ResetStatistics()
			Expect(engine.GetStatistics()).To(Equal(FaultStatistics{}))
		})
	})

	ginkgo.Context("recent ring", func() {
		ginkgo.It("enumerates entries newest-first and overwrites the oldest beyond capacity", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			for i := uint32(0); i < 20; i++ { // ring capacity defaults to 16
				Expect(engine.Report(0, i, PriorityLow)).To(Succeed())
				engine.Drain()
			}
			var got []uint32
			engine.ForEachRecent(func(info RecentFaultInfo) bool {
				got = append(got, info.Detail)
				return true
			}, -1)
			Expect(got).To(HaveLen(16))
			Expect(got[0]).To(Equal(uint32(19)), "newest entry comes first")
			Expect(got[15]).To(Equal(uint32(4)), "oldest surviving entry comes last")
		})

		ginkgo.It("honors the max-count bound", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			for i := uint32(0); i < 5; i++ {
				Expect(engine.Report(0, i, PriorityLow)).To(Succeed())
				engine.Drain()
			}
			seen := 0
			engine.ForEachRecent(func(RecentFaultInfo) bool {
				seen++
				return true
			}, 3)
			Expect(seen).To(Equal(3))
		})
	})

	ginkgo.Context("reporter seam", func() {
		ginkgo.It("forwards Report calls through the injected handle", func() {
			Expect(engine.RegisterFault(0, 1, 0, 1)).To(Succeed())
			r := engine.GetReporter()
			Expect(r.Report(0, 0x42, PriorityHigh)).To(Succeed())
			Expect(engine.IsFaultActive(0)).To(BeTrue())
		})

		ginkgo.It("treats an unbound Reporter as a no-op", func() {
			var r Reporter
			Expect(r.Report(0, 0, PriorityLow)).To(Succeed())
		})
	})

	ginkgo.Context("time source", func() {
		ginkgo.It("stamps entries from the injected clock and refreshes on escalation", func() {
			var now uint64
			cfg := smallConfig()
			cfg.NowUs = func() uint64 { now += 100; return now }
			clocked, err := NewCollectorEngine(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(clocked.RegisterFault(0, 1, 0, 1)).To(Succeed())

			var stamps []uint64
			Expect(clocked.RegisterHook(0, func(e FaultEvent, _ any) HookAction {
				stamps = append(stamps, e.TimestampUs)
				if len(stamps) == 1 {
					return HookEscalate
				}
				return HookHandled
			}, nil)).To(Succeed())

			Expect(clocked.Report(0, 0, PriorityMedium)).To(Succeed())
			Expect(clocked.Drain()).To(Equal(2))

			Expect(stamps).To(Equal([]uint64{100, 200}),
				"the original report carries the first tick, the escalated re-push a fresh one")
		})
	})

	ginkgo.Context("configuration validation", func() {
		ginkgo.It("rejects out-of-range sizing", func() {
			_, err := NewCollectorEngine(Config{MaxFaults: 0, QueueDepth: 8, QueueLevels: 4})
			Expect(err).To(MatchError(ErrInvalidConfig))
			_, err = NewCollectorEngine(Config{MaxFaults: 300, QueueDepth: 8, QueueLevels: 4})
			Expect(err).To(MatchError(ErrInvalidConfig))
			_, err = NewCollectorEngine(Config{MaxFaults: 8, QueueDepth: 8, QueueLevels: 9})
			Expect(err).To(MatchError(ErrInvalidConfig))
			_, err = NewCollectorEngine(Config{MaxFaults: 8, QueueDepth: 8, QueueLevels: 4, MaxPerFaultHsm: 17})
			Expect(err).To(MatchError(ErrInvalidConfig))
		})
	})
})
