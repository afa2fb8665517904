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
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("GlobalHsm", func() {
	var hsm *GlobalHsm

	ginkgo.BeforeEach(func() {
		hsm = NewGlobalHsm()
	})

	ginkgo.It("starts Idle", func() {
		Expect(hsm.IsIdle()).To(BeTrue())
		Expect(hsm.CurrentStateName()).To(Equal(StateIdle))
	})

	ginkgo.It("moves Idle -> Active -> Idle through report and all-cleared", func() {
		Expect(hsm.Dispatch(EventFaultReported)).To(BeTrue())
		Expect(hsm.IsActive()).To(BeTrue())

		hsm.IncrementCritical()
		hsm.SetActiveCount(2)
		Expect(hsm.Dispatch(EventAllCleared)).To(BeTrue())
		Expect(hsm.IsIdle()).To(BeTrue())

		ctx := hsm.Context()
		Expect(ctx.ActiveCount).To(BeZero(), "returning to Idle zeroes the advisory counts")
		Expect(ctx.CriticalCount).To(BeZero())
	})

	ginkgo.It("degrades on a critical detection and recovers back to Active", func() {
		hsm.Dispatch(EventFaultReported)
		Expect(hsm.Dispatch(EventCriticalDetect)).To(BeTrue())
		Expect(hsm.IsDegraded()).To(BeTrue())

		Expect(hsm.Dispatch(EventDegradeRecover)).To(BeTrue())
		Expect(hsm.IsActive()).To(BeTrue())
	})

	ginkgo.It("treats Shutdown as terminal from Active and Degraded", func() {
		hsm.Dispatch(EventFaultReported)
		Expect(hsm.Dispatch(EventShutdownReq)).To(BeTrue())
		Expect(hsm.IsShutdown()).To(BeTrue())
		Expect(hsm.Context().ShutdownRequested).To(BeTrue())

		Expect(hsm.Dispatch(EventAllCleared)).To(BeFalse())
		Expect(hsm.Dispatch(EventFaultReported)).To(BeFalse())
		Expect(hsm.IsShutdown()).To(BeTrue())
	})

	ginkgo.It("silently ignores events undefined from the current state", func() {
		Expect(hsm.Dispatch(EventAllCleared)).To(BeFalse())
		Expect(hsm.Dispatch(EventShutdownReq)).To(BeFalse(), "Idle has no shutdown transition")
		Expect(hsm.IsIdle()).To(BeTrue())
	})

	ginkgo.It("Reset returns to Idle with a zeroed context", func() {
		hsm.Dispatch(EventFaultReported)
		hsm.IncrementCritical()
		hsm.Reset()
		Expect(hsm.IsIdle()).To(BeTrue())
		Expect(hsm.Context()).To(Equal(GlobalHsmContext{}))
	})
})
