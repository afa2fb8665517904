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

var _ = ginkgo.Describe("PerFaultHsm", func() {
	var hsm *PerFaultHsm

	ginkgo.BeforeEach(func() {
		hsm = NewPerFaultHsm()
		hsm.Bind(3, 3)
	})

	ginkgo.It("starts Dormant with a zeroed occurrence count", func() {
		Expect(hsm.IsDormant()).To(BeTrue())
		Expect(hsm.Context().OccurrenceCount).To(Equal(uint32(0)))
		Expect(hsm.Context().FaultIndex).To(Equal(FaultIndex(3)))
	})

	ginkgo.It("walks the full detect/confirm/recover lifecycle", func() {
		// Three detections bring the count up to the threshold of 3
		// without leaving Detected; only Confirmed moves on.
		Expect(hsm.Dispatch(EventDetected)).To(BeTrue())
		Expect(hsm.Context().OccurrenceCount).To(Equal(uint32(1)))
		hsm.Dispatch(EventDetected)
		hsm.Dispatch(EventDetected)
		Expect(hsm.IsDetected()).To(BeTrue())
		Expect(hsm.Context().OccurrenceCount).To(Equal(uint32(3)))

		Expect(hsm.Dispatch(EventConfirmed)).To(BeTrue())
		Expect(hsm.IsActive()).To(BeTrue())

		Expect(hsm.Dispatch(EventRecoveryStart)).To(BeTrue())
		Expect(hsm.IsRecovering()).To(BeTrue())

		Expect(hsm.Dispatch(EventRecoveryDone)).To(BeTrue())
		Expect(hsm.IsCleared()).To(BeTrue())

		Expect(hsm.Dispatch(EventClearFault)).To(BeTrue())
		Expect(hsm.IsDormant()).To(BeTrue())
		Expect(hsm.Context().OccurrenceCount).To(Equal(uint32(0)))
	})

	ginkgo.It("guards Confirmed below the threshold", func() {
		hsm.Dispatch(EventDetected)
		Expect(hsm.Dispatch(EventConfirmed)).To(BeFalse())
		Expect(hsm.IsDetected()).To(BeTrue())
	})

	ginkgo.It("clears directly from Detected before confirmation", func() {
		hsm.Dispatch(EventDetected)
		Expect(hsm.Dispatch(EventClearFault)).To(BeTrue())
		Expect(hsm.IsCleared()).To(BeTrue())
	})

	ginkgo.It("ignores events with no transition from the current state", func() {
		Expect(hsm.Dispatch(EventRecoveryDone)).To(BeFalse())
		Expect(hsm.IsDormant()).To(BeTrue())
	})

	ginkgo.It("Reset returns to Dormant and zeroes the count without losing the binding", func() {
		hsm.Dispatch(EventDetected)
		hsm.Dispatch(EventDetected)
		hsm.Reset()
		Expect(hsm.IsDormant()).To(BeTrue())
		Expect(hsm.Context().OccurrenceCount).To(Equal(uint32(0)))
		Expect(hsm.Context().FaultIndex).To(Equal(FaultIndex(3)))
		Expect(hsm.Context().ErrThreshold).To(Equal(uint32(3)))
	})

	ginkgo.It("Bind resets state and applies the new threshold", func() {
		hsm.Dispatch(EventDetected)
		hsm.Bind(7, 0)
		Expect(hsm.IsDormant()).To(BeTrue())
		Expect(hsm.Context().FaultIndex).To(Equal(FaultIndex(7)))
		Expect(hsm.Context().ErrThreshold).To(Equal(uint32(1)), "zero threshold defaults to confirm-on-first")
	})
})
