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

import "errors"

// Sentinel errors returned by CollectorEngine operations. Callers should
// compare with errors.Is, not string matching.
var (
	// ErrQueueFull covers both the physical ring-full case and the
	// priority admission gate rejecting a report; the engine does not
	// distinguish the two at the Report boundary.
	ErrQueueFull = errors.New("fccu: queue full or admission denied")

	ErrInvalidIndex = errors.New("fccu: invalid fault index")

	ErrAlreadyRegistered = errors.New("fccu: fault already registered")

	ErrNotRegistered = errors.New("fccu: fault not registered")

	ErrHsmSlotFull = errors.New("fccu: no free per-fault HSM slot")

	// ErrAdmissionDenied exists for taxonomy completeness; the Report
	// path itself returns ErrQueueFull for admission rejections.
	ErrAdmissionDenied = errors.New("fccu: admission denied")

	ErrInvalidConfig = errors.New("fccu: invalid configuration")
)
