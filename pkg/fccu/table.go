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

import "sync/atomic"

// faultTableEntry is the registration record for a single fault index.
// Occurrence is the consumer-side, Drain-incremented count that gates
// PerFaultHsm Confirmed dispatch; it is distinct from (and authoritative
// over) any HSM-local occurrence counter.
type faultTableEntry struct {
	registered bool
	faultCode  uint32
	attr       uint32
	threshold  uint32
	occurrence atomic.Uint32
	hook       Hook
	hookCtx    any
	hsmSlot    int // index into perFaultHsm pool, or -1 if unbound
}

type faultTable struct {
	entries []faultTableEntry
}

func newFaultTable(maxFaults uint16) *faultTable {
	t := &faultTable{entries: make([]faultTableEntry, maxFaults)}
	for i := range t.entries {
		t.entries[i].hsmSlot = -1
	}
	return t
}

func (t *faultTable) valid(index FaultIndex) bool {
	return int(index) < len(t.entries)
}

func (t *faultTable) register(index FaultIndex, faultCode, attr, threshold uint32) error {
	if !t.valid(index) {
		return ErrInvalidIndex
	}
	e := &t.entries[index]
	if e.registered {
		return ErrAlreadyRegistered
	}
	e.faultCode = faultCode
	e.attr = attr
	if threshold == 0 {
		threshold = 1
	}
	e.threshold = threshold
	e.occurrence.Store(0)
	e.registered = true
	return nil
}

func (t *faultTable) setHook(index FaultIndex, h Hook, ctx any) error {
	if !t.valid(index) {
		return ErrInvalidIndex
	}
	e := &t.entries[index]
	if !e.registered {
		return ErrNotRegistered
	}
	e.hook = h
	e.hookCtx = ctx
	return nil
}

func (t *faultTable) get(index FaultIndex) (*faultTableEntry, error) {
	if !t.valid(index) {
		return nil, ErrInvalidIndex
	}
	e := &t.entries[index]
	if !e.registered {
		return nil, ErrNotRegistered
	}
	return e, nil
}

// incrementOccurrence atomically bumps the table's occurrence counter for
// index and returns the new value. This is the counter compared against
// threshold to decide whether a Confirmed event is warranted.
func (t *faultTable) incrementOccurrence(index FaultIndex) uint32 {
	return t.entries[index].occurrence.Add(1)
}

func (t *faultTable) resetOccurrence(index FaultIndex) {
	t.entries[index].occurrence.Store(0)
}
