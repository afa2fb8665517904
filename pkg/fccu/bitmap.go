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
	"math/bits"
	"sync/atomic"
)

// activityBitmap tracks, one bit per fault index, whether that fault is
// currently active (admitted and not yet cleared). Word-level atomics keep
// set/clear/test race-free without a mutex.
type activityBitmap struct {
	words []atomic.Uint64
}

func newActivityBitmap(maxFaults uint16) *activityBitmap {
	wordCount := (int(maxFaults) + 63) / 64
	if wordCount == 0 {
		wordCount = 1
	}
	return &activityBitmap{words: make([]atomic.Uint64, wordCount)}
}

func (b *activityBitmap) set(index FaultIndex) {
	w, bit := index/64, index%64
	for {
		old := b.words[w].Load()
		next := old | (uint64(1) << bit)
		if old == next || b.words[w].CompareAndSwap(old, next) {
			return
		}
	}
}

func (b *activityBitmap) clear(index FaultIndex) {
	w, bit := index/64, index%64
	for {
		old := b.words[w].Load()
		next := old &^ (uint64(1) << bit)
		if old == next || b.words[w].CompareAndSwap(old, next) {
			return
		}
	}
}

func (b *activityBitmap) isSet(index FaultIndex) bool {
	w, bit := index/64, index%64
	return b.words[w].Load()&(uint64(1)<<bit) != 0
}

func (b *activityBitmap) clearAll() {
	for i := range b.words {
		b.words[i].Store(0)
	}
}

// popcount returns the number of set bits across all words.
func (b *activityBitmap) popcount() uint32 {
	var total uint32
	for i := range b.words {
		total += uint32(bits.OnesCount64(b.words[i].Load()))
	}
	return total
}
