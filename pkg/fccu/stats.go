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

// statistics holds lifetime counters for the collector engine. All
// mutations are sync/atomic operations; the counters are monitoring-only
// and never synchronize the queue itself.
type statistics struct {
	totalReported  atomic.Uint64
	totalProcessed atomic.Uint64
	totalDropped   atomic.Uint64
	reported       [4]atomic.Uint64
	dropped        [4]atomic.Uint64
}

func (s *statistics) addReported(level int) {
	s.totalReported.Add(1)
	if level < len(s.reported) {
		s.reported[level].Add(1)
	}
}

func (s *statistics) addDropped(level int) {
	s.totalDropped.Add(1)
	if level >= 0 && level < len(s.dropped) {
		s.dropped[level].Add(1)
	}
}

func (s *statistics) reset() {
	s.totalReported.Store(0)
	s.totalProcessed.Store(0)
	s.totalDropped.Store(0)
	for i := range s.reported {
		s.reported[i].Store(0)
		s.dropped[i].Store(0)
	}
}

// recentRing is a fixed-capacity overwrite ring of the most recent fault
// reports, enumerated newest-first. The overwrite-on-full and newest-first
// walk mirror a plain circular buffer over a contiguous array: on Add the
// write cursor advances and wraps; on enumeration the walk starts one slot
// behind the write cursor and moves backward, wrapping through the array,
// for up to count entries.
type recentRing struct {
	buf      []RecentFaultInfo
	writePos int
	count    int
}

func newRecentRing(capacity uint32) *recentRing {
	if capacity == 0 {
		capacity = 1
	}
	return &recentRing{buf: make([]RecentFaultInfo, capacity)}
}

func (r *recentRing) add(info RecentFaultInfo) {
	r.buf[r.writePos] = info
	r.writePos = (r.writePos + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// forEach walks up to max entries newest-first, stopping early if fn
// returns false. A negative max means no limit.
func (r *recentRing) forEach(fn func(RecentFaultInfo) bool, max int) {
	n := len(r.buf)
	count := r.count
	if max >= 0 && max < count {
		count = max
	}
	for i := 0; i < count; i++ {
		idx := (r.writePos - 1 - i + n) % n
		if !fn(r.buf[idx]) {
			return
		}
	}
}

func (r *recentRing) reset() {
	r.writePos = 0
	r.count = 0
}
