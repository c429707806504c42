// Copyright (c) 2025 The Sockmux Authors. All rights reserved.
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

package sockmux

import (
	errorx "github.com/sockmux/sockmux/pkg/errors"
)

// registry is the keyed table of a server context's live sessions. It is
// owned exclusively by its context and never locked. Iteration follows
// insertion order so teardown is deterministic.
type registry struct {
	sessions map[uint32]*Session
	order    []uint32
	next     uint32
	min, max uint32
}

func newRegistry(min, max uint32) *registry {
	return &registry{
		sessions: make(map[uint32]*Session),
		next:     min,
		min:      min,
		max:      max,
	}
}

// allocate hands out the next session id, wrapping around within
// [min, max] and skipping ids still held by live sessions.
func (r *registry) allocate() (uint32, error) {
	span := uint64(r.max-r.min) + 1
	for i := uint64(0); i < span; i++ {
		id := r.next
		if r.next == r.max {
			r.next = r.min
		} else {
			r.next++
		}
		if _, live := r.sessions[id]; !live {
			return id, nil
		}
	}
	return 0, errorx.ErrSessionIDExhausted
}

func (r *registry) put(s *Session) {
	r.sessions[s.id] = s
	r.order = append(r.order, s.id)
}

func (r *registry) get(id uint32) *Session {
	return r.sessions[id]
}

func (r *registry) remove(id uint32) {
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *registry) len() int {
	return len(r.sessions)
}

// forEach visits the live sessions in insertion order over a snapshot, so
// the visit function may remove entries.
func (r *registry) forEach(fn func(s *Session)) {
	ids := make([]uint32, len(r.order))
	copy(ids, r.order)
	for _, id := range ids {
		if s, ok := r.sessions[id]; ok {
			fn(s)
		}
	}
}
