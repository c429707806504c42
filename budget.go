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
	"container/list"
	"sync"

	errorx "github.com/sockmux/sockmux/pkg/errors"
)

// Budget caps the live peer descriptors of the contexts that share it. When
// the cap is reached, admitting a new descriptor evicts the least recently
// active one through the evict callback its owner registered. A Budget is
// passed explicitly via WithBudget; contexts without one get a private
// budget, so there is never process-wide shared state by default.
//
// Budget carries its own lock to protect its bookkeeping, but eviction runs
// the victim's teardown on the acquiring goroutine: contexts sharing a
// Budget must therefore be driven by the same goroutine.
type Budget struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List // front = most recently active
	index map[int]*list.Element
}

type budgetEntry struct {
	fd    int
	evict func()
}

// NewBudget creates a budget admitting up to max live descriptors; max <= 0
// means unlimited.
func NewBudget(max int) *Budget {
	return &Budget{
		cap:   max,
		ll:    list.New(),
		index: make(map[int]*list.Element),
	}
}

// Len returns the number of descriptors currently admitted.
func (b *Budget) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ll.Len()
}

// acquire admits fd, evicting the least recently active descriptor first
// when the budget is full. evict must tear the descriptor's owner down and
// is called without the budget lock held.
func (b *Budget) acquire(fd int, evict func()) error {
	for {
		b.mu.Lock()
		if b.cap <= 0 || b.ll.Len() < b.cap {
			el := b.ll.PushFront(&budgetEntry{fd: fd, evict: evict})
			b.index[fd] = el
			b.mu.Unlock()
			return nil
		}
		oldest := b.ll.Back()
		if oldest == nil {
			b.mu.Unlock()
			return errorx.ErrTooManyOpen
		}
		entry := oldest.Value.(*budgetEntry)
		b.ll.Remove(oldest)
		delete(b.index, entry.fd)
		b.mu.Unlock()
		entry.evict()
	}
}

// touch marks fd as recently active.
func (b *Budget) touch(fd int) {
	b.mu.Lock()
	if el, ok := b.index[fd]; ok {
		b.ll.MoveToFront(el)
	}
	b.mu.Unlock()
}

// release removes fd from the budget; releasing an unknown or already
// evicted descriptor is a no-op.
func (b *Budget) release(fd int) {
	b.mu.Lock()
	if el, ok := b.index[fd]; ok {
		b.ll.Remove(el)
		delete(b.index, fd)
	}
	b.mu.Unlock()
}
