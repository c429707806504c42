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

// Package netpoll wraps the OS readiness-multiplexing facility behind the
// Poller interface. Registrations carry an opaque tag that is handed back
// with every ready descriptor, so the owner of a poll loop can recover its
// per-connection state without a side table.
package netpoll

import "time"

// Event is the bitflag set of I/O readiness conditions a descriptor can be
// registered for or reported with. OS-specific constants are translated to
// and from Event only inside the backend.
type Event uint32

const (
	// Readable reports that a read would not block.
	Readable Event = 1 << iota
	// Writable reports that a write would not block.
	Writable
	// Erroneous merges the OS-level error, hangup and peer-close conditions
	// into one bit; it is always armed and always fatal for the descriptor.
	Erroneous
)

// Ready is one entry of a poll result: a ready descriptor, the tag it was
// registered with and the readiness conditions observed.
type Ready struct {
	FD     int
	Tag    interface{}
	Events Event
}

// Poller is the contract every transport backend implements. The epoll
// backend covers Linux; kqueue or userspace loop backends can slot in
// without touching callers. A Poller instance owns its interest table and
// assumes a single owning goroutine; it performs no internal locking.
type Poller interface {
	// Register adds fd with the requested event mask and an opaque tag.
	// Registering the same descriptor twice returns ErrAlreadyRegistered.
	Register(fd int, ev Event, tag interface{}) error
	// Modify replaces the requested event mask of a registered descriptor,
	// keeping its tag. It returns ErrNotRegistered for unknown descriptors.
	Modify(fd int, ev Event) error
	// Deregister removes fd from the poller. Removing an unknown descriptor
	// is a no-op.
	Deregister(fd int) error
	// Poll blocks up to timeout and returns the ready set. A zero timeout
	// polls without blocking, a negative timeout blocks indefinitely and an
	// expired timeout returns an empty set. The returned slice is reused by
	// the next Poll call.
	Poll(timeout time.Duration) ([]Ready, error)
	// Close releases the kernel readiness object.
	Close() error
}
