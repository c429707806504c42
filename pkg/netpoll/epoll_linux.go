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

//go:build linux
// +build linux

package netpoll

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	errorx "github.com/sockmux/sockmux/pkg/errors"
)

// Level-triggered epoll masks. EPOLLRDHUP is armed on every registration so
// a peer half-close surfaces as Erroneous instead of an endless zero-read.
const (
	epollReadEvents  = unix.EPOLLPRI | unix.EPOLLIN
	epollWriteEvents = unix.EPOLLOUT
	epollErrEvents   = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
)

// minEventListCap bounds the initial result table size from below.
const minEventListCap = 32

type registration struct {
	events Event
	tag    interface{}
}

// epoller is the epoll-backed Poller. The interest table mirrors the kernel
// registrations so poll results can be resolved back to their opaque tags.
type epoller struct {
	fd       int // epoll fd
	closed   bool
	interest map[int]registration
	events   []unix.EpollEvent
	ready    []Ready
}

// Open creates an epoll-backed Poller. capacityHint sizes the interest and
// result tables; both grow on demand.
func Open(capacityHint int) (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	if capacityHint < minEventListCap {
		capacityHint = minEventListCap
	}
	return &epoller{
		fd:       fd,
		interest: make(map[int]registration, capacityHint),
		events:   make([]unix.EpollEvent, capacityHint),
		ready:    make([]Ready, 0, capacityHint),
	}, nil
}

func (p *epoller) Register(fd int, ev Event, tag interface{}) error {
	if p.closed {
		return errorx.ErrPollerClosed
	}
	if _, dup := p.interest[fd]; dup {
		return errorx.ErrAlreadyRegistered
	}
	epev := &unix.EpollEvent{Fd: int32(fd), Events: toEpoll(ev)}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, epev); err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	p.interest[fd] = registration{events: ev, tag: tag}
	return nil
}

func (p *epoller) Modify(fd int, ev Event) error {
	if p.closed {
		return errorx.ErrPollerClosed
	}
	reg, ok := p.interest[fd]
	if !ok {
		return errorx.ErrNotRegistered
	}
	if reg.events == ev {
		return nil
	}
	epev := &unix.EpollEvent{Fd: int32(fd), Events: toEpoll(ev)}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, epev); err != nil {
		return os.NewSyscallError("epoll_ctl mod", err)
	}
	reg.events = ev
	p.interest[fd] = reg
	return nil
}

func (p *epoller) Deregister(fd int) error {
	if p.closed {
		return errorx.ErrPollerClosed
	}
	if _, ok := p.interest[fd]; !ok {
		return nil
	}
	delete(p.interest, fd)
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return os.NewSyscallError("epoll_ctl del", err)
	}
	return nil
}

func (p *epoller) Poll(timeout time.Duration) ([]Ready, error) {
	if p.closed {
		return nil, errorx.ErrPollerClosed
	}
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.fd, p.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, os.NewSyscallError("epoll_wait", err)
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)
		reg, ok := p.interest[fd]
		if !ok {
			// Deregistered by an earlier entry of the same batch.
			continue
		}
		p.ready = append(p.ready, Ready{FD: fd, Tag: reg.tag, Events: fromEpoll(ev.Events)})
	}
	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)<<1)
	}
	return p.ready, nil
}

func (p *epoller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.interest = nil
	return os.NewSyscallError("close", unix.Close(p.fd))
}

func toEpoll(ev Event) uint32 {
	var out uint32 = unix.EPOLLRDHUP
	if ev&Readable != 0 {
		out |= epollReadEvents
	}
	if ev&Writable != 0 {
		out |= epollWriteEvents
	}
	return out
}

func fromEpoll(ev uint32) Event {
	var out Event
	if ev&epollErrEvents != 0 {
		out |= Erroneous
	}
	if ev&epollReadEvents != 0 {
		out |= Readable
	}
	if ev&epollWriteEvents != 0 {
		out |= Writable
	}
	return out
}
