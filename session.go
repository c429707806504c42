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
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sockmux/sockmux/chain"
	"github.com/sockmux/sockmux/pkg/buffer"
	errorx "github.com/sockmux/sockmux/pkg/errors"
	"github.com/sockmux/sockmux/pkg/netpoll"
)

// Stats are the traffic counters of one session.
type Stats struct {
	BytesIn    uint64
	BytesOut   uint64
	LastActive time.Time
}

// Session is the engine-side state of one established connection: an
// accepted peer on a server, or the single outbound connection of a client
// context. It owns its staging buffers exclusively and is only touched by
// the goroutine driving its context.
type Session struct {
	id     uint32
	fd     int
	ctx    *Context
	remote net.Addr
	in     *buffer.Stage
	out    *buffer.Stage
	stats  Stats
	closed bool
}

// ID returns the session id, unique within the owning context. A client
// context's session carries id 0.
func (s *Session) ID() uint32 {
	return s.id
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr {
	return s.remote
}

// Context returns the owning context.
func (s *Session) Context() *Context {
	return s.ctx
}

// Stats returns a copy of the session's traffic counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// Send runs the outbound chain against payload, staging the encoded bytes
// for the next writable readiness. The write-interest toggle fires only on
// the empty-to-pending edge of the write stage, so an idle connection never
// spins on writability.
func (s *Session) Send(payload []byte) error {
	if s.closed {
		return errorx.ErrConnClosed
	}
	if s.ctx.State() != StateStarted {
		return errorx.ErrInvalidState
	}
	wasEmpty := s.out.IsEmpty()
	pass := &chain.Pass{Stage: s.out, Payload: payload}
	if err := s.ctx.outbound.Run(pass); err != nil {
		return err
	}
	if wasEmpty && !s.out.IsEmpty() {
		return s.ctx.poller.Modify(s.fd, netpoll.Readable|netpoll.Writable)
	}
	return nil
}

// receive drains available inbound bytes into the read stage and feeds the
// inbound chain. EAGAIN is not an error; a zero-length read is the peer's
// orderly close.
func (s *Session) receive() error {
	st := s.in
	if st.Available() == 0 {
		st.Rewind()
		if st.Available() == 0 {
			return errorx.ErrStageOverflow
		}
	}
	n, err := unix.Read(s.fd, st.Writable())
	if err != nil {
		if err == unix.EAGAIN {
			return nil
		}
		return os.NewSyscallError("read", err)
	}
	if n == 0 {
		return errorx.ErrConnClosed
	}

	s.stats.BytesIn += uint64(n)
	s.stats.LastActive = time.Now()
	s.ctx.budget.touch(s.fd)

	pass := &chain.Pass{
		Stage:    st,
		Received: n,
		Emit: func(payload []byte) error {
			return s.ctx.handler.OnPayload(s, payload)
		},
	}
	return s.ctx.inbound.Run(pass)
}

// flush pushes pending outbound bytes to the OS, marking partial progress
// with Skip so already-sent bytes are never re-exposed. Once the stage
// drains, write-interest is dropped.
func (s *Session) flush() error {
	st := s.out
	for st.Buffered() > 0 {
		n, err := unix.Write(s.fd, st.Readable())
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return os.NewSyscallError("write", err)
		}
		st.Skip(n)
		s.stats.BytesOut += uint64(n)
	}
	s.stats.LastActive = time.Now()
	s.ctx.budget.touch(s.fd)
	return s.ctx.poller.Modify(s.fd, netpoll.Readable)
}
