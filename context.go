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

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/sockmux/sockmux/chain"
	errorx "github.com/sockmux/sockmux/pkg/errors"
	"github.com/sockmux/sockmux/pkg/logging"
	"github.com/sockmux/sockmux/pkg/netpoll"
)

// Context is the top-level orchestrator of one logical endpoint: one
// outbound connection (client role) or one listening port with its accepted
// sessions (server role). Exactly one goroutine owns a Context and drives
// its Check loop; the engine performs no locking on this path.
type Context struct {
	role     Role
	conf     Config
	opts     *Options
	log      logging.Logger
	logFlush logging.Flusher
	poller   netpoll.Poller
	state    atomic.Int32
	handler  EventHandler

	inbound  *chain.Chain
	outbound *chain.Chain
	budget   *Budget

	// client role
	sess *Session

	// server role
	lnFD     int
	lnAddr   net.Addr
	registry *registry
}

func initContext(role Role, conf Config, handler EventHandler, options ...Option) (*Context, error) {
	if err := conf.validate(role); err != nil {
		return nil, err
	}
	opts := loadOptions(options...)

	logger := opts.Logger
	var flusher logging.Flusher
	if logger == nil {
		if opts.LogPath != "" {
			var err error
			if logger, flusher, err = logging.CreateLoggerAsLocalFile(opts.LogPath, opts.LogLevel); err != nil {
				return nil, err
			}
		} else {
			logger = logging.GetDefaultLogger()
		}
	}

	poller, err := netpoll.Open(opts.MaxOpen)
	if err != nil {
		return nil, err
	}

	if handler == nil {
		handler = BuiltinEvents{}
	}

	c := &Context{
		role:     role,
		conf:     conf,
		opts:     opts,
		log:      logger,
		logFlush: flusher,
		poller:   poller,
		handler:  handler,
		lnFD:     -1,
	}
	c.state.Store(int32(StateInit))

	if len(opts.Inbound) > 0 {
		c.inbound = chain.New(opts.Inbound...)
	} else {
		c.inbound = chain.New(&chain.FrameDecoder{})
	}
	if len(opts.Outbound) > 0 {
		c.outbound = chain.New(opts.Outbound...)
	} else {
		c.outbound = chain.New(&chain.FrameEncoder{})
	}

	if opts.Budget != nil {
		c.budget = opts.Budget
	} else {
		c.budget = NewBudget(opts.MaxOpen)
	}

	if role == RoleServer {
		c.registry = newRegistry(conf.SessionIDMin, conf.SessionIDMax)
	}
	return c, nil
}

// State returns the context's current lifecycle state.
func (c *Context) State() State {
	return State(c.state.Load())
}

func (c *Context) setState(s State) {
	c.state.Store(int32(s))
}

// Role returns whether this context is a client or a server.
func (c *Context) Role() Role {
	return c.role
}

// LocalAddr returns the bound listener address of a server context after
// Open, or nil.
func (c *Context) LocalAddr() net.Addr {
	return c.lnAddr
}

// Session returns the client context's single session once Start has
// established it, or nil.
func (c *Context) Session() *Session {
	return c.sess
}

// Sessions returns the number of live sessions of a server context.
func (c *Context) Sessions() int {
	if c.registry == nil {
		return 0
	}
	return c.registry.len()
}

// Open establishes the endpoint: bind+listen for a server, a non-blocking
// connect for a client. Configuration errors surface here and leave the
// context in Init.
func (c *Context) Open() error {
	if c.State() != StateInit {
		return errorx.ErrInvalidState
	}
	if c.role == RoleServer {
		return c.openServer()
	}
	return c.openClient()
}

// Check runs one poll cycle: every descriptor the reactor reports ready is
// dispatched to its accept, flush, receive or error path. It is a no-op
// guard outside the Started state. Ready descriptors are serviced in the
// order the reactor reports them.
func (c *Context) Check() error {
	if c.State() != StateStarted {
		return nil
	}
	ready, err := c.poller.Poll(c.opts.PollTimeout)
	if err != nil {
		return err
	}
	for i := range ready {
		if c.State() != StateStarted {
			break
		}
		ev := &ready[i]
		switch tag := ev.Tag.(type) {
		case *Context:
			// The listening descriptor.
			if ev.Events&netpoll.Erroneous != 0 {
				c.fireError(nil, errorx.ErrConnHangup)
				continue
			}
			if ev.Events&netpoll.Readable != 0 {
				if err := c.acceptLoop(); err != nil {
					c.log.Errorf("sockmux: accept on fd %d: %v", ev.FD, err)
				}
			}
		case *Session:
			s := tag
			if s.closed {
				continue
			}
			if ev.Events&netpoll.Erroneous != 0 {
				c.fireError(s, errorx.ErrConnHangup)
				continue
			}
			if ev.Events&netpoll.Writable != 0 {
				if err := s.flush(); err != nil {
					c.fireError(s, err)
					continue
				}
			}
			if ev.Events&netpoll.Readable != 0 {
				if err := s.receive(); err != nil {
					c.fireError(s, err)
					continue
				}
			}
		}
	}
	return nil
}

// Send stages one payload on a client context's connection.
func (c *Context) Send(payload []byte) error {
	if c.role != RoleClient || c.sess == nil {
		return errorx.ErrInvalidState
	}
	return c.sess.Send(payload)
}

// SendTo stages one payload on a server context's session by id.
func (c *Context) SendTo(id uint32, payload []byte) error {
	if c.registry == nil {
		return errorx.ErrInvalidState
	}
	s := c.registry.get(id)
	if s == nil {
		return errorx.ErrNoSession
	}
	return s.Send(payload)
}

// Notify broadcasts an out-of-band signal across both handler chains.
func (c *Context) Notify(sig chain.Signal) {
	c.inbound.Notify(sig)
	c.outbound.Notify(sig)
}

// Stop marks the context inactive: Check becomes a no-op and a server's
// live sessions are closed. Stopping twice is a no-op.
func (c *Context) Stop() error {
	switch c.State() {
	case StateStopped, StateClosed, StateUninit:
		return nil
	}
	if c.registry != nil {
		c.registry.forEach(func(s *Session) {
			c.closeSession(s, nil)
		})
	}
	c.setState(StateStopped)
	return nil
}

// Close releases every descriptor and session and the poller. Idempotent.
func (c *Context) Close() error {
	switch c.State() {
	case StateClosed, StateUninit:
		return nil
	}
	if c.registry != nil {
		c.registry.forEach(func(s *Session) {
			c.closeSession(s, nil)
		})
	}
	if c.sess != nil {
		c.closeSession(c.sess, nil)
	}
	if c.lnFD >= 0 {
		_ = c.poller.Deregister(c.lnFD)
		_ = unix.Close(c.lnFD)
		c.lnFD = -1
	}
	err := c.poller.Close()
	c.setState(StateClosed)
	if c.logFlush != nil {
		_ = c.logFlush()
	}
	return err
}

// Uninit drops the context's remaining references. It is only legal from
// Closed and leaves the context unusable.
func (c *Context) Uninit() error {
	if c.State() != StateClosed {
		return errorx.ErrNotClosed
	}
	c.sess = nil
	c.registry = nil
	c.inbound = nil
	c.outbound = nil
	c.setState(StateUninit)
	return nil
}

// fireError is the shared failure path: the inbound chain's
// error stage gets one last look at the failure, then the connection is torn
// down. A server survives the loss of one session; a client context ends
// with its only connection. A nil session means the listener itself failed,
// which closes the whole context.
func (c *Context) fireError(s *Session, cause error) {
	pass := &chain.Pass{}
	if s != nil {
		pass.Stage = s.in
	}
	c.inbound.Error(pass, cause)

	if s == nil {
		c.log.Errorf("sockmux: listener failed, closing context: %v", cause)
		_ = c.Close()
		return
	}
	c.log.Debugf("sockmux: closing session %d: %v", s.id, cause)
	c.closeSession(s, cause)
	if c.role == RoleClient {
		_ = c.Close()
	}
}

// closeSession tears one session down: registry removal first, then buffer
// release, then deregistration, then the descriptor close. The order
// guarantees no poll result can resolve a tag to a freed session.
func (c *Context) closeSession(s *Session, cause error) {
	if s.closed {
		return
	}
	s.closed = true
	if c.registry != nil {
		c.registry.remove(s.id)
	}
	s.in, s.out = nil, nil
	_ = c.poller.Deregister(s.fd)
	_ = unix.Close(s.fd)
	c.budget.release(s.fd)
	c.handler.OnClosed(s, cause)
}
