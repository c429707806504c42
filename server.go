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
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sockmux/sockmux/internal/socket"
	"github.com/sockmux/sockmux/pkg/buffer"
	errorx "github.com/sockmux/sockmux/pkg/errors"
	"github.com/sockmux/sockmux/pkg/netpoll"
)

// NewServer creates a server-role context for one listening port.
func NewServer(conf Config, handler EventHandler, options ...Option) (*Context, error) {
	return initContext(RoleServer, conf, handler, options...)
}

func (c *Context) openServer() error {
	fd, lnAddr, err := socket.TCPListen(c.conf.addr(), c.conf.Backlog)
	if err != nil {
		return err
	}
	if err := c.poller.Register(fd, netpoll.Readable, c); err != nil {
		_ = unix.Close(fd)
		return err
	}
	c.lnFD = fd
	c.lnAddr = lnAddr
	c.setState(StateReady)
	c.log.Infof("sockmux: listening on %s (backlog %d)", lnAddr, c.conf.Backlog)
	return nil
}

// Start arms the context for traffic. A server transitions directly; a
// client first resolves its pending connect, bounded by timeout.
func (c *Context) Start(timeout time.Duration) error {
	if c.role == RoleClient {
		return c.startClient(timeout)
	}
	if c.State() != StateReady {
		return errorx.ErrInvalidState
	}
	c.setState(StateStarted)
	return nil
}

// acceptLoop admits peers while the listening descriptor stays readable,
// bounded by the accept cap so one Check never starves established sessions.
func (c *Context) acceptLoop() error {
	for i := 0; i < c.opts.AcceptCap; i++ {
		nfd, sa, err := unix.Accept(c.lnFD)
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return os.NewSyscallError("accept", err)
		}
		if err := c.admit(nfd, sa); err != nil {
			c.log.Errorf("sockmux: rejecting peer on fd %d: %v", nfd, err)
			_ = unix.Close(nfd)
		}
	}
	return nil
}

// admit wraps an accepted descriptor in a Session: non-blocking mode, a
// fresh session id, registry insertion and a read-only registration.
// Write-interest is armed lazily on the first pending outbound byte.
func (c *Context) admit(nfd int, sa unix.Sockaddr) error {
	if err := unix.SetNonblock(nfd, true); err != nil {
		return os.NewSyscallError("setnonblock", err)
	}
	id, err := c.registry.allocate()
	if err != nil {
		return err
	}
	s := &Session{
		id:     id,
		fd:     nfd,
		ctx:    c,
		remote: socket.SockaddrToTCPAddr(sa),
		in:     buffer.New(c.opts.ReadBufferCap),
		out:    buffer.New(c.opts.WriteBufferCap),
	}
	s.stats.LastActive = time.Now()

	evict := func() { c.fireError(s, errorx.ErrTooManyOpen) }
	if err := c.budget.acquire(nfd, evict); err != nil {
		return err
	}
	c.registry.put(s)
	if err := c.poller.Register(nfd, netpoll.Readable, s); err != nil {
		c.registry.remove(id)
		c.budget.release(nfd)
		return err
	}
	c.log.Debugf("sockmux: session %d accepted from %s", id, s.remote)
	c.handler.OnOpened(s)
	return nil
}
