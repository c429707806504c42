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
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"

	"github.com/sockmux/sockmux/internal/socket"
	"github.com/sockmux/sockmux/pkg/buffer"
	errorx "github.com/sockmux/sockmux/pkg/errors"
	"github.com/sockmux/sockmux/pkg/netpoll"
)

// NewClient creates a client-role context for one outbound connection.
func NewClient(conf Config, handler EventHandler, options ...Option) (*Context, error) {
	return initContext(RoleClient, conf, handler, options...)
}

func (c *Context) openClient() error {
	fd, completed, raddr, err := socket.TCPConnect(c.conf.addr())
	if err != nil {
		return err
	}

	s := &Session{fd: fd, ctx: c, remote: raddr}
	evict := func() { c.fireError(s, errorx.ErrTooManyOpen) }
	if err := c.budget.acquire(fd, evict); err != nil {
		_ = unix.Close(fd)
		return err
	}

	interest := netpoll.Writable
	next := StateReadyPending
	if completed {
		interest = netpoll.Readable
		next = StateReady
	}
	if err := c.poller.Register(fd, interest, s); err != nil {
		c.budget.release(fd)
		_ = unix.Close(fd)
		return err
	}
	c.sess = s
	c.setState(next)
	c.log.Debugf("sockmux: client connect to %s pending=%t", c.conf.addr(), !completed)
	return nil
}

// startClient resolves a pending connect within the given bound, allocates
// the session's staging buffers and arms the connection for traffic.
func (c *Context) startClient(timeout time.Duration) error {
	switch c.State() {
	case StateReady:
	case StateReadyPending:
		if err := c.awaitConnect(timeout); err != nil {
			return err
		}
	default:
		return errorx.ErrInvalidState
	}

	s := c.sess
	s.in = buffer.New(c.opts.ReadBufferCap)
	s.out = buffer.New(c.opts.WriteBufferCap)
	s.stats.LastActive = time.Now()
	c.setState(StateStarted)
	c.handler.OnOpened(s)
	return nil
}

// awaitConnect polls for the connect's writable readiness under an
// exponential backoff schedule bounded by timeout; a non-positive timeout
// checks exactly once without waiting. The poll itself never blocks; the
// backoff owns all the waiting.
func (c *Context) awaitConnect(timeout time.Duration) error {
	fd := c.sess.fd
	resolve := func() error {
		ready, err := c.poller.Poll(0)
		if err != nil {
			return backoff.Permanent(err)
		}
		for i := range ready {
			if ready[i].FD != fd {
				continue
			}
			if ready[i].Events&(netpoll.Writable|netpoll.Erroneous) != 0 {
				if err := socket.ConnectError(fd); err != nil {
					return backoff.Permanent(err)
				}
				return nil
			}
		}
		return errorx.ErrStartTimeout
	}

	var err error
	if timeout <= 0 {
		// A non-positive bound means a single immediate readiness check;
		// backoff treats a zero MaxElapsedTime as no bound at all.
		err = resolve()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	} else {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = time.Millisecond
		bo.MaxInterval = 10 * time.Millisecond
		bo.MaxElapsedTime = timeout
		err = backoff.Retry(resolve, bo)
	}
	if err != nil {
		if err == errorx.ErrStartTimeout {
			// Connect still pending; the caller may retry Start or Close.
			return err
		}
		c.fireError(c.sess, err)
		return err
	}

	if err := c.poller.Modify(fd, netpoll.Readable); err != nil {
		return err
	}
	c.setState(StateReady)
	return nil
}
