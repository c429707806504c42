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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	errorx "github.com/sockmux/sockmux/pkg/errors"
)

func openPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func openPoller(t *testing.T) Poller {
	t.Helper()
	p, err := Open(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPollReadable(t *testing.T) {
	p := openPoller(t)
	r, w := openPipe(t)

	type tag struct{ name string }
	want := &tag{name: "pipe"}
	require.NoError(t, p.Register(r, Readable, want))

	// Nothing buffered yet, the poll must come back empty.
	ready, err := p.Poll(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ready)

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	ready, err = p.Poll(time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, r, ready[0].FD)
	assert.Same(t, want, ready[0].Tag)
	assert.NotZero(t, ready[0].Events&Readable)
}

func TestPollWritable(t *testing.T) {
	p := openPoller(t)
	_, w := openPipe(t)

	require.NoError(t, p.Register(w, Writable, nil))
	ready, err := p.Poll(time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.NotZero(t, ready[0].Events&Writable)
}

func TestPollPeerClose(t *testing.T) {
	p := openPoller(t)
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fds[0]) })

	require.NoError(t, p.Register(fds[0], Readable, nil))
	require.NoError(t, unix.Close(fds[1]))

	ready, err := p.Poll(time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.NotZero(t, ready[0].Events&Erroneous, "peer close must surface as Erroneous")
}

func TestRegisterDuplicate(t *testing.T) {
	p := openPoller(t)
	r, _ := openPipe(t)

	require.NoError(t, p.Register(r, Readable, nil))
	err := p.Register(r, Writable, nil)
	assert.ErrorIs(t, err, errorx.ErrAlreadyRegistered)
}

func TestModifyUnknown(t *testing.T) {
	p := openPoller(t)
	r, _ := openPipe(t)
	assert.ErrorIs(t, p.Modify(r, Readable), errorx.ErrNotRegistered)
}

func TestModifyMask(t *testing.T) {
	p := openPoller(t)
	r, w := openPipe(t)
	_, err := unix.Write(w, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, p.Register(r, 0, nil))
	ready, err := p.Poll(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ready, "no interest armed, nothing may fire")

	require.NoError(t, p.Modify(r, Readable))
	ready, err = p.Poll(time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.NotZero(t, ready[0].Events&Readable)
}

func TestDeregisterIdempotent(t *testing.T) {
	p := openPoller(t)
	r, w := openPipe(t)
	_, err := unix.Write(w, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, p.Register(r, Readable, nil))
	require.NoError(t, p.Deregister(r))
	require.NoError(t, p.Deregister(r), "second deregister must be a no-op")

	ready, err := p.Poll(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ready, "deregistered descriptors must never fire")
}

func TestPollTimeout(t *testing.T) {
	p := openPoller(t)
	start := time.Now()
	ready, err := p.Poll(50 * time.Millisecond)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Empty(t, ready)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestPollerClosed(t *testing.T) {
	p := openPoller(t)
	r, _ := openPipe(t)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close is idempotent")

	assert.ErrorIs(t, p.Register(r, Readable, nil), errorx.ErrPollerClosed)
	assert.ErrorIs(t, p.Modify(r, Readable), errorx.ErrPollerClosed)
	assert.ErrorIs(t, p.Deregister(r), errorx.ErrPollerClosed)
	_, err := p.Poll(0)
	assert.ErrorIs(t, err, errorx.ErrPollerClosed)
}
