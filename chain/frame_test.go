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

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockmux/sockmux/pkg/buffer"
	errorx "github.com/sockmux/sockmux/pkg/errors"
)

// encodeFrames runs the payloads through the default encoder chain and
// returns the resulting wire bytes.
func encodeFrames(t *testing.T, payloads ...[]byte) []byte {
	t.Helper()
	out := buffer.New(1 << 16)
	enc := New(&FrameEncoder{})
	for _, p := range payloads {
		require.NoError(t, enc.Run(&Pass{Stage: out, Payload: p}))
	}
	wire := append([]byte(nil), out.Readable()...)
	out.Skip(len(wire))
	return wire
}

// feed delivers wire bytes into the decode stage the way a socket read would,
// then drives the decode chain once.
func feed(t *testing.T, dec *Chain, st *buffer.Stage, wire []byte, emit func([]byte) error) error {
	t.Helper()
	n := copy(st.Writable(), wire)
	require.Equal(t, len(wire), n, "test wire data must fit the stage")
	return dec.Run(&Pass{Stage: st, Received: n, Emit: emit})
}

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("alpha"),
		[]byte(""),
		[]byte("a much longer payload that still fits comfortably"),
	}
	wire := encodeFrames(t, payloads...)

	var got [][]byte
	st := buffer.New(1 << 16)
	dec := New(&FrameDecoder{})
	require.NoError(t, feed(t, dec, st, wire, func(p []byte) error {
		// An empty frame emits a zero-length slice; keep the copy non-nil so
		// it compares equal to the empty input.
		got = append(got, append([]byte{}, p...))
		return nil
	}))
	require.Equal(t, len(payloads), len(got))
	for i := range payloads {
		assert.Equal(t, payloads[i], got[i])
	}
	assert.True(t, st.IsEmpty(), "decoder must consume complete frames")
}

func TestFrameDecoderSplitDelivery(t *testing.T) {
	wire := encodeFrames(t, []byte("split-me"))

	var got [][]byte
	emit := func(p []byte) error {
		got = append(got, append([]byte(nil), p...))
		return nil
	}
	st := buffer.New(1 << 12)
	dec := New(&FrameDecoder{})

	// Deliver one byte short of the header, then one byte short of the
	// payload, then the rest. No emission until the frame completes.
	require.NoError(t, feed(t, dec, st, wire[:HeaderSize-1], emit))
	assert.Empty(t, got)
	require.NoError(t, feed(t, dec, st, wire[HeaderSize-1:len(wire)-1], emit))
	assert.Empty(t, got)
	require.NoError(t, feed(t, dec, st, wire[len(wire)-1:], emit))
	require.Len(t, got, 1)
	assert.Equal(t, []byte("split-me"), got[0])
	assert.True(t, st.IsEmpty())
}

func TestFrameDecoderBadMagic(t *testing.T) {
	wire := encodeFrames(t, []byte("ok"))
	wire[0] ^= 0xFF

	st := buffer.New(1 << 12)
	dec := New(&FrameDecoder{})
	err := feed(t, dec, st, wire, nil)
	assert.ErrorIs(t, err, errorx.ErrBadFrame)
}

func TestFrameDecoderBadVersion(t *testing.T) {
	wire := encodeFrames(t, []byte("ok"))
	wire[2] = FrameVersion + 1

	st := buffer.New(1 << 12)
	dec := New(&FrameDecoder{})
	err := feed(t, dec, st, wire, nil)
	assert.ErrorIs(t, err, errorx.ErrBadFrame)
}

func TestFrameDecoderTooLarge(t *testing.T) {
	wire := encodeFrames(t, []byte("tiny"))

	st := buffer.New(1 << 12)
	dec := New(&FrameDecoder{MaxFrameLen: 2})
	err := feed(t, dec, st, wire, nil)
	assert.ErrorIs(t, err, errorx.ErrFrameTooLarge)
}

func TestFrameEncoderTooLarge(t *testing.T) {
	out := buffer.New(1 << 12)
	enc := New(&FrameEncoder{MaxFrameLen: 4})
	err := enc.Run(&Pass{Stage: out, Payload: []byte("five!")})
	assert.ErrorIs(t, err, errorx.ErrFrameTooLarge)
	assert.True(t, out.IsEmpty())
}

func TestFrameEncoderStageFull(t *testing.T) {
	out := buffer.New(HeaderSize + 4)
	enc := New(&FrameEncoder{})
	require.NoError(t, enc.Run(&Pass{Stage: out, Payload: []byte("1234")}))
	err := enc.Run(&Pass{Stage: out, Payload: []byte("x")})
	assert.ErrorIs(t, err, errorx.ErrStageOverflow)
	// The staged frame must survive the failed append.
	assert.Equal(t, HeaderSize+4, out.Buffered())
}

func TestRawRoundTrip(t *testing.T) {
	out := buffer.New(1 << 12)
	enc := New(&RawEncoder{})
	require.NoError(t, enc.Run(&Pass{Stage: out, Payload: []byte("as-is bytes")}))
	wire := append([]byte(nil), out.Readable()...)
	assert.Equal(t, []byte("as-is bytes"), wire)

	var got []byte
	st := buffer.New(1 << 12)
	dec := New(&RawDecoder{})
	require.NoError(t, feed(t, dec, st, wire, func(p []byte) error {
		got = append([]byte(nil), p...)
		return nil
	}))
	assert.Equal(t, wire, got)
	assert.True(t, st.IsEmpty())
}
