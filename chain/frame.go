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
	"encoding/binary"

	"github.com/sockmux/sockmux/pkg/buffer"
	errorx "github.com/sockmux/sockmux/pkg/errors"
	bbPool "github.com/sockmux/sockmux/pkg/pool/bytebuffer"
)

// Wire format of the default frame codec: an 8-byte big-endian header
// {magic uint16, version uint8, reserved uint8, length uint32} followed by
// length payload bytes.
const (
	// HeaderSize is the fixed size of a frame header.
	HeaderSize = 8
	// FrameMagic marks the start of every frame.
	FrameMagic uint16 = 0x534D
	// FrameVersion is the only wire version this codec speaks.
	FrameVersion uint8 = 1
	// DefaultMaxFrameLen bounds a frame's payload length unless the decoder
	// is configured otherwise.
	DefaultMaxFrameLen = 1 << 20
)

func putHeader(dst []byte, length uint32) {
	binary.BigEndian.PutUint16(dst[0:2], FrameMagic)
	dst[2] = FrameVersion
	dst[3] = 0
	binary.BigEndian.PutUint32(dst[4:8], length)
}

// reclaim is the shared After stage of the built-in codecs: once free room
// drops below half the capacity the stage is compacted, and a stage that
// stays full after compaction is a capacity error.
func reclaim(st *buffer.Stage) error {
	if st.Available() < st.Cap()/2 {
		st.Rewind()
	}
	if st.Available() == 0 {
		return errorx.ErrStageOverflow
	}
	return nil
}

// FrameDecoder is the default inbound handler. Its Before stage commits the
// just-received byte count into the stage write cursor, its Process stage
// parses complete frames off the front of the stage and emits their
// payloads, yielding while a frame is still partial, and its After stage
// reclaims stage space.
type FrameDecoder struct {
	Base
	// MaxFrameLen bounds the payload length a peer may declare;
	// DefaultMaxFrameLen when zero.
	MaxFrameLen uint32
}

// Before implements Handler.
func (d *FrameDecoder) Before(p *Pass) error {
	if p.Received > 0 {
		p.Stage.Commit(p.Received)
		p.Received = 0
	}
	return nil
}

// Process implements Handler.
func (d *FrameDecoder) Process(p *Pass) (Verdict, error) {
	maxLen := d.MaxFrameLen
	if maxLen == 0 {
		maxLen = DefaultMaxFrameLen
	}
	st := p.Stage
	emitted := false
	for {
		head := st.Readable()
		if len(head) < HeaderSize {
			break
		}
		if binary.BigEndian.Uint16(head[0:2]) != FrameMagic || head[2] != FrameVersion {
			return Yield, errorx.ErrBadFrame
		}
		length := binary.BigEndian.Uint32(head[4:8])
		if length > maxLen {
			return Yield, errorx.ErrFrameTooLarge
		}
		if len(head) < HeaderSize+int(length) {
			break
		}
		if p.Emit != nil {
			if err := p.Emit(head[HeaderSize : HeaderSize+int(length)]); err != nil {
				return Yield, err
			}
		}
		st.Skip(HeaderSize + int(length))
		emitted = true
	}
	if !emitted && st.Buffered() > 0 {
		// Partial frame, wait for more bytes.
		return Yield, nil
	}
	return Continue, nil
}

// After implements Handler.
func (d *FrameDecoder) After(p *Pass) error {
	return reclaim(p.Stage)
}

// FrameEncoder is the default outbound handler. Its Process stage assembles
// header plus payload through a pooled scratch buffer and appends the result
// to the write stage.
type FrameEncoder struct {
	Base
	// MaxFrameLen bounds the payload length this encoder accepts;
	// DefaultMaxFrameLen when zero.
	MaxFrameLen uint32
}

// reclaimOutbound compacts a write stage when free room drops below half the
// capacity. A full outbound stage is pending traffic, not an error; the
// encoders surface ErrStageOverflow from Process when a payload cannot fit.
func reclaimOutbound(st *buffer.Stage) {
	if st.Available() < st.Cap()/2 {
		st.Rewind()
	}
}

// Process implements Handler.
func (e *FrameEncoder) Process(p *Pass) (Verdict, error) {
	maxLen := e.MaxFrameLen
	if maxLen == 0 {
		maxLen = DefaultMaxFrameLen
	}
	if uint32(len(p.Payload)) > maxLen {
		return Yield, errorx.ErrFrameTooLarge
	}

	bb := bbPool.Get()
	defer bbPool.Put(bb)
	var header [HeaderSize]byte
	putHeader(header[:], uint32(len(p.Payload)))
	_, _ = bb.Write(header[:])
	_, _ = bb.Write(p.Payload)

	st := p.Stage
	if st.Available() < bb.Len() {
		st.Rewind()
	}
	if st.Available() < bb.Len() {
		return Yield, errorx.ErrStageOverflow
	}
	st.Write(bb.B)
	return Continue, nil
}

// After implements Handler.
func (e *FrameEncoder) After(p *Pass) error {
	reclaimOutbound(p.Stage)
	return nil
}

// RawDecoder delivers inbound bytes as-is, for callers that plug their own
// framing above the engine.
type RawDecoder struct {
	Base
}

// Before implements Handler.
func (d *RawDecoder) Before(p *Pass) error {
	if p.Received > 0 {
		p.Stage.Commit(p.Received)
		p.Received = 0
	}
	return nil
}

// Process implements Handler.
func (d *RawDecoder) Process(p *Pass) (Verdict, error) {
	st := p.Stage
	data := st.Readable()
	if len(data) == 0 {
		return Continue, nil
	}
	if p.Emit != nil {
		if err := p.Emit(data); err != nil {
			return Yield, err
		}
	}
	st.Skip(len(data))
	return Continue, nil
}

// After implements Handler.
func (d *RawDecoder) After(p *Pass) error {
	return reclaim(p.Stage)
}

// RawEncoder appends the outbound payload to the write stage without any
// framing.
type RawEncoder struct {
	Base
}

// Process implements Handler.
func (e *RawEncoder) Process(p *Pass) (Verdict, error) {
	st := p.Stage
	if st.Available() < len(p.Payload) {
		st.Rewind()
	}
	if st.Available() < len(p.Payload) {
		return Yield, errorx.ErrStageOverflow
	}
	st.Write(p.Payload)
	return Continue, nil
}

// After implements Handler.
func (e *RawEncoder) After(p *Pass) error {
	reclaimOutbound(p.Stage)
	return nil
}
