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

// Package buffer provides the byte staging buffer that sockmux reads and
// writes network data through.
package buffer

// DefaultCapacity is the stage capacity used when the caller passes a
// non-positive one.
const DefaultCapacity = 64 * 1024

// Stage is a cursor-addressed byte region used for both inbound and outbound
// staging. The read cursor marks the start of unread data and the write
// cursor marks the end of written data; 0 <= r <= w <= cap holds at all
// times. A Stage is owned by exactly one connection and is not safe for
// concurrent use.
type Stage struct {
	buf []byte
	r   int // read cursor, start of unread data
	w   int // write cursor, end of written data
}

// New creates a Stage with the given fixed capacity.
func New(capacity int) *Stage {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stage{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity of the stage.
func (s *Stage) Cap() int {
	return len(s.buf)
}

// Buffered returns the number of unread bytes.
func (s *Stage) Buffered() int {
	return s.w - s.r
}

// Available returns the writable room past the write cursor. Rewind may
// reclaim more when unread data sits above offset zero.
func (s *Stage) Available() int {
	return len(s.buf) - s.w
}

// IsEmpty reports whether the stage holds no unread bytes.
func (s *Stage) IsEmpty() bool {
	return s.r == s.w
}

// Write appends up to min(len(p), Available()) bytes at the write cursor and
// returns the count actually written. It never fails; callers must check the
// returned count and Rewind first when it falls short.
func (s *Stage) Write(p []byte) int {
	n := copy(s.buf[s.w:], p)
	s.w += n
	return n
}

// Read copies up to min(len(p), Buffered()) bytes starting at the read
// cursor and returns the count. Draining the stage resets both cursors to
// zero so the full capacity becomes writable again.
func (s *Stage) Read(p []byte) int {
	n := copy(p, s.buf[s.r:s.w])
	s.r += n
	if s.r == s.w {
		s.r, s.w = 0, 0
	}
	return n
}

// Skip advances the read cursor by n without copying, clamped to the write
// cursor, and returns the count actually skipped. It marks bytes as consumed
// after a partial network write.
func (s *Stage) Skip(n int) int {
	if n > s.w-s.r {
		n = s.w - s.r
	}
	if n < 0 {
		n = 0
	}
	s.r += n
	if s.r == s.w {
		s.r, s.w = 0, 0
	}
	return n
}

// Rewind compacts the unread bytes down to offset zero, reclaiming the room
// below the read cursor. Unread content is preserved.
func (s *Stage) Rewind() {
	if s.r == 0 {
		return
	}
	n := copy(s.buf, s.buf[s.r:s.w])
	s.r, s.w = 0, n
}

// Revert discards all unread bytes without copying, abandoning the current
// read pass.
func (s *Stage) Revert() {
	s.r = s.w
}

// Writable returns the raw region past the write cursor for a direct
// OS-level receive. The caller must Commit the bytes actually written.
func (s *Stage) Writable() []byte {
	return s.buf[s.w:]
}

// Commit advances the write cursor by n after a direct write into the
// Writable region, clamped to the capacity. It returns the count committed.
func (s *Stage) Commit(n int) int {
	if n > len(s.buf)-s.w {
		n = len(s.buf) - s.w
	}
	if n < 0 {
		n = 0
	}
	s.w += n
	return n
}

// Readable returns the raw unread region for a direct OS-level send. The
// caller must Skip the bytes actually sent.
func (s *Stage) Readable() []byte {
	return s.buf[s.r:s.w]
}
