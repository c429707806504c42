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
	"time"

	"github.com/sockmux/sockmux/chain"
	"github.com/sockmux/sockmux/pkg/buffer"
	"github.com/sockmux/sockmux/pkg/logging"
)

// Tunables that are constants in spirit but not in law: the accept cap and
// poll timeout bound how long one Check spends on new peers versus existing
// ones, not any protocol invariant.
const (
	DefaultAcceptCap   = 16
	DefaultPollTimeout = 20 * time.Millisecond
)

// Option is a function that sets up one engine option.
type Option func(opts *Options)

// Options are the per-context engine tunables, distinct from the endpoint
// Config.
type Options struct {
	// Logger replaces the default logger of pkg/logging.
	Logger logging.Logger

	// LogPath redirects logs to a rotated local file when Logger is unset.
	LogPath string

	// LogLevel is the level of the file logger set up through LogPath.
	LogLevel logging.Level

	// ReadBufferCap and WriteBufferCap size the per-connection stage
	// buffers; buffer.DefaultCapacity when zero.
	ReadBufferCap  int
	WriteBufferCap int

	// AcceptCap bounds how many peers one Check accepts before returning to
	// servicing existing sessions.
	AcceptCap int

	// PollTimeout bounds how long one Check blocks in the poller.
	PollTimeout time.Duration

	// MaxOpen caps the live session descriptors of this context; the least
	// recently active session is evicted to admit a new one. Zero means
	// unlimited. Ignored when Budget is set.
	MaxOpen int

	// Budget shares one descriptor budget between several contexts.
	Budget *Budget

	// Inbound and Outbound replace the default frame codec chains.
	Inbound  []chain.Handler
	Outbound []chain.Handler
}

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.ReadBufferCap <= 0 {
		opts.ReadBufferCap = buffer.DefaultCapacity
	}
	if opts.WriteBufferCap <= 0 {
		opts.WriteBufferCap = buffer.DefaultCapacity
	}
	if opts.AcceptCap <= 0 {
		opts.AcceptCap = DefaultAcceptCap
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return opts
}

// WithOptions sets up all options at once.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithLogger injects a custom logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithLogPath sends logs to a rotated local file.
func WithLogPath(path string) Option {
	return func(opts *Options) {
		opts.LogPath = path
	}
}

// WithLogLevel sets the level of the file logger.
func WithLogLevel(level logging.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithReadBufferCap sets the inbound stage capacity per connection.
func WithReadBufferCap(readBufferCap int) Option {
	return func(opts *Options) {
		opts.ReadBufferCap = readBufferCap
	}
}

// WithWriteBufferCap sets the outbound stage capacity per connection.
func WithWriteBufferCap(writeBufferCap int) Option {
	return func(opts *Options) {
		opts.WriteBufferCap = writeBufferCap
	}
}

// WithAcceptCap bounds accepts per Check.
func WithAcceptCap(acceptCap int) Option {
	return func(opts *Options) {
		opts.AcceptCap = acceptCap
	}
}

// WithPollTimeout bounds the poll of one Check.
func WithPollTimeout(pollTimeout time.Duration) Option {
	return func(opts *Options) {
		opts.PollTimeout = pollTimeout
	}
}

// WithMaxOpen caps live session descriptors for this context.
func WithMaxOpen(maxOpen int) Option {
	return func(opts *Options) {
		opts.MaxOpen = maxOpen
	}
}

// WithBudget shares a descriptor budget between contexts.
func WithBudget(budget *Budget) Option {
	return func(opts *Options) {
		opts.Budget = budget
	}
}

// WithInbound replaces the default inbound (decode) handler chain.
func WithInbound(handlers ...chain.Handler) Option {
	return func(opts *Options) {
		opts.Inbound = handlers
	}
}

// WithOutbound replaces the default outbound (encode) handler chain.
func WithOutbound(handlers ...chain.Handler) Option {
	return func(opts *Options) {
		opts.Outbound = handlers
	}
}
