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

// Package errors defines common errors for sockmux.
package errors

import "errors"

var (
	// ErrInvalidConfig occurs when a context is created with a config that fails validation.
	ErrInvalidConfig = errors.New("sockmux: invalid configuration")
	// ErrInvalidNetworkAddress occurs when the configured address cannot be resolved.
	ErrInvalidNetworkAddress = errors.New("sockmux: invalid network address")
	// ErrUnsupportedProtocol occurs when the resolved address is neither IPv4 nor IPv6.
	ErrUnsupportedProtocol = errors.New("sockmux: only tcp/tcp4/tcp6 are supported")
	// ErrInvalidState occurs when an operation is invoked from a state that does not allow it.
	ErrInvalidState = errors.New("sockmux: operation not allowed in current state")
	// ErrNotClosed occurs when Uninit is called on a context that has not been closed yet.
	ErrNotClosed = errors.New("sockmux: context must be closed before uninit")
	// ErrAlreadyRegistered occurs when a file descriptor is registered with a poller twice.
	ErrAlreadyRegistered = errors.New("sockmux: file descriptor already registered")
	// ErrNotRegistered occurs when modifying the interest of an unregistered file descriptor.
	ErrNotRegistered = errors.New("sockmux: file descriptor not registered")
	// ErrPollerClosed occurs when polling a closed poller.
	ErrPollerClosed = errors.New("sockmux: poller is closed")
	// ErrStartTimeout occurs when a pending connect does not resolve within the start bound.
	ErrStartTimeout = errors.New("sockmux: timed out waiting for pending connect")
	// ErrConnClosed occurs when the peer closes an established connection.
	ErrConnClosed = errors.New("sockmux: connection closed by peer")
	// ErrConnHangup occurs when the poller reports an error condition on a descriptor.
	ErrConnHangup = errors.New("sockmux: connection reset or hung up")
	// ErrStageOverflow occurs when a stage buffer cannot reclaim enough room to make progress.
	ErrStageOverflow = errors.New("sockmux: stage buffer overflow")
	// ErrBadFrame occurs when an inbound frame header fails magic/version validation.
	ErrBadFrame = errors.New("sockmux: malformed frame header")
	// ErrFrameTooLarge occurs when a frame length field exceeds the configured maximum.
	ErrFrameTooLarge = errors.New("sockmux: frame exceeds maximum length")
	// ErrSessionIDExhausted occurs when every id in the session id range is live.
	ErrSessionIDExhausted = errors.New("sockmux: session id range exhausted")
	// ErrNoSession occurs when addressing a session id that is not in the registry.
	ErrNoSession = errors.New("sockmux: no such session")
	// ErrTooManyOpen occurs when the descriptor budget is exhausted and nothing is evictable.
	ErrTooManyOpen = errors.New("sockmux: too many open descriptors")
)
