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

// Package sockmux is a non-blocking multiplexed socket I/O engine: a reactor
// over the OS readiness facility, a cursor-addressed byte staging buffer, a
// per-connection state machine for both client and server roles, and a codec
// handler chain that turns raw byte deliveries into framed application
// messages and back.
//
// A Context is owned by exactly one goroutine, which calls Open to establish
// the listening or connecting socket, Start to arm it for traffic, then
// drives Check in a loop: each Check polls the reactor once with a short
// timeout and dispatches accept, read, write and error work for every
// descriptor reported ready. Stop, Close and Uninit tear down in reverse
// order. Independent contexts may run on separate goroutines, each with its
// own poller; nothing is shared unless a descriptor Budget is injected
// explicitly.
package sockmux

// Role tells whether a Context connects out or accepts in.
type Role int8

const (
	// RoleClient owns one outbound connection.
	RoleClient Role = iota
	// RoleServer owns one listening port and a registry of accepted sessions.
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// State is a Context's lifecycle position. Transitions only move forward:
// Init -> ReadyPending -> Ready -> Started -> Stopped -> Closed -> Uninit,
// with ReadyPending skipped when a connect completes synchronously and
// Stopped skipped by a direct Close.
type State int32

const (
	// StateInit is the freshly constructed context, buffers and registry
	// allocated, nothing bound.
	StateInit State = iota
	// StateReadyPending is a client whose non-blocking connect has not
	// resolved yet.
	StateReadyPending
	// StateReady is an endpoint bound (server) or connected (client) but not
	// yet armed for traffic.
	StateReady
	// StateStarted accepts and moves traffic through Check.
	StateStarted
	// StateStopped no longer services Check; live sessions are closed.
	StateStopped
	// StateClosed has released every descriptor and session.
	StateClosed
	// StateUninit is terminal; the context holds no resources.
	StateUninit
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReadyPending:
		return "ready-pending"
	case StateReady:
		return "ready"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	case StateUninit:
		return "uninit"
	default:
		return "unknown"
	}
}

// EventHandler receives connection lifecycle and traffic callbacks. All
// callbacks run on the goroutine driving Check and must not block; hand
// heavy work to a worker pool (see pkg/pool/goroutine).
type EventHandler interface {
	// OnOpened fires when a session is established: after accept on a
	// server, after Start resolves the connect on a client.
	OnOpened(s *Session)
	// OnClosed fires after a session has been torn down. err is nil for an
	// orderly local close.
	OnClosed(s *Session, err error)
	// OnPayload delivers one decoded inbound application payload. The slice
	// is only valid for the duration of the call.
	OnPayload(s *Session, payload []byte) error
}

// BuiltinEvents is a no-op EventHandler for embedding.
type BuiltinEvents struct{}

// OnOpened implements EventHandler.
func (BuiltinEvents) OnOpened(*Session) {}

// OnClosed implements EventHandler.
func (BuiltinEvents) OnClosed(*Session, error) {}

// OnPayload implements EventHandler.
func (BuiltinEvents) OnPayload(*Session, []byte) error { return nil }
