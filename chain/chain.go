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

// Package chain implements the ordered codec handler pipeline that turns raw
// byte deliveries into framed application messages and back. A pass descends
// through the handlers front to back; each handler's Before and Process run
// on the way down and its After runs on the way back up, so the head
// handler's After is always the last stage of a successful pass.
package chain

import (
	"github.com/sockmux/sockmux/pkg/buffer"
)

// Verdict is what a handler's Process stage decides about the rest of the
// pass.
type Verdict int

const (
	// Continue hands the pass to the next handler.
	Continue Verdict = iota
	// Yield ends the descent without error, typically because the staged
	// data is not yet complete. After stages of the entered handlers still
	// run.
	Yield
)

// Signal is an out-of-band notification broadcast across a chain, outside
// the data path. Applications may define their own values above SignalUser.
type Signal int

const (
	// SignalFlowOff asks producers upstream to stop feeding the chain.
	SignalFlowOff Signal = iota + 1
	// SignalFlowOn resumes a flow stopped by SignalFlowOff.
	SignalFlowOn
	// SignalUser is the first value free for application-defined signals.
	SignalUser Signal = 64
)

// Pass carries the state of one traversal through a chain. Decode passes set
// Received and Emit; encode passes set Payload. Stage is the buffer the pass
// consumes from and appends to.
type Pass struct {
	// Stage is the byte stage buffer of the connection driving this pass.
	Stage *buffer.Stage
	// Received is the count of bytes just delivered by the OS and not yet
	// committed into the stage. The head decode handler commits it.
	Received int
	// Payload is the outbound application message of an encode pass.
	Payload []byte
	// Emit delivers one decoded application payload upward. The slice is
	// only valid for the duration of the call.
	Emit func(payload []byte) error
}

// Handler is one node of a codec chain.
type Handler interface {
	// Before runs on the way down, ahead of Process, for buffer bookkeeping.
	Before(p *Pass) error
	// Process performs the node's transformation and decides whether the
	// pass continues descending.
	Process(p *Pass) (Verdict, error)
	// After runs on the way back up once the descent has ended, typically
	// reclaiming stage space.
	After(p *Pass) error
	// OnError runs when a pass or the owning connection fails, before the
	// connection is torn down.
	OnError(p *Pass, cause error)
	// OnNotify receives out-of-band signals sent across the chain.
	OnNotify(sig Signal)
}

// Base is a no-op Handler for embedding, so concrete handlers only implement
// the stages they care about.
type Base struct{}

// Before implements Handler.
func (Base) Before(*Pass) error { return nil }

// Process implements Handler.
func (Base) Process(*Pass) (Verdict, error) { return Continue, nil }

// After implements Handler.
func (Base) After(*Pass) error { return nil }

// OnError implements Handler.
func (Base) OnError(*Pass, error) {}

// OnNotify implements Handler.
func (Base) OnNotify(Signal) {}

// Chain is an ordered sequence of handlers driven front to back. The driver
// owns the traversal; handlers never see the chain topology and short-circuit
// by returning Yield or an error from Process.
type Chain struct {
	nodes []Handler
}

// New builds a chain over the given handlers, kept in order.
func New(handlers ...Handler) *Chain {
	return &Chain{nodes: handlers}
}

// Len returns the number of handlers in the chain.
func (c *Chain) Len() int {
	return len(c.nodes)
}

// Run drives one pass through the chain. An error from any stage
// short-circuits the pass: the remaining handlers are skipped, no After
// stages run, and the error is reported to the caller for the connection's
// error path. A Yield verdict stops the descent but still unwinds the After
// stages of every handler that was entered.
func (c *Chain) Run(p *Pass) error {
	entered := 0
	for _, h := range c.nodes {
		if err := h.Before(p); err != nil {
			return err
		}
		entered++
		verdict, err := h.Process(p)
		if err != nil {
			return err
		}
		if verdict == Yield {
			break
		}
	}
	for i := entered - 1; i >= 0; i-- {
		if err := c.nodes[i].After(p); err != nil {
			return err
		}
	}
	return nil
}

// Error invokes every handler's OnError stage in chain order. It is the last
// chance to react before the connection's buffers are released.
func (c *Chain) Error(p *Pass, cause error) {
	for _, h := range c.nodes {
		h.OnError(p, cause)
	}
}

// Notify broadcasts an out-of-band signal to every handler in chain order.
func (c *Chain) Notify(sig Signal) {
	for _, h := range c.nodes {
		h.OnNotify(sig)
	}
}
