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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceHandler struct {
	Base
	name    string
	log     *[]string
	verdict Verdict
	err     error
}

func (h *traceHandler) Before(_ *Pass) error {
	*h.log = append(*h.log, "before:"+h.name)
	return nil
}

func (h *traceHandler) Process(_ *Pass) (Verdict, error) {
	*h.log = append(*h.log, "process:"+h.name)
	return h.verdict, h.err
}

func (h *traceHandler) After(_ *Pass) error {
	*h.log = append(*h.log, "after:"+h.name)
	return nil
}

func (h *traceHandler) OnError(_ *Pass, _ error) {
	*h.log = append(*h.log, "error:"+h.name)
}

func (h *traceHandler) OnNotify(sig Signal) {
	*h.log = append(*h.log, "notify:"+h.name)
}

func TestChainRunOrder(t *testing.T) {
	var log []string
	c := New(
		&traceHandler{name: "a", log: &log, verdict: Continue},
		&traceHandler{name: "b", log: &log, verdict: Continue},
	)
	require.NoError(t, c.Run(&Pass{}))
	// Before/Process descend in order, After unwinds in reverse.
	assert.Equal(t, []string{
		"before:a", "process:a",
		"before:b", "process:b",
		"after:b", "after:a",
	}, log)
}

func TestChainYieldStopsDescent(t *testing.T) {
	var log []string
	c := New(
		&traceHandler{name: "a", log: &log, verdict: Yield},
		&traceHandler{name: "b", log: &log, verdict: Continue},
	)
	require.NoError(t, c.Run(&Pass{}))
	// Yield is not an error: the After of every entered node still runs.
	assert.Equal(t, []string{"before:a", "process:a", "after:a"}, log)
}

func TestChainErrorShortCircuits(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	c := New(
		&traceHandler{name: "a", log: &log, verdict: Continue},
		&traceHandler{name: "b", log: &log, verdict: Continue, err: boom},
		&traceHandler{name: "c", log: &log, verdict: Continue},
	)
	err := c.Run(&Pass{})
	require.ErrorIs(t, err, boom)
	// No After runs once a Process fails, not even for nodes already entered.
	assert.Equal(t, []string{
		"before:a", "process:a",
		"before:b", "process:b",
	}, log)
}

func TestChainErrorPass(t *testing.T) {
	var log []string
	c := New(
		&traceHandler{name: "a", log: &log},
		&traceHandler{name: "b", log: &log},
	)
	c.Error(&Pass{}, errors.New("hangup"))
	assert.Equal(t, []string{"error:a", "error:b"}, log)
}

func TestChainNotify(t *testing.T) {
	var log []string
	c := New(
		&traceHandler{name: "a", log: &log},
		&traceHandler{name: "b", log: &log},
	)
	c.Notify(SignalFlowOff)
	assert.Equal(t, []string{"notify:a", "notify:b"}, log)
}

func TestChainEmpty(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.Run(&Pass{}))
	c.Error(&Pass{}, errors.New("x"))
	c.Notify(SignalUser)
}

// Base must satisfy the full Handler contract so codecs can embed it and
// override only what they need.
func TestBaseIsHandler(t *testing.T) {
	var h Handler = &Base{}
	h.Before(&Pass{})
	v, err := h.Process(&Pass{})
	assert.Equal(t, Continue, v)
	assert.NoError(t, err)
	h.After(&Pass{})
	h.OnError(&Pass{}, errors.New("x"))
	h.OnNotify(SignalFlowOn)
}
