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

// Package goroutine builds worker pools for application callbacks that must
// not block the poll loop, backed by panjf2000/ants.
package goroutine

import (
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultWorkerPoolSize is the capacity of the default worker pool.
	DefaultWorkerPoolSize = 1 << 16

	// ExpiryDuration is the interval to clean up expired workers.
	ExpiryDuration = 10 * time.Second

	// Nonblocking makes a full pool reject new tasks instead of queueing them,
	// so a slow application callback can never stall the poll loop.
	Nonblocking = true
)

// Pool is the alias of ants.Pool.
type Pool = ants.Pool

// Default instantiates a non-blocking *Pool with the capacity of
// DefaultWorkerPoolSize.
func Default() *Pool {
	options := ants.Options{ExpiryDuration: ExpiryDuration, Nonblocking: Nonblocking}
	pool, _ := ants.NewPool(DefaultWorkerPoolSize, ants.WithOptions(options))
	return pool
}
