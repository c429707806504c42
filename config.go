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
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/pelletier/go-toml"

	errorx "github.com/sockmux/sockmux/pkg/errors"
)

// Default session id range used when the config leaves it zero.
const (
	DefaultSessionIDMin uint32 = 1
	DefaultSessionIDMax uint32 = 1<<31 - 1
)

// Config holds the endpoint parameters of one Context. It is immutable after
// Open.
type Config struct {
	// Address is a dotted IP or hostname. Empty means the wildcard address
	// for a server.
	Address string `toml:"address"`
	// Port is the TCP port to listen on or connect to.
	Port int `toml:"port"`
	// Backlog is the listen queue depth (server only); the OS maximum is
	// used when zero.
	Backlog int `toml:"backlog"`
	// SessionIDMin and SessionIDMax bound the ids handed to accepted
	// sessions (server only).
	SessionIDMin uint32 `toml:"session_id_min"`
	SessionIDMax uint32 `toml:"session_id_max"`
	// Encrypt is reserved and unused by the core.
	Encrypt bool `toml:"encrypt"`
}

// LoadConfig reads a Config from a TOML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", errorx.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c *Config) addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func (c *Config) validate(role Role) error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", errorx.ErrInvalidConfig, c.Port)
	}
	if role == RoleClient {
		if c.Address == "" {
			return fmt.Errorf("%w: client requires an address", errorx.ErrInvalidConfig)
		}
		return nil
	}
	if c.SessionIDMin == 0 && c.SessionIDMax == 0 {
		c.SessionIDMin, c.SessionIDMax = DefaultSessionIDMin, DefaultSessionIDMax
	}
	if c.SessionIDMin > c.SessionIDMax {
		return fmt.Errorf("%w: session id range [%d, %d] is inverted",
			errorx.ErrInvalidConfig, c.SessionIDMin, c.SessionIDMax)
	}
	return nil
}
