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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorx "github.com/sockmux/sockmux/pkg/errors"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sockmux.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
address = "10.0.0.1"
port = 9000
backlog = 128
session_id_min = 100
session_id_max = 200
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Address)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 128, cfg.Backlog)
	assert.Equal(t, uint32(100), cfg.SessionIDMin)
	assert.Equal(t, uint32(200), cfg.SessionIDMax)
}

func TestLoadConfigBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`port = "not a number`), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, errorx.ErrInvalidConfig)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		role Role
		ok   bool
	}{
		{"server defaults", Config{Port: 9000}, RoleServer, true},
		{"client with address", Config{Address: "127.0.0.1", Port: 9000}, RoleClient, true},
		{"client without address", Config{Port: 9000}, RoleClient, false},
		{"port zero", Config{Address: "127.0.0.1"}, RoleServer, false},
		{"port out of range", Config{Address: "127.0.0.1", Port: 70000}, RoleServer, false},
		{"inverted id range", Config{Port: 9000, SessionIDMin: 10, SessionIDMax: 5}, RoleServer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.validate(tt.role)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errorx.ErrInvalidConfig)
			}
		})
	}
}

func TestConfigValidateAppliesIDDefaults(t *testing.T) {
	conf := Config{Port: 9000}
	require.NoError(t, conf.validate(RoleServer))
	assert.Equal(t, DefaultSessionIDMin, conf.SessionIDMin)
	assert.Equal(t, DefaultSessionIDMax, conf.SessionIDMax)
}

func TestConfigValidateKeepsExplicitIDRange(t *testing.T) {
	conf := Config{Port: 9000, SessionIDMin: 5, SessionIDMax: 9}
	require.NoError(t, conf.validate(RoleServer))
	assert.Equal(t, uint32(5), conf.SessionIDMin)
	assert.Equal(t, uint32(9), conf.SessionIDMax)
}
