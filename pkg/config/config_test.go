// Copyright 2025 walteh LLC
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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fileops/pkg/conflict"
	"github.com/walteh/fileops/pkg/verify"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, string(verify.SHA256), cfg.VerifyAlgorithm)
	assert.Equal(t, "rename", cfg.ConflictPolicy)
	assert.Equal(t, conflict.DefaultRenamePattern, cfg.RenamePattern)

	delay, err := cfg.RetryDelayDuration()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, delay)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
max_concurrent_operations: 5
retry_attempts: 2
retry_delay: 1s
verify_algorithm: md5
verify_after_copy: true
conflict_policy: skip
ignore_patterns:
  - "**/*.tmp"
  - "**/.git/**"
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.True(t, cfg.VerifyAfterCopy)
	assert.Equal(t, verify.MD5, cfg.Algorithm())
	assert.Equal(t, conflict.ActionSkip, cfg.Action())
	assert.Equal(t, []string{"**/*.tmp", "**/.git/**"}, cfg.IgnorePatterns)

	// Unset fields fall back to defaults.
	assert.Equal(t, conflict.DefaultRenamePattern, cfg.RenamePattern)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadYAMLUnknownField(t *testing.T) {
	path := writeConfig(t, "config.yaml", "no_such_option: true\n")
	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "max_concurrent_operations": 8,
  "conflict_policy": "overwrite_if_newer",
  "history_path": "/var/lib/fileops/history.json"
}`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, conflict.ActionOverwriteIfNewer, cfg.Action())
	assert.Equal(t, "/var/lib/fileops/history.json", cfg.HistoryPath)
}

func TestLoadJSONUnknownField(t *testing.T) {
	path := writeConfig(t, "config.json", `{"bogus": 1}`)
	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoadHCL(t *testing.T) {
	path := writeConfig(t, "config.hcl", `
max_concurrent_operations = 4
verify_algorithm          = "sha512"
conflict_policy           = "overwrite"
ignore_patterns           = ["**/*.bak"]
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, verify.SHA512, cfg.Algorithm())
	assert.Equal(t, conflict.ActionOverwrite, cfg.Action())
	assert.Equal(t, []string{"**/*.bak"}, cfg.IgnorePatterns)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "workers = 1\n")
	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parser found")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(cfg *Config) {}},
		{
			name:    "bad_algorithm",
			mutate:  func(cfg *Config) { cfg.VerifyAlgorithm = "sha1" },
			wantErr: "verify_algorithm",
		},
		{
			name:    "bad_policy",
			mutate:  func(cfg *Config) { cfg.ConflictPolicy = "explode" },
			wantErr: "conflict_policy",
		},
		{
			name:    "bad_delay",
			mutate:  func(cfg *Config) { cfg.RetryDelay = "soon" },
			wantErr: "retry_delay",
		},
		{
			name:    "negative_delay",
			mutate:  func(cfg *Config) { cfg.RetryDelay = "-1s" },
			wantErr: "retry_delay",
		},
		{
			name:    "zero_workers",
			mutate:  func(cfg *Config) { cfg.Workers = -1 },
			wantErr: "max_concurrent_operations",
		},
		{
			name:    "negative_buffer",
			mutate:  func(cfg *Config) { cfg.BufferSize = -1 },
			wantErr: "buffer_size",
		},
		{
			name:    "bad_log_level",
			mutate:  func(cfg *Config) { cfg.LogLevel = "verbose-ish" },
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
