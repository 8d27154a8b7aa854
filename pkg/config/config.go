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

// Package config loads the engine configuration from YAML, JSON, or
// HCL files, selected by extension through a parser registry.
package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/fileops/pkg/conflict"
	"github.com/walteh/fileops/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 Config represents the complete engine configuration.
type Config struct {
	// Workers is the number of jobs that may run concurrently.
	Workers int `json:"max_concurrent_operations,omitempty" yaml:"max_concurrent_operations,omitempty" hcl:"max_concurrent_operations,optional"`

	// RetryAttempts and RetryDelay drive per-file copy retries. The
	// delay is the first backoff step and doubles per attempt.
	RetryAttempts int    `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty" hcl:"retry_attempts,optional"`
	RetryDelay    string `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty" hcl:"retry_delay,optional"`

	// VerifyAlgorithm is one of crc32, md5, sha256, sha512.
	VerifyAlgorithm string `json:"verify_algorithm,omitempty" yaml:"verify_algorithm,omitempty" hcl:"verify_algorithm,optional"`
	// VerifyAfterCopy re-hashes every destination after it lands.
	VerifyAfterCopy bool `json:"verify_after_copy,omitempty" yaml:"verify_after_copy,omitempty" hcl:"verify_after_copy,optional"`

	PreserveMetadata bool `json:"preserve_metadata,omitempty" yaml:"preserve_metadata,omitempty" hcl:"preserve_metadata,optional"`

	// ConflictPolicy is one of skip, overwrite, overwrite_if_newer,
	// rename, ask.
	ConflictPolicy string `json:"conflict_policy,omitempty" yaml:"conflict_policy,omitempty" hcl:"conflict_policy,optional"`
	RenamePattern  string `json:"rename_pattern,omitempty" yaml:"rename_pattern,omitempty" hcl:"rename_pattern,optional"`

	HistoryPath     string `json:"history_path,omitempty" yaml:"history_path,omitempty" hcl:"history_path,optional"`
	AutoSaveHistory bool   `json:"auto_save_history,omitempty" yaml:"auto_save_history,omitempty" hcl:"auto_save_history,optional"`

	// IgnorePatterns are doublestar globs matched against paths
	// relative to each source root.
	IgnorePatterns []string `json:"ignore_patterns,omitempty" yaml:"ignore_patterns,omitempty" hcl:"ignore_patterns,optional"`

	// BufferSize overrides the adaptive per-file buffer when non-zero.
	BufferSize int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty" hcl:"buffer_size,optional"`

	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" hcl:"log_level,optional"`
}

// 🎁 Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Workers == 0 {
		cfg.Workers = 3
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == "" {
		cfg.RetryDelay = "500ms"
	}
	if cfg.VerifyAlgorithm == "" {
		cfg.VerifyAlgorithm = string(verify.SHA256)
	}
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = conflict.ActionRename.String()
	}
	if cfg.RenamePattern == "" {
		cfg.RenamePattern = conflict.DefaultRenamePattern
	}
	if cfg.HistoryPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HistoryPath = filepath.Join(home, ".fileops", "history.json")
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Validate checks if the configuration is valid
func (cfg *Config) Validate() error {
	if cfg.Workers < 1 {
		return errors.Errorf("max_concurrent_operations must be at least 1, got %d", cfg.Workers)
	}
	if cfg.RetryAttempts < 1 {
		return errors.Errorf("retry_attempts must be at least 1, got %d", cfg.RetryAttempts)
	}
	if _, err := cfg.RetryDelayDuration(); err != nil {
		return err
	}
	if _, err := verify.ParseAlgorithm(cfg.VerifyAlgorithm); err != nil {
		return errors.Errorf("verify_algorithm: %w", err)
	}
	if _, err := conflict.ParseAction(cfg.ConflictPolicy); err != nil {
		return errors.Errorf("conflict_policy: %w", err)
	}
	if cfg.BufferSize < 0 {
		return errors.Errorf("buffer_size must not be negative, got %d", cfg.BufferSize)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Errorf("log_level: %w", err)
	}
	return nil
}

// ⏱️ RetryDelayDuration parses the retry_delay field.
func (cfg *Config) RetryDelayDuration() (time.Duration, error) {
	d, err := time.ParseDuration(cfg.RetryDelay)
	if err != nil {
		return 0, errors.Errorf("retry_delay %q: %w", cfg.RetryDelay, err)
	}
	if d <= 0 {
		return 0, errors.Errorf("retry_delay must be positive, got %s", cfg.RetryDelay)
	}
	return d, nil
}

// Action returns the parsed conflict policy. Validate first.
func (cfg *Config) Action() conflict.Action {
	a, err := conflict.ParseAction(cfg.ConflictPolicy)
	if err != nil {
		return conflict.ActionRename
	}
	return a
}

// Algorithm returns the parsed verify algorithm. Validate first.
func (cfg *Config) Algorithm() verify.Algorithm {
	a, err := verify.ParseAlgorithm(cfg.VerifyAlgorithm)
	if err != nil {
		return verify.SHA256
	}
	return a
}
