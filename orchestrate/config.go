// Copyright 2025 PD Discovery Platform Contributors
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

package orchestrate

import (
	"errors"
	"time"

	"github.com/pdplatform/graphload/core"
)

// Default run parameters. The concurrency default is deliberately modest:
// the backend performs synchronous entity extraction per episode and
// saturates well below typical CPU counts.
const (
	DefaultConcurrency    = 4
	DefaultMaxRetries     = 3
	DefaultBackoffBase    = 1 * time.Second
	DefaultBackoffCeiling = 30 * time.Second
	DefaultEpisodeTimeout = 120 * time.Second
)

// Config holds run parameters for an Orchestrator.
type Config struct {
	// Concurrency is the maximum number of episodes in flight at once
	// within a lane.
	Concurrency int

	// MaxRetries is the number of additional submission attempts after the
	// first for transient failures. MaxRetries of 3 means up to 4
	// submissions per episode.
	MaxRetries int

	// BackoffBase is the initial retry delay. Each retry grows the delay
	// exponentially with jitter, up to BackoffCeiling.
	BackoffBase    time.Duration
	BackoffCeiling time.Duration

	// EpisodeTimeout bounds each episode's full attempt sequence.
	EpisodeTimeout time.Duration

	// Force resubmits episodes even when the ledger already holds a
	// successful record with a matching content hash.
	Force bool

	// TypeFilter, when non-empty, restricts the run to the given episode
	// types. Lane order is preserved among the types that remain.
	TypeFilter []core.EpisodeType
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithConcurrency sets the in-lane concurrency limit.
func WithConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithMaxRetries sets the transient retry budget per episode.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithBackoffBase sets the initial retry delay.
func WithBackoffBase(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.BackoffBase = d
	}
}

// WithEpisodeTimeout sets the per-episode deadline.
func WithEpisodeTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.EpisodeTimeout = d
	}
}

// WithForce enables resubmission of already-ingested episodes.
func WithForce(force bool) ConfigOption {
	return func(c *Config) {
		c.Force = force
	}
}

// WithTypeFilter restricts the run to the given episode types.
func WithTypeFilter(types ...core.EpisodeType) ConfigOption {
	return func(c *Config) {
		c.TypeFilter = types
	}
}

// DefaultRunConfig returns a Config with production defaults.
func DefaultRunConfig() *Config {
	return &Config{
		Concurrency:    DefaultConcurrency,
		MaxRetries:     DefaultMaxRetries,
		BackoffBase:    DefaultBackoffBase,
		BackoffCeiling: DefaultBackoffCeiling,
		EpisodeTimeout: DefaultEpisodeTimeout,
	}
}

// NewRunConfig creates a Config with defaults and applies the given options.
func NewRunConfig(opts ...ConfigOption) *Config {
	cfg := DefaultRunConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return errors.New("run config: Concurrency must be at least 1")
	}
	if c.MaxRetries < 0 {
		return errors.New("run config: MaxRetries must not be negative")
	}
	if c.BackoffBase <= 0 {
		return errors.New("run config: BackoffBase must be positive")
	}
	if c.BackoffCeiling < c.BackoffBase {
		return errors.New("run config: BackoffCeiling must not be below BackoffBase")
	}
	if c.EpisodeTimeout <= 0 {
		return errors.New("run config: EpisodeTimeout must be positive")
	}
	for _, t := range c.TypeFilter {
		if err := core.ValidateEpisodeType(t); err != nil {
			return err
		}
	}
	return nil
}
