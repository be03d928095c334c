// Copyright 2025 go-highway Authors
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

package harness

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ajroetker/go-offload/offload/dma"
	"github.com/ajroetker/go-offload/offload/kernel"
	"github.com/ajroetker/go-offload/offload/matrix"
	"github.com/ajroetker/go-offload/offload/timer"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvDim       = "OFFLOAD_DIM"
	EnvRounds    = "OFFLOAD_ROUNDS"
	EnvTimer     = "OFFLOAD_TIMER"
	EnvPace      = "OFFLOAD_PACE"
	EnvPollLimit = "OFFLOAD_POLL_LIMIT"
	EnvOracle    = "OFFLOAD_ORACLE"
)

// DefaultRounds is the number of offload rounds of a run.
const DefaultRounds = 4

// DefaultPaceTicks is the round cadence in pacing mode: one second at the
// default timer frequency.
const DefaultPaceTicks = timer.DefaultFrequency

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("harness: invalid configuration")

// Config parameterizes a run.
type Config struct {
	// Dim is the matrix dimension. It must match the kernel behind the
	// accelerator.
	Dim int

	// Rounds is the number of reference/offload rounds.
	Rounds int

	// Timer selects the tick counter implementation.
	Timer timer.Kind

	// Pace enables the delay that spaces rounds PaceTicks apart. It needs a
	// counter timer.
	Pace      bool
	PaceTicks uint32

	// PollLimit bounds every busy-wait; zero spins forever.
	PollLimit int

	// Oracle names the reference multiplication: "naive" or "blas".
	Oracle string

	DeviceID uint32
}

// DefaultConfig returns the reference configuration: 32x32 matrices, four
// rounds, register timer, no pacing.
func DefaultConfig() Config {
	return Config{
		Dim:       kernel.DefaultDim,
		Rounds:    DefaultRounds,
		Timer:     timer.KindRegister,
		PaceTicks: DefaultPaceTicks,
		PollLimit: dma.DefaultPollLimit,
		Oracle:    "naive",
	}
}

// ConfigFromEnv returns DefaultConfig with the OFFLOAD_* overrides applied.
// OFFLOAD_PACE is either a boolean or a tick count, which also enables
// pacing.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDim); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvDim, v, err)
		}
		c.Dim = n
	}
	if v, ok := lookup(EnvRounds); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvRounds, v, err)
		}
		c.Rounds = n
	}
	if v, ok := lookup(EnvTimer); ok {
		k, err := timer.ParseKind(v)
		if err != nil {
			return envError(EnvTimer, v, err)
		}
		c.Timer = k
	}
	if v, ok := lookup(EnvPace); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Pace = b
		} else if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.Pace, c.PaceTicks = true, uint32(n)
		} else {
			return envError(EnvPace, v, err)
		}
	}
	if v, ok := lookup(EnvPollLimit); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvPollLimit, v, err)
		}
		c.PollLimit = n
	}
	if v, ok := lookup(EnvOracle); ok {
		c.Oracle = v
	}
	return nil
}

func envError(name, value string, err error) error {
	return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, name, value, err)
}

// Validate checks the configuration before any device is touched.
func (c Config) Validate() error {
	switch {
	case c.Dim < 2 || c.Dim%2 != 0:
		return fmt.Errorf("%w: dim %d must be even and at least 2", ErrInvalidConfig, c.Dim)
	case c.Rounds < 1:
		return fmt.Errorf("%w: %d rounds", ErrInvalidConfig, c.Rounds)
	case c.Timer != timer.KindRegister && c.Timer != timer.KindCounter:
		return fmt.Errorf("%w: timer kind %v", ErrInvalidConfig, c.Timer)
	case c.Pace && c.Timer != timer.KindCounter:
		return fmt.Errorf("%w: pacing needs the counter timer", ErrInvalidConfig)
	case c.Pace && c.PaceTicks == 0:
		return fmt.Errorf("%w: zero pace interval", ErrInvalidConfig)
	case c.PollLimit < 0:
		return fmt.Errorf("%w: negative poll limit %d", ErrInvalidConfig, c.PollLimit)
	}
	if _, err := matrix.LookupOracle(c.Oracle); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
