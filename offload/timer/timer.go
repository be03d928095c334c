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

// Package timer provides the tick counters used to measure offload rounds.
//
// Two implementations share the Timer interface:
//
//   - Register reads a free-running 32-bit counter register directly.
//   - Counter is the higher-level API: a resettable counter derived from the
//     monotonic clock at a fixed tick rate.
//
// Timers only measure; nothing in the offload path depends on their values.
package timer

import (
	"fmt"
	"strings"
)

// DefaultFrequency is the tick rate of the AXI timer, in Hz.
const DefaultFrequency = 100_000_000

// Kind selects a Timer implementation.
type Kind int

const (
	// KindRegister reads the counter register and never resets it.
	KindRegister Kind = iota

	// KindCounter resets before each measurement and supports pacing.
	KindCounter
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// ParseKind parses "register" or "counter".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "register", "reg", "low-level":
		return KindRegister, nil
	case "counter", "api", "high-level":
		return KindCounter, nil
	}
	return 0, fmt.Errorf("timer: unknown kind %q (want register or counter)", s)
}

// Timer is a 32-bit tick counter.
type Timer interface {
	// Reset restarts the count from zero.
	Reset()

	// ReadTicks returns the current count. It wraps at 2^32.
	ReadTicks() uint32

	// Kind reports which implementation this is.
	Kind() Kind
}

// Sample is one measurement. Elapsed subtracts the calibration offset.
type Sample struct {
	Start       uint32
	End         uint32
	Calibration uint32
}

// Raw returns End - Start with 32-bit wrap-around.
func (s Sample) Raw() uint32 {
	return s.End - s.Start
}

// Elapsed returns End - Start - Calibration. A raw difference smaller than
// the calibration offset yields zero rather than wrapping.
func (s Sample) Elapsed() uint32 {
	raw := s.Raw()
	if raw < s.Calibration {
		return 0
	}
	return raw - s.Calibration
}

// Calibrate measures the cost of reading t twice back to back.
func Calibrate(t Timer) Sample {
	start := t.ReadTicks()
	end := t.ReadTicks()
	return Sample{Start: start, End: end}
}

// Stopwatch measures code regions against one timer and a fixed calibration.
type Stopwatch struct {
	Timer       Timer
	Calibration uint32
}

// Measure runs fn between two timer reads. Counter timers are reset first,
// register timers keep running.
func (sw Stopwatch) Measure(fn func()) Sample {
	if sw.Timer.Kind() == KindCounter {
		sw.Timer.Reset()
	}
	start := sw.Timer.ReadTicks()
	fn()
	end := sw.Timer.ReadTicks()
	return Sample{Start: start, End: end, Calibration: sw.Calibration}
}

// MeasureErr is Measure for functions that can fail.
func (sw Stopwatch) MeasureErr(fn func() error) (Sample, error) {
	var err error
	s := sw.Measure(func() { err = fn() })
	return s, err
}

// Pace spins until ticks have elapsed since begin, as read from t.
func Pace(t Timer, begin, ticks uint32) {
	for t.ReadTicks()-begin < ticks {
	}
}
