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

package timer

import (
	"fmt"
	"time"
)

// CounterSource is a free-running 32-bit counter register.
type CounterSource interface {
	Counter() uint32
}

// Register is the low-level timer: it reads a counter register directly.
type Register struct {
	src  CounterSource
	base uint32
}

// NewRegister returns a register timer reading src.
func NewRegister(src CounterSource) *Register {
	return &Register{src: src}
}

// Reset loads zero into the count.
func (r *Register) Reset() { r.base = r.src.Counter() }

// ReadTicks returns the counter relative to the last Reset.
func (r *Register) ReadTicks() uint32 { return r.src.Counter() - r.base }

// Kind returns KindRegister.
func (r *Register) Kind() Kind { return KindRegister }

// Monotonic is a CounterSource backed by the process monotonic clock,
// counting at a fixed frequency. It stands in for the hardware timer's
// counter register.
type Monotonic struct {
	epoch time.Time
	hz    uint64
}

// NewMonotonic returns a counter ticking hz times per second.
func NewMonotonic(hz uint64) *Monotonic {
	if hz == 0 {
		panic("timer: zero frequency")
	}
	return &Monotonic{epoch: time.Now(), hz: hz}
}

// Counter returns the ticks since construction, modulo 2^32.
func (m *Monotonic) Counter() uint32 {
	return uint32(ticksSince(m.epoch, m.hz))
}

// Counter is the high-level timer API: a resettable tick counter derived
// from the monotonic clock.
type Counter struct {
	hz    uint64
	now   func() time.Time
	start time.Time
}

// CounterOption configures a Counter.
type CounterOption func(*Counter)

// WithClock replaces the clock, for tests.
func WithClock(now func() time.Time) CounterOption {
	return func(c *Counter) { c.now = now }
}

// NewCounter returns a counter timer ticking hz times per second.
func NewCounter(hz uint64, opts ...CounterOption) *Counter {
	if hz == 0 {
		panic("timer: zero frequency")
	}
	c := &Counter{hz: hz, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.start = c.now()
	return c
}

// Reset restarts the count.
func (c *Counter) Reset() { c.start = c.now() }

// ReadTicks returns the ticks since the last Reset, modulo 2^32.
func (c *Counter) ReadTicks() uint32 {
	return uint32(ticksBetween(c.start, c.now(), c.hz))
}

// Kind returns KindCounter.
func (c *Counter) Kind() Kind { return KindCounter }

// New builds the timer for kind. Register timers read src; when src is nil
// they read a Monotonic source at hz.
func New(kind Kind, hz uint64, src CounterSource) (Timer, error) {
	if hz == 0 {
		hz = DefaultFrequency
	}
	switch kind {
	case KindRegister:
		if src == nil {
			src = NewMonotonic(hz)
		}
		return NewRegister(src), nil
	case KindCounter:
		return NewCounter(hz), nil
	}
	return nil, fmt.Errorf("timer: unsupported kind %v", kind)
}

func ticksSince(from time.Time, hz uint64) uint64 {
	return ticksBetween(from, time.Now(), hz)
}

func ticksBetween(from, to time.Time, hz uint64) uint64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	// Split to avoid overflowing ns*hz for long runs.
	ns := uint64(d.Nanoseconds())
	sec, rem := ns/1e9, ns%1e9
	return sec*hz + rem*hz/1e9
}
