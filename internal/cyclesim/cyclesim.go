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

// Package cyclesim replays the kernel's schedule one clock cycle at a time on
// an event-driven simulation engine.
//
// The core moves through load A, load B, compute and store. Loads and stores
// take one stream word per cycle. The compute phase issues one output cell
// per cycle into a pipeline of kernel.PipelineDepth stages, so after the
// pipeline fills one cell retires every cycle.
package cyclesim

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/ajroetker/go-offload/offload/kernel"
)

// Freq is the fabric clock.
const Freq = 100 * sim.MHz

// Phase is a step of the kernel schedule.
type Phase int

const (
	PhaseLoadA Phase = iota
	PhaseLoadB
	PhaseCompute
	PhaseStore
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadA:
		return "load_a"
	case PhaseLoadB:
		return "load_b"
	case PhaseCompute:
		return "compute"
	case PhaseStore:
		return "store"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Core is a ticking model of the matrix-multiply core.
type Core struct {
	*sim.TickingComponent

	dim   int
	cells int
	depth int

	phase  Phase
	moved  int   // words moved in the current load or store phase
	issued int   // cells issued to the pipeline
	pipe   []int // remaining stages per in-flight cell, oldest first

	retired []int
	stats   kernel.Stats
}

// NewCore builds a core for dim x dim matrices on engine.
func NewCore(name string, engine sim.Engine, dim int) *Core {
	if dim < 2 || dim%2 != 0 {
		panic(fmt.Sprintf("cyclesim: dimension %d must be even and at least 2", dim))
	}
	c := &Core{
		dim:   dim,
		cells: dim * dim,
		depth: kernel.PipelineDepth(dim),
	}
	c.stats = kernel.Stats{Dim: dim, PipelineDepth: c.depth}
	c.TickingComponent = sim.NewTickingComponent(name, engine, Freq, c)
	return c
}

// Tick advances the core by one cycle.
func (c *Core) Tick() bool {
	switch c.phase {
	case PhaseLoadA:
		c.stats.LoadA++
		c.move(PhaseLoadB)
	case PhaseLoadB:
		c.stats.LoadB++
		c.move(PhaseCompute)
	case PhaseCompute:
		c.compute()
	case PhaseStore:
		c.stats.Store++
		c.move(PhaseDone)
	default:
		return false
	}
	return c.phase != PhaseDone
}

func (c *Core) move(next Phase) {
	c.moved++
	if c.moved == c.cells {
		c.moved = 0
		c.phase = next
	}
}

func (c *Core) compute() {
	cycle := c.stats.Compute
	c.stats.Compute++
	if c.issued < c.cells {
		c.pipe = append(c.pipe, c.depth)
		c.issued++
		c.stats.Initiations++
	}
	for i := range c.pipe {
		c.pipe[i]--
	}
	for len(c.pipe) > 0 && c.pipe[0] == 0 {
		c.pipe = c.pipe[1:]
		c.retired = append(c.retired, cycle)
	}
	if len(c.retired) == c.cells {
		c.phase = PhaseStore
	}
}

// Phase returns the current phase.
func (c *Core) Phase() Phase { return c.phase }

// Stats returns the cycle accounting so far. Bank and protocol counters are
// not modeled and stay zero.
func (c *Core) Stats() kernel.Stats { return c.stats }

// Retired returns, for each output cell in issue order, the compute cycle in
// which it left the pipeline.
func (c *Core) Retired() []int { return c.retired }

// Result is the outcome of one simulated multiplication.
type Result struct {
	Stats   kernel.Stats
	Retired []int
}

// Seconds returns the wall time of the whole schedule at Freq.
func (r Result) Seconds() float64 {
	return float64(r.Stats.Total()) / float64(Freq)
}

// Simulate runs one multiplication of dim x dim matrices to completion.
func Simulate(dim int) (Result, error) {
	engine := sim.NewSerialEngine()
	core := NewCore("MMultCore", engine, dim)
	engine.Schedule(sim.MakeTickEvent(core, 0))
	if err := engine.Run(); err != nil {
		return Result{}, fmt.Errorf("cyclesim: %w", err)
	}
	if core.Phase() != PhaseDone {
		return Result{}, fmt.Errorf("cyclesim: engine stopped in phase %v", core.Phase())
	}
	return Result{Stats: core.Stats(), Retired: core.Retired()}, nil
}
