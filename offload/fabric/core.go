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

package fabric

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/ajroetker/go-offload/offload/axis"
	"github.com/ajroetker/go-offload/offload/kernel"
)

// Core is the accelerator block: a compute kernel behind an input and an
// output stream port, controlled through start/done/idle bits.
type Core struct {
	board  *Board
	kernel kernel.ComputeKernel

	in  axis.Frame
	out axis.Frame

	started bool
	done    bool
	idle    bool
	fault   error

	// badOutput is set when the kernel produced a malformed frame. It
	// stays set until reset.
	badOutput bool

	runs int
}

func newCore(b *Board, k kernel.ComputeKernel) *Core {
	return &Core{board: b, kernel: k, idle: true}
}

// Start raises ap_start. It is ignored while a run is in progress.
func (c *Core) Start() {
	c.board.tick(1)
	if !c.idle {
		return
	}
	c.started = true
	c.idle = false
	c.done = false
	c.tryRun()
}

// IsDone returns ap_done and clears it, like the control register.
func (c *Core) IsDone() bool {
	c.board.tick(1)
	d := c.done
	c.done = false
	return d
}

// IsIdle returns ap_idle.
func (c *Core) IsIdle() bool {
	c.board.tick(1)
	return c.idle
}

// Runs returns the number of completed multiplications.
func (c *Core) Runs() int { return c.runs }

// Fault returns the last protocol violation seen on the input port.
func (c *Core) Fault() error { return c.fault }

func (c *Core) frameWords() int {
	d := c.kernel.Dim()
	return 2 * d * d
}

// accept appends beats to the input FIFO. It fails when the beats break the
// input frame protocol; the MM2S channel reports that as a slave error.
func (c *Core) accept(beats axis.Frame) error {
	want := c.frameWords()
	for _, w := range beats {
		if err := w.Check(); err != nil {
			return c.reject(fmt.Errorf("input word %d: %w", len(c.in), err))
		}
		if len(c.in) == want {
			return c.reject(fmt.Errorf("%w: input frame overruns %d words", axis.ErrFrameLength, want))
		}
		c.in = append(c.in, w)
		if w.Last && len(c.in) != want {
			return c.reject(fmt.Errorf("%w: end-of-frame at word %d of %d", axis.ErrFrameBoundary, len(c.in)-1, want))
		}
	}
	c.tryRun()
	return nil
}

func (c *Core) reject(err error) error {
	c.fault = err
	c.in = c.in[:0]
	klog.V(2).Infof("fabric: core rejected input: %v", err)
	return err
}

// tryRun multiplies once the core is started and a whole frame is buffered.
func (c *Core) tryRun() {
	if !c.started || len(c.in) != c.frameWords() || !c.in[len(c.in)-1].Last {
		return
	}
	d := c.kernel.Dim()
	out := c.kernel.MultiplyStream(c.in)
	if s, ok := c.kernel.(interface{ LastStats() kernel.Stats }); ok {
		c.board.tick(uint32(s.LastStats().Total()))
	}
	c.in = c.in[:0]
	c.started = false
	c.idle = true
	if err := out.CheckShape(d * d); err != nil {
		c.fault = fmt.Errorf("output frame: %w", err)
		c.badOutput = true
		klog.V(2).Infof("fabric: core produced a malformed frame: %v", err)
		return
	}
	c.out = append(c.out, out...)
	c.done = true
	c.runs++
	klog.V(2).Infof("fabric: core run %d complete", c.runs)
}

func (c *Core) outputFault() bool { return c.badOutput }

// drain pops up to n output beats, stopping after an end-of-frame beat.
func (c *Core) drain(n int) axis.Frame {
	k := 0
	for k < n && k < len(c.out) {
		k++
		if c.out[k-1].Last {
			break
		}
	}
	beats := append(axis.Frame(nil), c.out[:k]...)
	c.out = c.out[k:]
	return beats
}

func (c *Core) pending() int { return len(c.out) }

func (c *Core) reset() {
	c.in = c.in[:0]
	c.out = c.out[:0]
	c.started, c.done, c.idle = false, false, true
	c.fault = nil
	c.badOutput = false
}
