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

// Package harness benchmarks the offloaded multiplication against a software
// reference and checks that both agree bit for bit.
//
// A run walks a fixed sequence of states:
//
//	INIT -> CALIBRATE -> { REFERENCE -> ACCELERATED -> COMPARE -> REPORT [-> PACE] } x rounds -> DONE
//
// The operands A[i][j] = i+j and B[i][j] = i*j are built once and never
// modified. Every round times the reference product, starts the core outside
// the timed region, then times the offload (transmit of A and B as one frame,
// receive of the product) and compares the two element by element. A mismatch is recorded and the
// remaining rounds still run; configuration and transfer errors end the run.
//
// # Timing
//
// All measurements subtract the calibration offset, the cost of two back to
// back timer reads. A fixed busy loop is timed once after calibration. The
// speed-up is reference over accelerated time; a zero accelerated time is
// reported as an infinite speed-up.
package harness

import (
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/ajroetker/go-offload/offload/matrix"
	"github.com/ajroetker/go-offload/offload/timer"
)

// ErrNotDone is returned when the accelerator does not signal completion
// within the poll limit after its output was received.
var ErrNotDone = errors.New("harness: accelerator never signalled done")

// Transport moves frames to and from the accelerator. *dma.Engine
// implements it.
type Transport interface {
	Transmit(buf []byte, length int) error
	Receive(buf []byte, length int) error
}

// Accelerator is the control interface of the compute core.
type Accelerator interface {
	Start()
	IsDone() bool
}

// State is a step of a run.
type State int

const (
	StateInit State = iota
	StateCalibrate
	StateReference
	StateAccelerated
	StateCompare
	StateReport
	StatePace
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateCalibrate:
		return "CALIBRATE"
	case StateReference:
		return "RUN_REFERENCE"
	case StateAccelerated:
		return "RUN_ACCELERATED"
	case StateCompare:
		return "COMPARE"
	case StateReport:
		return "REPORT"
	case StatePace:
		return "PACE_DELAY"
	case StateDone:
		return "DONE"
	default:
		return "unknown"
	}
}

// Option configures a Harness.
type Option func(*Harness)

// WithBanner adds lines printed after the title.
func WithBanner(lines ...string) Option {
	return func(h *Harness) { h.banner = append(h.banner, lines...) }
}

// WithStateHook calls fn on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(h *Harness) { h.onState = fn }
}

// Harness runs the benchmark. It owns none of its collaborators.
type Harness struct {
	cfg     Config
	xport   Transport
	accel   Accelerator
	timer   timer.Timer
	console Console
	oracle  matrix.Oracle

	banner  []string
	onState func(State)
	state   State

	a, b     *matrix.Matrix
	ref, res *matrix.Matrix
	in, out  []byte
}

// New validates cfg and returns a harness over the given collaborators.
func New(cfg Config, xport Transport, accel Accelerator, t timer.Timer, console Console, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t.Kind() != cfg.Timer {
		return nil, fmt.Errorf("%w: configured %v timer, got %v", ErrInvalidConfig, cfg.Timer, t.Kind())
	}
	oracle, _ := matrix.LookupOracle(cfg.Oracle)
	h := &Harness{
		cfg:     cfg,
		xport:   xport,
		accel:   accel,
		timer:   t,
		console: console,
		oracle:  oracle,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// State returns the current state.
func (h *Harness) State() State { return h.state }

func (h *Harness) enter(s State) {
	h.state = s
	klog.V(3).Infof("harness: %v", s)
	if h.onState != nil {
		h.onState(s)
	}
}

// Run executes every round. The report covers the rounds completed so far
// when an error is returned.
func (h *Harness) Run() (*Report, error) {
	h.enter(StateInit)
	h.setup()

	h.enter(StateCalibrate)
	cal := timer.Calibrate(h.timer)
	linef(h.console, "Calibration report:")
	linef(h.console, "init_time: %d cycles.", cal.Start)
	linef(h.console, "curr_time: %d cycles.", cal.End)
	linef(h.console, "calibration: %d cycles.", cal.Raw())

	rep := &Report{Calibration: cal.Raw()}
	sw := timer.Stopwatch{Timer: h.timer, Calibration: cal.Raw()}

	// A fixed busy loop shows the timer advancing in proportion to work.
	rep.LoopTime = sw.Measure(func() { spin(LoopIterations) }).Elapsed()
	linef(h.console, "Loop time for %d iterations is %d cycles.", LoopIterations, rep.LoopTime)

	for i := range h.cfg.Rounds {
		rd, err := h.round(i, sw)
		if err != nil {
			klog.Errorf("harness: round %d: %v", i, err)
			return rep, err
		}
		rep.Rounds = append(rep.Rounds, rd)
		if !rd.Matched() {
			rep.Mismatched = true
		}
	}

	h.enter(StateDone)
	if bad := rep.MismatchedRounds(); len(bad) > 0 {
		klog.V(1).Infof("harness: rounds %v mismatched", bad)
	}
	klog.V(1).Infof("harness: %d rounds, mean speed-up %v", len(rep.Rounds), rep.MeanSpeedup())
	h.console.WriteLine("END")
	return rep, nil
}

func (h *Harness) setup() {
	d := h.cfg.Dim
	h.a, h.b = matrix.New(d), matrix.New(d)
	matrix.FillSum(h.a)
	matrix.FillProduct(h.b)
	h.ref, h.res = matrix.New(d), matrix.New(d)
	h.in = make([]byte, 0, 2*h.a.ByteLen())
	h.out = make([]byte, h.res.ByteLen())

	linef(h.console, "********************************")
	linef(h.console, "FP MATRIX MULT + DMA (%dx%d)", d, d)
	for _, l := range h.banner {
		h.console.WriteLine(l)
	}
}

func (h *Harness) round(i int, sw timer.Stopwatch) (Round, error) {
	rd := Round{Index: i}

	h.enter(StateReference)
	ref := sw.Measure(func() { h.oracle(h.a, h.b, h.ref) })
	rd.Reference = ref.Elapsed()
	linef(h.console, "")
	linef(h.console, "Total run time for SW on Processor is %d cycles.", rd.Reference)

	h.enter(StateAccelerated)
	h.prepare()
	acc, err := sw.MeasureErr(h.offload)
	if err != nil {
		return rd, err
	}
	rd.Accelerated = acc.Elapsed()
	linef(h.console, "Total run time for AXI DMA + HW accelerator is %d cycles.", rd.Accelerated)

	h.enter(StateCompare)
	mm := matrix.Compare(h.ref, h.res)
	rd.Mismatches = len(mm)
	if len(mm) == 0 {
		linef(h.console, "SW and HW results match!")
	} else {
		linef(h.console, "ERROR: results mismatch (%d of %d elements, first %v)", len(mm), h.res.Len(), mm[0])
	}

	h.enter(StateReport)
	rd.Speedup = NewSpeedup(rd.Reference, rd.Accelerated)
	linef(h.console, "Acceleration factor: %v", rd.Speedup)

	if h.cfg.Pace {
		h.enter(StatePace)
		h.timer.Reset()
		timer.Pace(h.timer, h.timer.ReadTicks(), h.cfg.PaceTicks)
	}
	return rd, nil
}

// prepare starts the core and packs the operands, outside the timed
// region. A and B leave as one frame so that the end-of-frame word is the
// last word of B. The output buffer is cleared so that a round never sees
// the product of the previous one.
func (h *Harness) prepare() {
	h.accel.Start()
	h.in = h.b.AppendBytes(h.a.AppendBytes(h.in[:0]))
	clear(h.out)
}

// offload moves the frames and waits for the core to finish.
func (h *Harness) offload() error {
	if err := h.xport.Transmit(h.in, len(h.in)); err != nil {
		return err
	}
	if err := h.xport.Receive(h.out, len(h.out)); err != nil {
		return err
	}
	for polls := 1; !h.accel.IsDone(); polls++ {
		if h.cfg.PollLimit > 0 && polls >= h.cfg.PollLimit {
			return ErrNotDone
		}
	}
	h.res.SetBytes(h.out)
	return nil
}

// LoopIterations is the length of the timer sanity loop run after
// calibration.
const LoopIterations = 1000

var spinSink int

func spin(n int) {
	acc := 0
	for i := range n {
		acc += i
	}
	spinSink = acc
}
