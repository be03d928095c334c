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
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-offload/offload/axis"
	"github.com/ajroetker/go-offload/offload/dma"
	"github.com/ajroetker/go-offload/offload/fabric"
	"github.com/ajroetker/go-offload/offload/kernel"
	"github.com/ajroetker/go-offload/offload/timer"
)

type rig struct {
	board *fabric.Board
	eng   *dma.Engine
	con   *Recorder
}

func newRig(t *testing.T, opts ...fabric.Option) rig {
	t.Helper()
	board := fabric.NewBoard(opts...)
	eng, err := dma.New(board, fabric.DefaultDeviceID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return rig{board: board, eng: eng, con: &Recorder{}}
}

func (r rig) harness(t *testing.T, cfg Config, opts ...Option) *Harness {
	t.Helper()
	h, err := New(cfg, r.eng, r.board.Core(), timer.NewRegister(r.board), r.con, opts...)
	require.NoError(t, err)
	return h
}

func TestEndToEnd(t *testing.T) {
	r := newRig(t)
	rep, err := r.harness(t, DefaultConfig()).Run()
	require.NoError(t, err)

	require.Len(t, rep.Rounds, DefaultRounds)
	for _, rd := range rep.Rounds {
		assert.Zero(t, rd.Mismatches, "round %d", rd.Index)
		assert.NotZero(t, rd.Accelerated, "round %d", rd.Index)
		assert.False(t, math.IsInf(float64(rd.Speedup), 0) || math.IsNaN(float64(rd.Speedup)), "round %d: speed-up %v", rd.Index, rd.Speedup)
		assert.GreaterOrEqual(t, float64(rd.Speedup), 0.0)
	}
	assert.False(t, rep.Mismatched)
	assert.Zero(t, rep.ExitCode())
	assert.Equal(t, DefaultRounds, r.board.Core().Runs())

	assert.True(t, r.con.Contains("Calibration report:"))
	assert.True(t, r.con.Contains("SW and HW results match!"))
	assert.False(t, r.con.Contains("ERROR"))
	assert.Equal(t, "END", r.con.Lines[len(r.con.Lines)-1])
}

func TestEndToEndBLASOracle(t *testing.T) {
	r := newRig(t)
	cfg := DefaultConfig()
	cfg.Oracle = "blas"
	rep, err := r.harness(t, cfg).Run()
	require.NoError(t, err)
	assert.Zero(t, rep.ExitCode())
}

func TestStateSequence(t *testing.T) {
	r := newRig(t)
	var states []State
	cfg := DefaultConfig()
	cfg.Rounds = 2
	h := r.harness(t, cfg, WithStateHook(func(s State) { states = append(states, s) }))
	_, err := h.Run()
	require.NoError(t, err)

	round := []State{StateReference, StateAccelerated, StateCompare, StateReport}
	want := append([]State{StateInit, StateCalibrate}, round...)
	want = append(want, round...)
	want = append(want, StateDone)
	assert.Equal(t, want, states)
	assert.Equal(t, StateDone, h.State())
}

func TestOperandsAreNotMutated(t *testing.T) {
	r := newRig(t)
	h := r.harness(t, DefaultConfig())
	_, err := h.Run()
	require.NoError(t, err)
	for i := range h.a.Dim {
		for j := range h.a.Dim {
			require.Equal(t, float32(i+j), h.a.At(i, j))
			require.Equal(t, float32(i*j), h.b.At(i, j))
		}
	}
}

// flakyKernel corrupts the output of one chosen call.
type flakyKernel struct {
	*kernel.Kernel
	calls, bad int
}

func (k *flakyKernel) MultiplyStream(in axis.Frame) axis.Frame {
	out := k.Kernel.MultiplyStream(in)
	if k.calls == k.bad {
		out[0] = axis.Encode(axis.Decode(out[0])+1, out[0].Last)
	}
	k.calls++
	return out
}

func TestMismatchIsSticky(t *testing.T) {
	r := newRig(t, fabric.WithKernel(&flakyKernel{Kernel: kernel.MustNew(kernel.DefaultDim), bad: 1}))
	rep, err := r.harness(t, DefaultConfig()).Run()
	require.NoError(t, err)

	require.Len(t, rep.Rounds, DefaultRounds, "rounds continue after a mismatch")
	assert.Equal(t, []int{1}, rep.MismatchedRounds())
	assert.Equal(t, 1, rep.Rounds[1].Mismatches)
	assert.True(t, rep.Rounds[3].Matched())
	assert.True(t, rep.Mismatched)
	assert.Equal(t, 1, rep.ExitCode())
	assert.True(t, r.con.Contains("ERROR: results mismatch"))
}

func TestTransferErrorAborts(t *testing.T) {
	r := newRig(t, fabric.WithFault(dma.ToDevice, dma.StatusSlvErr))
	rep, err := r.harness(t, DefaultConfig()).Run()
	var te *dma.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dma.ToDevice, te.Dir)
	assert.Empty(t, rep.Rounds)
	assert.False(t, r.con.Contains("END"))
}

type constTimer struct{ kind timer.Kind }

func (constTimer) Reset()             {}
func (constTimer) ReadTicks() uint32  { return 42 }
func (c constTimer) Kind() timer.Kind { return c.kind }

func TestZeroAcceleratedTimeIsInfinite(t *testing.T) {
	r := newRig(t)
	h, err := New(DefaultConfig(), r.eng, r.board.Core(), constTimer{}, r.con)
	require.NoError(t, err)
	rep, err := h.Run()
	require.NoError(t, err)
	for _, rd := range rep.Rounds {
		assert.True(t, rd.Speedup.IsInf())
	}
	assert.True(t, rep.MeanSpeedup().IsInf())
	assert.True(t, r.con.Contains("Acceleration factor: inf"))
	assert.Zero(t, rep.ExitCode())
}

type nopTransport struct{}

func (nopTransport) Transmit([]byte, int) error { return nil }
func (nopTransport) Receive([]byte, int) error  { return nil }

type stuckCore struct{ polls int }

func (*stuckCore) Start() {}
func (c *stuckCore) IsDone() bool {
	c.polls++
	return false
}

func TestAcceleratorNeverDone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollLimit = 10
	core := &stuckCore{}
	h, err := New(cfg, nopTransport{}, core, constTimer{}, &Recorder{})
	require.NoError(t, err)
	_, err = h.Run()
	assert.ErrorIs(t, err, ErrNotDone)
	assert.Equal(t, 10, core.polls)
}

// steppingClock advances one microsecond per reading.
type steppingClock struct{ now time.Time }

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(time.Microsecond)
	return c.now
}

func TestPacing(t *testing.T) {
	r := newRig(t)
	clock := &steppingClock{now: time.Unix(0, 0)}
	cfg := DefaultConfig()
	cfg.Rounds = 2
	cfg.Timer = timer.KindCounter
	cfg.Pace = true
	cfg.PaceTicks = 10_000

	paced := 0
	tm := timer.NewCounter(timer.DefaultFrequency, timer.WithClock(clock.Now))
	h, err := New(cfg, r.eng, r.board.Core(), tm, r.con, WithStateHook(func(s State) {
		if s == StatePace {
			paced++
		}
	}))
	require.NoError(t, err)

	before := clock.now
	rep, err := h.Run()
	require.NoError(t, err)
	assert.Zero(t, rep.ExitCode())
	assert.Equal(t, 2, paced)
	// Each pace delay spans at least PaceTicks at 100 ticks per microsecond.
	assert.GreaterOrEqual(t, clock.now.Sub(before), 2*100*time.Microsecond)
}

func TestNewRejectsBadSetup(t *testing.T) {
	r := newRig(t)
	cfg := DefaultConfig()
	cfg.Dim = 3
	_, err := New(cfg, r.eng, r.board.Core(), timer.NewRegister(r.board), r.con)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(DefaultConfig(), r.eng, r.board.Core(), constTimer{kind: timer.KindCounter}, r.con)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"dim 4", func(c *Config) { c.Dim = 4 }, true},
		{"odd dim", func(c *Config) { c.Dim = 5 }, false},
		{"zero rounds", func(c *Config) { c.Rounds = 0 }, false},
		{"pace on register timer", func(c *Config) { c.Pace = true }, false},
		{"pace on counter timer", func(c *Config) { c.Pace, c.Timer = true, timer.KindCounter }, true},
		{"zero pace", func(c *Config) { c.Pace, c.Timer, c.PaceTicks = true, timer.KindCounter, 0 }, false},
		{"negative poll limit", func(c *Config) { c.PollLimit = -1 }, false},
		{"unbounded polling", func(c *Config) { c.PollLimit = 0 }, true},
		{"unknown oracle", func(c *Config) { c.Oracle = "strassen" }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestConfigEnv(t *testing.T) {
	env := func(kv map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := kv[k]
			return v, ok
		}
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.applyEnv(env(map[string]string{
		EnvDim:       "16",
		EnvRounds:    "2",
		EnvTimer:     "counter",
		EnvPace:      "5000",
		EnvPollLimit: "0",
		EnvOracle:    "blas",
	})))
	assert.Equal(t, Config{
		Dim:       16,
		Rounds:    2,
		Timer:     timer.KindCounter,
		Pace:      true,
		PaceTicks: 5000,
		PollLimit: 0,
		Oracle:    "blas",
	}, cfg)

	cfg = DefaultConfig()
	require.NoError(t, cfg.applyEnv(env(map[string]string{EnvPace: "true"})))
	assert.True(t, cfg.Pace)
	assert.Equal(t, uint32(DefaultPaceTicks), cfg.PaceTicks)

	for _, bad := range []map[string]string{
		{EnvDim: "thirty-two"},
		{EnvTimer: "sundial"},
		{EnvPace: "-1"},
		{EnvPollLimit: "many"},
	} {
		cfg := DefaultConfig()
		assert.ErrorIs(t, cfg.applyEnv(env(bad)), ErrInvalidConfig, "%v", bad)
	}

	t.Setenv(EnvRounds, "7")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Rounds)
}

func TestSpeedup(t *testing.T) {
	testCases := []struct {
		ref, acc uint32
		want     string
	}{
		{30, 10, "3.000"},
		{10, 30, "0.333"},
		{0, 10, "0.000"},
		{10, 0, "inf"},
		{0, 0, "inf"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, NewSpeedup(tc.ref, tc.acc).String(), "%d/%d", tc.ref, tc.acc)
	}
}

func TestReportMeanSpeedup(t *testing.T) {
	rep := &Report{Rounds: []Round{
		{Speedup: 2},
		{Speedup: NewSpeedup(1, 0)},
		{Speedup: 4},
	}}
	assert.Equal(t, Speedup(3), rep.MeanSpeedup())
	assert.Zero(t, (&Report{}).MeanSpeedup())
}

func TestWriterConsoleGroupsDigits(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriterConsole(&buf)
	linef(c, "Total run time for SW on Processor is %d cycles.", 1234567)
	assert.Equal(t, "Total run time for SW on Processor is 1,234,567 cycles.\n", buf.String())
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "RUN_ACCELERATED", StateAccelerated.String())
	assert.Equal(t, "PACE_DELAY", StatePace.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestEndToEndCounterTimer(t *testing.T) {
	r := newRig(t)
	cfg := DefaultConfig()
	cfg.Timer = timer.KindCounter
	h, err := New(cfg, r.eng, r.board.Core(), timer.NewCounter(timer.DefaultFrequency), r.con)
	require.NoError(t, err)
	rep, err := h.Run()
	require.NoError(t, err)

	require.Len(t, rep.Rounds, DefaultRounds)
	for _, rd := range rep.Rounds {
		assert.True(t, rd.Matched(), "round %d", rd.Index)
		// A 32x32 reference product takes tens of microseconds, thousands of
		// ticks at 100 MHz.
		assert.NotZero(t, rd.Reference, "round %d", rd.Index)
		assert.NotZero(t, rd.Accelerated, "round %d", rd.Index)
		assert.False(t, rd.Speedup.IsInf() || math.IsNaN(float64(rd.Speedup)), "round %d: speed-up %v", rd.Index, rd.Speedup)
		assert.Greater(t, float64(rd.Speedup), 0.0, "round %d", rd.Index)
	}
	assert.Zero(t, rep.ExitCode())
	assert.True(t, r.con.Contains("Loop time for 1,000 iterations"))
}

// mangledKernel damages the output frame shape of one chosen call.
type mangledKernel struct {
	*kernel.Kernel
	calls, bad int
	mangle     func(axis.Frame) axis.Frame
}

func (k *mangledKernel) MultiplyStream(in axis.Frame) axis.Frame {
	out := k.Kernel.MultiplyStream(in)
	if k.calls == k.bad {
		out = k.mangle(out)
	}
	k.calls++
	return out
}

func TestMalformedOutputFrameAborts(t *testing.T) {
	testCases := []struct {
		name   string
		mangle func(axis.Frame) axis.Frame
		want   error
	}{
		{"end-of-frame on first word", func(f axis.Frame) axis.Frame {
			for i := range f {
				f[i] = axis.Encode(-1, i == 0)
			}
			return f
		}, axis.ErrFrameBoundary},
		{"single word", func(f axis.Frame) axis.Frame {
			return axis.Frame{axis.Encode(-1, true)}
		}, axis.ErrFrameLength},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k := &mangledKernel{Kernel: kernel.MustNew(kernel.DefaultDim), bad: 1, mangle: tc.mangle}
			r := newRig(t, fabric.WithKernel(k))
			rep, err := r.harness(t, DefaultConfig()).Run()

			var te *dma.TransferError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, dma.FromDevice, te.Dir)
			assert.NotZero(t, te.Status&dma.StatusSlvErr)
			assert.ErrorIs(t, r.board.Core().Fault(), tc.want)
			require.Len(t, rep.Rounds, 1, "only the first round completed")
			assert.True(t, rep.Rounds[0].Matched())
			assert.False(t, r.con.Contains("END"))
		})
	}
}

// silentTransport forwards to an engine but stops delivering output after
// the first receive.
type silentTransport struct {
	Transport
	receives int
}

func (s *silentTransport) Receive(buf []byte, length int) error {
	s.receives++
	if s.receives > 1 {
		return nil
	}
	return s.Transport.Receive(buf, length)
}

func TestStaleOutputIsNotReused(t *testing.T) {
	r := newRig(t)
	cfg := DefaultConfig()
	cfg.Rounds = 2
	h, err := New(cfg, &silentTransport{Transport: r.eng}, r.board.Core(), timer.NewRegister(r.board), r.con)
	require.NoError(t, err)
	rep, err := h.Run()
	require.NoError(t, err)

	require.Len(t, rep.Rounds, 2)
	assert.True(t, rep.Rounds[0].Matched())
	assert.NotZero(t, rep.Rounds[1].Mismatches, "round 1 compared the previous product")
	assert.Equal(t, 1, rep.ExitCode())
}

// orderedAccel records whether the timer had been read before Start.
type orderedAccel struct {
	Accelerator
	timer     *countingTimer
	startedAt []int
}

func (a *orderedAccel) Start() {
	a.startedAt = append(a.startedAt, a.timer.reads)
	a.Accelerator.Start()
}

type countingTimer struct {
	timer.Timer
	reads int
}

func (c *countingTimer) ReadTicks() uint32 {
	c.reads++
	return c.Timer.ReadTicks()
}

func TestStartIsOutsideTimedRegion(t *testing.T) {
	r := newRig(t)
	tm := &countingTimer{Timer: timer.NewRegister(r.board)}
	accel := &orderedAccel{Accelerator: r.board.Core(), timer: tm}
	cfg := DefaultConfig()
	cfg.Rounds = 1
	h, err := New(cfg, r.eng, accel, tm, r.con)
	require.NoError(t, err)
	_, err = h.Run()
	require.NoError(t, err)

	// Calibration, loop check and the reference each read twice; the
	// accelerated measurement starts after Start.
	assert.Equal(t, []int{6}, accel.startedAt)
	assert.Equal(t, 8, tm.reads)
}
