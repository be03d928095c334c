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

package main

import (
	goflag "flag"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
	"k8s.io/klog/v2"

	"github.com/ajroetker/go-offload/internal/cyclesim"
	"github.com/ajroetker/go-offload/internal/hostinfo"
	"github.com/ajroetker/go-offload/offload/axis"
	"github.com/ajroetker/go-offload/offload/dma"
	"github.com/ajroetker/go-offload/offload/fabric"
	"github.com/ajroetker/go-offload/offload/harness"
	"github.com/ajroetker/go-offload/offload/kernel"
	"github.com/ajroetker/go-offload/offload/matrix"
	"github.com/ajroetker/go-offload/offload/timer"
)

// runOptions holds the flag values of the run command. Only flags set on the
// command line override the environment configuration.
type runOptions struct {
	dim       int
	rounds    int
	timer     string
	pace      bool
	paceTicks uint32
	pollLimit int
	oracle    string
	deviceID  uint32

	clock   string
	latency int
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &runOptions{}
	root := &cobra.Command{
		Use:           "mmoffload",
		Short:         "Benchmark the offloaded FP matrix multiplication",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Flags(), opts, out)
		},
	}
	root.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
	addRunFlags(root.Flags(), opts)

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark rounds (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Flags(), opts, out)
		},
	}
	addRunFlags(run.Flags(), opts)

	root.AddCommand(run, newSelftestCmd(out))
	return root
}

func addRunFlags(fs *pflag.FlagSet, o *runOptions) {
	def := harness.DefaultConfig()
	fs.IntVar(&o.dim, "dim", def.Dim, "matrix dimension ("+harness.EnvDim+")")
	fs.IntVar(&o.rounds, "rounds", def.Rounds, "benchmark rounds ("+harness.EnvRounds+")")
	fs.StringVar(&o.timer, "timer", def.Timer.String(), "timer implementation: register or counter ("+harness.EnvTimer+")")
	fs.BoolVar(&o.pace, "pace", def.Pace, "space rounds --pace-ticks apart, counter timer only ("+harness.EnvPace+")")
	fs.Uint32Var(&o.paceTicks, "pace-ticks", def.PaceTicks, "round cadence in timer ticks")
	fs.IntVar(&o.pollLimit, "poll-limit", def.PollLimit, "status polls per transfer, 0 for unbounded ("+harness.EnvPollLimit+")")
	fs.StringVar(&o.oracle, "oracle", def.Oracle, "reference multiplication: naive or blas ("+harness.EnvOracle+")")
	fs.Uint32Var(&o.deviceID, "device-id", def.DeviceID, "DMA device id")
	fs.StringVar(&o.clock, "clock", "monotonic", "register timer source: monotonic or board")
	fs.IntVar(&o.latency, "latency", fabric.DefaultLatency, "simulated DMA completion latency, in status polls")
}

// config merges the environment configuration with the flags that were set.
func (o *runOptions) config(fs *pflag.FlagSet) (harness.Config, error) {
	cfg, err := harness.ConfigFromEnv()
	if err != nil {
		return cfg, err
	}
	if fs.Changed("dim") {
		cfg.Dim = o.dim
	}
	if fs.Changed("rounds") {
		cfg.Rounds = o.rounds
	}
	if fs.Changed("timer") {
		k, err := timer.ParseKind(o.timer)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", harness.ErrInvalidConfig, err)
		}
		cfg.Timer = k
	}
	if fs.Changed("pace") {
		cfg.Pace = o.pace
	}
	if fs.Changed("pace-ticks") {
		cfg.PaceTicks = o.paceTicks
	}
	if fs.Changed("poll-limit") {
		cfg.PollLimit = o.pollLimit
	}
	if fs.Changed("oracle") {
		cfg.Oracle = o.oracle
	}
	if fs.Changed("device-id") {
		cfg.DeviceID = o.deviceID
	}
	if o.clock != "monotonic" && o.clock != "board" {
		return cfg, fmt.Errorf("%w: unknown clock %q", harness.ErrInvalidConfig, o.clock)
	}
	return cfg, cfg.Validate()
}

func runBenchmark(fs *pflag.FlagSet, o *runOptions, out io.Writer) error {
	cfg, err := o.config(fs)
	if err != nil {
		return err
	}
	console := harness.NewWriterConsole(out)

	k, err := kernel.New(cfg.Dim)
	if err != nil {
		return fmt.Errorf("%w: %v", harness.ErrInvalidConfig, err)
	}
	board := fabric.NewBoard(fabric.WithKernel(k), fabric.WithLatency(o.latency))
	eng, err := dma.New(board, cfg.DeviceID, dma.WithPollLimit(cfg.PollLimit))
	if err != nil {
		console.WriteLine("Error: DMA init failed")
		klog.Errorf("%v", err)
		return err
	}
	atexit.Register(func() { _ = eng.Close() })
	console.WriteLine("DMA Init done")

	var src timer.CounterSource
	if o.clock == "board" {
		src = board
	}
	tm, err := timer.New(cfg.Timer, timer.DefaultFrequency, src)
	if err != nil {
		return fmt.Errorf("%w: %v", harness.ErrInvalidConfig, err)
	}

	h, err := harness.New(cfg, eng, board.Core(), tm, console, harness.WithBanner(hostinfo.Describe()))
	if err != nil {
		return err
	}
	rep, err := h.Run()
	for _, dir := range dma.Directions {
		st := eng.Stats(dir)
		klog.V(1).Infof("%s: %d transfers, %d bytes, %d polls, %d errors", dir, st.Transfers, st.Bytes, st.Polls, st.Errors)
	}
	if err != nil {
		klog.Errorf("run aborted in %v: %v", h.State(), err)
		return err
	}
	if rep.Mismatched {
		return fmt.Errorf("%w in rounds %v", errMismatch, rep.MismatchedRounds())
	}
	return nil
}

func newSelftestCmd(out io.Writer) *cobra.Command {
	var dim int
	var cycles bool
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Stream the fixed operands through the kernel and check the product",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return selftest(out, dim, cycles)
		},
	}
	cmd.Flags().IntVar(&dim, "dim", kernel.DefaultDim, "matrix dimension")
	cmd.Flags().BoolVar(&cycles, "cycles", false, "replay the schedule on the cycle model")
	return cmd
}

func selftest(out io.Writer, dim int, cycles bool) error {
	k, err := kernel.New(dim)
	if err != nil {
		return fmt.Errorf("%w: %v", harness.ErrInvalidConfig, err)
	}
	console := harness.NewWriterConsole(out)
	console.WriteLine("DEBUGGING AXI4 STREAMING DATA TYPES!")

	a, b := matrix.New(dim), matrix.New(dim)
	matrix.FillSum(a)
	matrix.FillProduct(b)
	hw := matrix.New(dim)
	copy(hw.Data, k.MultiplyStream(axis.NewInputFrame(a.Data, b.Data)).Values())
	sw := matrix.New(dim)
	matrix.MultiplyNaive(a, b, sw)
	console.WriteLine(k.LastStats().String())

	if cycles {
		res, err := cyclesim.Simulate(dim)
		if err != nil {
			return err
		}
		console.WriteLine(fmt.Sprintf("cycle model: %d cycles, %.3f us at 100 MHz", res.Stats.Total(), res.Seconds()*1e6))
		if res.Stats.Total() != k.LastStats().Total() {
			klog.Warningf("cycle model disagrees with kernel accounting: %d != %d", res.Stats.Total(), k.LastStats().Total())
		}
	}

	if mm := matrix.Compare(sw, hw); len(mm) > 0 {
		console.WriteLine("Test failed!")
		return fmt.Errorf("%w: %d elements, first %v", errMismatch, len(mm), mm[0])
	}
	console.WriteLine("Matrixes identical ... Test successful!")
	return nil
}
