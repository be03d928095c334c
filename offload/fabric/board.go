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

// Package fabric is a software stand-in for the programmable logic: a
// simple-mode DMA controller wired to a matrix-multiply core.
//
// The board implements dma.Platform, so the transfer engine and the
// benchmark harness run unchanged against it. The MM2S channel turns host
// bytes into stream words and feeds the core's input port; the S2MM channel
// drains the core's output port into host memory, finishing on the
// end-of-frame word. Channels complete after a configurable number of status
// polls and can be made to fail with injected error bits.
//
// The board also keeps a cycle counter advanced by register accesses, stream
// beats and kernel cycles, usable as a timer.CounterSource.
package fabric

import (
	"k8s.io/klog/v2"

	"github.com/ajroetker/go-offload/offload/dma"
	"github.com/ajroetker/go-offload/offload/kernel"
)

// DefaultDeviceID is the id of the board's only DMA instance.
const DefaultDeviceID = 0

// DefaultLatency is the number of busy polls before a channel completes.
const DefaultLatency = 4

var _ dma.Platform = (*Board)(nil)

// Board hosts one DMA controller and one accelerator core.
type Board struct {
	cfg     dma.Config
	present bool
	initErr error
	latency int
	faults  [len(dma.Directions)]dma.Status

	ctrl *controller
	core *Core

	cycles uint32
	inits  int
}

// Option configures a Board.
type Option func(*Board)

// WithDeviceID changes the id the DMA instance answers to.
func WithDeviceID(id uint32) Option {
	return func(b *Board) { b.cfg.DeviceID = id }
}

// WithScatterGather builds the DMA with the scatter-gather engine.
func WithScatterGather() Option {
	return func(b *Board) { b.cfg.HasSG = true }
}

// WithoutDevice removes the DMA instance from the configuration table.
func WithoutDevice() Option {
	return func(b *Board) { b.present = false }
}

// WithInitError makes CfgInitialize fail with err.
func WithInitError(err error) Option {
	return func(b *Board) { b.initErr = err }
}

// WithLatency sets the number of busy polls per transfer.
func WithLatency(polls int) Option {
	return func(b *Board) { b.latency = max(polls, 0) }
}

// WithFault makes every transfer on dir halt with status bits.
func WithFault(dir dma.Direction, status dma.Status) Option {
	return func(b *Board) { b.faults[dir] = status }
}

// WithKernel replaces the compute kernel behind the core.
func WithKernel(k kernel.ComputeKernel) Option {
	return func(b *Board) { b.core.kernel = k }
}

// NewBoard returns a board with a DefaultDim kernel.
func NewBoard(opts ...Option) *Board {
	b := &Board{
		cfg: dma.Config{
			DeviceID:  DefaultDeviceID,
			BaseAddr:  0x40400000,
			HasMM2S:   true,
			HasS2MM:   true,
			DataWidth: 32,
		},
		present: true,
		latency: DefaultLatency,
	}
	b.core = newCore(b, kernel.MustNew(kernel.DefaultDim))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LookupConfig implements dma.Platform.
func (b *Board) LookupConfig(deviceID uint32) (dma.Config, bool) {
	if !b.present || deviceID != b.cfg.DeviceID {
		return dma.Config{}, false
	}
	return b.cfg, true
}

// CfgInitialize implements dma.Platform.
func (b *Board) CfgInitialize(cfg dma.Config) (dma.Controller, error) {
	if b.initErr != nil {
		return nil, b.initErr
	}
	b.inits++
	b.ctrl = newController(b)
	b.core.reset()
	klog.V(2).Infof("fabric: dma %d at %#x initialized (sg=%v)", cfg.DeviceID, cfg.BaseAddr, cfg.HasSG)
	return b.ctrl, nil
}

// Core returns the accelerator control interface.
func (b *Board) Core() *Core { return b.core }

// InjectFault sets or clears (status 0) the fault of dir for later transfers.
func (b *Board) InjectFault(dir dma.Direction, status dma.Status) {
	b.faults[dir] = status
}

// InterruptMask returns the interrupt enable bits of dir, or zero before
// initialization.
func (b *Board) InterruptMask(dir dma.Direction) dma.IRQMask {
	if b.ctrl == nil {
		return 0
	}
	return dma.IRQMask(b.ctrl.channels[dir].cr) & dma.IRQAll
}

// Initialized reports how many times CfgInitialize succeeded.
func (b *Board) Initialized() int { return b.inits }

// Counter returns the modeled cycle count. It implements timer.CounterSource.
func (b *Board) Counter() uint32 {
	b.tick(1)
	return b.cycles
}

func (b *Board) tick(n uint32) {
	b.cycles += n
}
