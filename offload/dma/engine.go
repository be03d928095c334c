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

// Package dma drives a block-transfer controller in simple, polled mode.
//
// The engine is initialized once: the controller must exist, initialize and
// run without scatter-gather, and every interrupt source of both channels is
// masked. Transmit and Receive then start one simple transfer and spin on the
// channel's busy flag until it completes. There is one thread of control and
// at most one transfer in flight; failures are returned, never retried.
//
// Usage:
//
//	eng, err := dma.New(board, 0)
//	if err != nil {
//	    return err // *dma.ConfigError
//	}
//	defer eng.Close()
//
//	if err := eng.Transmit(in, len(in)); err != nil {
//	    return err // *dma.TransferError
//	}
//	if err := eng.Receive(out, len(out)); err != nil {
//	    return err
//	}
package dma

import (
	"fmt"

	"k8s.io/klog/v2"
)

// DefaultPollLimit bounds the busy-wait on a channel. The controller model
// completes a 32x32 transfer in a few thousand polls.
const DefaultPollLimit = 1 << 26

// WordBytes is the transfer granularity.
const WordBytes = 4

// ChannelStats counts the activity of one channel.
type ChannelStats struct {
	Transfers int
	Bytes     int
	Polls     int
	Errors    int
}

// Engine owns one initialized controller.
type Engine struct {
	ctrl      Controller
	cfg       Config
	pollLimit int
	stats     [len(Directions)]ChannelStats
	closed    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollLimit bounds the number of status polls per transfer. Zero spins
// until the controller reports completion, however long that takes.
func WithPollLimit(n int) Option {
	return func(e *Engine) {
		if n < 0 {
			n = 0
		}
		e.pollLimit = n
	}
}

// New looks up, initializes and checks controller deviceID, then disables
// all of its interrupts. Any failure is a *ConfigError.
func New(p Platform, deviceID uint32, opts ...Option) (*Engine, error) {
	cfg, ok := p.LookupConfig(deviceID)
	if !ok {
		return nil, &ConfigError{Kind: ConfigNotFound, DeviceID: deviceID}
	}
	ctrl, err := p.CfgInitialize(cfg)
	if err != nil {
		return nil, &ConfigError{Kind: ConfigInitFailed, DeviceID: deviceID, Err: err}
	}
	if ctrl.HasSG() {
		return nil, &ConfigError{Kind: ConfigScatterGather, DeviceID: deviceID}
	}
	for _, dir := range Directions {
		ctrl.IntrDisable(IRQAll, dir)
	}

	e := &Engine{ctrl: ctrl, cfg: cfg, pollLimit: DefaultPollLimit}
	for _, opt := range opts {
		opt(e)
	}
	klog.V(1).Infof("dma: device %d initialized in simple mode, interrupts disabled, poll limit %d", deviceID, e.pollLimit)
	return e, nil
}

// Config returns the configuration the engine was initialized with.
func (e *Engine) Config() Config { return e.cfg }

// HasScatterGather reports the controller mode. It is always false for an
// engine returned by New.
func (e *Engine) HasScatterGather() bool { return e.ctrl.HasSG() }

// Transmit moves the first length bytes of buf to the device and blocks
// until the controller reports completion.
func (e *Engine) Transmit(buf []byte, length int) error {
	return e.transfer(buf, length, ToDevice)
}

// Receive fills the first length bytes of buf from the device and blocks
// until the controller reports completion.
func (e *Engine) Receive(buf []byte, length int) error {
	return e.transfer(buf, length, FromDevice)
}

// Stats returns the counters of dir.
func (e *Engine) Stats(dir Direction) ChannelStats { return e.stats[dir] }

// Close resets the controller. Later transfers fail with ErrClosed.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.ctrl.Reset()
	klog.V(1).Infof("dma: device %d reset", e.cfg.DeviceID)
	return nil
}

func (e *Engine) transfer(buf []byte, length int, dir Direction) error {
	if e.closed {
		return ErrClosed
	}
	if length <= 0 || length%WordBytes != 0 || length > len(buf) {
		return fmt.Errorf("%w: %d bytes on %s with a %d byte buffer", ErrLength, length, dir, len(buf))
	}
	st := &e.stats[dir]
	if err := e.ctrl.SimpleTransfer(buf, length, dir); err != nil {
		st.Errors++
		return &TransferError{Dir: dir, Length: length, Status: e.ctrl.Status(dir), Err: err}
	}
	polls, err := e.wait(dir, length)
	st.Polls += polls
	if err != nil {
		st.Errors++
		return err
	}
	if n := e.ctrl.Transferred(dir); n != length {
		st.Errors++
		return &TransferError{Dir: dir, Length: length, Status: e.ctrl.Status(dir),
			Err: fmt.Errorf("%w: %d of %d bytes", ErrShortTransfer, n, length)}
	}
	st.Transfers++
	st.Bytes += length
	klog.V(2).Infof("dma: %s %d bytes done after %d polls", dir, length, polls)
	return nil
}

// wait spins on the busy flag of dir. Error bits end the wait early.
func (e *Engine) wait(dir Direction, length int) (int, error) {
	polls := 0
	for {
		polls++
		busy := e.ctrl.Busy(dir)
		if status := e.ctrl.Status(dir); status.Err() {
			return polls, &TransferError{Dir: dir, Length: length, Status: status}
		}
		if !busy {
			return polls, nil
		}
		if e.pollLimit > 0 && polls >= e.pollLimit {
			return polls, &TransferError{Dir: dir, Length: length, Status: e.ctrl.Status(dir), Err: ErrTimeout}
		}
	}
}
