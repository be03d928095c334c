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
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/ajroetker/go-offload/offload/axis"
	"github.com/ajroetker/go-offload/offload/dma"
)

// MaxTransferLength is the largest length the 23-bit length register holds.
const MaxTransferLength = 1<<23 - 1

var (
	// ErrChannelBusy is returned when a transfer is started on a running
	// channel.
	ErrChannelBusy = errors.New("fabric: channel busy")

	// ErrTooLong is returned for lengths beyond MaxTransferLength.
	ErrTooLong = errors.New("fabric: transfer longer than the length register")
)

// crRunStop is the run/stop bit of the channel control register.
const crRunStop uint32 = 1 << 0

type channel struct {
	dir dma.Direction
	cr  uint32
	sr  dma.Status

	buf       []byte
	length    int
	countdown int
	active    bool
	fault     dma.Status

	// transferred is the length register: bytes moved by the last
	// completed transfer.
	transferred int
}

func (ch *channel) halt() {
	ch.cr = 0
	ch.sr = dma.StatusHalted
	ch.buf, ch.length, ch.countdown, ch.active = nil, 0, 0, false
	ch.transferred = 0
}

// controller is the simple-mode DMA model seen through dma.Controller.
type controller struct {
	board    *Board
	channels [len(dma.Directions)]channel
}

func newController(b *Board) *controller {
	c := &controller{board: b}
	for _, dir := range dma.Directions {
		ch := &c.channels[dir]
		ch.dir = dir
		ch.halt()
		// Interrupts come out of reset enabled so that masking is observable.
		ch.cr = uint32(dma.IRQAll)
	}
	return c
}

func (c *controller) HasSG() bool {
	c.board.tick(1)
	return c.board.cfg.HasSG
}

func (c *controller) IntrDisable(mask dma.IRQMask, dir dma.Direction) {
	c.board.tick(1)
	c.channels[dir].cr &^= uint32(mask)
}

func (c *controller) SimpleTransfer(buf []byte, length int, dir dma.Direction) error {
	c.board.tick(1)
	ch := &c.channels[dir]
	if ch.active {
		return ErrChannelBusy
	}
	if length > MaxTransferLength {
		ch.sr |= dma.StatusIntErr
		return fmt.Errorf("%w: %d bytes", ErrTooLong, length)
	}
	ch.cr |= crRunStop
	ch.sr = 0
	ch.transferred = 0
	ch.buf = buf
	ch.length = length
	ch.countdown = c.board.latency
	ch.active = true
	ch.fault = c.board.faults[dir]
	klog.V(3).Infof("fabric: %s started, %d bytes", dir, length)
	return nil
}

func (c *controller) Busy(dir dma.Direction) bool {
	c.board.tick(1)
	ch := &c.channels[dir]
	if !ch.active {
		return false
	}
	if ch.countdown > 0 {
		ch.countdown--
		return true
	}
	if ch.fault != 0 {
		ch.sr = dma.StatusHalted | ch.fault
		return true
	}
	switch dir {
	case dma.ToDevice:
		beats := axis.FromBytes(ch.buf[:ch.length])
		c.board.tick(uint32(len(beats)))
		if err := c.board.core.accept(beats); err != nil {
			ch.sr = dma.StatusHalted | dma.StatusSlvErr
			return true
		}
		ch.transferred = ch.length
	case dma.FromDevice:
		// A malformed result frame is reported by the stream slave.
		if c.board.core.outputFault() {
			ch.sr = dma.StatusHalted | dma.StatusSlvErr
			return true
		}
		// The channel waits on the stream until the core produces data.
		if c.board.core.pending() == 0 {
			return true
		}
		beats := c.board.core.drain(ch.length / axis.DataBytes)
		c.board.tick(uint32(len(beats)))
		ch.transferred = beats.PutBytes(ch.buf[:ch.length])
	}
	ch.active = false
	ch.cr &^= crRunStop
	ch.sr = dma.StatusIdle
	ch.buf = nil
	return false
}

func (c *controller) Status(dir dma.Direction) dma.Status {
	c.board.tick(1)
	return c.channels[dir].sr
}

func (c *controller) Transferred(dir dma.Direction) int {
	c.board.tick(1)
	return c.channels[dir].transferred
}

func (c *controller) Reset() {
	c.board.tick(1)
	for _, dir := range dma.Directions {
		c.channels[dir].halt()
	}
	c.board.core.reset()
	klog.V(3).Infof("fabric: controller reset")
}
