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

package dma

import "strings"

// Direction is one of the two DMA channels.
type Direction int

const (
	// ToDevice is the memory-to-stream channel (MM2S): host buffer to the
	// accelerator input port.
	ToDevice Direction = iota

	// FromDevice is the stream-to-memory channel (S2MM): accelerator output
	// port to a host buffer.
	FromDevice
)

// String returns the channel name.
func (d Direction) String() string {
	switch d {
	case ToDevice:
		return "mm2s"
	case FromDevice:
		return "s2mm"
	default:
		return "unknown"
	}
}

// Directions lists both channels in register order.
var Directions = [...]Direction{ToDevice, FromDevice}

// IRQMask selects interrupt sources of a channel.
type IRQMask uint32

// Interrupt sources, laid out as in the channel control register.
const (
	IRQIOC   IRQMask = 1 << 12 // transfer complete
	IRQDelay IRQMask = 1 << 13 // delay timer
	IRQError IRQMask = 1 << 14 // error
	IRQAll           = IRQIOC | IRQDelay | IRQError
)

// Status is the channel status register.
type Status uint32

// Status bits.
const (
	StatusHalted Status = 1 << 0
	StatusIdle   Status = 1 << 1
	StatusSGIncl Status = 1 << 3
	StatusIntErr Status = 1 << 4 // internal error, e.g. zero length
	StatusSlvErr Status = 1 << 5 // slave error from the stream peer or memory
	StatusDecErr Status = 1 << 6 // address decode error

	StatusErrMask = StatusIntErr | StatusSlvErr | StatusDecErr
)

// Err reports whether any error bit is set.
func (s Status) Err() bool {
	return s&StatusErrMask != 0
}

// String lists the set bits.
func (s Status) String() string {
	var parts []string
	for _, bit := range []struct {
		mask Status
		name string
	}{
		{StatusHalted, "halted"},
		{StatusIdle, "idle"},
		{StatusSGIncl, "sg"},
		{StatusIntErr, "interr"},
		{StatusSlvErr, "slverr"},
		{StatusDecErr, "decerr"},
	} {
		if s&bit.mask != 0 {
			parts = append(parts, bit.name)
		}
	}
	if len(parts) == 0 {
		return "running"
	}
	return strings.Join(parts, "|")
}

// Config is the static description of one DMA instance.
type Config struct {
	DeviceID uint32
	BaseAddr uint64

	// HasSG is true when the engine was built with the scatter-gather
	// descriptor engine.
	HasSG bool

	HasMM2S bool
	HasS2MM bool

	// DataWidth is the stream width in bits.
	DataWidth int
}

// Platform is the controller setup service.
type Platform interface {
	// LookupConfig returns the configuration of deviceID, if present.
	LookupConfig(deviceID uint32) (Config, bool)

	// CfgInitialize brings up the controller described by cfg.
	CfgInitialize(cfg Config) (Controller, error)
}

// Controller is an initialized block-transfer controller.
type Controller interface {
	// HasSG reports whether the controller runs in scatter-gather mode.
	HasSG() bool

	// IntrDisable masks the given interrupt sources on one channel.
	IntrDisable(mask IRQMask, dir Direction)

	// SimpleTransfer starts moving length bytes between buf and the channel.
	// It returns as soon as the transfer is started.
	SimpleTransfer(buf []byte, length int, dir Direction) error

	// Busy reports whether a transfer is still in flight on dir.
	Busy(dir Direction) bool

	// Status returns the status register of dir.
	Status(dir Direction) Status

	// Transferred returns the length register of dir: the bytes moved by
	// the last completed transfer. A stream-to-memory transfer ends early
	// when the stream delivers end-of-frame.
	Transferred(dir Direction) int

	// Reset stops both channels and clears their state.
	Reset()
}
