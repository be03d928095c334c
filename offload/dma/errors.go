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

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every ConfigError.
	ErrConfiguration = errors.New("dma: configuration error")

	// ErrTransfer is matched by every TransferError.
	ErrTransfer = errors.New("dma: transfer error")

	// ErrTimeout is wrapped by a TransferError when polling gave up.
	ErrTimeout = errors.New("dma: completion polling timed out")

	// ErrLength is returned for lengths that do not describe whole words
	// inside the buffer.
	ErrLength = errors.New("dma: invalid transfer length")

	// ErrShortTransfer is wrapped by a TransferError when the channel
	// completed with fewer bytes than requested.
	ErrShortTransfer = errors.New("dma: short transfer")

	// ErrClosed is returned by transfers after Close.
	ErrClosed = errors.New("dma: engine closed")
)

// ConfigKind classifies configuration failures.
type ConfigKind int

const (
	ConfigNotFound ConfigKind = iota
	ConfigInitFailed
	ConfigScatterGather
)

func (k ConfigKind) String() string {
	switch k {
	case ConfigNotFound:
		return "config not found"
	case ConfigInitFailed:
		return "initialization failed"
	case ConfigScatterGather:
		return "configured in scatter-gather mode"
	default:
		return "unknown"
	}
}

// ConfigError is a fatal setup failure. No transfer is attempted after one.
type ConfigError struct {
	Kind     ConfigKind
	DeviceID uint32
	Err      error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("dma: device %d: %s", e.DeviceID, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransferError reports a transfer that did not complete successfully.
type TransferError struct {
	Dir    Direction
	Length int
	Status Status
	Err    error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("dma: %s transfer of %d bytes failed (status %s)", e.Dir, e.Length, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrTransfer.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransfer
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
