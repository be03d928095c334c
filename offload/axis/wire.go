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

package axis

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Bit offsets of the packed 64-bit wire word.
const (
	keepShift = 32
	strbShift = 36
	userShift = 40
	lastShift = 44
	idShift   = 45
	destShift = 50

	// WireBytes is the size of one packed word on the wire.
	WireBytes = 8

	reservedMask = ^uint64(1<<55 - 1)
)

// ErrWire is returned when decoding a malformed wire buffer.
var ErrWire = errors.New("axis: malformed wire data")

// Pack returns the 64-bit wire encoding of w. Side-band fields are masked to
// their lane widths.
func (w Word) Pack() uint64 {
	v := uint64(w.Data)
	v |= uint64(w.Keep&0xF) << keepShift
	v |= uint64(w.Strb&0xF) << strbShift
	v |= uint64(w.User&(1<<UserBits-1)) << userShift
	if w.Last {
		v |= 1 << lastShift
	}
	v |= uint64(w.ID&(1<<IDBits-1)) << idShift
	v |= uint64(w.Dest&(1<<DestBits-1)) << destShift
	return v
}

// Unpack is the inverse of Pack. Reserved bits are ignored.
func Unpack(v uint64) Word {
	return Word{
		Data: uint32(v),
		Keep: uint8(v>>keepShift) & 0xF,
		Strb: uint8(v>>strbShift) & 0xF,
		User: uint8(v>>userShift) & (1<<UserBits - 1),
		Last: v>>lastShift&1 == 1,
		ID:   uint8(v>>idShift) & (1<<IDBits - 1),
		Dest: uint8(v>>destShift) & (1<<DestBits - 1),
	}
}

// MarshalBinary encodes f as consecutive little-endian packed words.
func (f Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, len(f)*WireBytes)
	for k, w := range f {
		binary.LittleEndian.PutUint64(buf[k*WireBytes:], w.Pack())
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into f.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data)%WireBytes != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrWire, len(data), WireBytes)
	}
	out := make(Frame, len(data)/WireBytes)
	for k := range out {
		v := binary.LittleEndian.Uint64(data[k*WireBytes:])
		if v&reservedMask != 0 {
			return fmt.Errorf("%w: reserved bits set in word %d", ErrWire, k)
		}
		out[k] = Unpack(v)
	}
	*f = out
	return nil
}
