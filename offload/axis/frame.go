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

var (
	// ErrFrameLength is returned when a frame does not hold the expected
	// number of words.
	ErrFrameLength = errors.New("axis: wrong frame length")

	// ErrFrameBoundary is returned when the end-of-frame flag is missing on
	// the final word or present on any other word.
	ErrFrameBoundary = errors.New("axis: misplaced end-of-frame")

	// ErrPartialWord is returned for a beat whose keep or strobe bits do not
	// cover the full payload.
	ErrPartialWord = errors.New("axis: partial word")

	// ErrSideband is returned for side-band fields wider than their lanes.
	ErrSideband = errors.New("axis: side-band field out of range")
)

// Frame is an ordered sequence of words forming one logical transfer.
type Frame []Word

// NewInputFrame encodes matrix a followed by matrix b as one frame.
// Only the very last word of b carries the end-of-frame flag.
func NewInputFrame(a, b []float32) Frame {
	if len(a) != len(b) {
		panic("axis: operand sizes differ")
	}
	n := len(a)
	f := make(Frame, 2*n)
	for k, v := range a {
		f[k] = Encode(v, false)
	}
	for k, v := range b {
		f[n+k] = Encode(v, k == n-1)
	}
	return f
}

// NewOutputFrame encodes c with the end-of-frame flag on its last word.
func NewOutputFrame(c []float32) Frame {
	f := make(Frame, len(c))
	for k, v := range c {
		f[k] = Encode(v, k == len(c)-1)
	}
	return f
}

// Values decodes every word of f in stream order.
func (f Frame) Values() []float32 {
	out := make([]float32, len(f))
	for k, w := range f {
		out[k] = Decode(w)
	}
	return out
}

// CheckShape verifies that f has exactly n words and that only the final
// word is flagged as end-of-frame.
func (f Frame) CheckShape(n int) error {
	if len(f) != n {
		return fmt.Errorf("%w: got %d words, want %d", ErrFrameLength, len(f), n)
	}
	for k, w := range f {
		if w.Last != (k == n-1) {
			return fmt.Errorf("%w: word %d of %d has last=%v", ErrFrameBoundary, k, n, w.Last)
		}
	}
	return nil
}

// FromBytes turns a host buffer into stream beats the way a memory-to-stream
// DMA channel does: four little-endian bytes per beat, full keep/strobe and
// end-of-frame on the final beat. len(buf) must be a multiple of DataBytes.
func FromBytes(buf []byte) Frame {
	if len(buf)%DataBytes != 0 {
		panic("axis: buffer length is not a multiple of the word size")
	}
	n := len(buf) / DataBytes
	f := make(Frame, n)
	for k := range n {
		f[k] = Word{
			Data: binary.LittleEndian.Uint32(buf[k*DataBytes:]),
			Keep: AllBytes,
			Strb: AllBytes,
			Last: k == n-1,
		}
	}
	return f
}

// PutBytes writes the payload of each word into dst, four little-endian bytes
// per word, and returns the number of bytes written. Writing stops at the
// first word flagged as end-of-frame or when dst is full.
func (f Frame) PutBytes(dst []byte) int {
	written := 0
	for _, w := range f {
		if written+DataBytes > len(dst) {
			break
		}
		binary.LittleEndian.PutUint32(dst[written:], w.Data)
		written += DataBytes
		if w.Last {
			break
		}
	}
	return written
}
