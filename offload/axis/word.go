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
	"fmt"
	"math"
)

// Side-band field widths of the stream word.
const (
	DataBytes = 4
	UserBits  = 4
	IDBits    = 5
	DestBits  = 5

	// AllBytes is the keep/strobe value marking every payload byte valid.
	AllBytes = 1<<DataBytes - 1
)

// Word is one stream beat: a 32-bit payload and its side-band fields.
type Word struct {
	Data uint32
	Keep uint8
	Strb uint8
	User uint8
	ID   uint8
	Dest uint8
	Last bool
}

// Encode packs v into a stream word. The payload is the IEEE-754 bit pattern
// of v, so NaN payloads and infinities survive unchanged.
func Encode(v float32, last bool) Word {
	return Word{
		Data: math.Float32bits(v),
		Keep: AllBytes,
		Strb: AllBytes,
		Last: last,
	}
}

// Decode returns the float32 whose bit pattern is the payload of w.
// Side-band fields never affect the result.
func Decode(w Word) float32 {
	return math.Float32frombits(w.Data)
}

// Check reports whether w is a well-formed beat for a 4-byte payload.
func (w Word) Check() error {
	if w.Keep != AllBytes || w.Strb != AllBytes {
		return fmt.Errorf("%w: keep=%#x strb=%#x", ErrPartialWord, w.Keep, w.Strb)
	}
	if w.User>>UserBits != 0 || w.ID>>IDBits != 0 || w.Dest>>DestBits != 0 {
		return fmt.Errorf("%w: user=%#x id=%#x dest=%#x", ErrSideband, w.User, w.ID, w.Dest)
	}
	return nil
}

// String formats the word for logs and test failures.
func (w Word) String() string {
	last := 0
	if w.Last {
		last = 1
	}
	return fmt.Sprintf("{data:%#08x keep:%x strb:%x user:%x id:%x dest:%x last:%d}",
		w.Data, w.Keep, w.Strb, w.User, w.ID, w.Dest, last)
}
