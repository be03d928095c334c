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

package matrix

import (
	"encoding/binary"
	"math"
)

// ByteLen returns the size of the matrix in host memory.
func (m *Matrix) ByteLen() int {
	return m.Len() * 4
}

// AppendBytes appends the elements of m to dst as little-endian IEEE-754
// bit patterns, the layout of a float array in the controller's memory.
func (m *Matrix) AppendBytes(dst []byte) []byte {
	for _, v := range m.Data[:m.Len()] {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// SetBytes loads m from the layout written by AppendBytes.
func (m *Matrix) SetBytes(src []byte) {
	if len(src) < m.ByteLen() {
		panic("matrix: byte buffer too short")
	}
	for k := range m.Len() {
		m.Data[k] = math.Float32frombits(binary.LittleEndian.Uint32(src[k*4:]))
	}
}
