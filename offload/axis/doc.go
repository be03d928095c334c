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

// Package axis implements the stream word codec used between the host DMA
// engine and the matrix-multiply accelerator.
//
// A stream word carries one float32 payload plus the side-band fields of an
// AXI4-Stream beat configured as ap_axiu<32,4,5,5>:
//
//   - Data: 32 bits, the float32 bit pattern (reinterpreted, never converted)
//   - Keep, Strb: 4 bits, one per payload byte, all set on every beat
//   - User: 4 bits, always zero
//   - ID, Dest: 5 bits each, always zero (single logical channel)
//   - Last: end of frame, set only on the final word of a transfer
//
// # Frames
//
// An input frame is DIM*DIM words of matrix A immediately followed by
// DIM*DIM words of matrix B, with Last set only on the very last word. An
// output frame is DIM*DIM words of the result with Last on its final word.
// Within each matrix the stream position is k = row*DIM + col.
//
// # Wire format
//
// For transport outside the process each word packs into one little-endian
// 64-bit value:
//
//	bits  0-31  Data
//	bits 32-35  Keep
//	bits 36-39  Strb
//	bits 40-43  User
//	bit     44  Last
//	bits 45-49  ID
//	bits 50-54  Dest
//	bits 55-63  reserved, zero
package axis
