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

import "fmt"

// Mismatch records one element where two results disagree.
type Mismatch struct {
	Row, Col  int
	Want, Got float32
}

func (m Mismatch) String() string {
	return fmt.Sprintf("[%d][%d]: want %v, got %v", m.Row, m.Col, m.Want, m.Got)
}

// Compare returns every element where got differs from want under float32
// equality. NaN never compares equal, so a NaN in either result is reported.
func Compare(want, got *Matrix) []Mismatch {
	if want.Dim != got.Dim {
		panic("matrix: dimension mismatch")
	}
	var out []Mismatch
	for i := range want.Dim {
		for j := range want.Dim {
			w, g := want.At(i, j), got.At(i, j)
			if w != g {
				out = append(out, Mismatch{Row: i, Col: j, Want: w, Got: g})
			}
		}
	}
	return out
}

// Equal reports whether want and got are element-wise equal.
func Equal(want, got *Matrix) bool {
	return len(Compare(want, got)) == 0
}
