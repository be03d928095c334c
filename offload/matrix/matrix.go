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

// Package matrix provides the square row-major float32 operands exchanged with
// the accelerator and the reference multiplications its results are checked
// against.
package matrix

// Matrix is a dense Dim x Dim matrix stored row-major.
type Matrix struct {
	Dim  int
	Data []float32
}

// New returns a zeroed dim x dim matrix.
func New(dim int) *Matrix {
	if dim <= 0 {
		panic("matrix: dimension must be positive")
	}
	return &Matrix{Dim: dim, Data: make([]float32, dim*dim)}
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Dim+j]
}

// Set stores v at (i, j).
func (m *Matrix) Set(i, j int, v float32) {
	m.Data[i*m.Dim+j] = v
}

// Row returns row i as a sub-slice of Data.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

// Len returns the element count Dim*Dim.
func (m *Matrix) Len() int {
	return m.Dim * m.Dim
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{Dim: m.Dim, Data: make([]float32, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// Fill sets every element to fn(i, j).
func (m *Matrix) Fill(fn func(i, j int) float32) {
	for i := range m.Dim {
		for j := range m.Dim {
			m.Data[i*m.Dim+j] = fn(i, j)
		}
	}
}

// FillSum sets m[i][j] = i + j.
func FillSum(m *Matrix) {
	m.Fill(func(i, j int) float32 { return float32(i + j) })
}

// FillProduct sets m[i][j] = i * j.
func FillProduct(m *Matrix) {
	m.Fill(func(i, j int) float32 { return float32(i * j) })
}

func checkSameDim(a, b, out *Matrix) {
	if a.Dim != b.Dim || a.Dim != out.Dim {
		panic("matrix: dimension mismatch")
	}
	if len(a.Data) < a.Len() || len(b.Data) < b.Len() || len(out.Data) < out.Len() {
		panic("matrix: data slice too short")
	}
}
