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
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// MultiplyNaive computes out = a * b with the plain triple loop.
// out[i][j] = ((0 + a[i][0]*b[0][j]) + a[i][1]*b[1][j]) + ...
//
// Each product is rounded to float32 before it is added, which keeps the
// compiler from fusing the step into a multiply-add. The accelerator kernel
// performs exactly the same sequence of roundings, so results compare equal
// bit for bit.
func MultiplyNaive(a, b, out *Matrix) {
	checkSameDim(a, b, out)
	dim := a.Dim
	for i := range dim {
		for j := range dim {
			var sum float32
			for k := range dim {
				sum += float32(a.Data[i*dim+k] * b.Data[k*dim+j])
			}
			out.Data[i*dim+j] = sum
		}
	}
}

// MultiplyBLAS computes out = a * b through gonum's single-precision GEMM.
// It is an alternative timing baseline; its summation order is an
// implementation detail of gonum and is only guaranteed to agree with
// MultiplyNaive when every partial sum is exactly representable.
func MultiplyBLAS(a, b, out *Matrix) {
	checkSameDim(a, b, out)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, general(a), general(b), 0, general(out))
}

func general(m *Matrix) blas32.General {
	return blas32.General{Rows: m.Dim, Cols: m.Dim, Stride: m.Dim, Data: m.Data}
}

// Oracle computes a reference product.
type Oracle func(a, b, out *Matrix)

var oracles = map[string]Oracle{
	"naive": MultiplyNaive,
	"blas":  MultiplyBLAS,
}

// OracleNames returns the registered oracle names in sorted order.
func OracleNames() []string {
	names := make([]string, 0, len(oracles))
	for name := range oracles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupOracle returns the oracle registered under name.
func LookupOracle(name string) (Oracle, error) {
	o, ok := oracles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("matrix: unknown oracle %q (want one of %s)", name, strings.Join(OracleNames(), ", "))
	}
	return o, nil
}
