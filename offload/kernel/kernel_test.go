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

package kernel

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajroetker/go-offload/offload/axis"
	"github.com/ajroetker/go-offload/offload/matrix"
)

func fixtureOperands(dim int) (a, b *matrix.Matrix) {
	a, b = matrix.New(dim), matrix.New(dim)
	matrix.FillSum(a)
	matrix.FillProduct(b)
	return a, b
}

func runKernel(t *testing.T, k *Kernel, a, b *matrix.Matrix) *matrix.Matrix {
	t.Helper()
	out := k.MultiplyStream(axis.NewInputFrame(a.Data, b.Data))
	if err := out.CheckShape(k.Dim() * k.Dim()); err != nil {
		t.Fatalf("output frame: %v", err)
	}
	return &matrix.Matrix{Dim: k.Dim(), Data: out.Values()}
}

func TestMultiplyStreamFixture(t *testing.T) {
	a, b := fixtureOperands(4)
	got := runKernel(t, MustNew(4), a, b)
	want := []float32{
		0, 14, 28, 42,
		0, 20, 40, 60,
		0, 26, 52, 78,
		0, 32, 64, 96,
	}
	if diff := cmp.Diff(want, got.Data); diff != "" {
		t.Errorf("MultiplyStream mismatch (-want +got):\n%s", diff)
	}
}

// Non-integer inputs make every rounding visible; the kernel and the
// reference must still agree bit for bit.
func TestMultiplyStreamBitExact(t *testing.T) {
	for _, dim := range []int{2, 4, 8, 16, 32} {
		t.Run(matrixName(dim), func(t *testing.T) {
			a, b := matrix.New(dim), matrix.New(dim)
			a.Fill(func(i, j int) float32 { return float32(math.Sin(float64(i*dim+j))) * 1.7 })
			b.Fill(func(i, j int) float32 { return float32(math.Cos(float64(i+3*j))) / 3 })

			want := matrix.New(dim)
			matrix.MultiplyNaive(a, b, want)
			got := runKernel(t, MustNew(dim), a, b)

			for i := range want.Data {
				if math.Float32bits(want.Data[i]) != math.Float32bits(got.Data[i]) {
					t.Fatalf("element %d: want %v (%#08x), got %v (%#08x)",
						i, want.Data[i], math.Float32bits(want.Data[i]), got.Data[i], math.Float32bits(got.Data[i]))
				}
			}
		})
	}
}

func TestMultiplyStreamSpecialValues(t *testing.T) {
	a, b := matrix.New(2), matrix.New(2)
	a.Data = []float32{float32(math.Inf(1)), 1, 0, 2}
	b.Data = []float32{1, 0, 0, 1}
	got := runKernel(t, MustNew(2), a, b)
	if !math.IsInf(float64(got.At(0, 0)), 1) {
		t.Errorf("out[0][0] = %v, want +Inf", got.At(0, 0))
	}
	// Inf * 0 is NaN and propagates through the sum.
	if !math.IsNaN(float64(got.At(0, 1))) {
		t.Errorf("out[0][1] = %v, want NaN", got.At(0, 1))
	}
}

func TestNoStateAcrossCalls(t *testing.T) {
	k := MustNew(8)
	a, b := fixtureOperands(8)
	first := runKernel(t, k, a, b)

	x, y := matrix.New(8), matrix.New(8)
	x.Fill(func(i, j int) float32 { return float32(i - j) })
	y.Fill(func(i, j int) float32 { return 0.5 * float32(j) })
	_ = runKernel(t, k, x, y)

	again := runKernel(t, k, a, b)
	if diff := cmp.Diff(first.Data, again.Data); diff != "" {
		t.Errorf("result depends on a previous call (-first +again):\n%s", diff)
	}
}

func TestNewRejectsOddDim(t *testing.T) {
	for _, dim := range []int{-2, 0, 1, 3, 31} {
		if _, err := New(dim); !errors.Is(err, ErrOddDim) {
			t.Errorf("New(%d) error = %v, want ErrOddDim", dim, err)
		}
	}
	k, err := New(DefaultDim)
	if err != nil {
		t.Fatal(err)
	}
	if k.Factor() != DefaultDim/2 {
		t.Errorf("Factor() = %d, want %d", k.Factor(), DefaultDim/2)
	}
}

func TestMultiplyStreamWrongLengthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("MultiplyStream with a short frame did not panic")
		}
	}()
	MustNew(4).MultiplyStream(make(axis.Frame, 31))
}

func TestMalformedWordsCounted(t *testing.T) {
	a, b := fixtureOperands(2)
	in := axis.NewInputFrame(a.Data, b.Data)
	in[1].Keep = 0x3
	in[6].Dest = 0x3F
	k := MustNew(2)
	k.MultiplyStream(in)
	if got := k.LastStats().MalformedWords; got != 2 {
		t.Errorf("MalformedWords = %d, want 2", got)
	}
}

// Throughput is a performance property: after the pipeline fills, one
// output cell completes per cycle and no bank serves more reads than it
// has ports.
func TestComputeThroughput(t *testing.T) {
	for _, dim := range []int{2, 4, 16, 32} {
		t.Run(matrixName(dim), func(t *testing.T) {
			k := MustNew(dim)
			a, b := fixtureOperands(dim)
			runKernel(t, k, a, b)
			s := k.LastStats()

			size := dim * dim
			if s.LoadA != size || s.LoadB != size || s.Store != size {
				t.Errorf("load/store cycles = %d/%d/%d, want %d each", s.LoadA, s.LoadB, s.Store, size)
			}
			if s.Initiations != size {
				t.Errorf("Initiations = %d, want %d", s.Initiations, size)
			}
			if want := size + PipelineDepth(dim) - 1; s.Compute != want {
				t.Errorf("Compute = %d cycles, want %d", s.Compute, want)
			}
			if ii := s.InitiationInterval(); ii != 1 {
				t.Errorf("InitiationInterval = %v, want 1", ii)
			}
			if s.MaxBankReads > PortsPerBank {
				t.Errorf("MaxBankReads = %d exceeds %d ports", s.MaxBankReads, PortsPerBank)
			}
			if s.Total() != 3*size+s.Compute {
				t.Errorf("Total = %d, want %d", s.Total(), 3*size+s.Compute)
			}
		})
	}
}

func TestPartitionLayout(t *testing.T) {
	const dim = 8
	k := MustNew(dim)
	if got := k.a.numBanks(); got != dim/2 {
		t.Fatalf("A has %d banks, want %d", got, dim/2)
	}
	// A is split by column, B by row, two contraction indices per bank.
	for idx := range dim {
		if bank, _ := k.a.locate(5, idx); bank != idx/2 {
			t.Errorf("A[5][%d] in bank %d, want %d", idx, bank, idx/2)
		}
		if bank, _ := k.b.locate(idx, 5); bank != idx/2 {
			t.Errorf("B[%d][5] in bank %d, want %d", idx, bank, idx/2)
		}
	}
	seen := map[[2]int]bool{}
	for i := range dim {
		for j := range dim {
			bank, off := k.a.locate(i, j)
			key := [2]int{bank, off}
			if seen[key] {
				t.Fatalf("A[%d][%d] aliases bank %d offset %d", i, j, bank, off)
			}
			seen[key] = true
		}
	}
}

// multiplyReversed accumulates in descending k. It exists only to show that
// the accumulation order is observable in float32.
func multiplyReversed(a, b *matrix.Matrix) *matrix.Matrix {
	dim := a.Dim
	out := matrix.New(dim)
	for i := range dim {
		for j := range dim {
			var sum float32
			for k := dim - 1; k >= 0; k-- {
				sum += float32(a.At(i, k) * b.At(k, j))
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

func TestSummationOrderIsObservable(t *testing.T) {
	a, b := matrix.New(4), matrix.New(4)
	// Row 0 of A cancels catastrophically depending on the order.
	copy(a.Row(0), []float32{1e8, 1, -1e8, 1})
	b.Fill(func(i, j int) float32 { return 1 })

	got := runKernel(t, MustNew(4), a, b)
	ref := matrix.New(4)
	matrix.MultiplyNaive(a, b, ref)
	reversed := multiplyReversed(a, b)

	if got.At(0, 0) != ref.At(0, 0) {
		t.Fatalf("kernel %v differs from the ascending-order reference %v", got.At(0, 0), ref.At(0, 0))
	}
	if got.At(0, 0) != 1 {
		t.Errorf("ascending sum = %v, want 1", got.At(0, 0))
	}
	if reversed.At(0, 0) == ref.At(0, 0) {
		t.Errorf("descending sum %v equals ascending sum; input is not adversarial", reversed.At(0, 0))
	}
}

func matrixName(dim int) string {
	return fmt.Sprintf("%dx%d", dim, dim)
}

func BenchmarkMultiplyStream32(b *testing.B) {
	k := MustNew(32)
	x, y := fixtureOperands(32)
	in := axis.NewInputFrame(x.Data, y.Data)
	for b.Loop() {
		k.MultiplyStream(in)
	}
}
