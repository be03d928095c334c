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

// Package kernel models the streaming matrix-multiply engine that sits behind
// the DMA channels.
//
// The engine consumes one input frame (A then B, 2*DIM*DIM words) and
// produces one output frame (DIM*DIM words). It runs in four phases:
//
//  1. Load A: word i*DIM+j goes to A[i][j].
//  2. Load B: word i*DIM+j+DIM*DIM goes to B[i][j].
//  3. Compute: out[ia][ib] = sum over ascending k of A[ia][k]*B[k][ib],
//     accumulated left to right from zero.
//  4. Store: out[i][j] is emitted in row-major order, end-of-frame on the
//     last word.
//
// A and B are block-partitioned by DIM/2 along the contraction axis into
// dual-ported banks, so a whole dot product can be read in one cycle and the
// compute loop issues one output cell per cycle after the pipeline fills.
package kernel

import (
	"errors"
	"fmt"

	"github.com/ajroetker/go-offload/offload/axis"
)

// DefaultDim is the dimension of the synthesized accelerator.
const DefaultDim = 32

// ErrOddDim is returned for dimensions that cannot be split into DIM/2
// two-element banks.
var ErrOddDim = errors.New("kernel: dimension must be even and at least 2")

// ComputeKernel is anything that multiplies two matrices presented as one
// input frame and returns the product as an output frame.
type ComputeKernel interface {
	// Dim returns the fixed matrix dimension.
	Dim() int

	// MultiplyStream consumes exactly 2*Dim()*Dim() words. Passing any other
	// length is a caller bug.
	MultiplyStream(in axis.Frame) axis.Frame
}

var _ ComputeKernel = (*Kernel)(nil)

// Kernel is the software model of the engine, including its partitioned
// operand storage and cycle accounting.
type Kernel struct {
	dim    int
	factor int
	a, b   *partitionedArray
	out    []float32
	stats  Stats
}

// New returns a kernel for dim x dim operands.
func New(dim int) (*Kernel, error) {
	if dim < 2 || dim%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrOddDim, dim)
	}
	factor := dim / 2
	return &Kernel{
		dim:    dim,
		factor: factor,
		a:      newPartitionedArray(dim, factor, true),
		b:      newPartitionedArray(dim, factor, false),
		out:    make([]float32, dim*dim),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(dim int) *Kernel {
	k, err := New(dim)
	if err != nil {
		panic(err)
	}
	return k
}

// Dim returns the operand dimension.
func (k *Kernel) Dim() int { return k.dim }

// Factor returns the partition factor DIM/2.
func (k *Kernel) Factor() int { return k.factor }

// LastStats returns the cycle accounting of the most recent call.
func (k *Kernel) LastStats() Stats { return k.stats }

// MultiplyStream runs the load, compute and store phases on in.
func (k *Kernel) MultiplyStream(in axis.Frame) axis.Frame {
	dim := k.dim
	size := dim * dim
	if len(in) != 2*size {
		panic(fmt.Sprintf("kernel: input frame has %d words, want %d", len(in), 2*size))
	}
	k.stats = Stats{Dim: dim, PipelineDepth: PipelineDepth(dim)}

	k.loadPhase(k.a, in[:size])
	k.stats.LoadA = size
	k.loadPhase(k.b, in[size:])
	k.stats.LoadB = size

	k.computePhase()

	out := make(axis.Frame, size)
	for i := range dim {
		for j := range dim {
			idx := i*dim + j
			out[idx] = axis.Encode(k.out[idx], idx == size-1)
		}
	}
	k.stats.Store = size
	return out
}

func (k *Kernel) loadPhase(dst *partitionedArray, words axis.Frame) {
	dim := k.dim
	for i := range dim {
		for j := range dim {
			w := words[i*dim+j]
			if w.Check() != nil {
				k.stats.MalformedWords++
			}
			dst.store(i, j, axis.Decode(w))
		}
	}
}

// computePhase issues one output cell per cycle. Each cell reads the full
// row of A and column of B across the banks; the sum is accumulated in
// ascending k with every product rounded to float32 first.
func (k *Kernel) computePhase() {
	dim := k.dim
	for ia := range dim {
		for ib := range dim {
			var sum float32
			for id := range dim {
				sum += float32(k.a.load(ia, id) * k.b.load(id, ib))
			}
			k.out[ia*dim+ib] = sum

			k.stats.Initiations++
			k.stats.MaxBankReads = max(k.stats.MaxBankReads, k.a.endCycle(), k.b.endCycle())
		}
	}
	k.stats.Compute = k.stats.Initiations + k.stats.PipelineDepth - 1
}
