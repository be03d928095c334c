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

// PortsPerBank is the number of reads one storage bank serves per cycle.
// On-chip block RAM is dual-ported.
const PortsPerBank = 2

// partitionedArray is a dim x dim array block-partitioned into factor banks
// along one axis. With block partitioning, bank b holds the contiguous indices
// [b*block, (b+1)*block) of the partitioned axis, where block = dim/factor.
//
// The kernel partitions A along its columns and B along its rows. Both are
// the contraction axis, so one accumulation step touches every bank exactly
// block times.
type partitionedArray struct {
	dim      int
	block    int
	byColumn bool
	banks    [][]float32
	reads    []int // reads issued to each bank during the current cycle
}

func newPartitionedArray(dim, factor int, byColumn bool) *partitionedArray {
	block := dim / factor
	p := &partitionedArray{
		dim:      dim,
		block:    block,
		byColumn: byColumn,
		banks:    make([][]float32, factor),
		reads:    make([]int, factor),
	}
	for b := range p.banks {
		p.banks[b] = make([]float32, block*dim)
	}
	return p
}

// locate maps (i, j) to its bank and the offset inside that bank.
func (p *partitionedArray) locate(i, j int) (bank, offset int) {
	if p.byColumn {
		return j / p.block, i*p.block + j%p.block
	}
	return i / p.block, (i%p.block)*p.dim + j
}

func (p *partitionedArray) store(i, j int, v float32) {
	b, off := p.locate(i, j)
	p.banks[b][off] = v
}

func (p *partitionedArray) load(i, j int) float32 {
	b, off := p.locate(i, j)
	p.reads[b]++
	return p.banks[b][off]
}

// endCycle returns the highest per-bank read count of the cycle just issued
// and clears the counters.
func (p *partitionedArray) endCycle() int {
	maxReads := 0
	for b, n := range p.reads {
		maxReads = max(maxReads, n)
		p.reads[b] = 0
	}
	return maxReads
}

func (p *partitionedArray) numBanks() int {
	return len(p.banks)
}
