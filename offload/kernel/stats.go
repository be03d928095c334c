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

import "fmt"

// Pipeline latencies of the compute loop, in cycles.
const (
	MulLatency = 1
	AddLatency = 1
)

// PipelineDepth returns the latency of one output cell for dimension dim:
// one multiply stage followed by dim chained adds.
func PipelineDepth(dim int) int {
	return MulLatency + dim*AddLatency
}

// Stats is the cycle accounting of one MultiplyStream call. It describes
// throughput only; correctness never depends on it.
type Stats struct {
	Dim int

	// Cycles spent in each phase. Load and store phases move one word per
	// cycle; the compute phase issues one output cell per cycle.
	LoadA   int
	LoadB   int
	Compute int
	Store   int

	PipelineDepth int

	// Initiations is the number of output cells issued to the pipeline.
	Initiations int

	// MaxBankReads is the largest number of reads served by one storage
	// bank in a single compute cycle.
	MaxBankReads int

	// MalformedWords counts input words whose side-band fields failed the
	// protocol check. Their payload is still used.
	MalformedWords int
}

// Total returns the cycles of all four phases.
func (s Stats) Total() int {
	return s.LoadA + s.LoadB + s.Compute + s.Store
}

// InitiationInterval returns the average cycles between consecutive output
// cells once the pipeline is full.
func (s Stats) InitiationInterval() float64 {
	if s.Initiations <= 1 {
		return 0
	}
	return float64(s.Compute-s.PipelineDepth) / float64(s.Initiations-1)
}

func (s Stats) String() string {
	return fmt.Sprintf("dim=%d loadA=%d loadB=%d compute=%d store=%d total=%d depth=%d II=%.2f maxBankReads=%d",
		s.Dim, s.LoadA, s.LoadB, s.Compute, s.Store, s.Total(), s.PipelineDepth, s.InitiationInterval(), s.MaxBankReads)
}
