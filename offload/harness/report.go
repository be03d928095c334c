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

package harness

import (
	"math"
	"strconv"

	"github.com/samber/lo"
)

// Speedup is reference time over accelerated time.
type Speedup float64

// NewSpeedup returns ref/acc. A zero accelerated time gives +Inf whatever
// the reference time, including zero.
func NewSpeedup(ref, acc uint32) Speedup {
	if acc == 0 {
		return Speedup(math.Inf(1))
	}
	return Speedup(float64(ref) / float64(acc))
}

// IsInf reports whether the accelerated time was zero.
func (s Speedup) IsInf() bool { return math.IsInf(float64(s), 1) }

// String formats the ratio with three decimals, or "inf".
func (s Speedup) String() string {
	if s.IsInf() {
		return "inf"
	}
	return strconv.FormatFloat(float64(s), 'f', 3, 64)
}

// Round is the outcome of one reference/offload round.
type Round struct {
	Index       int
	Reference   uint32
	Accelerated uint32
	Speedup     Speedup
	Mismatches  int
}

// Matched reports whether the offloaded product equals the reference.
func (r Round) Matched() bool { return r.Mismatches == 0 }

// Report is the outcome of a run.
type Report struct {
	Calibration uint32

	// LoopTime is the calibrated duration of LoopIterations busy iterations.
	LoopTime uint32

	Rounds []Round

	// Mismatched is sticky: it is set once any round mismatched.
	Mismatched bool
}

// ExitCode returns 0 when every round matched and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Mismatched {
		return 1
	}
	return 0
}

// MismatchedRounds returns the indices of the rounds that mismatched.
func (r *Report) MismatchedRounds() []int {
	bad := lo.Filter(r.Rounds, func(rd Round, _ int) bool { return !rd.Matched() })
	return lo.Map(bad, func(rd Round, _ int) int { return rd.Index })
}

// MeanSpeedup averages the finite speed-ups. It is +Inf when every round
// had a zero accelerated time and 0 for an empty report.
func (r *Report) MeanSpeedup() Speedup {
	if len(r.Rounds) == 0 {
		return 0
	}
	finite := lo.FilterMap(r.Rounds, func(rd Round, _ int) (float64, bool) {
		return float64(rd.Speedup), !rd.Speedup.IsInf()
	})
	if len(finite) == 0 {
		return Speedup(math.Inf(1))
	}
	return Speedup(lo.Sum(finite) / float64(len(finite)))
}
