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

// Package hostinfo describes the processor that runs the reference
// multiplication.
package hostinfo

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Feature is one CPU capability reported by golang.org/x/sys/cpu.
type Feature struct {
	Name    string
	Present bool
	Note    string
}

// Features returns the floating point capabilities of the host
// architecture. It is empty on architectures without a feature table.
func Features() []Feature {
	switch runtime.GOARCH {
	case "arm64":
		return []Feature{
			{"ASIMD", cpu.ARM64.HasASIMD, "NEON baseline"},
			{"FP", cpu.ARM64.HasFP, "floating point"},
			{"FPHP", cpu.ARM64.HasFPHP, "FP16 scalar, ARMv8.2-A"},
			{"ASIMDHP", cpu.ARM64.HasASIMDHP, "FP16 NEON, ARMv8.2-A"},
			{"SVE", cpu.ARM64.HasSVE, "Scalable Vector Extension"},
			{"SVE2", cpu.ARM64.HasSVE2, ""},
		}
	case "amd64":
		return []Feature{
			{"SSE2", cpu.X86.HasSSE2, ""},
			{"SSE41", cpu.X86.HasSSE41, ""},
			{"AVX", cpu.X86.HasAVX, ""},
			{"AVX2", cpu.X86.HasAVX2, ""},
			{"AVX512F", cpu.X86.HasAVX512F, ""},
			{"FMA", cpu.X86.HasFMA, "fused multiply-add"},
		}
	}
	return nil
}

// HasFMA reports whether the host can fuse multiply-add. The reference
// multiplication rounds every product separately either way.
func HasFMA() bool {
	switch runtime.GOARCH {
	case "arm64":
		// FMADD is part of the base floating point unit.
		return cpu.ARM64.HasFP
	case "amd64":
		return cpu.X86.HasFMA
	}
	return false
}

// Describe returns a one-line summary of the host for run banners.
func Describe() string {
	var present []string
	for _, f := range Features() {
		if f.Present {
			present = append(present, f.Name)
		}
	}
	features := "none"
	if len(present) > 0 {
		features = strings.Join(present, ",")
	}
	return fmt.Sprintf("host: %s/%s, %d CPUs, FMA %v, features %s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), HasFMA(), features)
}
