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

// Command mmoffload benchmarks the offloaded matrix multiplication against
// the software reference on the simulated board.
//
// Usage:
//
//	mmoffload [run] [flags]
//	mmoffload selftest [flags]
//
// Exit status is 0 when every round matched, 1 on a result mismatch, 2 on a
// configuration error and 3 on a transfer error. Settings default to the
// OFFLOAD_* environment variables; flags override them.
package main

import (
	"errors"
	goflag "flag"
	"fmt"
	"os"

	"github.com/tebeka/atexit"
	"k8s.io/klog/v2"

	"github.com/ajroetker/go-offload/offload/dma"
	"github.com/ajroetker/go-offload/offload/harness"
)

// Process exit codes.
const (
	exitOK       = 0
	exitMismatch = 1
	exitConfig   = 2
	exitTransfer = 3
)

// errMismatch marks a completed run whose results disagreed.
var errMismatch = errors.New("results mismatch")

func main() {
	klog.InitFlags(goflag.CommandLine)
	atexit.Register(klog.Flush)

	err := newRootCmd(os.Stdout).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmoffload:", err)
	}
	atexit.Exit(exitCode(err))
}

// exitCode maps the error of a command to the process status.
func exitCode(err error) int {
	var cfgErr *dma.ConfigError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errMismatch):
		return exitMismatch
	case errors.As(err, &cfgErr), errors.Is(err, harness.ErrInvalidConfig):
		return exitConfig
	case errors.Is(err, dma.ErrTransfer), errors.Is(err, harness.ErrNotDone):
		return exitTransfer
	default:
		// Usage errors from flag parsing.
		return exitConfig
	}
}
