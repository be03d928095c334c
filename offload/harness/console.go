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
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Console receives the human-readable progress of a run.
type Console interface {
	WriteLine(text string)
}

// WriterConsole writes one line per call to an io.Writer.
type WriterConsole struct {
	w io.Writer
}

// NewWriterConsole returns a console on w. Write errors are dropped; the
// console never affects the outcome of a run.
func NewWriterConsole(w io.Writer) *WriterConsole {
	return &WriterConsole{w: w}
}

// WriteLine implements Console.
func (c *WriterConsole) WriteLine(text string) {
	_, _ = io.WriteString(c.w, text+"\n")
}

// Recorder keeps every line in memory.
type Recorder struct {
	Lines []string
}

// WriteLine implements Console.
func (r *Recorder) WriteLine(text string) {
	r.Lines = append(r.Lines, text)
}

// Contains reports whether any recorded line contains substr.
func (r *Recorder) Contains(substr string) bool {
	for _, l := range r.Lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// printer formats the numbers of console lines with English digit grouping.
var printer = message.NewPrinter(language.English)

func linef(c Console, format string, args ...any) {
	c.WriteLine(printer.Sprintf(format, args...))
}
