// This file is part of tickrt.
//
// tickrt is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tickrt is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tickrt.  If not, see <https://www.gnu.org/licenses/>.

// Package logger is a single, process-wide, in-memory log. Every other
// package in the module reports operational events (task creation,
// spurious compare events, fatal faults) through here rather than
// through fmt or the standard log package, so that a debugger terminal
// or the ktop dashboard can Tail it without scraping stdout.
package logger

import (
	"fmt"
	"io"
	"sync"
)

const capacity = 1000

var (
	mu      sync.Mutex
	entries []string
)

// Log appends a formatted "tag: message" line to the log.
func Log(tag string, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	entries = append(entries, fmt.Sprintf("%s: %s", tag, fmt.Sprintf(format, args...)))
	if len(entries) > capacity {
		entries = entries[len(entries)-capacity:]
	}
}

// Write copies every line currently in the log to w, one per line.
func Write(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	for _, e := range entries {
		fmt.Fprintf(w, "%s\n", e)
	}
}

// Tail copies at most the last n lines to w. Asking for more entries
// than exist, or for zero entries, is fine.
func Tail(w io.Writer, n int) {
	mu.Lock()
	defer mu.Unlock()

	if n <= 0 {
		return
	}
	start := len(entries) - n
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		fmt.Fprintf(w, "%s\n", e)
	}
}

// Clear empties the log. Intended for tests.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	entries = nil
}
