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

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/pkg/term/termios"
)

// rawTerm is a thin line-input wrapper over one posix terminal,
// switching it into cbreak mode (read available without waiting for a
// newline, but keep signal-generating keys working) while the shell
// runs and restoring canonical mode on CleanUp.
type rawTerm struct {
	input  *os.File
	output *os.File

	canonAttr  syscall.Termios
	cbreakAttr syscall.Termios

	mu sync.Mutex
}

// Initialise prepares in/out for raw input. Mirrors the teacher's
// easyterm.EasyTerm.Initialise: capture the canonical attributes once,
// derive a cbreak variant from them, and leave switching between the
// two to RawMode/CanonicalMode.
func (t *rawTerm) Initialise(in, out *os.File) error {
	if in == nil || out == nil {
		return fmt.Errorf("kshell: terminal requires both an input and an output file")
	}
	t.input, t.output = in, out

	termios.Tcgetattr(t.input.Fd(), &t.canonAttr)
	t.cbreakAttr = t.canonAttr
	termios.Cfmakecbreak(&t.cbreakAttr)
	return nil
}

// RawMode puts the terminal into cbreak mode.
func (t *rawTerm) RawMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	termios.Tcsetattr(t.input.Fd(), termios.TCIFLUSH, &t.cbreakAttr)
}

// CanonicalMode restores the terminal's original attributes.
func (t *rawTerm) CanonicalMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	termios.Tcsetattr(t.input.Fd(), termios.TCIFLUSH, &t.canonAttr)
}

// CleanUp restores canonical mode. Safe to call more than once.
func (t *rawTerm) CleanUp() {
	t.CanonicalMode()
}

// Print writes s to the terminal's output file.
func (t *rawTerm) Print(s string) {
	t.output.WriteString(s)
}
