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

// Package board is the thin seam between the kernel core and the
// external collaborators spec §1/§6 name but explicitly leave out of
// scope: clock-tree bring-up and vector-table wiring (real hardware
// only; done by board bring-up code outside this module, and not
// represented here), and whatever output peripherals a
// demo wants to drive. It stays deliberately small — a full peripheral
// catalog is a non-goal of the core — and exists so cmd/blinkers has
// something to blink against without pulling in real MMIO.
package board

import "fmt"

// LEDSink is an output peripheral a demo task can toggle. Real hardware
// wires this to a GPIO ODR bit; the sim backend (Stub) just records the
// last state.
type LEDSink interface {
	Set(on bool)
}

// Stub is a named in-memory LEDSink, letting
// cmd/blinkers and tests observe task behaviour without a real board.
type Stub struct {
	name  string
	state bool
	log   func(format string, args ...any)
}

// NewStub returns a Stub named for log output. log may be nil to
// discard.
func NewStub(name string, log func(format string, args ...any)) *Stub {
	if log == nil {
		log = func(string, ...any) {}
	}
	return &Stub{name: name, log: log}
}

// Set implements LEDSink.
func (s *Stub) Set(on bool) {
	s.state = on
	s.log("board: %s -> %v", s.name, on)
}

// State reports the last value Set was called with.
func (s *Stub) State() bool { return s.state }

// String implements fmt.Stringer for diagnostics.
func (s *Stub) String() string {
	return fmt.Sprintf("%s(%v)", s.name, s.state)
}
