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

// Package sim is a software model of the arch.Hardware contract. There
// is no real 84MHz counter on the host running the test suite, so the
// counter here is advanced explicitly by the driver (a test, or one of
// the cmd/ demos) rather than by a free-running goroutine — the same
// externally-stepped shape the teacher's peripherals.Timer uses for its
// on-chip timers.
package sim

import (
	"sync"
	"sync/atomic"

	"github.com/tickrt/tickrt/arch"
)

// Hardware is a software model of one compare timer plus one
// pending-switch latch, sufficient to drive sched and delay without
// real silicon.
type Hardware struct {
	mu sync.Mutex

	counter uint32

	armed        bool
	compareAt    uint32
	compareFired func()

	switchPending bool
	onSwitch      func()

	isISR int32

	irqDepth uint32
}

// New returns a Hardware model with its counter at zero.
func New() *Hardware {
	return &Hardware{}
}

// OnCompareFire registers the callback invoked when Advance crosses an
// armed compare target. It is how delay.Engine wires its wake ISR.
func (h *Hardware) OnCompareFire(fn func()) {
	h.mu.Lock()
	h.compareFired = fn
	h.mu.Unlock()
}

// OnSwitchRequested registers the callback invoked when RequestSwitch
// is called. It is how sched.Scheduler wires its context-switch ISR.
func (h *Hardware) OnSwitchRequested(fn func()) {
	h.mu.Lock()
	h.onSwitch = fn
	h.mu.Unlock()
}

// CyclesNow implements arch.Hardware.
func (h *Hardware) CyclesNow() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counter
}

// ArmCompare implements arch.Hardware.
func (h *Hardware) ArmCompare(target uint32) {
	h.mu.Lock()
	h.armed = true
	h.compareAt = target
	h.mu.Unlock()
}

// DisarmCompare implements arch.Hardware.
func (h *Hardware) DisarmCompare() {
	h.mu.Lock()
	h.armed = false
	h.mu.Unlock()
}

// RequestSwitch implements arch.Hardware. The pending-switch exception
// is tail-chained immediately in this model: there is no other ISR
// activity on the host to wait behind, so the handler runs synchronously
// before RequestSwitch returns, the same way it would run "immediately
// after the current ISR returns" when nothing else is pending on real
// hardware.
func (h *Hardware) RequestSwitch() {
	h.mu.Lock()
	if h.switchPending {
		h.mu.Unlock()
		return
	}
	h.switchPending = true
	fn := h.onSwitch
	h.mu.Unlock()

	if fn == nil {
		return
	}

	atomic.AddInt32(&h.isISR, 1)
	fn()
	atomic.AddInt32(&h.isISR, -1)

	h.mu.Lock()
	h.switchPending = false
	h.mu.Unlock()
}

// InISR implements arch.Hardware.
func (h *Hardware) InISR() bool {
	return atomic.LoadInt32(&h.isISR) > 0
}

// DisableIRQ implements arch.Hardware. The returned state is the
// pre-call nesting depth; RestoreIRQ only actually re-arms interrupts
// when that depth was zero, matching nested disable/restore pairs on
// real hardware.
func (h *Hardware) DisableIRQ() arch.IRQState {
	h.mu.Lock()
	depth := h.irqDepth
	h.irqDepth++
	h.mu.Unlock()
	return arch.IRQState(depth)
}

// RestoreIRQ implements arch.Hardware.
func (h *Hardware) RestoreIRQ(state arch.IRQState) {
	h.mu.Lock()
	h.irqDepth = uint32(state)
	h.mu.Unlock()
}

// Advance moves the simulated counter forward by n ticks, modulo 2^32,
// and fires the compare callback if armed and now elapsed. It is the
// sole "time passes" primitive in the model; cmd/ demos and tests call
// it in place of a real 84MHz clock.
//
// A single Advance can cross more than one still-pending target (a
// coalesced or large jump, or a callback that re-arms for a target
// that's already past by the time it returns, since delay.Engine
// services a whole queue of waiters from one compare slot). The
// callback is invoked again each time re-arming still leaves it due,
// the same way a real NVIC would immediately re-pend an interrupt
// whose condition is still true when its handler returns.
func (h *Hardware) Advance(n uint32) {
	h.mu.Lock()
	h.counter += n
	h.mu.Unlock()

	for {
		h.mu.Lock()
		fire := h.armed && elapsed(h.compareAt, h.counter)
		var cb func()
		if fire {
			h.armed = false
			cb = h.compareFired
		}
		h.mu.Unlock()

		if !fire {
			return
		}

		atomic.AddInt32(&h.isISR, 1)
		cb()
		atomic.AddInt32(&h.isISR, -1)
	}
}

// elapsed reports whether now has reached or passed target, accounting
// for modular wraparound of the 32-bit counter.
func elapsed(target, now uint32) bool {
	return int32(now-target) >= 0
}
