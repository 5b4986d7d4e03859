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

// Package arch defines the hardware-primitives contract that the
// scheduler and delay engine are written against, and the board
// descriptor that parameterises it. Concrete implementations live in
// sibling packages: arch/sim is a software model used for tests and
// the cmd/ demos, arch/cortexm4 is the real MMIO/NVIC backend.
package arch

// IRQState is the opaque flag set returned by DisableIRQ and consumed by
// RestoreIRQ. Callers must treat it as opaque; its representation is
// backend-specific (PRIMASK on real Cortex-M, a simple depth counter in
// the software model).
type IRQState uint32

// Hardware is the contract described in spec §4.A. It is the only
// surface through which sched and delay touch real hardware, which is
// what makes both packages testable on a host with no Cortex-M part
// attached.
type Hardware interface {
	// CyclesNow samples the free-running counter. Wraps at 2^32;
	// arithmetic against it is always performed modulo 2^32.
	CyclesNow() uint32

	// ArmCompare programs the compare event to fire when the counter
	// equals target, replacing any previous programming.
	ArmCompare(target uint32)

	// DisarmCompare cancels any pending compare event.
	DisarmCompare()

	// RequestSwitch sets the pending-switch exception. On real hardware
	// this is configured at the lowest priority so it tail-chains after
	// any active ISR returns.
	RequestSwitch()

	// InISR reports whether the caller is running in exception/ISR
	// context.
	InISR() bool

	// DisableIRQ enters a critical section, returning the state needed
	// to restore it.
	DisableIRQ() IRQState

	// RestoreIRQ leaves a critical section previously entered with
	// DisableIRQ.
	RestoreIRQ(IRQState)
}

// Board bundles the clock rate and priority wiring a concrete Hardware
// implementation is built against, mirroring the way the teacher's
// architecture.Map bundles per-board differences as plain data rather
// than scattered constants.
type Board struct {
	// ClockHz is F, the frequency of the free-running counter.
	ClockHz uint32

	// MinDelayNS is the floor below which a delay_ns request is clamped
	// up, expressed in nanoseconds.
	MinDelayNS uint32

	// MaxTicks saturates just below 2^32 so the counter cannot lap its
	// own target between arm and ISR.
	MaxTicks uint32

	// NVIC-style priority numbers named in spec §6. Lower number is
	// higher urgency, matching Cortex-M convention.
	SVCPriority    uint8
	PendSVPriority uint8
	CompareIRQPrio uint8
}

// DefaultBoard describes an STM32F407-class part: a 84MHz counter, a
// one-microsecond delay floor, and the priority assignment spec §6
// requires of the board bring-up layer.
var DefaultBoard = Board{
	ClockHz:        84_000_000,
	MinDelayNS:     1000,
	MaxTicks:       0xFFFF_0000,
	SVCPriority:    0,
	PendSVPriority: 15,
	CompareIRQPrio: 3,
}
