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

//go:build cortexm4

// Package cortexm4 is the real arch.Hardware backend for an
// STM32F407-class part: the DWT cycle counter as the free-running
// 32-bit counter, TIM2's compare channel as the single arming timer,
// and the NVIC for the pending-switch exception and critical sections.
// It is built only with the cortexm4 tag, the same seam the teacher's
// architecture.Map draws between cartridge/ARM variants, because it
// touches memory addresses that only exist on that silicon and would
// segfault anywhere else. Compiling and linking it further requires a
// bare-metal GOOS/GOARCH toolchain this module does not attempt to
// provide; the contents below describe the register protocol, not a
// host-runnable build.
package cortexm4

import (
	"unsafe"

	"github.com/tickrt/tickrt/arch"
)

// Register addresses, per the STM32F407 reference manual and the ARMv7-M
// architecture reference manual.
const (
	dwtCtrl    = 0xE0001000
	dwtCyccnt  = 0xE0001004
	demcr      = 0xE000EDFC
	demcrTrcEn = 1 << 24
	dwtCtrlEn  = 1 << 0

	nvicISPR0 = 0xE000E200 // interrupt set-pending
	nvicIPR0  = 0xE000E400 // interrupt priority, byte-addressed

	scbICSR      = 0xE000ED04 // interrupt control and state register
	icsrPendSVSet = 1 << 28

	primask0 = 0 // interrupts enabled
	primask1 = 1 // interrupts masked

	tim2DIER = 0x40000000 + 0x0C // DMA/interrupt enable register
	tim2SR   = 0x40000000 + 0x10 // status register
	tim2CCR1 = 0x40000000 + 0x34 // capture/compare register 1
	tim2CC1IE = 1 << 1
	tim2CC1IF = 1 << 1

	pendSVIRQn    = 14 // NVIC exception number for PendSV
	compareIRQn   = 28 // TIM2 global interrupt, STM32F407
)

func reg32(addr uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(addr)) //nolint:govet // MMIO, not a real Go object
}

// Hardware implements arch.Hardware against real STM32F407 registers.
type Hardware struct {
	board arch.Board
}

// New enables the DWT cycle counter, programs the PendSV and compare
// timer priorities from board, and returns a Hardware bound to board.
// Must run with interrupts disabled.
func New(board arch.Board) *Hardware {
	*reg32(demcr) |= demcrTrcEn
	*reg32(dwtCtrl) |= dwtCtrlEn
	*reg32(dwtCyccnt) = 0

	h := &Hardware{board: board}
	h.programPriorities()
	return h
}

// programPriorities writes the NVIC priority assignment spec §6
// requires: SVC highest (lowest number), compare timer in between,
// PendSV lowest so it tail-chains after any other active exception.
func (h *Hardware) programPriorities() {
	// PendSV is a system exception, not an NVIC interrupt: its priority
	// byte is SCB->SHPR3[23:16] at 0xE000ED22.
	*(*uint8)(unsafe.Pointer(uintptr(0xE000ED22))) = h.board.PendSVPriority << 4 //nolint:govet // MMIO
	setIRQPriority(compareIRQn, h.board.CompareIRQPrio)
	// SVCPriority is set in SCB->SHPR2, not modelled here: this port's
	// bootstrap (sched.Start) dispatches the first task directly and
	// never traps via SVC, so the reserved priority exists for
	// board-bringup symmetry with spec §6 rather than a live code path.
}

func setIRQPriority(irqn int, prio uint8) {
	addr := uintptr(nvicIPR0 + irqn)
	*reg32(addr & ^uintptr(3)) = uint32(prio) << 4 << ((addr & 3) * 8)
}

// CyclesNow implements arch.Hardware by reading DWT->CYCCNT.
func (h *Hardware) CyclesNow() uint32 {
	return *reg32(dwtCyccnt)
}

// ArmCompare implements arch.Hardware by programming TIM2's CCR1 and
// unmasking its compare interrupt.
func (h *Hardware) ArmCompare(target uint32) {
	*reg32(tim2CCR1) = target
	*reg32(tim2DIER) |= tim2CC1IE
}

// DisarmCompare implements arch.Hardware by masking TIM2's compare
// interrupt and acknowledging any latched flag.
func (h *Hardware) DisarmCompare() {
	*reg32(tim2DIER) &^= tim2CC1IE
	*reg32(tim2SR) &^= tim2CC1IF
}

// RequestSwitch implements arch.Hardware by setting PendSV pending in
// the SCB's ICSR. The exception tail-chains after whatever ISR called
// this returns, or fires immediately if nothing else is active.
func (h *Hardware) RequestSwitch() {
	*reg32(scbICSR) |= icsrPendSVSet
}

// InISR implements arch.Hardware by reading the active exception number
// out of IPSR (bits 8:0), zero meaning thread mode.
func (h *Hardware) InISR() bool {
	return readIPSR()&0x1FF != 0
}

// DisableIRQ implements arch.Hardware via PRIMASK.
func (h *Hardware) DisableIRQ() arch.IRQState {
	prev := readPRIMASK()
	setPRIMASK(primask1)
	return arch.IRQState(prev)
}

// RestoreIRQ implements arch.Hardware via PRIMASK.
func (h *Hardware) RestoreIRQ(state arch.IRQState) {
	setPRIMASK(uint32(state))
}

// readIPSR, readPRIMASK, and setPRIMASK read and write special-purpose
// ARM registers (IPSR, PRIMASK) that have no memory address: they are
// only reachable with MRS/MSR instructions. Declared here, defined in
// cortexm4_asm.s.
func readIPSR() uint32
func readPRIMASK() uint32
func setPRIMASK(uint32)
