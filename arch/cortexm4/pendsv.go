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

package cortexm4

// outgoingSP and incomingSP are the two words pendSVSwapStacks shuttles
// between the assembly trampoline and whichever Go code last decided
// what should run next. Board bring-up wires scheduler dispatch to set
// incomingSP before RequestSwitch is called; pendSVHandler reads it
// back after saving the outgoing frame.
var (
	outgoingSP uintptr
	incomingSP uintptr
)

// SetIncomingStack records the stack pointer PendSV should switch to
// the next time it fires. Called by board glue code, not by sched
// directly, so this package stays free of a dependency on task.TCB's
// internal layout.
func SetIncomingStack(sp uintptr) {
	incomingSP = sp
}

// OutgoingStack returns the stack pointer PendSV saved for the task that
// was running immediately before the most recent switch.
func OutgoingStack() uintptr {
	return outgoingSP
}

// pendSVSwapStacks is called from the assembly trampoline after it has
// pushed the callee-saved registers onto the outgoing task's stack. It
// records that stack pointer, then returns the incoming one so the
// trampoline knows where to pop the mirrored registers back from.
//
//go:nosplit
func pendSVSwapStacks(outgoing uintptr) uintptr {
	outgoingSP = outgoing
	return incomingSP
}

// pendSVHandler is implemented in cortexm4_asm.s and installed into the
// vector table (slot 14) by board bring-up code outside this module.
func pendSVHandler()
