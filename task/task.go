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

// Package task owns the task control block and the fixed-capacity slot
// table it lives in. It knows nothing about scheduling policy; that is
// sched's job. Generalized from the single register-frame ARMState
// keeps in the teacher's arm package to N independently-scheduled
// frames, one per slot.
package task

import "sync"

// MaxTasks bounds the number of application tasks create() will admit.
// Compile-time, per spec §1 ("dynamic memory for task control" is a
// non-goal).
const MaxTasks = 32

// tableCapacity is the Registry's real slot count: MaxTasks for
// application tasks plus one reserved for sched's implicit idle task,
// so that exhausting MaxTasks application creates (spec §8 scenario 6)
// never contends with the slot idle already occupies.
const tableCapacity = MaxTasks + 1

// MaxPriority is the lowest urgency an application task may request.
// The implicit idle task lives one below that, at MaxPriority+1.
const MaxPriority = 31

// IdlePriority is the priority of the implicit idle task installed by
// sched.Init. No application task may be created at this priority.
const IdlePriority = MaxPriority + 1

// StackWords is the size of a task's private stack, in 32-bit machine
// words, per spec §3.
const StackWords = 256

// frameWords is the size of a full saved-register frame: 8
// hardware-pushed words (R0-R3, R12, LR, PC, xPSR) plus 8 callee-saved
// words (R4-R11), per spec §4.A.
const frameWords = 16

// State is a task's position in the scheduler's state machine.
type State int

const (
	// Ready tasks are eligible for dispatch but not currently running.
	Ready State = iota
	// Running is held by at most one task at a time.
	Running
	// Blocked tasks are waiting on a delay or an explicit suspend.
	Blocked
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return "invalid"
	}
}

// Handle identifies a live task. It is a slot index plus a generation
// counter, so a handle captured before a delete cannot silently alias a
// later, unrelated task created in the same slot.
type Handle struct {
	slot       int
	generation uint32
}

// Entry is the callable a task runs. The contract is an infinite loop:
// a task whose Entry returns triggers a fatal task-return fault (spec
// §3, §7 kind 3).
type Entry func(arg any)

// TCB is one task's control block.
//
// Fields mirror spec §3 with one adaptation: saved_sp/stack, which on
// real hardware are a raw stack pointer into a raw byte buffer, are
// represented here as a logical cursor into stack rather than a real
// machine address, since this package has no instruction stream of its
// own to execute against that address — the real register frame swap
// happens in arch/cortexm4's assembly trampoline on actual hardware, or
// is modelled as a goroutine handoff by sched on the sim backend. Spec
// §8's stack-bounds invariant is therefore not runtime-checked by this
// port: the cursor never moves after initFrame, so any check against it
// would be checking a constant, not the task's actual stack usage.
type TCB struct {
	slot       int
	generation uint32

	entry    Entry
	arg      any
	priority uint8
	state    State

	stack   [StackWords]uint32
	savedSP int // index into stack; set by initFrame

	hasWakeTarget bool
	wakeTarget    uint32

	// gate is the "run token" for this slot's goroutine in the sim/host
	// scheduling model: sched sends on it to dispatch the task, and the
	// task's goroutine blocks receiving from it between dispatches.
	// Buffered to depth 1 so a scheduler decision that redispatches the
	// calling task itself (the common "nothing else is Ready" case)
	// never has to send on a gate nobody is receiving from yet — the
	// token sits in the buffer until the caller's own next Park.
	gate chan struct{}
}

// Priority returns the task's scheduling priority (lower is more
// urgent).
func (t *TCB) Priority() uint8 { return t.priority }

// State returns the task's current scheduler state.
func (t *TCB) State() State { return t.state }

// Handle returns the stable handle identifying this slot.
func (t *TCB) Handle() Handle { return Handle{slot: t.slot, generation: t.generation} }

// Slot returns the task's table index, used by sched for slot-order
// iteration and round-robin tie-breaking, and by trace.Hooks callers to
// name tasks without exposing a Handle's generation.
func (t *TCB) Slot() int { return t.slot }

// WakeTarget returns the counter value at which a time-blocked task
// should be made ready, and whether one is set.
func (t *TCB) WakeTarget() (uint32, bool) { return t.wakeTarget, t.hasWakeTarget }

// initFrame reserves the initial saved-register frame (spec §4.A) at
// the top of the stack and points savedSP at its base: 8 callee-saved
// words (R4-R11) below the 8 hardware-pushed words, with xPSR the
// topmost word. Only xPSR is filled in (Thumb bit set); the PC, R0 and
// LR slots stay zero, since entry and arg are Go values with no machine
// address and the task's goroutine runs entry directly instead.
// Because this package never interprets the stack as real machine
// code, the "frame" is a
// bookkeeping fiction: nothing in this host model ever advances
// savedSP the way a real push/pop sequence would, so spec §8's
// stack-bounds invariant is not something this port can honestly
// police at runtime (see SPEC_FULL.md §5's note on dropping that
// claim) — the field and the initial frame it holds exist only to
// mirror spec §3's saved_sp/stack structure for arch/cortexm4, whose
// assembly trampoline does move a real stack pointer.
func (t *TCB) initFrame() {
	top := StackWords - frameWords
	t.stack[top+frameWords-1] = 0x01000000 // xPSR, Thumb bit set
	t.savedSP = top
}

// Registry is the fixed-capacity slot table (spec §3's tasks[MAX_TASKS]
// plus task_count). It owns all TCB storage; nothing outside this
// package ever holds a pointer into a slot across a Delete, only a
// Handle.
type Registry struct {
	mu         sync.Mutex
	slots      [tableCapacity]TCB
	occupied   [tableCapacity]bool
	generation [tableCapacity]uint32
	count      int
}

// Count returns the number of live slots.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Alloc reserves the first free slot and initializes its TCB. Returns
// the zero Handle and false if the table is full (spec §7 kind 1).
func (r *Registry) Alloc(entry Entry, arg any, priority uint8) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := 0; i < tableCapacity; i++ {
		if !r.occupied[i] {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Handle{}, false
	}

	r.generation[idx]++
	gen := r.generation[idx]

	r.slots[idx] = TCB{
		slot:       idx,
		generation: gen,
		entry:      entry,
		arg:        arg,
		priority:   priority,
		state:      Ready,
		gate:       make(chan struct{}, 1),
	}
	r.slots[idx].initFrame()
	r.occupied[idx] = true
	r.count++

	return Handle{slot: idx, generation: gen}, true
}

// Free releases h's slot. A no-op if h is stale (already deleted, or
// never allocated).
func (r *Registry) Free(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.valid(h) {
		return
	}
	r.occupied[h.slot] = false
	r.count--
	r.slots[h.slot] = TCB{}
}

// Get resolves h to its TCB, or nil if h is stale. The returned pointer
// is only valid until the next Free of the same slot.
func (r *Registry) Get(h Handle) *TCB {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.valid(h) {
		return nil
	}
	return &r.slots[h.slot]
}

// Each calls fn for every live slot, in table order. fn must not call
// back into Alloc/Free.
func (r *Registry) Each(fn func(*TCB)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < tableCapacity; i++ {
		if r.occupied[i] {
			fn(&r.slots[i])
		}
	}
}

func (r *Registry) valid(h Handle) bool {
	return h.slot >= 0 && h.slot < tableCapacity && r.occupied[h.slot] && r.generation[h.slot] == h.generation
}

// Entry returns the task's entry function.
func (t *TCB) Entry() Entry { return t.entry }

// SetEntry installs the task's entry function. Split from Alloc because
// sched needs this slot's own Handle in scope before it can close over
// it to build the entry closure (see sched.T), and the Handle is only
// known once Alloc has returned.
func (t *TCB) SetEntry(e Entry) { t.entry = e }

// Arg returns the opaque argument passed to Entry.
func (t *TCB) Arg() any { return t.arg }

// SetState transitions the task to a new state. Scheduling policy
// belongs to sched; this package only stores the result.
func (t *TCB) SetState(s State) { t.state = s }

// SetWakeTarget records the counter value at which sched should move
// this task from Blocked to Ready for a time-based wait.
func (t *TCB) SetWakeTarget(target uint32) {
	t.wakeTarget = target
	t.hasWakeTarget = true
}

// ClearWakeTarget removes any wake target, e.g. once a delay has been
// serviced or the task was resumed explicitly.
func (t *TCB) ClearWakeTarget() {
	t.hasWakeTarget = false
}

// Dispatch releases this task's run gate, letting its goroutine proceed
// from wherever it last parked. Used by the scheduler's context-switch
// and bootstrap protocols (spec §4.C) in place of a real register-frame
// restore.
func (t *TCB) Dispatch() {
	t.gate <- struct{}{}
}

// Park blocks the calling goroutine until the scheduler next Dispatches
// this task. Used by the scheduler in place of a real register-frame
// save: everything after the call to Park resumes with exactly the
// Go-level state the goroutine had before parking, the portable
// equivalent of popping R4-R11 off a saved stack.
func (t *TCB) Park() {
	<-t.gate
}
