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

// Package sched is the priority-preemptive scheduler at the centre of
// the kernel: task creation, the bootstrap and context-switch protocols,
// and the implicit idle task (spec §3, §4.C).
//
// Host note. Real Cortex-M hardware preempts a running task between any
// two instructions, because PendSV is a genuine asynchronous exception:
// the silicon itself halts whatever was executing. A goroutine cannot be
// halted from outside without unsafe, signal-based tricks this port
// doesn't use, so a task that never calls back into sched (a pure
// uncooperative busy loop) keeps its own goroutine running even after
// ContextSwitchISR has logically moved current away from it. Every
// sched entry point a task calls — Yield, CheckPreempt, Suspend, the
// delay engine's arming call — notices this and parks immediately, so
// any task that checkpoints periodically is preempted exactly as fast
// as the scheduler's bookkeeping runs. arch/cortexm4's real ISR needs
// no such cooperation; this is a property of the host simulation only.
package sched

import (
	"fmt"
	"sync"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/errors"
	"github.com/tickrt/tickrt/logger"
	"github.com/tickrt/tickrt/task"
	"github.com/tickrt/tickrt/trace"
)

// TieBreak selects how the scheduler orders equal-priority Ready tasks.
type TieBreak int

const (
	// SlotOrder always prefers the lowest slot index among ties,
	// matching a simple "scan the table from zero" reference scheduler.
	// It is the default: deterministic or_table order is easier to
	// reason about in an interrupt handler, and the spec's own
	// find_highest_priority_ready sketch scans in slot order.
	SlotOrder TieBreak = iota

	// RoundRobin rotates among equal-priority ties so that two tasks at
	// the same priority alternate rather than one starving the other
	// (spec §8 scenario 5, and an Open Question DESIGN.md resolves in
	// RoundRobin's favour as an opt-in, not the default).
	RoundRobin
)

// T is the self-bound handle an entry function uses to call back into
// the scheduler. Go has no implicit single-execution-context the way a
// bare-metal build does — current is unambiguous on real hardware
// because there is only one CPU, but a goroutine has no such ambient
// identity — so Create hands every entry function a T bound to its own
// Handle instead of the spec's zero-argument yield()/suspend().
type T struct {
	s *Scheduler
	h task.Handle
}

// Handle returns the task's own Handle.
func (t *T) Handle() task.Handle { return t.h }

// Yield implements spec §4.C's yield(): gives up the remainder of this
// task's turn and re-enters the context-switch protocol, which may pick
// this same task again immediately if nothing else is Ready.
func (t *T) Yield() { t.s.yieldSelf(t.h) }

// CheckPreempt is the cooperative checkpoint an otherwise-uncooperative
// busy loop calls to discover and honour a pending preemption (see the
// package doc's host note). Semantically identical to Yield; the
// separate name documents intent at the call site.
func (t *T) CheckPreempt() { t.s.yieldSelf(t.h) }

// Suspend implements spec §4.C's suspend(current): blocks this task and
// switches away. Only valid called by a task on itself; to suspend
// another task use Scheduler.Suspend.
func (t *T) Suspend() {
	t.s.markBlocked(t.h)
	t.s.parkSelf(t.h)
}

// Entry is the function an application task runs. Unlike task.Entry
// (the task package's self-erased storage type), Entry is given
// its own T so it can call Yield, Suspend, and the delay engine without
// a free-floating "current task" global.
type Entry func(t *T, arg any)

// Scheduler owns the task table, the running/ready/blocked bookkeeping,
// and the two protocols spec §4.C names: bootstrap and context switch.
type Scheduler struct {
	mu sync.Mutex

	hw    arch.Hardware
	board arch.Board
	hooks trace.Hooks

	reg task.Registry

	idle         task.Handle
	current      task.Handle
	hasCurrent   bool
	appTaskCount int
	started      bool

	tieBreak TieBreak
	rrCursor map[uint8]int
}

// NewScheduler returns a Scheduler bound to hw. Call Init before Create.
func NewScheduler(hw arch.Hardware, board arch.Board) *Scheduler {
	return &Scheduler{
		hw:    hw,
		board: board,
		hooks: trace.NopHooks{},
	}
}

// SetHooks installs an observer. Pass trace.NopHooks{} to remove one.
func (s *Scheduler) SetHooks(h trace.Hooks) {
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
}

// SetTieBreak selects how equal-priority Ready ties are broken. Must be
// called before Start; changing it afterwards is undefined since the
// round-robin cursor assumes a consistent policy across its lifetime.
func (s *Scheduler) SetTieBreak(tb TieBreak) {
	s.mu.Lock()
	s.tieBreak = tb
	s.mu.Unlock()
}

// Init resets the scheduler to a freshly-bootstrapped state and
// installs the implicit idle task at task.IdlePriority (spec §3). Must
// be called exactly once before any Create.
func (s *Scheduler) Init() {
	s.mu.Lock()
	s.reg = task.Registry{}
	s.appTaskCount = 0
	s.started = false
	s.hasCurrent = false
	s.rrCursor = make(map[uint8]int)
	s.mu.Unlock()

	h, ok := s.reg.Alloc(nil, nil, task.IdlePriority)
	if !ok {
		panic("sched: failed to allocate the implicit idle task")
	}
	tcb := s.reg.Get(h)
	tcb.SetEntry(func(any) {
		rt := &T{s: s, h: h}
		for {
			rt.Yield()
		}
	})
	s.idle = h
	s.spawn(h)
}

// Create implements spec §4.C's create(): reserves a slot, installs
// entry at priority, and returns its handle. Returns the zero Handle
// and false on the kind-1 (table full) and kind-2 (bad argument) faults
// spec §7 lists as recoverable.
func (s *Scheduler) Create(entry Entry, arg any, priority uint8) (task.Handle, bool) {
	if entry == nil {
		logger.Log("sched", errors.NilEntry)
		return task.Handle{}, false
	}
	if priority > task.MaxPriority {
		detail := fmt.Sprintf(errors.InvalidPriority, priority, task.MaxPriority)
		logger.Log("sched", detail)
		s.mu.Lock()
		hooks := s.hooks
		s.mu.Unlock()
		hooks.OnFault(trace.CategoryInvalidPriority, detail)
		return task.Handle{}, false
	}

	s.mu.Lock()
	h, ok := s.reg.Alloc(nil, arg, priority)
	if !ok {
		hooks := s.hooks
		s.mu.Unlock()
		logger.Log("sched", errors.TableFull)
		hooks.OnFault(trace.CategoryTableFull, errors.TableFull)
		return task.Handle{}, false
	}

	tcb := s.reg.Get(h)
	tcb.SetEntry(func(a any) {
		rt := &T{s: s, h: h}
		entry(rt, a)
	})
	s.appTaskCount++
	beats := s.started && priority < s.currentPriorityLocked()
	s.mu.Unlock()

	s.spawn(h)
	logger.Log("sched", "task %v created at priority %d", h, priority)

	if beats {
		s.hw.RequestSwitch()
	}
	return h, true
}

// Start implements spec §4.C's start(): runs the bootstrap protocol and
// never returns. Fatal (spec §7 kind 3) if no application task has been
// created.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.appTaskCount == 0 {
		s.mu.Unlock()
		s.fault(trace.CategoryStartWithNoTasks, errors.StartWithNoTasks)
		return
	}
	next := s.pickNextLocked()
	s.switchToLocked(next)
	s.started = true
	s.mu.Unlock()

	next.Dispatch()
	select {}
}

// Yield is the foreign-context form of T.Yield, usable from board or
// demo code that is not itself a task (for example to flush the
// dispatch of a just-created higher-priority task). Tasks should call
// T.Yield instead.
func (s *Scheduler) Yield() {
	s.mu.Lock()
	cur := s.reg.Get(s.current)
	next := s.pickNextLocked()
	differs := cur == nil || next != cur
	s.mu.Unlock()
	if differs {
		s.hw.RequestSwitch()
	}
}

// Schedule implements spec §4.C's schedule(): requests a switch iff the
// highest-priority Ready task differs from current. Safe to call from
// ISR or task context.
func (s *Scheduler) Schedule() {
	s.Yield()
}

// Suspend implements spec §4.C's suspend(t) for an arbitrary handle,
// callable from board/ISR code that holds a handle but is not itself
// the suspended task's own goroutine (see the package doc's host
// note). A task suspending itself should call T.Suspend instead.
func (s *Scheduler) Suspend(h task.Handle) {
	s.markBlocked(h)

	s.mu.Lock()
	wasCurrent := s.hasCurrent && h == s.current
	s.mu.Unlock()

	if wasCurrent {
		s.hw.RequestSwitch()
	}
}

// Resume implements spec §4.C's resume(t): moves t from Blocked to
// Ready and, if its priority now beats the running task, requests a
// switch. A resume() on a task that is not Blocked is a benign no-op
// (spec §7 kind 4).
func (s *Scheduler) Resume(h task.Handle) {
	s.mu.Lock()
	t := s.reg.Get(h)
	if t == nil {
		s.mu.Unlock()
		return
	}
	if t.State() != task.Blocked {
		s.mu.Unlock()
		logger.Log("sched", errors.ResumeNotBlocked)
		return
	}
	t.SetState(task.Ready)
	t.ClearWakeTarget()
	beats := t.Priority() < s.currentPriorityLocked()
	s.mu.Unlock()

	logger.Log("sched", "task %v resumed", h)
	if beats {
		s.hw.RequestSwitch()
	}
}

// Delete implements spec §4.C's delete(t): removes t from the table.
// If t is current, requests a switch; the deleted slot's goroutine (if
// any) is left parked forever, a host-model leak with no real-hardware
// analogue.
func (s *Scheduler) Delete(h task.Handle) {
	s.mu.Lock()
	t := s.reg.Get(h)
	if t == nil {
		s.mu.Unlock()
		return
	}
	wasCurrent := s.hasCurrent && h == s.current
	if h != s.idle {
		s.appTaskCount--
	}
	s.reg.Free(h)
	s.mu.Unlock()

	logger.Log("sched", "task %v deleted", h)
	if wasCurrent {
		s.hw.RequestSwitch()
	}
}

// ContextSwitchISR is the context-switch protocol of spec §4.C, wired
// to the hardware's pending-switch exception by whoever brings the
// board up (spec §6: "the architecture's vector table must be wired to
// these"). It never blocks: marking the outgoing task Ready (if it was
// Running) and dispatching the incoming one is always safe regardless
// of which goroutine called it; only the outgoing task's own next
// checkpoint actually parks it (see the package doc's host note).
func (s *Scheduler) ContextSwitchISR() {
	s.mu.Lock()
	cur := s.reg.Get(s.current)
	if cur != nil && cur.State() == task.Running {
		cur.SetState(task.Ready)
	}
	next := s.pickNextLocked()
	if next == nil {
		s.mu.Unlock()
		return
	}
	s.switchToLocked(next)
	s.mu.Unlock()

	next.Dispatch()
}

// Current returns the handle of the task the scheduler currently
// considers Running.
func (s *Scheduler) Current() (task.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasCurrent
}

// TaskInfo is a snapshot of one slot, for cmd/ktop and cmd/kgraph.
type TaskInfo struct {
	Handle   task.Handle
	Slot     int
	Priority uint8
	State    task.State
	IsIdle   bool
}

// Snapshot returns a point-in-time view of every live task, in slot
// order.
func (s *Scheduler) Snapshot() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TaskInfo
	s.reg.Each(func(t *task.TCB) {
		out = append(out, TaskInfo{
			Handle:   t.Handle(),
			Slot:     t.Slot(),
			Priority: t.Priority(),
			State:    t.State(),
			IsIdle:   t.Handle() == s.idle,
		})
	})
	return out
}

// MarkBlockedForTime sets h Blocked with a wake target. Used by
// delay.Engine to implement the arming protocol's step 3.
func (s *Scheduler) MarkBlockedForTime(h task.Handle, target uint32) {
	s.mu.Lock()
	if t := s.reg.Get(h); t != nil {
		t.SetState(task.Blocked)
		t.SetWakeTarget(target)
	}
	s.mu.Unlock()
}

// ParkSelf requests a switch and then blocks h's own goroutine until
// sched next dispatches it. Callable only by h's own goroutine; used by
// T.Suspend and by delay.Engine once a sleeper has armed its wake.
func (s *Scheduler) ParkSelf(h task.Handle) {
	s.parkSelf(h)
}

// NotifyWake reports a delay engine wake-up to the installed hooks,
// then performs the Blocked->Ready transition via Resume. Used by
// delay.Engine's compare ISR.
func (s *Scheduler) NotifyWake(h task.Handle, target uint32) {
	s.mu.Lock()
	t := s.reg.Get(h)
	var slot int
	if t != nil {
		slot = t.Slot()
	}
	hooks := s.hooks
	s.mu.Unlock()

	hooks.OnWake(slot, target)
	s.Resume(h)
}

// Board returns the board descriptor this scheduler was built against.
func (s *Scheduler) Board() arch.Board { return s.board }

func (s *Scheduler) markBlocked(h task.Handle) {
	s.mu.Lock()
	if t := s.reg.Get(h); t != nil {
		t.SetState(task.Blocked)
	}
	s.mu.Unlock()
}

func (s *Scheduler) parkSelf(h task.Handle) {
	t := s.reg.Get(h)
	if t == nil {
		return
	}
	s.hw.RequestSwitch()
	t.Park()
}

func (s *Scheduler) yieldSelf(h task.Handle) {
	t := s.reg.Get(h)
	if t == nil {
		return
	}
	s.hw.RequestSwitch()
	t.Park()
}

// currentPriorityLocked returns the priority of the current task, or a
// value one below the idle task's if there is none yet (anything beats
// "no current"), for beats-the-running-task comparisons.
func (s *Scheduler) currentPriorityLocked() uint8 {
	if t := s.reg.Get(s.current); t != nil {
		return t.Priority()
	}
	return task.IdlePriority + 1
}

// pickNextLocked implements spec §4.C's find_highest_priority_ready:
// the lowest-numbered priority among Ready tasks, slot order or
// round-robin among ties per s.tieBreak, falling back to whichever task
// is already Running (idle, in steady state) if nothing is Ready.
// Caller must hold s.mu.
func (s *Scheduler) pickNextLocked() *task.TCB {
	bestPriority := uint8(255)
	var candidates []*task.TCB

	s.reg.Each(func(t *task.TCB) {
		if t.State() != task.Ready {
			return
		}
		switch {
		case t.Priority() < bestPriority:
			bestPriority = t.Priority()
			candidates = candidates[:0]
			candidates = append(candidates, t)
		case t.Priority() == bestPriority:
			candidates = append(candidates, t)
		}
	})

	if len(candidates) == 0 {
		if cur := s.reg.Get(s.current); cur != nil && cur.State() == task.Running {
			return cur
		}
		return nil
	}
	if len(candidates) == 1 || s.tieBreak == SlotOrder {
		return candidates[0]
	}

	last := s.rrCursor[bestPriority]
	for _, c := range candidates {
		if c.Slot() > last {
			s.rrCursor[bestPriority] = c.Slot()
			return c
		}
	}
	s.rrCursor[bestPriority] = candidates[0].Slot()
	return candidates[0]
}

// switchToLocked installs next as current, notifies hooks, and leaves
// dispatch to the caller (who must not hold s.mu when calling
// next.Dispatch, since Dispatch may synchronously hand control to
// next's goroutine, which could itself call back into a locked method).
// Caller must hold s.mu.
func (s *Scheduler) switchToLocked(next *task.TCB) {
	outSlot := -1
	if cur := s.reg.Get(s.current); cur != nil {
		outSlot = cur.Slot()
	}
	s.current = next.Handle()
	s.hasCurrent = true
	next.SetState(task.Running)
	s.hooks.OnContextSwitch(outSlot, next.Slot())
}

func (s *Scheduler) spawn(h task.Handle) {
	go func() {
		tcb := s.reg.Get(h)
		if tcb == nil {
			return
		}
		tcb.Park()

		entry := tcb.Entry()
		arg := tcb.Arg()
		entry(arg)

		s.fault(trace.CategoryTaskReturned, fmt.Sprintf(errors.TaskReturned, h))
	}()
}

func (s *Scheduler) fault(category trace.Category, detail string) {
	logger.Log("sched", detail)
	s.mu.Lock()
	hooks := s.hooks
	s.mu.Unlock()
	hooks.OnFault(category, detail)
	panic(errors.Errorf(detail))
}
