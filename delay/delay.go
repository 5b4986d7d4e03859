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

// Package delay is the tickless delay engine (spec §4.D): a single
// free-running counter plus one compare timer put calling tasks to
// sleep for a bounded duration without a periodic tick interrupt.
// spec.md's "bare form" allows exactly one sleeper and faults a second
// concurrent one; spec §9 explicitly permits the alternative this port
// takes instead — a small min-heap of (target, waiter) pairs, with the
// compare timer always armed for the nearest one and re-armed for the
// next-nearest on every wake. Three independent periodic sleepers (spec
// §8 scenario 1) is exactly the case a single compare slot cannot serve
// on its own.
package delay

import (
	"container/heap"
	"sync"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/errors"
	"github.com/tickrt/tickrt/logger"
	"github.com/tickrt/tickrt/sched"
	"github.com/tickrt/tickrt/task"
	"github.com/tickrt/tickrt/trace"
)

// waiter is one pending sleep: wake target and the task blocked on it.
type waiter struct {
	target uint32
	handle task.Handle
}

// waiterHeap is a priority queue of waiters ordered by target, modelled
// on the teacher pack's TaskQueue (container/heap.Interface over a
// slice of pointers, ordered by an absolute deadline).
type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }

// Less orders by target modulo 2^32: targets are always computed as
// now+ticks at arming time and compared against the same epoch, so
// plain unsigned less-than is correct here — wraparound is only a
// concern when comparing a target against a *later* CyclesNow() sample,
// which elapsed() in arch/sim (and the hardware counter itself) already
// handles.
func (h waiterHeap) Less(i, j int) bool { return h[i].target < h[j].target }

func (h waiterHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *waiterHeap) Push(x interface{}) {
	*h = append(*h, x.(*waiter))
}

func (h *waiterHeap) Pop() interface{} {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return w
}

// Engine arms and services the compare-timer sleeper queue against a
// Scheduler and a Hardware backend. It is a distinct component from
// Scheduler (spec's component D vs C): the scheduler knows nothing
// about wall-clock time, and the engine knows nothing about priorities
// beyond what Scheduler.Resume already does on its behalf.
type Engine struct {
	hw    arch.Hardware
	sched *sched.Scheduler
	board arch.Board
	hooks trace.Hooks

	mu          sync.Mutex
	initialized bool
	armed       bool
	waiters     waiterHeap
}

// NewEngine returns a delay Engine bound to hw and s. Call Init before
// any Delay* method.
func NewEngine(hw arch.Hardware, s *sched.Scheduler, board arch.Board) *Engine {
	return &Engine{hw: hw, sched: s, board: board, hooks: trace.NopHooks{}}
}

// SetHooks installs an observer for fault reporting, mirroring
// Scheduler.SetHooks.
func (e *Engine) SetHooks(h trace.Hooks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h == nil {
		h = trace.NopHooks{}
	}
	e.hooks = h
}

// Init implements spec §4.D's time_init(): arms the engine for use.
// Calling Delay* before Init is a programming fault (spec §7 kind 3).
func (e *Engine) Init() {
	e.mu.Lock()
	e.initialized = true
	e.armed = false
	e.waiters = e.waiters[:0]
	heap.Init(&e.waiters)
	e.mu.Unlock()
}

// CompareISR is the wake protocol of spec §4.D, wired to the hardware's
// compare event by board bring-up code (spec §6). It pops every waiter
// whose target has already elapsed (normally just the one that fired,
// but a coalesced/late interrupt can legitimately cover more than one),
// wakes each, then re-arms the compare timer for whatever is nearest
// among what remains. A fire with nothing armed is benign (spec §7 kind
// 4): it can only happen from a stale compare left over from a
// cancelled sleep, and is logged, not raised.
func (e *Engine) CompareISR() {
	e.mu.Lock()
	if !e.armed || e.waiters.Len() == 0 {
		e.armed = false
		e.mu.Unlock()
		logger.Log("delay", errors.SpuriousCompare)
		return
	}

	now := e.hw.CyclesNow()
	var woken []*waiter
	for e.waiters.Len() > 0 && elapsed(e.waiters[0].target, now) {
		woken = append(woken, heap.Pop(&e.waiters).(*waiter))
	}

	e.rearmLocked()
	e.mu.Unlock()

	for _, w := range woken {
		e.sched.NotifyWake(w.handle, w.target)
	}
}

// rearmLocked programs the compare timer for the nearest remaining
// target, or disarms it if the queue is empty. Caller must hold e.mu.
func (e *Engine) rearmLocked() {
	if e.waiters.Len() == 0 {
		e.hw.DisarmCompare()
		e.armed = false
		return
	}
	e.hw.ArmCompare(e.waiters[0].target)
	e.armed = true
}

// elapsed reports whether target has already passed now, under modular
// (2^32) counter arithmetic: matches arch/sim's own wraparound test.
func elapsed(target, now uint32) bool {
	return int32(now-target) >= 0
}

// DelayMS implements spec §4.D's delay_ms(): blocks t's task until at
// least ms milliseconds have elapsed. A zero duration returns
// immediately after yielding once, per spec's delay_us/delay_ms
// asymmetry with delay_ns (see DelayNS).
func (e *Engine) DelayMS(t *sched.T, ms uint32) {
	if ms == 0 {
		t.Yield()
		return
	}
	e.sleep(t, msToTicks(ms, e.board.ClockHz))
}

// DelayUS implements spec §4.D's delay_us(). See DelayMS for the
// zero-duration behaviour.
func (e *Engine) DelayUS(t *sched.T, us uint32) {
	if us == 0 {
		t.Yield()
		return
	}
	e.sleep(t, usToTicks(us, e.board.ClockHz))
}

// DelayNS implements spec §4.D's delay_ns(). Unlike DelayMS/DelayUS, a
// zero or sub-tick request is clamped up to at least one counter tick
// rather than returning immediately: a caller asking for nanosecond
// resolution is explicitly asking to be scheduled against the counter,
// and the MinDelayNS floor (board §"design notes") exists precisely to
// make that request well-defined instead of a silent no-op.
func (e *Engine) DelayNS(t *sched.T, ns uint32) {
	ticks := nsToTicks(ns, e.board.ClockHz)
	floor := nsToTicks(e.board.MinDelayNS, e.board.ClockHz)
	if ticks < floor {
		ticks = floor
	}
	e.sleep(t, ticks)
}

// sleep implements the arming protocol, spec §4.D steps 1-6 generalised
// to many concurrent waiters: read the counter and compute the target
// under a critical section, enqueue the caller's waiter entry, mark it
// Blocked with that wake target, arm the compare timer for whichever
// waiter is now nearest, then block until CompareISR (via
// Scheduler.Resume) makes the caller Ready again.
//
// Two tasks racing to enqueue with the *same* target is not the fault
// this engine guards against — that fault is a single task calling a
// Delay* method while it already has an entry queued. That happens when
// the task runs again before its compare fires — for example because
// something external (Scheduler.Resume) woke it early — and then sleeps
// again while its first entry is still in the queue.
func (e *Engine) sleep(t *sched.T, ticks uint64) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		logger.Log("delay", errors.UninitializedTimer)
		panic(errors.Errorf(errors.UninitializedTimer))
	}
	for _, w := range e.waiters {
		if w.handle == t.Handle() {
			e.mu.Unlock()
			logger.Log("delay", errors.ConcurrentSleepers)
			e.hooks.OnFault(trace.CategoryConcurrentSleep, "task already has an outstanding delay")
			panic(errors.Errorf(errors.ConcurrentSleepers))
		}
	}
	e.mu.Unlock()

	boundedTicks := clamp64(ticks, e.board.MaxTicks)

	irq := e.hw.DisableIRQ()
	now := e.hw.CyclesNow()
	target := now + boundedTicks

	e.mu.Lock()
	heap.Push(&e.waiters, &waiter{target: target, handle: t.Handle()})
	e.sched.MarkBlockedForTime(t.Handle(), target)
	e.rearmLocked()
	e.mu.Unlock()

	e.hw.RestoreIRQ(irq)

	e.sched.ParkSelf(t.Handle())
}

func msToTicks(ms uint32, hz uint32) uint64 { return uint64(ms) * uint64(hz) / 1_000 }
func usToTicks(us uint32, hz uint32) uint64 { return uint64(us) * uint64(hz) / 1_000_000 }
func nsToTicks(ns uint32, hz uint32) uint64 { return uint64(ns) * uint64(hz) / 1_000_000_000 }

// clamp64 enforces the at-least-one-tick, at-most-MaxTicks bounds spec
// §4.D requires of every delay request once converted to counter
// ticks.
func clamp64(ticks uint64, maxTicks uint32) uint32 {
	if ticks < 1 {
		ticks = 1
	}
	if ticks > uint64(maxTicks) {
		ticks = uint64(maxTicks)
	}
	return uint32(ticks)
}
