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

package task_test

import (
	"testing"

	"github.com/tickrt/tickrt/task"
	"github.com/tickrt/tickrt/test"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	var reg task.Registry
	test.Equate(t, reg.Count(), 0)

	h, ok := reg.Alloc(func(any) {}, nil, 5)
	test.Equate(t, ok, true)
	test.Equate(t, reg.Count(), 1)

	tcb := reg.Get(h)
	test.Equate(t, tcb != nil, true)
	test.Equate(t, tcb.Priority(), uint8(5))
	test.Equate(t, tcb.State(), task.Ready)

	reg.Free(h)
	test.Equate(t, reg.Count(), 0)
	test.Equate(t, reg.Get(h) == nil, true)
}

func TestStaleHandleAfterFree(t *testing.T) {
	var reg task.Registry
	h, _ := reg.Alloc(func(any) {}, nil, 1)
	reg.Free(h)

	h2, ok := reg.Alloc(func(any) {}, nil, 2)
	test.Equate(t, ok, true)

	// h2 reuses h's slot but carries a newer generation; the stale
	// handle must not resolve to the new occupant.
	test.Equate(t, reg.Get(h) == nil, true)
	test.Equate(t, reg.Get(h2) != nil, true)
}

func TestTableFullAtCapacity(t *testing.T) {
	var reg task.Registry
	var last bool
	for i := 0; i < task.MaxTasks+1; i++ {
		_, ok := reg.Alloc(func(any) {}, nil, 1)
		last = ok
	}
	test.Equate(t, last, true)

	_, ok := reg.Alloc(func(any) {}, nil, 1)
	test.Equate(t, ok, false)
}

func TestEachVisitsInSlotOrder(t *testing.T) {
	var reg task.Registry
	var handles []task.Handle
	for i := 0; i < 4; i++ {
		h, _ := reg.Alloc(func(any) {}, nil, uint8(i))
		handles = append(handles, h)
	}
	reg.Free(handles[1])
	h2, _ := reg.Alloc(func(any) {}, nil, 9)

	var slots []int
	reg.Each(func(tcb *task.TCB) {
		slots = append(slots, tcb.Slot())
	})
	test.Equate(t, slots, []int{0, 1, 2, 3})
	test.Equate(t, reg.Get(h2).Slot(), 1)
}

func TestWakeTarget(t *testing.T) {
	var reg task.Registry
	h, _ := reg.Alloc(func(any) {}, nil, 0)
	tcb := reg.Get(h)

	_, ok := tcb.WakeTarget()
	test.Equate(t, ok, false)

	tcb.SetWakeTarget(1234)
	target, ok := tcb.WakeTarget()
	test.Equate(t, ok, true)
	test.Equate(t, target, uint32(1234))

	tcb.ClearWakeTarget()
	_, ok = tcb.WakeTarget()
	test.Equate(t, ok, false)
}

func TestDispatchPark(t *testing.T) {
	var reg task.Registry
	h, _ := reg.Alloc(func(any) {}, nil, 0)
	tcb := reg.Get(h)

	done := make(chan struct{})
	go func() {
		tcb.Park()
		close(done)
	}()

	tcb.Dispatch()
	<-done
}

func TestStateString(t *testing.T) {
	test.Equate(t, task.Ready.String(), "ready")
	test.Equate(t, task.Running.String(), "running")
	test.Equate(t, task.Blocked.String(), "blocked")
}
