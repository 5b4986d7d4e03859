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

package delay_test

import (
	"testing"
	"time"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/arch/sim"
	"github.com/tickrt/tickrt/delay"
	"github.com/tickrt/tickrt/sched"
	"github.com/tickrt/tickrt/test"
)

func newRig(board arch.Board) (*sched.Scheduler, *delay.Engine, *sim.Hardware) {
	hw := sim.New()
	s := sched.NewScheduler(hw, board)
	eng := delay.NewEngine(hw, s, board)
	hw.OnSwitchRequested(s.ContextSwitchISR)
	hw.OnCompareFire(eng.CompareISR)
	s.Init()
	eng.Init()
	return s, eng, hw
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task progress")
		return ""
	}
}

func TestDelayMSBlocksUntilCompareFires(t *testing.T) {
	board := arch.DefaultBoard
	board.ClockHz = 1_000_000 // 1 tick per microsecond, easy arithmetic
	s, eng, hw := newRig(board)

	progress := make(chan string, 2)
	_, _ = s.Create(func(rt *sched.T, _ any) {
		progress <- "before"
		eng.DelayMS(rt, 5) // 5ms == 5000 ticks at 1MHz
		progress <- "after"
		rt.Suspend()
	}, nil, 0)

	go s.Start()
	test.Equate(t, recv(t, progress), "before")

	hw.Advance(4999)
	select {
	case <-progress:
		t.Fatal("task woke before its compare target")
	case <-time.After(20 * time.Millisecond):
	}

	hw.Advance(1)
	test.Equate(t, recv(t, progress), "after")
}

func TestDelayMSZeroIsImmediate(t *testing.T) {
	s, eng, _ := newRig(arch.DefaultBoard)
	done := make(chan struct{})
	_, _ = s.Create(func(rt *sched.T, _ any) {
		eng.DelayMS(rt, 0)
		close(done)
		rt.Suspend()
	}, nil, 0)

	go s.Start()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("delay_ms(0) did not return immediately")
	}
}

func TestThreePeriodicSleepersRunConcurrently(t *testing.T) {
	// spec §8 scenario 1: three independent periodic tasks sleeping on
	// different periods must all make progress against one compare
	// timer, none of them faulting the others out.
	board := arch.DefaultBoard
	board.ClockHz = 1_000_000
	s, eng, hw := newRig(board)

	fast := make(chan struct{}, 8)
	medium := make(chan struct{}, 8)
	slow := make(chan struct{}, 8)

	_, _ = s.Create(func(rt *sched.T, _ any) {
		for {
			eng.DelayMS(rt, 1)
			fast <- struct{}{}
		}
	}, nil, 1)
	_, _ = s.Create(func(rt *sched.T, _ any) {
		for {
			eng.DelayMS(rt, 5)
			medium <- struct{}{}
		}
	}, nil, 2)
	_, _ = s.Create(func(rt *sched.T, _ any) {
		for {
			eng.DelayMS(rt, 10)
			slow <- struct{}{}
		}
	}, nil, 3)

	go s.Start()
	go func() {
		for i := 0; i < 100; i++ {
			hw.Advance(1000) // 1ms per step at 1MHz
			time.Sleep(time.Millisecond)
		}
	}()

	awaitTick(t, fast, "fast")
	awaitTick(t, medium, "medium")
	awaitTick(t, slow, "slow")
}

func awaitTick(t *testing.T, ch <-chan struct{}, name string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("%s sleeper never woke", name)
	}
}

func TestConcurrentSleepersFault(t *testing.T) {
	board := arch.DefaultBoard
	board.ClockHz = 1_000_000
	s, eng, _ := newRig(board)

	faulted := make(chan any, 1)

	// A task's own goroutine can never call DelayMS twice without being
	// rescheduled in between, so the only way to observe the same
	// handle enqueued twice is an external Resume() waking a sleeper
	// early, which then sleeps again while its original entry is still
	// queued.
	var h sched.T
	started := make(chan struct{})
	_, _ = s.Create(func(rt *sched.T, _ any) {
		h = *rt
		close(started)
		eng.DelayMS(rt, 1000)
		defer func() {
			faulted <- recover()
			rt.Suspend() // an entry that returns is itself a fault
		}()
		eng.DelayMS(rt, 1000)
	}, nil, 0)

	go s.Start()
	<-started
	time.Sleep(20 * time.Millisecond)
	s.Resume(h.Handle())

	select {
	case r := <-faulted:
		if r == nil {
			t.Fatal("re-sleeping before the first wake fires should have panicked")
		}
	case <-time.After(time.Second):
		t.Fatal("second sleep attempt never ran")
	}
}

func TestDelayNSFloorsToAtLeastOneTick(t *testing.T) {
	board := arch.DefaultBoard
	board.ClockHz = 1_000_000
	board.MinDelayNS = 1000
	s, eng, hw := newRig(board)

	done := make(chan struct{})
	_, _ = s.Create(func(rt *sched.T, _ any) {
		eng.DelayNS(rt, 0)
		close(done)
		rt.Suspend()
	}, nil, 0)

	go s.Start()

	select {
	case <-done:
		t.Fatal("delay_ns(0) returned without waiting for the floor tick")
	case <-time.After(20 * time.Millisecond):
	}

	hw.Advance(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("delay_ns(0) never woke at the floor")
	}
}

func TestSpuriousCompareIsBenign(t *testing.T) {
	_, eng, _ := newRig(arch.DefaultBoard)
	eng.CompareISR() // nothing armed: must not panic
}
