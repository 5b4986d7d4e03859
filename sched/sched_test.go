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

package sched_test

import (
	"testing"
	"time"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/arch/sim"
	"github.com/tickrt/tickrt/sched"
	"github.com/tickrt/tickrt/task"
	"github.com/tickrt/tickrt/test"
)

func newScheduler() (*sched.Scheduler, *sim.Hardware) {
	hw := sim.New()
	s := sched.NewScheduler(hw, arch.DefaultBoard)
	hw.OnSwitchRequested(s.ContextSwitchISR)
	s.Init()
	return s, hw
}

// recv waits up to a second for a value on ch, failing the test on
// timeout instead of hanging forever if the scheduler wedges.
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

func TestBootstrapPicksHighestPriority(t *testing.T) {
	s, _ := newScheduler()
	order := make(chan string, 2)

	_, ok := s.Create(func(rt *sched.T, _ any) {
		order <- "hi"
		rt.Suspend()
	}, nil, 1)
	test.Equate(t, ok, true)

	_, ok = s.Create(func(rt *sched.T, _ any) {
		order <- "lo"
		rt.Suspend()
	}, nil, 2)
	test.Equate(t, ok, true)

	go s.Start()

	test.Equate(t, recv(t, order), "hi")
	test.Equate(t, recv(t, order), "lo")
}

func TestResumeWakesBlockedTask(t *testing.T) {
	s, _ := newScheduler()
	ran := make(chan string, 2)

	h, _ := s.Create(func(rt *sched.T, _ any) {
		ran <- "first-run"
		rt.Suspend()
		ran <- "resumed"
		rt.Suspend()
	}, nil, 3)

	go s.Start()
	test.Equate(t, recv(t, ran), "first-run")

	s.Resume(h)
	test.Equate(t, recv(t, ran), "resumed")
}

func TestResumeOnNonBlockedTaskIsBenign(t *testing.T) {
	s, _ := newScheduler()
	h, _ := s.Create(func(rt *sched.T, _ any) {
		rt.Suspend()
	}, nil, 4)

	// h is still Ready (never started): resuming it must not panic.
	s.Resume(h)
	_ = h
}

func TestCreatePreemptsRunningLowerPriority(t *testing.T) {
	s, _ := newScheduler()
	highRan := make(chan struct{})
	stop := make(chan struct{})

	_, ok := s.Create(func(rt *sched.T, _ any) {
		for {
			select {
			case <-stop:
				rt.Suspend()
			default:
				rt.CheckPreempt()
			}
		}
	}, nil, 20)
	test.Equate(t, ok, true)

	go s.Start()

	_, ok = s.Create(func(rt *sched.T, _ any) {
		close(highRan)
		rt.Suspend()
	}, nil, 1)
	test.Equate(t, ok, true)

	select {
	case <-highRan:
	case <-time.After(time.Second):
		t.Fatal("higher-priority task created after Start never ran")
	}
	close(stop)
}

func TestInvalidPriorityRejected(t *testing.T) {
	s, _ := newScheduler()
	_, ok := s.Create(func(*sched.T, any) {}, nil, task.MaxPriority+1)
	test.Equate(t, ok, false)
}

func TestNilEntryRejected(t *testing.T) {
	s, _ := newScheduler()
	_, ok := s.Create(nil, nil, 0)
	test.Equate(t, ok, false)
}

func TestTableFullAfterMaxTasksCreates(t *testing.T) {
	s, _ := newScheduler()
	for i := 0; i < task.MaxTasks; i++ {
		_, ok := s.Create(func(rt *sched.T, _ any) { rt.Suspend() }, nil, 30)
		test.Equate(t, ok, true)
	}
	_, ok := s.Create(func(rt *sched.T, _ any) { rt.Suspend() }, nil, 30)
	test.Equate(t, ok, false)
}

func TestRoundRobinAlternatesEqualPriority(t *testing.T) {
	s, _ := newScheduler()
	s.SetTieBreak(sched.RoundRobin)

	order := make(chan string, 8)
	stop := make(chan struct{})

	_, _ = s.Create(func(rt *sched.T, _ any) {
		for {
			select {
			case <-stop:
				rt.Suspend()
			default:
				order <- "a"
				rt.Yield()
			}
		}
	}, nil, 15)

	_, _ = s.Create(func(rt *sched.T, _ any) {
		for {
			select {
			case <-stop:
				rt.Suspend()
			default:
				order <- "b"
				rt.Yield()
			}
		}
	}, nil, 15)

	go s.Start()

	var seen []string
	for i := 0; i < 4; i++ {
		seen = append(seen, recv(t, order))
	}
	close(stop)

	test.Equate(t, seen, []string{"a", "b", "a", "b"})
}

func TestStartWithNoTasksFaults(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Start with no application tasks should have panicked")
		}
	}()
	s, _ := newScheduler()
	s.Start()
}
