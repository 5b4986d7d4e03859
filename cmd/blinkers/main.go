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

// Command blinkers runs spec §8 scenario 1: three periodic tasks
// toggling independent LEDs at 100ms, 500ms, and 1000ms, to show the
// tickless delay engine servicing three different periods off one
// compare timer without a periodic tick interrupt. Since there is no
// real 84MHz counter on the host running this binary, time is driven by
// a wall-clock-paced loop advancing the sim.Hardware counter instead of
// a true free-running peripheral.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/arch/sim"
	"github.com/tickrt/tickrt/board"
	"github.com/tickrt/tickrt/delay"
	"github.com/tickrt/tickrt/logger"
	"github.com/tickrt/tickrt/sched"
)

func blinker(name string, led *board.Stub, periodMS uint32, eng *delay.Engine) sched.Entry {
	return func(rt *sched.T, _ any) {
		on := false
		for {
			on = !on
			led.Set(on)
			eng.DelayMS(rt, periodMS)
		}
	}
}

func main() {
	seconds := flag.Int("seconds", 5, "how long to run before exiting")
	flag.Parse()

	board1 := arch.DefaultBoard
	hw := sim.New()
	s := sched.NewScheduler(hw, board1)
	eng := delay.NewEngine(hw, s, board1)

	hw.OnSwitchRequested(s.ContextSwitchISR)
	hw.OnCompareFire(eng.CompareISR)
	s.Init()
	eng.Init()

	fast := boardLog("fast")
	medium := boardLog("medium")
	slow := boardLog("slow")

	s.Create(blinker("fast", fast, 100, eng), nil, 1)
	s.Create(blinker("medium", medium, 500, eng), nil, 2)
	s.Create(blinker("slow", slow, 1000, eng), nil, 3)

	go s.Start()

	// Host-side clock driver: the free-running counter has no silicon
	// to tick it here, so this loop stands in for the oscillator,
	// advancing the counter in lockstep with wall-clock time.
	const step = time.Millisecond
	ticksPerStep := uint32(uint64(board1.ClockHz) * uint64(step) / uint64(time.Second))
	deadline := time.Now().Add(time.Duration(*seconds) * time.Second)
	for time.Now().Before(deadline) {
		hw.Advance(ticksPerStep)
		time.Sleep(step)
	}

	logger.Write(os.Stdout)
}

func boardLog(name string) *board.Stub {
	return board.NewStub(name, func(format string, args ...any) {
		logger.Log("board", format, args...)
	})
}
