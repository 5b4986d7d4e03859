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

// Command kshell is an interactive console for stepping the simulated
// free-running counter by hand and watching tasks move between Ready,
// Running and Blocked: "advance <ticks>", "tasks", "resume <n>",
// "suspend <n>", "quit", where n is the 0-based creation index of one
// of the three demo tasks (not its table slot).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/arch/sim"
	"github.com/tickrt/tickrt/delay"
	"github.com/tickrt/tickrt/sched"
	"github.com/tickrt/tickrt/task"
)

func main() {
	term := &rawTerm{}
	if err := term.Initialise(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	term.RawMode()
	defer term.CleanUp()

	hw := sim.New()
	s := sched.NewScheduler(hw, arch.DefaultBoard)
	eng := delay.NewEngine(hw, s, arch.DefaultBoard)
	hw.OnSwitchRequested(s.ContextSwitchISR)
	hw.OnCompareFire(eng.CompareISR)
	s.Init()
	eng.Init()

	handles := map[int]task.Handle{}
	for i, prio := range []uint8{5, 10, 20} {
		h, _ := s.Create(func(rt *sched.T, _ any) {
			for {
				eng.DelayMS(rt, 250)
			}
		}, nil, prio)
		handles[i] = h
	}
	go s.Start()

	term.Print("tickrt interactive shell — type 'help' for commands\r\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		term.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			term.Print("advance <ticks> | tasks | resume <n> | suspend <n> | quit\r\n")
		case "advance":
			if n := parseArg(fields); n > 0 {
				hw.Advance(uint32(n))
			}
		case "tasks":
			for _, ti := range s.Snapshot() {
				term.Print(fmt.Sprintf("slot=%d priority=%d state=%s idle=%v\r\n",
					ti.Slot, ti.Priority, ti.State, ti.IsIdle))
			}
		case "resume":
			if h, ok := handles[int(parseArg(fields))]; ok {
				s.Resume(h)
			}
		case "suspend":
			if h, ok := handles[int(parseArg(fields))]; ok {
				s.Suspend(h)
			}
		case "quit", "exit":
			return
		default:
			term.Print("unrecognised command\r\n")
		}
	}
}

func parseArg(fields []string) int64 {
	if len(fields) < 2 {
		return 0
	}
	n, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
