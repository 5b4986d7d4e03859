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

// Command kgraph dumps a one-shot .dot graph of a populated scheduler's
// task snapshot, for visually inspecting priority/state layout without
// a live dashboard. Point graphviz's dot at the output to render it.
package main

import (
	"flag"
	"os"

	"github.com/bradleyjkemp/memviz"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/arch/sim"
	"github.com/tickrt/tickrt/sched"
)

func main() {
	out := flag.String("out", "", "write .dot to this file instead of stdout")
	flag.Parse()

	hw := sim.New()
	s := sched.NewScheduler(hw, arch.DefaultBoard)
	hw.OnSwitchRequested(s.ContextSwitchISR)
	s.Init()

	s.Create(func(rt *sched.T, _ any) { rt.Suspend() }, nil, 1)
	s.Create(func(rt *sched.T, _ any) { rt.Suspend() }, nil, 2)
	s.Create(func(rt *sched.T, _ any) { rt.Suspend() }, nil, 5)

	snapshot := s.Snapshot()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		w = f
	}

	memviz.Map(w, &snapshot)
}
