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

// Command ktop is a live dashboard over a running scheduler: go-echarts'
// statsview for process-level charts (goroutine count, GC pauses —
// useful here because every task is a goroutine, so a leaked or wedged
// task shows up the same way a leaked goroutine would anywhere else),
// plus a small JSON endpoint of scheduler.Snapshot() for the task table
// itself. CORS-wrapped so the dashboard can be polled from a page
// served off a different origin during development.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/rs/cors"

	"github.com/tickrt/tickrt/arch"
	"github.com/tickrt/tickrt/arch/sim"
	"github.com/tickrt/tickrt/delay"
	"github.com/tickrt/tickrt/logger"
	"github.com/tickrt/tickrt/sched"
)

func main() {
	addr := flag.String("addr", ":18080", "dashboard listen address")
	flag.Parse()

	hw := sim.New()
	s := sched.NewScheduler(hw, arch.DefaultBoard)
	eng := delay.NewEngine(hw, s, arch.DefaultBoard)
	hw.OnSwitchRequested(s.ContextSwitchISR)
	hw.OnCompareFire(eng.CompareISR)
	s.Init()
	eng.Init()

	s.Create(func(rt *sched.T, _ any) {
		for {
			eng.DelayMS(rt, 250)
		}
	}, nil, 10)

	go s.Start()
	go driveClock(hw, arch.DefaultBoard.ClockHz)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Snapshot())
	})

	mgr := statsview.New(statsview.WithAddr(*addr))
	go mgr.Start()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	logger.Log("ktop", "task table listening separately; statsview charts served on %s", *addr)
	if err := http.ListenAndServe(":18090", handler); err != nil {
		logger.Log("ktop", "task table listener exited: %v", err)
		os.Exit(1)
	}
}

func driveClock(hw *sim.Hardware, hz uint32) {
	const step = 10 * time.Millisecond
	ticksPerStep := uint32(uint64(hz) * uint64(step) / uint64(time.Second))
	for range time.Tick(step) {
		hw.Advance(ticksPerStep)
	}
}
