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

// Package trace defines an optional observer the scheduler calls into
// on every context switch, wake, and fault, without depending on any
// particular consumer. Modelled on the teacher's
// coprocessor.CartCoProcDeveloper / CartCoProcDisassembler hooks, which
// the ARM emulator calls opportunistically so a debugger or profiler can
// attach without the core depending on either.
package trace

// Category classifies a fault reported through Hooks.OnFault.
type Category string

// List of valid Category values.
const (
	CategoryTableFull        Category = "table full"
	CategoryInvalidPriority  Category = "invalid priority"
	CategoryTaskReturned     Category = "task returned"
	CategoryConcurrentSleep  Category = "concurrent sleepers"
	CategoryStartWithNoTasks Category = "start with no tasks"
)

// Hooks is implemented by anything that wants visibility into the
// scheduler's behaviour, such as a test harness asserting on switch
// counts. It is installed with Scheduler.SetHooks or Engine.SetHooks;
// none of the cmd/ programs installs one.
type Hooks interface {
	// OnContextSwitch is called after the context-switch protocol
	// selects next as the new current task, naming the outgoing task's
	// slot and the incoming task's slot.
	OnContextSwitch(outSlot, inSlot int)

	// OnWake is called when the delay engine moves its waiter from
	// Blocked to Ready.
	OnWake(slot int, target uint32)

	// OnFault is called immediately before a fatal condition traps the
	// system (spec §7 kind 3), and also when Create rejects a task for a
	// full table or an invalid priority, which is not fatal.
	OnFault(category Category, detail string)
}

// NopHooks implements Hooks by doing nothing. It is the default
// installed by sched.NewScheduler and delay.NewEngine.
type NopHooks struct{}

// OnContextSwitch implements Hooks.
func (NopHooks) OnContextSwitch(outSlot, inSlot int) {}

// OnWake implements Hooks.
func (NopHooks) OnWake(slot int, target uint32) {}

// OnFault implements Hooks.
func (NopHooks) OnFault(category Category, detail string) {}
