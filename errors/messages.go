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

package errors

// error messages, grouped by the component that raises them. Values
// substituted with Errorf's Values argument.
const (
	// resource exhaustion (spec §7 kind 1) — recoverable, returned as
	// the create() sentinel rather than raised as an error
	TableFull = "task table is full"

	// invalid argument (spec §7 kind 2)
	InvalidPriority = "priority %d exceeds MaxPriority (%d)"
	NilEntry        = "task entry must not be nil"

	// programming faults (spec §7 kind 3) — fatal
	TaskReturned       = "task %v returned from its entry function"
	UninitializedTimer = "delay requested before delay.Engine.Init"
	StartWithNoTasks   = "start() called with no tasks created"
	ConcurrentSleepers = "task attempted to sleep while it already had an outstanding delay"

	// benign, silently ignored (spec §7 kind 4)
	SpuriousCompare  = "compare event fired with no task sleeping"
	ResumeNotBlocked = "resume() called on a task that was not blocked"
)
