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

package board

import "testing"

func TestStubTracksLastState(t *testing.T) {
	s := NewStub("led0", nil)
	if s.State() {
		t.Fatalf("new stub should start off")
	}

	s.Set(true)
	if !s.State() {
		t.Fatalf("State() = false after Set(true)")
	}

	s.Set(false)
	if s.State() {
		t.Fatalf("State() = true after Set(false)")
	}
}

func TestStubNilLogIsDiscarded(t *testing.T) {
	s := NewStub("led1", nil)
	s.Set(true) // must not panic with a nil log func
}

func TestStubLogReceivesName(t *testing.T) {
	var got []any
	s := NewStub("led2", func(format string, args ...any) {
		got = args
	})
	s.Set(true)
	if len(got) == 0 || got[0] != "led2" {
		t.Fatalf("log args = %v, want the stub name %q first", got, "led2")
	}
}

func TestStubString(t *testing.T) {
	s := NewStub("led3", nil)
	s.Set(true)
	want := "led3(true)"
	if got := s.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
