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

package errors_test

import (
	goerrors "errors"
	"testing"

	"github.com/tickrt/tickrt/errors"
	"github.com/tickrt/tickrt/test"
)

func TestErrorf(t *testing.T) {
	err := errors.Errorf(errors.InvalidPriority, 99, 31)
	test.Equate(t, err.Error(), "priority 99 exceeds MaxPriority (31)")
	test.Equate(t, errors.IsAny(err), true)
	test.Equate(t, errors.Is(err, errors.InvalidPriority), true)
	test.Equate(t, errors.Has(err, errors.InvalidPriority), true)
}

func TestHeadOnPlainError(t *testing.T) {
	err := goerrors.New("plain")
	test.Equate(t, errors.Head(err), "plain")
	test.Equate(t, errors.IsAny(err), false)
}

func TestNestedHas(t *testing.T) {
	inner := errors.Errorf(errors.TableFull)
	outer := errors.Errorf("wrapped: %v", inner)
	test.Equate(t, errors.Has(outer, errors.TableFull), true)
}
