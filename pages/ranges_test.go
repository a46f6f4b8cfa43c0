// seehuhn.de/go/pdfassemble - merge, split and recompress PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pages

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRanges(t *testing.T) {
	cases := []struct {
		in   string
		want []Range
	}{
		{"1", []Range{{1, 1}}},
		{"1-3,5,8-", []Range{{1, 3}, {5, 5}, {8, ToEnd}}},
		{" 2 - 4 , 7 ", []Range{{2, 4}, {7, 7}}},
		{"5-3", []Range{{5, 3}}},
	}
	for _, c := range cases {
		got, err := ParseRanges(c.in)
		if err != nil {
			t.Errorf("%q: %v", c.in, err)
			continue
		}
		if d := cmp.Diff(c.want, got); d != "" {
			t.Errorf("%q (-want +got):\n%s", c.in, d)
		}
	}
}

func TestParseRangesErrors(t *testing.T) {
	for _, in := range []string{"", "1,,2", "a", "1-b", "-3", "1-2-3"} {
		_, err := ParseRanges(in)
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("%q: got %v, want ErrInvalidRange", in, err)
		}
	}
}

func TestRangeString(t *testing.T) {
	for _, s := range []string{"1", "2-5", "8-"} {
		rr, err := ParseRanges(s)
		if err != nil {
			t.Fatal(err)
		}
		if got := rr[0].String(); got != s {
			t.Errorf("%q: got %q", s, got)
		}
	}
}

func TestResolveRanges(t *testing.T) {
	got, err := ResolveRanges([]Range{{2, ToEnd}, {1, 1}}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]Range{{2, 7}, {1, 1}}, got); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
	if got[0].Len() != 6 {
		t.Errorf("Len() = %d", got[0].Len())
	}
}

func TestEachPage(t *testing.T) {
	if d := cmp.Diff([]Range{{1, 1}, {2, 2}, {3, 3}}, EachPage(3)); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}
