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

package pdf

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseObject(t *testing.T) {
	type testCase struct {
		in   string
		want Object
	}
	cases := []testCase{
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"null", nil},
		{"42", Integer(42)},
		{"-1.25", Real(-1.25)},
		{"/Type", Name("Type")},
		{"(hello)", String("hello")},
		{"<414243>", String("ABC")},
		{"12 0 R", NewReference(12, 0)},
		{"[1 2 0 R 3]", Array{Integer(1), NewReference(2, 0), Integer(3)}},
		{"[1 2 3]", Array{Integer(1), Integer(2), Integer(3)}},
		{"[]", Array{}},
		{"<< /A 1 /B null /C [/x] >>", Dict{"A": Integer(1), "C": Array{Name("x")}}},
		{"<</Kids[3 0 R 4 1 R]>>", Dict{"Kids": Array{NewReference(3, 0), NewReference(4, 1)}}},
	}
	for _, c := range cases {
		got, err := ParseObject([]byte(c.in))
		if err != nil {
			t.Errorf("%q: %v", c.in, err)
			continue
		}
		if d := cmp.Diff(c.want, got); d != "" {
			t.Errorf("%q: %s", c.in, d)
		}
	}
}

func TestParseObjectErrors(t *testing.T) {
	deep := strings.Repeat("[", maxNesting+1) + strings.Repeat("]", maxNesting+1)
	for _, in := range []string{
		"",
		"[1 2",
		"<< /A >>",
		"<< 1 2 >>",
		"<< /A 1",
		"1 2",
		"endobj",
		"[1 R]",
		deep,
	} {
		_, err := ParseObject([]byte(in))
		if !errors.Is(err, ErrMalformedSyntax) {
			t.Errorf("%.20q: got %v", in, err)
		}
	}
}

func TestReadIndirectObject(t *testing.T) {
	in := "7 1 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj\n"
	p := newParser([]byte(in), 0)
	ref, obj, err := p.ReadIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if ref != NewReference(7, 1) {
		t.Errorf("got reference %s", ref)
	}
	stm, ok := obj.(*Stream)
	if !ok {
		t.Fatalf("got %T", obj)
	}
	if string(stm.Data) != "hello" {
		t.Errorf("got data %q", stm.Data)
	}

	// an indirect /Length is resolved via the callback
	in = "1 0 obj\n<< /Length 9 0 R >>\nstream\nabc\nendstream\nendobj\n"
	p = newParser([]byte(in), 0)
	p.getInt = func(ref Reference) (Integer, error) {
		if ref != NewReference(9, 0) {
			t.Errorf("unexpected lookup of %s", ref)
		}
		return 3, nil
	}
	_, obj, err = p.ReadIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if got := obj.(*Stream).Dict["Length"]; got != Integer(3) {
		t.Errorf("got /Length %v", got)
	}

	for _, in := range []string{
		"1 0 obj 5",
		"1 0 5 endobj",
		"-1 0 obj 5 endobj",
	} {
		p := newParser([]byte(in), 0)
		_, _, err := p.ReadIndirectObject()
		if !errors.Is(err, ErrMalformedSyntax) {
			t.Errorf("%q: got %v", in, err)
		}
	}
}
