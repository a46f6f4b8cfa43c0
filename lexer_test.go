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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLexer(t *testing.T) {
	in := []byte("%comment\n1 -2.5 +.5 /Name#20x (a(b)c\\n\\051) <48 65 6>" +
		" << >> [ ] { } obj 12345678901234567890")
	type tok struct {
		Kind  TokenKind
		Int   int64
		Real  float64
		Bytes string
	}
	want := []tok{
		{Kind: TokenInteger, Int: 1},
		{Kind: TokenReal, Real: -2.5},
		{Kind: TokenReal, Real: 0.5},
		{Kind: TokenName, Bytes: "Name x"},
		{Kind: TokenString, Bytes: "a(b)c\n)"},
		{Kind: TokenHexString, Bytes: "He`"},
		{Kind: TokenDictStart},
		{Kind: TokenDictEnd},
		{Kind: TokenArrayStart},
		{Kind: TokenArrayEnd},
		{Kind: TokenKeyword, Bytes: "{"},
		{Kind: TokenKeyword, Bytes: "}"},
		{Kind: TokenKeyword, Bytes: "obj"},
		{Kind: TokenReal, Real: 12345678901234567890},
	}

	var got []tok
	lex := NewLexer(in)
	for token, err := range lex.Tokens(0) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, tok{
			Kind:  token.Kind,
			Int:   token.Int,
			Real:  token.Real,
			Bytes: string(token.Bytes),
		})
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
	if lex.Pos() != 0 {
		t.Errorf("Tokens moved the lexer to %d", lex.Pos())
	}
}

func TestLexerPositions(t *testing.T) {
	in := []byte("  /A  12 R")
	lex := NewLexer(in)
	var pos []int64
	for {
		tok, err := lex.Next()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind == TokenEOF {
			if tok.Pos != int64(len(in)) {
				t.Errorf("EOF at %d, want %d", tok.Pos, len(in))
			}
			break
		}
		pos = append(pos, tok.Pos)
	}
	if d := cmp.Diff([]int64{2, 6, 9}, pos); d != "" {
		t.Error(d)
	}
}

func TestLexerSetPos(t *testing.T) {
	lex := NewLexer([]byte("/A 12"))
	type testCase struct {
		pos      int64
		wantPos  int64
		wantKind TokenKind
	}
	cases := []testCase{
		{3, 3, TokenInteger},
		{0, 0, TokenName},
		{-5, 0, TokenName},
		{99, 5, TokenEOF},
	}
	for _, c := range cases {
		lex.SetPos(c.pos)
		if got := lex.Pos(); got != c.wantPos {
			t.Errorf("SetPos(%d): at %d, want %d", c.pos, got, c.wantPos)
		}
		tok, err := lex.Next()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind != c.wantKind {
			t.Errorf("SetPos(%d): got %s, want %s", c.pos, tok.Kind, c.wantKind)
		}
	}
}

func TestLexerStringNewlines(t *testing.T) {
	lex := NewLexer([]byte("(a\r\nb\rc\\\nd)"))
	tok, err := lex.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(tok.Bytes); got != "a\nb\ncd" {
		t.Errorf("got %q", got)
	}

	lex = NewLexer([]byte("()"))
	tok, err = lex.Next()
	if err != nil {
		t.Fatal(err)
	}
	if tok.Bytes == nil || len(tok.Bytes) != 0 {
		t.Errorf("empty string: got %#v", tok.Bytes)
	}
}

func TestLexerErrors(t *testing.T) {
	for _, in := range []string{"(abc", "<12G>", "<12", "/a#zz", ")", "> x", "-."} {
		lex := NewLexer([]byte(in))
		var err error
		for range 3 {
			_, err = lex.Next()
			if err != nil {
				break
			}
		}
		if !errors.Is(err, ErrMalformedSyntax) {
			t.Errorf("%q: got %v", in, err)
		}
		var mErr *MalformedFileError
		if !errors.As(err, &mErr) {
			t.Errorf("%q: wrong error type %T", in, err)
		}
	}
}

func TestReadStreamBody(t *testing.T) {
	type testCase struct {
		in     string
		length int
		want   string
	}
	cases := []testCase{
		{"stream\nhello\nendstream", 5, "hello"},
		{"stream\r\nhello\r\nendstream", 5, "hello"},
		{"stream\nhello\nendstream", 3, "hello"},  // wrong length
		{"stream\nhello\nendstream", -1, "hello"}, // unknown length
		{"stream\nhello\nendstream", 99, "hello"}, // length beyond buffer
		{"stream\n\nendstream", 0, ""},
	}
	for _, c := range cases {
		lex := NewLexer([]byte(c.in))
		tok, err := lex.Next()
		if err != nil || !tok.IsKeyword("stream") {
			t.Fatalf("%q: unexpected %v %v", c.in, tok, err)
		}
		data, err := lex.ReadStreamBody(c.length)
		if err != nil {
			t.Errorf("%q/%d: %v", c.in, c.length, err)
			continue
		}
		if string(data) != c.want {
			t.Errorf("%q/%d: got %q, want %q", c.in, c.length, data, c.want)
		}
		if lex.Pos() != int64(len(c.in)) {
			t.Errorf("%q/%d: lexer at %d", c.in, c.length, lex.Pos())
		}
	}

	lex := NewLexer([]byte("stream\nno end"))
	lex.Next()
	_, err := lex.ReadStreamBody(-1)
	if !errors.Is(err, ErrMalformedSyntax) {
		t.Errorf("unterminated stream: got %v", err)
	}
}
