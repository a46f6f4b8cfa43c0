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
	"bytes"
	"iter"
	"strconv"
)

// TokenKind identifies the type of a lexical token.
type TokenKind int

// These are the token kinds returned by the [Lexer].
const (
	TokenEOF TokenKind = iota
	TokenInteger
	TokenReal
	TokenName
	TokenString
	TokenHexString
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenKeyword
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenInteger:
		return "integer"
	case TokenReal:
		return "real"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenHexString:
		return "hex string"
	case TokenArrayStart:
		return "["
	case TokenArrayEnd:
		return "]"
	case TokenDictStart:
		return "<<"
	case TokenDictEnd:
		return ">>"
	case TokenKeyword:
		return "keyword"
	}
	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// Token is a lexical token of the PDF file syntax.
//
// Pos is the byte offset of the first character of the token.  For numbers,
// the value is stored in Int or Real.  For names, strings and keywords, Bytes
// holds the decoded contents (names without the leading slash, strings
// without delimiters and with escape sequences resolved).
type Token struct {
	Kind  TokenKind
	Pos   int64
	Int   int64
	Real  float64
	Bytes []byte
}

// IsKeyword reports whether the token is the keyword kw.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == TokenKeyword && string(t.Bytes) == kw
}

// Lexer splits a PDF file into tokens.  All positions are byte offsets into
// the underlying buffer.
type Lexer struct {
	buf []byte
	pos int
}

// NewLexer returns a lexer which reads tokens from buf, starting at the
// beginning of the buffer.
func NewLexer(buf []byte) *Lexer {
	return &Lexer{buf: buf}
}

// Pos returns the offset of the next byte to be read.
func (l *Lexer) Pos() int64 {
	return int64(l.pos)
}

// SetPos moves the lexer to the given byte offset.
func (l *Lexer) SetPos(pos int64) {
	switch {
	case pos < 0:
		l.pos = 0
	case pos > int64(len(l.buf)):
		l.pos = len(l.buf)
	default:
		l.pos = int(pos)
	}
}

// Tokens returns an iterator over the tokens starting at byte offset start.
// Iteration stops at the end of the buffer or after the first error.
// Each call to the returned iterator starts afresh at start, and the
// position of l is not changed.
func (l *Lexer) Tokens(start int64) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		lex := &Lexer{buf: l.buf}
		lex.SetPos(start)
		for {
			tok, err := lex.Next()
			if err != nil {
				yield(tok, err)
				return
			}
			if tok.Kind == TokenEOF {
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// Next reads the next token.  At the end of the buffer, a token of kind
// [TokenEOF] is returned.  Syntax errors are reported as
// [*MalformedFileError].
func (l *Lexer) Next() (Token, error) {
	l.skipWhiteSpace()

	start := l.pos
	tok := Token{Pos: int64(start)}
	if start >= len(l.buf) {
		tok.Kind = TokenEOF
		return tok, nil
	}

	var err error
	c := l.buf[start]
	switch {
	case c == '/':
		tok.Kind = TokenName
		tok.Bytes, err = l.readName()
	case c == '(':
		tok.Kind = TokenString
		tok.Bytes, err = l.readLiteralString()
	case c == '<':
		if l.peekAt(start+1) == '<' {
			tok.Kind = TokenDictStart
			l.pos += 2
		} else {
			tok.Kind = TokenHexString
			tok.Bytes, err = l.readHexString()
		}
	case c == '>':
		if l.peekAt(start+1) != '>' {
			l.pos++
			return tok, errorf(tok.Pos, "unexpected '>'")
		}
		tok.Kind = TokenDictEnd
		l.pos += 2
	case c == '[':
		tok.Kind = TokenArrayStart
		l.pos++
	case c == ']':
		tok.Kind = TokenArrayEnd
		l.pos++
	case c == '{' || c == '}':
		tok.Kind = TokenKeyword
		tok.Bytes = l.buf[start : start+1]
		l.pos++
	case c == ')':
		l.pos++
		return tok, errorf(tok.Pos, "unbalanced ')'")
	case c == '+' || c == '-' || c == '.' || c >= '0' && c <= '9':
		err = l.readNumber(&tok)
	default:
		for l.pos < len(l.buf) && !isSpace[l.buf[l.pos]] && !isDelimiter[l.buf[l.pos]] {
			l.pos++
		}
		tok.Kind = TokenKeyword
		tok.Bytes = l.buf[start:l.pos]
	}
	return tok, err
}

func (l *Lexer) peekAt(pos int) byte {
	if pos < len(l.buf) {
		return l.buf[pos]
	}
	return 0
}

func (l *Lexer) skipWhiteSpace() {
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		if c == '%' {
			for l.pos < len(l.buf) && l.buf[l.pos] != '\r' && l.buf[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		if !isSpace[c] {
			return
		}
		l.pos++
	}
}

func (l *Lexer) readNumber(tok *Token) error {
	start := l.pos
	p := start
	if c := l.buf[p]; c == '+' || c == '-' {
		p++
	}
	digits := 0
	hasDot := false
	for p < len(l.buf) {
		c := l.buf[p]
		if c >= '0' && c <= '9' {
			digits++
		} else if c == '.' && !hasDot {
			hasDot = true
		} else {
			break
		}
		p++
	}
	l.pos = p
	if digits == 0 {
		return errorf(tok.Pos, "invalid number %q", l.buf[start:p])
	}

	s := string(l.buf[start:p])
	if !hasDot {
		x, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			tok.Kind = TokenInteger
			tok.Int = x
			return nil
		}
		// integers which overflow int64 are read as reals
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errorf(tok.Pos, "invalid number %q", s)
	}
	tok.Kind = TokenReal
	tok.Real = x
	return nil
}

func (l *Lexer) readName() ([]byte, error) {
	l.pos++ // skip '/'
	var res []byte
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		if isSpace[c] || isDelimiter[c] {
			break
		}
		if c == '#' {
			hi, ok1 := hexVal(l.peekAt(l.pos + 1))
			lo, ok2 := hexVal(l.peekAt(l.pos + 2))
			if !ok1 || !ok2 {
				return nil, errorf(int64(l.pos), "invalid escape in name")
			}
			res = append(res, hi<<4|lo)
			l.pos += 3
			continue
		}
		res = append(res, c)
		l.pos++
	}
	return res, nil
}

func (l *Lexer) readLiteralString() ([]byte, error) {
	start := l.pos
	l.pos++ // skip '('

	res := []byte{}
	level := 1
	for {
		if l.pos >= len(l.buf) {
			return nil, errorf(int64(start), "unterminated string")
		}
		c := l.buf[l.pos]
		l.pos++
		switch c {
		case '(':
			level++
			res = append(res, c)
		case ')':
			level--
			if level == 0 {
				return res, nil
			}
			res = append(res, c)
		case '\r':
			// end-of-line markers in literal strings are read as '\n'
			if l.peekAt(l.pos) == '\n' {
				l.pos++
			}
			res = append(res, '\n')
		case '\\':
			if l.pos >= len(l.buf) {
				return nil, errorf(int64(start), "unterminated string")
			}
			e := l.buf[l.pos]
			l.pos++
			switch e {
			case 'n':
				res = append(res, '\n')
			case 'r':
				res = append(res, '\r')
			case 't':
				res = append(res, '\t')
			case 'b':
				res = append(res, '\b')
			case 'f':
				res = append(res, '\f')
			case '\r':
				if l.peekAt(l.pos) == '\n' {
					l.pos++
				}
			case '\n':
				// line continuation
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := int(e - '0')
				for k := 0; k < 2; k++ {
					d := l.peekAt(l.pos)
					if d < '0' || d > '7' {
						break
					}
					val = 8*val + int(d-'0')
					l.pos++
				}
				res = append(res, byte(val))
			default:
				// covers `\(`, `\)` and `\\`; the backslash is ignored
				// for unknown escapes
				res = append(res, e)
			}
		default:
			res = append(res, c)
		}
	}
}

func (l *Lexer) readHexString() ([]byte, error) {
	start := l.pos
	l.pos++ // skip '<'

	res := []byte{}
	var hi byte
	half := false
	for {
		if l.pos >= len(l.buf) {
			return nil, errorf(int64(start), "unterminated hex string")
		}
		c := l.buf[l.pos]
		l.pos++
		if c == '>' {
			if half {
				res = append(res, hi<<4)
			}
			return res, nil
		}
		if isSpace[c] {
			continue
		}
		v, ok := hexVal(c)
		if !ok {
			return nil, errorf(int64(l.pos-1), "invalid character %q in hex string", c)
		}
		if half {
			res = append(res, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
}

// ReadStreamBody reads the contents of a stream.  This must be called
// directly after the "stream" keyword has been read.
//
// If length is non-negative and is followed by the "endstream" keyword, this
// many bytes are returned.  Otherwise the end of the data is located by
// searching for "endstream".  The returned slice points into the
// underlying buffer.
func (l *Lexer) ReadStreamBody(length int) ([]byte, error) {
	p := l.pos
	for p < len(l.buf) && (l.buf[p] == ' ' || l.buf[p] == '\t') {
		p++
	}
	switch l.peekAt(p) {
	case '\r':
		p++
		if l.peekAt(p) == '\n' {
			p++
		}
	case '\n':
		p++
	default:
		p = l.pos
	}
	start := p

	if length >= 0 && length <= len(l.buf)-start {
		end := start + length
		e := end
		for e < len(l.buf) && isSpace[l.buf[e]] {
			e++
		}
		if bytes.HasPrefix(l.buf[e:], endstream) {
			l.pos = e + len(endstream)
			return l.buf[start:end:end], nil
		}
	}

	idx := bytes.Index(l.buf[start:], endstream)
	if idx < 0 {
		return nil, errorf(int64(start), "unterminated stream")
	}
	end := start + idx
	l.pos = end + len(endstream)
	if end > start && l.buf[end-1] == '\n' {
		end--
	}
	if end > start && l.buf[end-1] == '\r' {
		end--
	}
	return l.buf[start:end:end], nil
}

var endstream = []byte("endstream")

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

var isSpace = [256]bool{
	0:  true,
	9:  true,
	10: true,
	12: true,
	13: true,
	32: true,
}

var isDelimiter = [256]bool{
	'(': true,
	')': true,
	'<': true,
	'>': true,
	'[': true,
	']': true,
	'{': true,
	'}': true,
	'/': true,
	'%': true,
}
