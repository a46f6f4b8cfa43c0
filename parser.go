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

import "math"

// maxNesting limits the depth of nested arrays and dictionaries.
const maxNesting = 256

// parser reads PDF objects from the token stream of a [Lexer].
type parser struct {
	lex  *Lexer
	back []Token

	// getInt, if set, is used to resolve indirect /Length values of
	// streams.
	getInt func(Reference) (Integer, error)

	depth int
}

func newParser(buf []byte, pos int64) *parser {
	lex := NewLexer(buf)
	lex.SetPos(pos)
	return &parser{lex: lex}
}

func (p *parser) next() (Token, error) {
	if n := len(p.back); n > 0 {
		tok := p.back[n-1]
		p.back = p.back[:n-1]
		return tok, nil
	}
	return p.lex.Next()
}

func (p *parser) unread(tok Token) {
	p.back = append(p.back, tok)
}

// ReadObject reads the next direct object.
// A reference "N G R" is returned as a [Reference].
func (p *parser) ReadObject() (Object, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.objectFrom(tok)
}

// ReadIndirectObject reads an object of the form "N G obj ... endobj".
func (p *parser) ReadIndirectObject() (Reference, Object, error) {
	var head [3]Token
	for i := range head {
		tok, err := p.next()
		if err != nil {
			return 0, nil, err
		}
		head[i] = tok
	}
	if head[0].Kind != TokenInteger || head[1].Kind != TokenInteger ||
		!head[2].IsKeyword("obj") ||
		head[0].Int < 0 || head[0].Int > math.MaxUint32 ||
		head[1].Int < 0 || head[1].Int > math.MaxUint16 {
		return 0, nil, errorf(head[0].Pos, "expected \"N G obj\"")
	}
	ref := NewReference(uint32(head[0].Int), uint16(head[1].Int))

	obj, err := p.ReadObject()
	if err != nil {
		return ref, nil, err
	}

	tok, err := p.next()
	if err != nil {
		return ref, nil, err
	}
	if !tok.IsKeyword("endobj") {
		return ref, nil, errorf(tok.Pos, "missing endobj for object %d %d", ref.Number(), ref.Generation())
	}
	return ref, obj, nil
}

func (p *parser) objectFrom(tok Token) (Object, error) {
	switch tok.Kind {
	case TokenInteger:
		return p.integerOrReference(tok)
	case TokenReal:
		return Real(tok.Real), nil
	case TokenName:
		return Name(tok.Bytes), nil
	case TokenString, TokenHexString:
		return String(tok.Bytes), nil
	case TokenArrayStart:
		return p.readArray(tok)
	case TokenDictStart:
		return p.readDict(tok)
	case TokenKeyword:
		switch string(tok.Bytes) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return nil, nil
		}
		return nil, errorf(tok.Pos, "unexpected keyword %q", tok.Bytes)
	case TokenEOF:
		return nil, errorf(tok.Pos, "unexpected end of input")
	}
	return nil, errorf(tok.Pos, "unexpected %s", tok.Kind)
}

func (p *parser) integerOrReference(tok Token) (Object, error) {
	t2, err := p.next()
	if err != nil {
		return nil, err
	}
	if t2.Kind == TokenInteger && tok.Int >= 0 && tok.Int <= math.MaxUint32 &&
		t2.Int >= 0 && t2.Int <= math.MaxUint16 {
		t3, err := p.next()
		if err != nil {
			return nil, err
		}
		if t3.IsKeyword("R") {
			return NewReference(uint32(tok.Int), uint16(t2.Int)), nil
		}
		p.unread(t3)
	}
	p.unread(t2)
	return Integer(tok.Int), nil
}

func (p *parser) readArray(start Token) (Object, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNesting {
		return nil, errorf(start.Pos, "objects nested too deeply")
	}

	res := Array{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokenArrayEnd:
			return res, nil
		case TokenEOF:
			return nil, errorf(start.Pos, "unterminated array")
		}
		obj, err := p.objectFrom(tok)
		if err != nil {
			return nil, err
		}
		res = append(res, obj)
	}
}

func (p *parser) readDict(start Token) (Object, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNesting {
		return nil, errorf(start.Pos, "objects nested too deeply")
	}

	dict := Dict{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenDictEnd {
			break
		}
		if tok.Kind == TokenEOF {
			return nil, errorf(start.Pos, "unterminated dictionary")
		}
		if tok.Kind != TokenName {
			return nil, errorf(tok.Pos, "expected name, got %s", tok.Kind)
		}
		key := Name(tok.Bytes)

		vtok, err := p.next()
		if err != nil {
			return nil, err
		}
		if vtok.Kind == TokenDictEnd {
			return nil, errorf(vtok.Pos, "missing value for /%s", key)
		}
		val, err := p.objectFrom(vtok)
		if err != nil {
			return nil, err
		}
		if val != nil {
			dict[key] = val
		}
	}

	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if !tok.IsKeyword("stream") {
		p.unread(tok)
		return dict, nil
	}
	if len(p.back) > 0 {
		return nil, errorf(tok.Pos, "unexpected stream keyword")
	}

	length := -1
	switch l := dict["Length"].(type) {
	case Integer:
		if l >= 0 && l <= math.MaxInt32 {
			length = int(l)
		}
	case Reference:
		if p.getInt != nil {
			n, err := p.getInt(l)
			if err == nil && n >= 0 && n <= math.MaxInt32 {
				length = int(n)
			}
		}
	}
	data, err := p.lex.ReadStreamBody(length)
	if err != nil {
		return nil, err
	}
	dict["Length"] = Integer(len(data))
	return &Stream{Dict: dict, Data: data}, nil
}

// ParseObject parses a single direct object from buf, for example
// "<< /Type /Page >>".  Trailing data after the object is an error.
func ParseObject(buf []byte) (Object, error) {
	p := newParser(buf, 0)
	obj, err := p.ReadObject()
	if err != nil {
		return nil, err
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokenEOF {
		return nil, errorf(tok.Pos, "unexpected data after object")
	}
	return obj, nil
}
