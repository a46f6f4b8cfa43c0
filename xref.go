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
	"errors"
	"fmt"
	"math"
	"math/bits"
)

type xRefEntry struct {
	// Pos is the byte offset of the object, or the index within the
	// containing object stream if InStream is non-zero.
	Pos        int64
	Generation uint16
	InStream   uint32
	Free       bool
}

func (entry *xRefEntry) IsFree() bool {
	return entry == nil || entry.Free
}

// xRefTable holds the combined cross-reference information of a file.
type xRefTable struct {
	entries map[uint32]*xRefEntry
	trailer Dict

	// streams lists the cross-reference streams found while reading
	// the table.  These are not part of the document.
	streams []Reference
}

// findXRef locates the start of the last cross-reference section, using
// the "startxref" marker near the end of the file.
func findXRef(buf []byte) (int64, error) {
	pos := bytes.LastIndex(buf, []byte("startxref"))
	if pos < 0 {
		return 0, &MalformedFileError{Err: errors.New("startxref not found")}
	}
	lex := NewLexer(buf)
	lex.SetPos(int64(pos) + 9)
	tok, err := lex.Next()
	if err != nil {
		return 0, err
	}
	if tok.Kind != TokenInteger || tok.Int <= 0 || tok.Int >= int64(len(buf)) {
		return 0, &MalformedFileError{
			Pos: tok.Pos,
			Err: errors.New("invalid xref position"),
		}
	}
	return tok.Int, nil
}

// readXRef reads the chain of cross-reference sections, starting with
// the last one.  Entries in newer sections take precedence.
func readXRef(buf []byte) (*xRefTable, error) {
	start, err := findXRef(buf)
	if err != nil {
		return nil, err
	}

	xref := &xRefTable{
		entries: make(map[uint32]*xRefEntry),
		trailer: Dict{},
	}
	first := true
	seen := make(map[int64]bool)
	for {
		// avoid xref loops
		if seen[start] {
			break
		}
		seen[start] = true

		p := newParser(buf, start)
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		var dict Dict
		if tok.IsKeyword("xref") {
			dict, err = xref.readTable(p)
			if err != nil {
				return nil, err
			}
			if zStart, ok := dict["XRefStm"]; ok {
				// hybrid-reference file
				zs, ok := zStart.(Integer)
				if !ok || zs <= 0 || int64(zs) >= int64(len(buf)) {
					return nil, &MalformedFileError{
						Pos: tok.Pos,
						Err: fmt.Errorf("invalid /XRefStm value %s", Format(zStart)),
					}
				}
				_, err = xref.readStream(newParser(buf, int64(zs)), true)
				if err != nil {
					return nil, err
				}
			}
		} else {
			p.unread(tok)
			dict, err = xref.readStream(p, false)
			if err != nil {
				return nil, err
			}
		}

		if first {
			for _, key := range []Name{"Root", "Encrypt", "Info", "ID"} {
				if val, ok := dict[key]; ok {
					xref.trailer[key] = val
				}
			}
			first = false
		}

		prev := dict["Prev"]
		if prev == nil {
			break
		}
		prevStart, ok := prev.(Integer)
		if !ok || prevStart <= 0 || int64(prevStart) >= int64(len(buf)) {
			return nil, &MalformedFileError{
				Pos: start,
				Err: fmt.Errorf("invalid /Prev value %s", Format(prev)),
			}
		}
		start = int64(prevStart)
	}

	return xref, nil
}

// readTable reads a classic cross-reference table, after the "xref"
// keyword, followed by the trailer dictionary.
func (xref *xRefTable) readTable(p *parser) (Dict, error) {
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.IsKeyword("trailer") {
			break
		}
		countTok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokenInteger || countTok.Kind != TokenInteger ||
			tok.Int < 0 || countTok.Int < 0 || tok.Int+countTok.Int > math.MaxUint32 {
			return nil, &MalformedFileError{
				Pos: tok.Pos,
				Err: errors.New("malformed xref subsection header"),
			}
		}

		start := uint32(tok.Int)
		for i := range uint32(countTok.Int) {
			var entry [3]Token
			for k := range entry {
				entry[k], err = p.next()
				if err != nil {
					return nil, err
				}
			}
			if entry[0].Kind != TokenInteger || entry[1].Kind != TokenInteger ||
				entry[2].Kind != TokenKeyword || entry[0].Int < 0 || entry[1].Int < 0 {
				return nil, &MalformedFileError{
					Pos: entry[0].Pos,
					Err: errors.New("malformed xref table entry"),
				}
			}

			num := start + i
			if xref.entries[num] != nil {
				continue
			}
			// some writers use 65536 for the head of the free list
			gen := uint16(min(entry[1].Int, math.MaxUint16))
			switch string(entry[2].Bytes) {
			case "f":
				xref.entries[num] = &xRefEntry{Free: true, Generation: gen}
			case "n":
				xref.entries[num] = &xRefEntry{Pos: entry[0].Int, Generation: gen}
			default:
				return nil, &MalformedFileError{
					Pos: entry[2].Pos,
					Err: errors.New("malformed xref table entry"),
				}
			}
		}
	}

	obj, err := p.ReadObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, &MalformedFileError{
			Pos: p.lex.Pos(),
			Err: errors.New("invalid trailer dictionary"),
		}
	}
	return dict, nil
}

// readStream reads a cross-reference stream.  If overrideFree is set,
// entries from the stream replace free entries already in the table.
func (xref *xRefTable) readStream(p *parser, overrideFree bool) (Dict, error) {
	pos := p.lex.Pos()
	ref, obj, err := p.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok || DictType(stream) != "XRef" {
		return nil, &MalformedFileError{
			Pos: pos,
			Err: errors.New("invalid xref stream"),
		}
	}
	xref.streams = append(xref.streams, ref)

	w, ss, err := checkXRefStreamDict(stream.Dict)
	if err != nil {
		return nil, Wrap(err, "xref stream")
	}
	data, err := stream.Decode(nil)
	if err != nil {
		return nil, &MalformedFileError{Pos: pos, Err: err}
	}
	err = xref.decodeStream(data, w, ss, overrideFree)
	if err != nil {
		return nil, &MalformedFileError{Pos: pos, Err: err}
	}
	return stream.Dict, nil
}

type xRefSubSection struct {
	Start, Size int64
}

func checkXRefStreamDict(dict Dict) ([]int, []xRefSubSection, error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 || size > math.MaxUint32 {
		return nil, nil, &MalformedFileError{Err: errors.New("invalid /Size")}
	}
	W, ok := dict["W"].(Array)
	if !ok || len(W) < 3 {
		return nil, nil, &MalformedFileError{Err: errors.New("invalid /W")}
	}
	w := make([]int, len(W))
	for i, Wi := range W {
		wi, ok := Wi.(Integer)
		if !ok || wi < 0 || wi > 8 {
			return nil, nil, &MalformedFileError{Err: errors.New("invalid /W")}
		}
		w[i] = int(wi)
	}

	var ss []xRefSubSection
	switch ind := dict["Index"].(type) {
	case nil:
		ss = append(ss, xRefSubSection{0, int64(size)})
	case Array:
		if len(ind)%2 != 0 {
			return nil, nil, &MalformedFileError{Err: errors.New("invalid /Index")}
		}
		for i := 0; i < len(ind); i += 2 {
			start, ok1 := ind[i].(Integer)
			n, ok2 := ind[i+1].(Integer)
			if !ok1 || !ok2 || start < 0 || n < 0 || start+n > math.MaxUint32 {
				return nil, nil, &MalformedFileError{Err: errors.New("invalid /Index")}
			}
			ss = append(ss, xRefSubSection{int64(start), int64(n)})
		}
	default:
		return nil, nil, &MalformedFileError{Err: errors.New("invalid /Index")}
	}
	return w, ss, nil
}

func (xref *xRefTable) decodeStream(data []byte, w []int, ss []xRefSubSection, overrideFree bool) error {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	if wTotal == 0 {
		return errors.New("invalid /W")
	}

	w0, w1, w2 := w[0], w[1], w[2]
	for _, sec := range ss {
		for i := sec.Start; i < sec.Start+sec.Size; i++ {
			if len(data) < wTotal {
				return errors.New("xref stream too short")
			}
			buf := data[:wTotal]
			data = data[wTotal:]

			num := uint32(i)
			if old := xref.entries[num]; old != nil && !(overrideFree && old.Free) {
				continue
			}

			tp := decodeInt(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(buf[w0 : w0+w1])
			b := decodeInt(buf[w0+w1 : w0+w1+w2])
			switch tp {
			case 0:
				// free object
				xref.entries[num] = &xRefEntry{
					Free:       true,
					Generation: uint16(b),
				}
			case 1:
				// used object, not compressed
				xref.entries[num] = &xRefEntry{
					Pos:        a,
					Generation: uint16(b),
				}
			case 2:
				// used object, stored in the object stream with number a
				if a <= 0 || a > math.MaxUint32 {
					return fmt.Errorf("invalid object stream number %d", a)
				}
				xref.entries[num] = &xRefEntry{
					Pos:      b,
					InStream: uint32(a),
				}
			default:
				// unknown types are references to the null object
			}
		}
	}
	return nil
}

func decodeInt(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}

// check verifies that the table can be used to read the file: the
// catalog reference is present, all in-use offsets point to the expected
// "N G obj" header, and compressed objects refer to in-use object streams.
func (xref *xRefTable) check(buf []byte) error {
	root, ok := xref.trailer["Root"].(Reference)
	if !ok {
		return &MalformedFileError{Err: errors.New("missing /Root in trailer")}
	}
	if xref.entries[root.Number()].IsFree() {
		return &MalformedFileError{Err: fmt.Errorf("catalog %s not in xref table", root)}
	}

	lex := NewLexer(buf)
	for num, entry := range xref.entries {
		if entry.Free {
			continue
		}
		if entry.InStream != 0 {
			stm := xref.entries[entry.InStream]
			if stm.IsFree() || stm.InStream != 0 {
				return &MalformedFileError{
					Err: fmt.Errorf("object %d: invalid object stream %d", num, entry.InStream),
				}
			}
			continue
		}
		if entry.Pos <= 0 || entry.Pos >= int64(len(buf)) {
			return &MalformedFileError{
				Err: fmt.Errorf("object %d: invalid offset %d", num, entry.Pos),
			}
		}
		if !hasObjectHeader(lex, entry.Pos, num, entry.Generation) {
			return &MalformedFileError{
				Pos: entry.Pos,
				Err: fmt.Errorf("object %d %d not found at xref offset", num, entry.Generation),
			}
		}
	}
	return nil
}

// hasObjectHeader reports whether the tokens at pos are "num gen obj".
func hasObjectHeader(lex *Lexer, pos int64, num uint32, gen uint16) bool {
	want := []func(Token) bool{
		func(t Token) bool { return t.Kind == TokenInteger && t.Int == int64(num) },
		func(t Token) bool { return t.Kind == TokenInteger && t.Int == int64(gen) },
		func(t Token) bool { return t.IsKeyword("obj") },
	}
	i := 0
	for tok, err := range lex.Tokens(pos) {
		if err != nil || !want[i](tok) {
			return false
		}
		i++
		if i == len(want) {
			return true
		}
	}
	return false
}

// writeXRefTable writes a classic cross-reference table and the trailer.
// Free entries form a linked list starting at object 0.
func (wr *writer) writeXRefTable(trailer Dict) error {
	xrefPos := wr.w.pos
	_, err := fmt.Fprintf(wr.w, "xref\n0 %d\n", wr.size)
	if err != nil {
		return err
	}

	free := []uint32{0}
	for i := uint32(1); i < wr.size; i++ {
		if wr.xref[i] == nil {
			free = append(free, i)
		}
	}
	nextFree := make(map[uint32]uint32, len(free))
	for k, num := range free {
		if k+1 < len(free) {
			nextFree[num] = free[k+1]
		}
	}

	for i := uint32(0); i < wr.size; i++ {
		entry := wr.xref[i]
		if entry != nil {
			_, err = fmt.Fprintf(wr.w, "%010d %05d n\r\n", entry.Pos, entry.Generation)
		} else {
			gen := 0
			if i == 0 {
				gen = 65535
			}
			_, err = fmt.Fprintf(wr.w, "%010d %05d f\r\n", nextFree[i], gen)
		}
		if err != nil {
			return err
		}
	}

	_, err = fmt.Fprint(wr.w, "trailer\n")
	if err != nil {
		return err
	}
	err = trailer.PDF(wr.w)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(wr.w, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)
	return err
}

// writeXRefStream writes a cross-reference stream.  The stream uses the
// object number wr.size-1 and includes an entry for itself.
func (wr *writer) writeXRefStream(trailer Dict) error {
	ref := NewReference(wr.size-1, 0)
	xrefPos := wr.w.pos
	wr.xref[ref.Number()] = &xRefEntry{Pos: xrefPos}

	maxField2 := int64(0)
	maxField3 := uint16(0)
	for _, entry := range wr.xref {
		var f2 int64
		var f3 uint16
		if entry.InStream != 0 {
			f2 = int64(entry.InStream)
			f3 = uint16(entry.Pos)
		} else {
			f2 = entry.Pos
			f3 = entry.Generation
		}
		maxField2 = max(maxField2, f2)
		maxField3 = max(maxField3, f3)
	}
	w2 := max((bits.Len64(uint64(maxField2))+7)/8, 1)
	w3 := (bits.Len16(maxField3) + 7) / 8

	data := &bytes.Buffer{}
	for i := uint32(0); i < wr.size; i++ {
		entry := wr.xref[i]
		switch {
		case entry == nil:
			data.WriteByte(0)
			encodeInt(data, 0, w2)
			encodeInt(data, 0, w3)
		case entry.InStream == 0:
			data.WriteByte(1)
			encodeInt(data, uint64(entry.Pos), w2)
			encodeInt(data, uint64(entry.Generation), w3)
		default:
			data.WriteByte(2)
			encodeInt(data, uint64(entry.InStream), w2)
			encodeInt(data, uint64(entry.Pos), w3)
		}
	}
	compressed, err := FlateEncode(data.Bytes())
	if err != nil {
		return err
	}

	dict := Dict{}
	for key, val := range trailer {
		dict[key] = val
	}
	dict["Type"] = Name("XRef")
	dict["W"] = Array{Integer(1), Integer(w2), Integer(w3)}
	dict["Filter"] = Name("FlateDecode")
	err = wr.writeIndirect(ref, &Stream{Dict: dict, Data: compressed})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(wr.w, "startxref\n%d\n%%%%EOF\n", xrefPos)
	return err
}

func encodeInt(data *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}
