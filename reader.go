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
	"fmt"
	"regexp"
	"slices"

	"golang.org/x/exp/maps"
)

// ReaderOptions control how a PDF file is read.
type ReaderOptions struct {
	// Strict disables the brute-force reconstruction of the
	// cross-reference table, which is otherwise attempted once if the
	// cross-reference data is missing or damaged.
	Strict bool
}

var startRegexp = regexp.MustCompile(`^%PDF-([12]\.[0-9])`)

// Read parses a PDF file held in memory.  Objects are loaded lazily, so buf
// must not be modified while the returned document is in use.
//
// Encrypted files are rejected with [ErrEncrypted].  If the
// cross-reference information cannot be used, the object table is rebuilt
// by scanning the file, and the returned document has Recovered set.  If
// this fails as well, an error wrapping [ErrUnrecoverableStructure] is
// returned.
func Read(buf []byte, opt *ReaderOptions) (*Document, error) {
	if opt == nil {
		opt = &ReaderOptions{}
	}

	version, err := readHeader(buf)
	if err != nil {
		return nil, err
	}

	doc, err := openWithXRef(buf, version)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, ErrEncrypted) || opt.Strict {
		return nil, err
	}

	xref, rErr := reconstructXRef(buf)
	if rErr != nil {
		return nil, rErr
	}
	doc, rErr = newDocument(buf, version, xref)
	if rErr != nil {
		if errors.Is(rErr, ErrEncrypted) {
			return nil, rErr
		}
		return nil, fmt.Errorf("%w: %w", ErrUnrecoverableStructure, rErr)
	}
	doc.Recovered = true
	return doc, nil
}

func readHeader(buf []byte) (Version, error) {
	m := startRegexp.FindSubmatch(buf[:min(len(buf), 16)])
	if m == nil {
		return 0, &MalformedFileError{Err: ErrNoPDF}
	}
	version, err := ParseVersion(string(m[1]))
	if err != nil {
		// unknown minor versions are read like the latest 1.x version
		version = V1_7
	}
	return version, nil
}

func openWithXRef(buf []byte, version Version) (*Document, error) {
	xref, err := readXRef(buf)
	if err != nil {
		return nil, err
	}
	if xref.trailer["Encrypt"] != nil {
		return nil, ErrEncrypted
	}
	err = xref.check(buf)
	if err != nil {
		return nil, err
	}
	return newDocument(buf, version, xref)
}

func newDocument(buf []byte, version Version, xref *xRefTable) (*Document, error) {
	trailer := xref.trailer
	if trailer["Encrypt"] != nil {
		return nil, ErrEncrypted
	}
	root, ok := trailer["Root"].(Reference)
	if !ok {
		return nil, &MalformedFileError{Err: errors.New("missing /Root in trailer")}
	}

	d := newEmptyDocument(version)
	d.buf = buf
	d.catalog = root
	d.info = trailer["Info"]

	structural := make(map[uint32]bool)
	for _, ref := range xref.streams {
		structural[ref.Number()] = true
	}
	for _, entry := range xref.entries {
		if !entry.Free && entry.InStream != 0 {
			structural[entry.InStream] = true
		}
	}
	for num, entry := range xref.entries {
		d.lastNumber = max(d.lastNumber, num)
		if entry.Free {
			continue
		}
		if structural[num] {
			if entry.InStream == 0 {
				d.containers[num] = entry
			}
			continue
		}
		gen := entry.Generation
		if entry.InStream != 0 {
			gen = 0
		}
		d.pending[NewReference(num, gen)] = entry
	}

	if id, ok := trailer["ID"].(Array); ok && len(id) == 2 {
		s0, ok0 := id[0].(String)
		s1, ok1 := id[1].(String)
		if ok0 && ok1 {
			d.ID = [][]byte{s0, s1}
		}
	}

	catalog, err := GetDict(d, root)
	if err != nil {
		return nil, Wrap(err, "document catalog")
	}
	if catalog == nil {
		return nil, &MalformedFileError{Err: errors.New("document catalog not found")}
	}
	tp := DictType(catalog)
	if tp != "" && tp != "Catalog" || catalog["Pages"] == nil {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("/Root %s is not a document catalog", root),
		}
	}
	if v, ok := catalog["Version"].(Name); ok {
		if cv, err := ParseVersion(string(v)); err == nil && cv > d.Version {
			d.Version = cv
		}
	}

	return d, nil
}

// Get returns the object with the given reference.  Objects are read from
// the file on first access.  References to objects which do not exist
// resolve to nil.
func (d *Document) Get(ref Reference) (Object, error) {
	if obj, ok := d.objects[ref]; ok {
		return obj, nil
	}
	entry, ok := d.pending[ref]
	if !ok {
		return nil, nil
	}

	if d.loading[ref] {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object %s depends on itself", ref),
		}
	}
	d.loading[ref] = true
	defer delete(d.loading, ref)

	obj, err := d.load(ref, entry)
	if err != nil {
		return nil, Wrap(err, "object "+ref.String())
	}
	delete(d.pending, ref)

	// cross-reference streams and object streams are file structure,
	// and not part of the document
	if stm, isStream := obj.(*Stream); isStream {
		if tp := DictType(stm); tp == "XRef" || tp == "ObjStm" {
			obj = nil
		}
	}
	if obj != nil {
		d.objects[ref] = obj
	}
	return obj, nil
}

func (d *Document) load(ref Reference, entry *xRefEntry) (Object, error) {
	if entry.InStream != 0 {
		stm, err := d.objectStream(entry.InStream)
		if err != nil {
			return nil, err
		}
		return stm.get(ref.Number(), int(entry.Pos))
	}

	got, obj, err := d.readIndirect(entry.Pos)
	if err != nil {
		return nil, err
	}
	if got != ref {
		return nil, &MalformedFileError{
			Pos: entry.Pos,
			Err: fmt.Errorf("expected object %s, found %s", ref, got),
		}
	}
	return obj, nil
}

func (d *Document) readIndirect(pos int64) (Reference, Object, error) {
	p := newParser(d.buf, pos)
	p.getInt = d.getLength
	return p.ReadIndirectObject()
}

func (d *Document) getLength(ref Reference) (Integer, error) {
	return GetInt(d, ref)
}

func (d *Document) objectStream(num uint32) (*objStm, error) {
	if stm, ok := d.objStms[num]; ok {
		return stm, nil
	}

	entry := d.containers[num]
	if entry == nil {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object stream %d not found", num),
		}
	}
	_, obj, err := d.readIndirect(entry.Pos)
	if err != nil {
		return nil, err
	}
	stm, ok := obj.(*Stream)
	if !ok || DictType(stm) != "ObjStm" {
		return nil, &MalformedFileError{
			Pos: entry.Pos,
			Err: fmt.Errorf("object %d is not an object stream", num),
		}
	}
	res, err := parseObjStm(stm, d)
	if err != nil {
		return nil, Wrap(err, fmt.Sprintf("object stream %d", num))
	}
	d.objStms[num] = res
	return res, nil
}

// LoadAll reads all objects which have not been accessed yet.
func (d *Document) LoadAll() error {
	refs := maps.Keys(d.pending)
	slices.SortFunc(refs, compareRefs)
	for _, ref := range refs {
		_, err := d.Get(ref)
		if err != nil {
			return err
		}
	}
	d.objStms = make(map[uint32]*objStm)
	return nil
}

// objStm is the decoded index of an object stream.
type objStm struct {
	data    []byte
	first   int
	numbers []uint32
	offsets []int
}

func parseObjStm(stm *Stream, r Getter) (*objStm, error) {
	n, err := GetInt(r, stm.Dict["N"])
	if err != nil {
		return nil, err
	}
	first, err := GetInt(r, stm.Dict["First"])
	if err != nil {
		return nil, err
	}
	data, err := stm.Decode(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || first < 0 || int64(first) > int64(len(data)) || int64(n) > int64(first) {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("invalid object stream header (N=%d, First=%d)", n, first),
		}
	}

	res := &objStm{
		data:    data,
		first:   int(first),
		numbers: make([]uint32, n),
		offsets: make([]int, n),
	}
	lex := NewLexer(data[:first])
	for i := range int(n) {
		numTok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		offTok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if numTok.Kind != TokenInteger || offTok.Kind != TokenInteger ||
			numTok.Int <= 0 || numTok.Int > 1<<32-1 ||
			offTok.Int < 0 || offTok.Int >= int64(len(data))-int64(first) {
			return nil, &MalformedFileError{
				Pos: numTok.Pos,
				Err: errors.New("malformed object stream index"),
			}
		}
		res.numbers[i] = uint32(numTok.Int)
		res.offsets[i] = int(offTok.Int)
	}
	return res, nil
}

func (s *objStm) object(idx int) (Object, error) {
	p := newParser(s.data, int64(s.first+s.offsets[idx]))
	obj, err := p.ReadObject()
	if err != nil {
		return nil, err
	}
	if _, isStream := obj.(*Stream); isStream {
		return nil, &MalformedFileError{Err: errors.New("stream inside object stream")}
	}
	return obj, nil
}

// get returns the object with number num, which is expected at index
// idx.  If the index does not match, the object is located by number.
func (s *objStm) get(num uint32, idx int) (Object, error) {
	if idx < 0 || idx >= len(s.numbers) || s.numbers[idx] != num {
		idx = slices.Index(s.numbers, num)
	}
	if idx < 0 {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object %d not found in object stream", num),
		}
	}
	return s.object(idx)
}
