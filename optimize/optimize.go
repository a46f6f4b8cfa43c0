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

// Package optimize reduces the size of PDF documents without changing
// their rendered output.
//
// Only structural changes are made: uncompressed streams are compressed,
// duplicate objects are merged, and (at the highest level) objects which
// cannot be reached from the document catalog are removed.  Images are
// never re-encoded.
package optimize

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/maps"

	pdf "seehuhn.de/go/pdfassemble"
)

// Level selects how much effort is spent on reducing the file size.
type Level int

// These are the supported compression levels.
const (
	// Low compresses uncompressed streams and merges identical streams.
	Low Level = iota + 1

	// Medium additionally packs non-stream objects into object streams,
	// when the document is written.
	Medium

	// High additionally merges identical non-stream objects, and removes
	// objects which are not used by the document.
	High
)

var errLevel = errors.New("unknown compression level")

// ParseLevel converts a level name ("low", "medium" or "high") into a
// Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	}
	return 0, fmt.Errorf("%w %q", errLevel, s)
}

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// WriterOptions returns the options used for writing documents which have
// been optimized at level l.
func (l Level) WriterOptions() *pdf.WriterOptions {
	if l >= Medium {
		return &pdf.WriterOptions{
			ObjectStreams: true,
			XRefStream:    true,
		}
	}
	return &pdf.WriterOptions{}
}

// Stats summarizes the changes made by [Recompress].
type Stats struct {
	// CompressedStreams is the number of streams which were compressed.
	CompressedStreams int

	// DuplicateStreams is the number of streams which were removed because
	// an identical stream was present.
	DuplicateStreams int

	// DuplicateObjects is the number of non-stream objects which were
	// removed because an identical object was present.
	DuplicateObjects int

	// Orphans is the number of objects which were removed because they
	// could not be reached from the document catalog.
	Orphans int
}

// Options allow to observe and interrupt [Recompress].
type Options struct {
	// Step, if not nil, is called after each phase of the optimization.
	// If Step returns an error, the optimization is aborted.
	Step func(done, total int) error
}

// Recompress returns an optimized copy of doc.  The original document is
// not modified.
func Recompress(doc *pdf.Document, level Level, opt *Options) (*pdf.Document, *Stats, error) {
	if level < Low || level > High {
		return nil, nil, fmt.Errorf("%w %d", errLevel, int(level))
	}
	if opt == nil {
		opt = &Options{}
	}
	total := 2
	if level >= High {
		total = 3
	}
	done := 0
	step := func() error {
		done++
		if opt.Step != nil {
			return opt.Step(done, total)
		}
		return nil
	}

	res, err := doc.Clone()
	if err != nil {
		return nil, nil, err
	}
	stats := &Stats{}

	stats.CompressedStreams, err = compressStreams(res)
	if err != nil {
		return nil, nil, err
	}
	if err := step(); err != nil {
		return nil, nil, err
	}

	m := &merger{doc: res, objects: level >= High}
	err = m.run()
	if err != nil {
		return nil, nil, err
	}
	stats.DuplicateStreams = m.streams
	stats.DuplicateObjects = m.others
	if err := step(); err != nil {
		return nil, nil, err
	}

	if level >= High {
		before := res.NumObjects()
		res, err = res.Compact()
		if err != nil {
			return nil, nil, err
		}
		stats.Orphans = before - res.NumObjects()
		if err := step(); err != nil {
			return nil, nil, err
		}
	}

	return res, stats, nil
}

// compressStreams applies the Flate filter to all streams which have no
// filter yet.  The compressed data is only used if it is shorter than the
// original.  Metadata streams are left alone, so that they can be read by
// tools which are not PDF aware.
func compressStreams(doc *pdf.Document) (int, error) {
	count := 0
	for _, ref := range doc.Refs() {
		obj, err := doc.Get(ref)
		if err != nil {
			return count, err
		}
		stm, ok := obj.(*pdf.Stream)
		if !ok || stm.IsFiltered() || len(stm.Data) == 0 {
			continue
		}
		if pdf.DictType(stm.Dict) == "Metadata" {
			continue
		}

		data, err := pdf.FlateEncode(stm.Data)
		if err != nil {
			return count, err
		}
		if len(data) >= len(stm.Data) {
			continue
		}
		stm.Dict["Filter"] = pdf.Name("FlateDecode")
		delete(stm.Dict, "DecodeParms")
		stm.Data = data
		count++
	}
	return count, nil
}

// merger replaces duplicate indirect objects by references to a single
// copy.
type merger struct {
	doc *pdf.Document

	// objects enables merging of non-stream objects.  If it is false, only
	// streams are merged.
	objects bool

	streams int
	others  int
}

// run merges duplicates until no more duplicates are found.  Merging
// objects can make other objects identical, for example two page
// dictionaries which referred to two copies of the same font.
func (m *merger) run() error {
	for {
		repl, err := m.findDuplicates()
		if err != nil {
			return err
		}
		if len(repl) == 0 {
			return nil
		}
		m.apply(repl)
	}
}

type candidate struct {
	ref pdf.Reference
	key []byte
}

func (m *merger) findDuplicates() (map[pdf.Reference]pdf.Reference, error) {
	catalog := m.doc.Catalog()
	info, _ := m.doc.Info().(pdf.Reference)

	groups := make(map[[blake2b.Size256]byte][]candidate)
	for _, ref := range m.doc.Refs() {
		if ref == catalog || ref == info {
			continue
		}
		obj, err := m.doc.Get(ref)
		if err != nil {
			return nil, err
		}

		var key []byte
		switch obj := obj.(type) {
		case *pdf.Stream:
			key = streamKey(obj)
		case pdf.Dict:
			if !m.objects || !mergeableDict(obj) {
				continue
			}
			key = []byte(pdf.Format(obj))
		case pdf.Array:
			if !m.objects {
				continue
			}
			key = []byte(pdf.Format(obj))
		default:
			continue
		}

		h := blake2b.Sum256(key)
		groups[h] = append(groups[h], candidate{ref: ref, key: key})
	}

	repl := make(map[pdf.Reference]pdf.Reference)
	for _, group := range groups {
		// Refs returns the objects in order, so the first member of each
		// group has the lowest object number.
		for i := 1; i < len(group); i++ {
			for j := 0; j < i; j++ {
				if _, isDup := repl[group[j].ref]; isDup {
					continue
				}
				if bytes.Equal(group[i].key, group[j].key) {
					repl[group[i].ref] = group[j].ref
					break
				}
			}
		}
	}
	return repl, nil
}

// apply rewrites all references according to repl and removes the
// replaced objects.
func (m *merger) apply(repl map[pdf.Reference]pdf.Reference) {
	for dup := range repl {
		obj, _ := m.doc.Get(dup)
		if _, isStream := obj.(*pdf.Stream); isStream {
			m.streams++
		} else {
			m.others++
		}
		m.doc.Delete(dup)
	}
	for _, ref := range m.doc.Refs() {
		obj, _ := m.doc.Get(ref)
		m.doc.Put(ref, rewrite(obj, repl))
	}
	m.doc.SetInfo(rewrite(m.doc.Info(), repl))
}

// streamKey returns a byte string which identifies a stream.  The /Length
// entry is ignored.
func streamKey(stm *pdf.Stream) []byte {
	dict := maps.Clone(stm.Dict)
	delete(dict, "Length")
	buf := &bytes.Buffer{}
	buf.WriteString(pdf.Format(dict))
	buf.WriteString("\nstream\n")
	buf.Write(stm.Data)
	return buf.Bytes()
}

// unmergeable lists the dictionary types which have an identity beyond
// their content, for example because they are part of a tree structure.
var unmergeable = map[pdf.Name]bool{
	"Catalog":        true,
	"Pages":          true,
	"Page":           true,
	"Annot":          true,
	"Outlines":       true,
	"StructTreeRoot": true,
	"StructElem":     true,
	"OBJR":           true,
	"MCR":            true,
	"Sig":            true,
	"Template":       true,
	"Thread":         true,
	"Bead":           true,
}

func mergeableDict(dict pdf.Dict) bool {
	if unmergeable[pdf.DictType(dict)] {
		return false
	}
	// tree nodes and annotations without /Type
	if dict["Parent"] != nil || dict["P"] != nil {
		return false
	}
	if dict["Subtype"] != nil && dict["Rect"] != nil {
		return false
	}
	return true
}

func rewrite(obj pdf.Object, repl map[pdf.Reference]pdf.Reference) pdf.Object {
	switch x := obj.(type) {
	case pdf.Reference:
		if r, ok := repl[x]; ok {
			return r
		}
		return x
	case pdf.Dict:
		for key, val := range x {
			x[key] = rewrite(val, repl)
		}
		return x
	case pdf.Array:
		for i, val := range x {
			x[i] = rewrite(val, repl)
		}
		return x
	case *pdf.Stream:
		rewrite(x.Dict, repl)
		return x
	default:
		return obj
	}
}
