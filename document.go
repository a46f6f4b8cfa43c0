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
	"slices"

	"golang.org/x/exp/maps"
)

// Document is the object graph of a PDF file.
//
// Documents read from a file load their objects lazily, on first access
// via [Document.Get].  A Document is not safe for concurrent use.
type Document struct {
	// Version is the PDF version of the document.
	Version Version

	// ID is the file identifier from the trailer, or nil.  If set, it
	// consists of two byte slices.
	ID [][]byte

	// Recovered is set if the cross-reference information of the file was
	// unusable, and the object table was reconstructed by scanning the file.
	Recovered bool

	buf        []byte
	objects    map[Reference]Object
	pending    map[Reference]*xRefEntry
	containers map[uint32]*xRefEntry
	objStms    map[uint32]*objStm
	loading    map[Reference]bool

	catalog    Reference
	info       Object
	lastNumber uint32
}

// NewDocument returns a document which contains a catalog and an empty
// page tree.
func NewDocument(v Version) *Document {
	d := newEmptyDocument(v)
	pages := d.Insert(Dict{
		"Type":  Name("Pages"),
		"Kids":  Array{},
		"Count": Integer(0),
	})
	d.catalog = d.Insert(Dict{
		"Type":  Name("Catalog"),
		"Pages": pages,
	})
	return d
}

func newEmptyDocument(v Version) *Document {
	return &Document{
		Version:    v,
		objects:    make(map[Reference]Object),
		pending:    make(map[Reference]*xRefEntry),
		containers: make(map[uint32]*xRefEntry),
		objStms:    make(map[uint32]*objStm),
		loading:    make(map[Reference]bool),
	}
}

// Catalog returns the reference of the document catalog.
func (d *Document) Catalog() Reference {
	return d.catalog
}

// SetCatalog sets the reference of the document catalog.
func (d *Document) SetCatalog(ref Reference) {
	d.catalog = ref
}

// CatalogDict returns the document catalog.
func (d *Document) CatalogDict() (Dict, error) {
	catalog, err := GetDict(d, d.catalog)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, &MalformedFileError{Err: errors.New("document catalog not found")}
	}
	return catalog, nil
}

// Info returns the document information dictionary, as given in the
// trailer.  This is either a [Reference], a [Dict], or nil.
func (d *Document) Info() Object {
	return d.info
}

// SetInfo sets the document information dictionary.
func (d *Document) SetInfo(info Object) {
	d.info = info
}

// Alloc allocates a new object number.
func (d *Document) Alloc() Reference {
	for {
		d.lastNumber++
		ref := NewReference(d.lastNumber, 0)
		if !d.has(ref) {
			return ref
		}
	}
}

func (d *Document) has(ref Reference) bool {
	if _, ok := d.objects[ref]; ok {
		return true
	}
	_, ok := d.pending[ref]
	return ok
}

// Insert adds obj to the document, as a new indirect object.
func (d *Document) Insert(obj Object) Reference {
	ref := d.Alloc()
	d.Put(ref, obj)
	return ref
}

// Put stores obj as the indirect object ref, replacing any previous
// value.  Storing nil removes the object.
func (d *Document) Put(ref Reference, obj Object) {
	delete(d.pending, ref)
	if obj == nil {
		delete(d.objects, ref)
		return
	}
	d.objects[ref] = obj
	d.lastNumber = max(d.lastNumber, ref.Number())
}

// Delete removes an indirect object from the document.
func (d *Document) Delete(ref Reference) {
	delete(d.pending, ref)
	delete(d.objects, ref)
}

// Refs returns the references of all objects in the document,
// ordered by object number.
func (d *Document) Refs() []Reference {
	refs := make([]Reference, 0, len(d.objects)+len(d.pending))
	refs = append(refs, maps.Keys(d.objects)...)
	refs = append(refs, maps.Keys(d.pending)...)
	slices.SortFunc(refs, compareRefs)
	return refs
}

// NumObjects returns the number of indirect objects in the document.
func (d *Document) NumObjects() int {
	return len(d.objects) + len(d.pending)
}

// Clone returns a deep copy of the document.  The copy shares stream data
// with d, but no dictionaries or arrays.
func (d *Document) Clone() (*Document, error) {
	err := d.LoadAll()
	if err != nil {
		return nil, err
	}
	res := newEmptyDocument(d.Version)
	res.ID = d.ID
	res.Recovered = d.Recovered
	res.catalog = d.catalog
	res.info = deepCopy(d.info)
	res.lastNumber = d.lastNumber
	for ref, obj := range d.objects {
		res.objects[ref] = deepCopy(obj)
	}
	return res, nil
}

// Compact returns a copy of the document which contains only the objects
// reachable from the catalog and the document information dictionary.
// Objects are renumbered consecutively, starting with the catalog.
func (d *Document) Compact() (*Document, error) {
	res := newEmptyDocument(d.Version)
	res.ID = d.ID
	res.Recovered = d.Recovered

	c := NewCopier(res, d)
	catalog, err := c.CopyReference(d.catalog)
	if err != nil {
		return nil, err
	}
	res.catalog = catalog
	if d.info != nil {
		info, err := c.Copy(d.info)
		if err != nil {
			return nil, err
		}
		res.info = info
	}
	return res, nil
}

func deepCopy(obj Object) Object {
	switch x := obj.(type) {
	case Dict:
		res := make(Dict, len(x))
		for key, val := range x {
			res[key] = deepCopy(val)
		}
		return res
	case Array:
		res := make(Array, len(x))
		for i, val := range x {
			res[i] = deepCopy(val)
		}
		return res
	case *Stream:
		return &Stream{
			Dict: deepCopy(x.Dict).(Dict),
			Data: x.Data,
		}
	default:
		return obj
	}
}
