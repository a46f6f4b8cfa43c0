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
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

// A Copier copies objects from one document to another.  The Copier keeps
// track of the objects that have already been copied and ensures that each
// object is copied only once, so that resources shared between pages stay
// shared in the target document.
//
// Indirect objects are allocated in the target document as needed, and
// references are translated accordingly.
type Copier struct {
	src   *Document
	dst   *Document
	trans map[Reference]Reference

	// pageTree holds the page tree nodes of the source document, once
	// the first page has been copied.  References to these nodes which
	// are not explicitly copied are replaced by null.
	pageTree map[Reference]bool
	copied   map[Reference]Reference
}

// NewCopier creates a new Copier, which copies objects from src to dst.
func NewCopier(dst, src *Document) *Copier {
	return &Copier{
		src:    src,
		dst:    dst,
		trans:  make(map[Reference]Reference),
		copied: make(map[Reference]Reference),
	}
}

// Reserve allocates object numbers in the target document for the given
// source pages.  This is used before copying a list of pages, so that
// references between the copied pages (for example in link annotations)
// are translated to the copies.
func (c *Copier) Reserve(pages ...Reference) {
	for _, ref := range pages {
		if _, ok := c.trans[ref]; !ok {
			c.trans[ref] = c.dst.Alloc()
		}
	}
}

// CopyPage copies a page, together with all objects it references, and
// returns the reference of the new page in the target document.
//
// Inherited page attributes are stored in the new page dictionary, and the
// /Parent entry is omitted; the caller is responsible for inserting the
// page into a page tree.  Copying the same page twice gives two distinct
// page objects which share their resources.
func (c *Copier) CopyPage(ref Reference) (Reference, error) {
	if c.pageTree == nil {
		nodes, err := c.src.pageTreeNodes()
		if err != nil {
			return 0, err
		}
		c.pageTree = nodes
	}

	if first, ok := c.copied[ref]; ok {
		dict, err := GetDict(c.dst, first)
		if err != nil {
			return 0, err
		}
		dup := make(Dict, len(dict))
		for key, val := range dict {
			dup[key] = val
		}
		return c.dst.Insert(dup), nil
	}

	page, err := c.src.PageDict(ref)
	if err != nil {
		return 0, err
	}
	if tp, _ := page["Type"].(Name); tp != "" && tp != "Page" {
		return 0, &MalformedFileError{Err: fmt.Errorf("object %s is not a page", ref)}
	}

	newRef, ok := c.trans[ref]
	if !ok {
		newRef = c.dst.Alloc()
		c.trans[ref] = newRef
	}
	c.copied[ref] = newRef

	keys := maps.Keys(page)
	slices.Sort(keys)
	res := Dict{}
	for _, key := range keys {
		if key == "Parent" {
			continue
		}
		repl, err := c.Copy(page[key])
		if err != nil {
			return 0, Wrap(err, "page "+ref.String())
		}
		if repl != nil {
			res[key] = repl
		}
	}
	res["Type"] = Name("Page")
	c.dst.Put(newRef, res)
	return newRef, nil
}

// Copy copies an object from the source document to the target document,
// recursively.
func (c *Copier) Copy(obj Object) (Object, error) {
	switch x := obj.(type) {
	case Dict:
		return c.CopyDict(x)
	case Array:
		return c.CopyArray(x)
	case *Stream:
		dict, err := c.CopyDict(x.Dict)
		if err != nil {
			return nil, err
		}
		return &Stream{Dict: dict, Data: x.Data}, nil
	case Reference:
		if _, done := c.trans[x]; !done && c.pageTree[x] {
			// page tree nodes outside the copied set are dropped
			return nil, nil
		}
		return c.CopyReference(x)
	default:
		return obj, nil
	}
}

// CopyDict copies a dictionary from the source document to the target
// document.  Entries are visited in order of their keys, so that the
// numbering of new objects does not depend on map iteration order.
func (c *Copier) CopyDict(obj Dict) (Dict, error) {
	keys := maps.Keys(obj)
	slices.Sort(keys)
	res := Dict{}
	for _, key := range keys {
		repl, err := c.Copy(obj[key])
		if err != nil {
			return nil, err
		}
		if repl != nil {
			res[key] = repl
		}
	}
	return res, nil
}

// CopyArray copies an array from the source document to the target
// document.
func (c *Copier) CopyArray(obj Array) (Array, error) {
	res := make(Array, len(obj))
	for i, val := range obj {
		repl, err := c.Copy(val)
		if err != nil {
			return nil, err
		}
		res[i] = repl
	}
	return res, nil
}

// CopyReference copies an indirect object from the source document to the
// target document, and returns the reference of the copy.
//
// This method shortens chains of indirect references, the returned
// reference always points to a direct object.
func (c *Copier) CopyReference(ref Reference) (Reference, error) {
	newRef, ok := c.trans[ref]
	if ok {
		return newRef, nil
	}
	newRef = c.dst.Alloc()
	c.trans[ref] = newRef

	val, err := Resolve(c.src, ref)
	if err != nil {
		return 0, err
	}
	repl, err := c.Copy(val)
	if err != nil {
		return 0, err
	}
	c.dst.Put(newRef, repl)
	return newRef, nil
}

// Redirect makes references to origRef in the source document refer to
// newRef in the target document.
func (c *Copier) Redirect(origRef, newRef Reference) {
	c.trans[origRef] = newRef
}
