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

	"golang.org/x/exp/maps"
	"seehuhn.de/go/geom/rect"
)

// inheritable lists the page attributes which can be inherited from
// ancestor nodes of the page tree.
var inheritable = []Name{"Resources", "MediaBox", "CropBox", "Rotate"}

// Letter is the page size used for pages without a /MediaBox.
var Letter = rect.Rect{LLx: 0, LLy: 0, URx: 612, URy: 792}

type pageTreeVisitor func(ref Reference, node Dict, parent Reference, isPage bool) error

// walkPageTree visits all nodes of the page tree in depth-first order.
// Kids are visited in the order in which they are listed.  If a node is
// reached for a second time, an error wrapping [ErrCyclicPageTree] is
// returned.
func (d *Document) walkPageTree(visit pageTreeVisitor) error {
	catalog, err := d.CatalogDict()
	if err != nil {
		return err
	}
	root, ok := catalog["Pages"].(Reference)
	if !ok {
		return &MalformedFileError{
			Err: errors.New("missing page tree root"),
			Loc: []string{"document catalog"},
		}
	}

	type item struct {
		ref, parent Reference
	}
	todo := []item{{ref: root}}
	seen := make(map[Reference]bool)
	for len(todo) > 0 {
		k := len(todo) - 1
		it := todo[k]
		todo = todo[:k]

		if seen[it.ref] {
			return fmt.Errorf("%w: node %s reached twice", ErrCyclicPageTree, it.ref)
		}
		seen[it.ref] = true

		node, err := GetDict(d, it.ref)
		if err != nil {
			return Wrap(err, "page tree node "+it.ref.String())
		}
		if node == nil {
			return &MalformedFileError{
				Err: fmt.Errorf("page tree node %s not found", it.ref),
			}
		}

		var isPage bool
		switch node["Type"] {
		case Name("Page"):
			isPage = true
		case Name("Pages"):
			isPage = false
		default:
			_, hasKids := node["Kids"]
			isPage = !hasKids
		}

		if visit != nil {
			err = visit(it.ref, node, it.parent, isPage)
			if err != nil {
				return err
			}
		}
		if isPage {
			continue
		}

		kids, err := GetArray(d, node["Kids"])
		if err != nil {
			return Wrap(err, "page tree node "+it.ref.String())
		}
		for i := len(kids) - 1; i >= 0; i-- {
			kidRef, ok := kids[i].(Reference)
			if !ok {
				return &MalformedFileError{
					Err: fmt.Errorf("page tree node %s: kid %d is not an indirect object", it.ref, i),
				}
			}
			todo = append(todo, item{ref: kidRef, parent: it.ref})
		}
	}
	return nil
}

// Pages returns the references of all pages of the document, in document
// order.
func (d *Document) Pages() ([]Reference, error) {
	var res []Reference
	err := d.walkPageTree(func(ref Reference, _ Dict, _ Reference, isPage bool) error {
		if isPage {
			res = append(res, ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NumPages returns the number of pages in the document.
func (d *Document) NumPages() (int, error) {
	pages, err := d.Pages()
	return len(pages), err
}

// pageTreeNodes returns the set of all nodes of the page tree, including
// the pages.
func (d *Document) pageTreeNodes() (map[Reference]bool, error) {
	res := make(map[Reference]bool)
	err := d.walkPageTree(func(ref Reference, _ Dict, _ Reference, _ bool) error {
		res[ref] = true
		return nil
	})
	return res, err
}

// PageDict returns a copy of the page dictionary for the given page, with
// inherited attributes (/Resources, /MediaBox, /CropBox and /Rotate) copied
// from the ancestors in the page tree.
func (d *Document) PageDict(ref Reference) (Dict, error) {
	page, err := GetDict(d, ref)
	if err != nil {
		return nil, Wrap(err, "page "+ref.String())
	}
	if page == nil {
		return nil, &MalformedFileError{Err: fmt.Errorf("page %s not found", ref)}
	}
	res := maps.Clone(page)

	missing := func() bool {
		for _, key := range inheritable {
			if res[key] == nil {
				return true
			}
		}
		return false
	}

	seen := map[Reference]bool{ref: true}
	parent := page["Parent"]
	for parent != nil && missing() {
		parentRef, ok := parent.(Reference)
		if !ok {
			break
		}
		if seen[parentRef] {
			return nil, fmt.Errorf("%w: /Parent chain of page %s", ErrCyclicPageTree, ref)
		}
		seen[parentRef] = true

		node, err := GetDict(d, parentRef)
		if err != nil {
			return nil, Wrap(err, "page tree node "+parentRef.String())
		}
		for _, key := range inheritable {
			if res[key] == nil && node[key] != nil {
				res[key] = node[key]
			}
		}
		parent = node["Parent"]
	}
	return res, nil
}

// MediaBox returns the media box of a page.  Pages without a media box,
// or with an empty one, are taken to be US Letter sized.
func (d *Document) MediaBox(ref Reference) (*rect.Rect, error) {
	page, err := d.PageDict(ref)
	if err != nil {
		return nil, err
	}
	box, err := GetRectangle(d, page["MediaBox"])
	if err != nil {
		return nil, Wrap(err, "page "+ref.String()+" MediaBox")
	}
	if box == nil || box.LLx == box.URx || box.LLy == box.URy {
		box = &rect.Rect{LLx: Letter.LLx, LLy: Letter.LLy, URx: Letter.URx, URy: Letter.URy}
	}
	return box, nil
}

// PageContents returns the decoded content stream of a page.  If the page
// has more than one content stream, the streams are concatenated,
// separated by newlines.
func (d *Document) PageContents(ref Reference) ([]byte, error) {
	page, err := GetDict(d, ref)
	if err != nil {
		return nil, err
	}

	contents, err := Resolve(d, page["Contents"])
	if err != nil {
		return nil, err
	}
	var parts Array
	switch c := contents.(type) {
	case nil:
		return nil, nil
	case *Stream:
		parts = Array{c}
	case Array:
		parts = c
	default:
		return nil, &MalformedFileError{
			Err: fmt.Errorf("page %s: invalid /Contents", ref),
		}
	}

	var res [][]byte
	for _, part := range parts {
		stm, err := GetStream(d, part)
		if err != nil {
			return nil, err
		}
		if stm == nil {
			continue
		}
		data, err := stm.Decode(d)
		if err != nil {
			return nil, err
		}
		res = append(res, data)
	}
	return bytes.Join(res, []byte("\n")), nil
}

// RepairPageTree fixes /Parent links and /Count values in the page tree.
// The number of changed entries is returned.
func (d *Document) RepairPageTree() (int, error) {
	repairs := 0
	kidsOf := make(map[Reference][]Reference)
	var nodes []Reference
	isPage := make(map[Reference]bool)
	err := d.walkPageTree(func(ref Reference, node Dict, parent Reference, leaf bool) error {
		if parent != 0 {
			if node["Parent"] != parent {
				node["Parent"] = parent
				repairs++
			}
			kidsOf[parent] = append(kidsOf[parent], ref)
		}
		isPage[ref] = leaf
		nodes = append(nodes, ref)
		return nil
	})
	if err != nil {
		return 0, err
	}

	// nodes are in pre-order, so children come after their parents
	count := make(map[Reference]int)
	for i := len(nodes) - 1; i >= 0; i-- {
		ref := nodes[i]
		if isPage[ref] {
			count[ref] = 1
			continue
		}
		n := 0
		for _, kid := range kidsOf[ref] {
			n += count[kid]
		}
		count[ref] = n

		node, err := GetDict(d, ref)
		if err != nil {
			return repairs, err
		}
		if node["Count"] != Integer(n) {
			node["Count"] = Integer(n)
			repairs++
		}
	}
	return repairs, nil
}
