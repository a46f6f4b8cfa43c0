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

// Package pagetree builds balanced PDF page trees.
package pagetree

import (
	"errors"
	"fmt"

	pdf "seehuhn.de/go/pdfassemble"
)

const maxDegree = 16

// Writer builds a page tree inside a document.  Pages are added in order
// using [Writer.AppendPage], and the tree becomes the page tree of the
// document when [Writer.Close] is called.
//
// Internal nodes have at most 16 children, so that the depth of the tree
// grows logarithmically with the number of pages.
type Writer struct {
	doc    *pdf.Document
	closed bool

	// pending holds completed subtrees, in page order.  The depth of the
	// subtrees is weakly decreasing, and for every depth there are at
	// most maxDegree-1 subtrees of this depth.
	pending []*subtree
}

type subtree struct {
	ref       pdf.Reference
	dict      pdf.Dict // a /Page or /Pages object
	pageCount pdf.Integer
	depth     int
}

// NewWriter creates a new page tree for doc.
func NewWriter(doc *pdf.Document) *Writer {
	return &Writer{doc: doc}
}

// AppendPage adds a page to the tree.  The page dictionary must already be
// stored in the document; its /Parent entry is set by the Writer.
func (w *Writer) AppendPage(ref pdf.Reference) error {
	if w.closed {
		return errClosed
	}
	dict, err := pdf.GetDict(w.doc, ref)
	if err != nil {
		return err
	}
	if dict == nil {
		return fmt.Errorf("page %s not found", ref)
	}

	w.pending = append(w.pending, &subtree{ref: ref, dict: dict, pageCount: 1})
	for w.fullGroup() {
		n := len(w.pending)
		w.pending = w.join(w.pending, n-maxDegree, n)
	}
	return nil
}

// fullGroup reports whether the last maxDegree pending subtrees all have
// the same depth.  Since depths are weakly decreasing, comparing the ends
// of the group is enough.
func (w *Writer) fullGroup() bool {
	n := len(w.pending)
	return n >= maxDegree && w.pending[n-1].depth == w.pending[n-maxDegree].depth
}

// Close completes the page tree and installs it as the page tree of the
// document.  The intermediate nodes of the previous page tree are removed
// from the document, but its pages are kept.  The reference of the new root
// node is returned.
func (w *Writer) Close() (pdf.Reference, error) {
	if w.closed {
		return 0, errClosed
	}
	w.closed = true

	catalog, err := w.doc.CatalogDict()
	if err != nil {
		return 0, err
	}
	oldNodes := w.innerNodes(catalog["Pages"])

	w.collapse()
	var root *subtree
	if len(w.pending) == 0 {
		root = &subtree{
			ref: w.doc.Alloc(),
			dict: pdf.Dict{
				"Type":  pdf.Name("Pages"),
				"Kids":  pdf.Array{},
				"Count": pdf.Integer(0),
			},
		}
	} else {
		// the root node cannot be a leaf
		root = w.ensureInner(w.pending[0])
	}
	w.pending = nil
	delete(root.dict, "Parent")
	w.doc.Put(root.ref, root.dict)

	for _, ref := range oldNodes {
		if ref != root.ref {
			w.doc.Delete(ref)
		}
	}
	catalog["Pages"] = root.ref
	return root.ref, nil
}

// Rebuild replaces the page tree of doc with a balanced tree containing
// the given pages, in the given order.
func Rebuild(doc *pdf.Document, pages []pdf.Reference) (pdf.Reference, error) {
	w := NewWriter(doc)
	for _, ref := range pages {
		err := w.AppendPage(ref)
		if err != nil {
			return 0, err
		}
	}
	return w.Close()
}

// innerNodes returns the /Pages nodes of the tree starting at root.
// Errors are ignored, since the tree is about to be replaced.
func (w *Writer) innerNodes(root pdf.Object) []pdf.Reference {
	var res []pdf.Reference
	ref, ok := root.(pdf.Reference)
	if !ok {
		return nil
	}
	todo := []pdf.Reference{ref}
	seen := map[pdf.Reference]bool{ref: true}
	for len(todo) > 0 {
		k := len(todo) - 1
		ref := todo[k]
		todo = todo[:k]

		node, err := pdf.GetDict(w.doc, ref)
		if err != nil || node == nil {
			continue
		}
		kids, isArray := node["Kids"].(pdf.Array)
		if node["Type"] == pdf.Name("Page") || !isArray {
			continue
		}
		res = append(res, ref)
		for _, kid := range kids {
			if kidRef, ok := kid.(pdf.Reference); ok && !seen[kidRef] {
				seen[kidRef] = true
				todo = append(todo, kidRef)
			}
		}
	}
	return res
}

// join replaces nodes[a:b] by a single /Pages node with these subtrees as
// its kids.  The kids are written to the document with their /Parent set.
func (w *Writer) join(nodes []*subtree, a, b int) []*subtree {
	if a < 0 || b > len(nodes) || b-a < 1 || b-a > maxDegree {
		panic(fmt.Errorf("invalid subtree node range %d, %d", a, b))
	}

	parent := &subtree{ref: w.doc.Alloc()}
	kids := make(pdf.Array, 0, b-a)
	for _, kid := range nodes[a:b] {
		kid.dict["Parent"] = parent.ref
		w.doc.Put(kid.ref, kid.dict)
		kids = append(kids, kid.ref)
		parent.pageCount += kid.pageCount
		parent.depth = max(parent.depth, kid.depth+1)
	}
	parent.dict = pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  kids,
		"Count": parent.pageCount,
	}
	w.doc.Put(parent.ref, parent.dict)

	nodes[a] = parent
	return append(nodes[:a+1], nodes[b:]...)
}

// collapse reduces the pending subtrees to (at most) one node.
func (w *Writer) collapse() {
	for len(w.pending) > 1 {
		start := max(len(w.pending)-maxDegree, 0)
		for start > 0 && w.pending[start-1].depth == w.pending[start].depth {
			start++
		}
		w.pending = w.join(w.pending, start, len(w.pending))
	}
}

// ensureInner returns node itself if it is a /Pages node, and otherwise
// a new /Pages node with node as its only kid.
func (w *Writer) ensureInner(node *subtree) *subtree {
	if node.depth > 0 {
		return node
	}
	return w.join([]*subtree{node}, 0, 1)[0]
}

var errClosed = errors.New("page tree is closed")
