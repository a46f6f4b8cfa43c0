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

// Package pages implements page-level operations on PDF documents.
//
// All operations build new documents: the pages of the input documents,
// together with all objects they reference, are copied into a fresh object
// graph.  The input documents are not modified, and objects which are not
// reachable from the selected pages are not carried over.
package pages

import (
	"fmt"

	pdf "seehuhn.de/go/pdfassemble"
	"seehuhn.de/go/pdfassemble/pagetree"
)

// Options allow to observe and interrupt page operations.
type Options struct {
	// AfterPage, if not nil, is called after every copied page.  If
	// AfterPage returns an error, the operation is aborted and the error is
	// returned to the caller.
	AfterPage func() error
}

// Merge concatenates the pages of the given documents into a new document.
func Merge(docs []*pdf.Document, opt *Options) (*pdf.Document, error) {
	if len(docs) < 2 {
		return nil, ErrEmptyMergeSet
	}

	version := pdf.V1_0
	pageLists := make([][]pdf.Reference, len(docs))
	for i, doc := range docs {
		pages, err := doc.Pages()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		pageLists[i] = pages
		version = max(version, doc.Version)
	}

	a := newAssembler(version, opt)
	for i, doc := range docs {
		err := a.add(doc, pageLists[i])
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
	}
	return a.close()
}

// Split creates one new document for every page range.  The ranges may
// overlap and need not be in increasing order.
func Split(doc *pdf.Document, ranges []Range, opt *Options) ([]*pdf.Document, error) {
	err := ValidateRanges(ranges)
	if err != nil {
		return nil, err
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	ranges, err = ResolveRanges(ranges, len(pages))
	if err != nil {
		return nil, err
	}

	res := make([]*pdf.Document, 0, len(ranges))
	for _, r := range ranges {
		a := newAssembler(doc.Version, opt)
		err := a.copyInfo(doc)
		if err != nil {
			return nil, err
		}
		err = a.add(doc, pages[r.First-1:r.Last])
		if err != nil {
			return nil, err
		}
		out, err := a.close()
		if err != nil {
			return nil, err
		}
		res = append(res, out)
	}
	return res, nil
}

// Select creates a new document which contains the given pages of doc, in
// the given order.  Page numbers start at 1.  A page may be selected more
// than once.
func Select(doc *pdf.Document, idx []int, opt *Options) (*pdf.Document, error) {
	if len(idx) == 0 {
		return nil, fmt.Errorf("no pages selected: %w", ErrInvalidRange)
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	err = checkIndices(idx, len(pages))
	if err != nil {
		return nil, err
	}

	sel := make([]pdf.Reference, len(idx))
	for i, k := range idx {
		sel[i] = pages[k-1]
	}

	a := newAssembler(doc.Version, opt)
	err = a.copyInfo(doc)
	if err != nil {
		return nil, err
	}
	err = a.add(doc, sel)
	if err != nil {
		return nil, err
	}
	return a.close()
}

// Reorder creates a new document with the pages of doc in a new order.
// The list order must be a permutation of 1, ..., n where n is the number
// of pages in doc.  Page order[i] of doc becomes page i+1 of the result.
func Reorder(doc *pdf.Document, order []int, opt *Options) (*pdf.Document, error) {
	numPages, err := doc.NumPages()
	if err != nil {
		return nil, err
	}
	if len(order) != numPages {
		return nil, fmt.Errorf("%d page numbers given for %d pages: %w",
			len(order), numPages, ErrInvalidRange)
	}
	err = checkIndices(order, numPages)
	if err != nil {
		return nil, err
	}
	seen := make([]bool, numPages+1)
	for _, k := range order {
		if seen[k] {
			return nil, fmt.Errorf("page %d given twice: %w", k, ErrInvalidRange)
		}
		seen[k] = true
	}
	return Select(doc, order, opt)
}

// Delete creates a new document which contains all pages of doc, except
// for the listed ones.  Deleting all pages is an error.
func Delete(doc *pdf.Document, idx []int, opt *Options) (*pdf.Document, error) {
	numPages, err := doc.NumPages()
	if err != nil {
		return nil, err
	}
	err = checkIndices(idx, numPages)
	if err != nil {
		return nil, err
	}
	drop := make([]bool, numPages+1)
	for _, k := range idx {
		drop[k] = true
	}
	var keep []int
	for k := 1; k <= numPages; k++ {
		if !drop[k] {
			keep = append(keep, k)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("cannot delete all %d pages: %w", numPages, ErrInvalidRange)
	}
	return Select(doc, keep, opt)
}

// assembler builds a new document from pages of existing documents.
type assembler struct {
	dst  *pdf.Document
	tree *pagetree.Writer
	opt  *Options
}

func newAssembler(v pdf.Version, opt *Options) *assembler {
	if opt == nil {
		opt = &Options{}
	}
	dst := pdf.NewDocument(v)
	return &assembler{
		dst:  dst,
		tree: pagetree.NewWriter(dst),
		opt:  opt,
	}
}

// add copies the given pages of src to the end of the new document.
func (a *assembler) add(src *pdf.Document, pages []pdf.Reference) error {
	c := pdf.NewCopier(a.dst, src)
	c.Reserve(pages...)
	for _, ref := range pages {
		newRef, err := c.CopyPage(ref)
		if err != nil {
			return err
		}
		err = a.tree.AppendPage(newRef)
		if err != nil {
			return err
		}
		if a.opt.AfterPage != nil {
			err = a.opt.AfterPage()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// copyInfo copies the document information dictionary of src.
func (a *assembler) copyInfo(src *pdf.Document) error {
	info := src.Info()
	if info == nil {
		return nil
	}
	c := pdf.NewCopier(a.dst, src)
	newInfo, err := c.Copy(info)
	if err != nil {
		return err
	}
	a.dst.SetInfo(newInfo)
	return nil
}

func (a *assembler) close() (*pdf.Document, error) {
	_, err := a.tree.Close()
	if err != nil {
		return nil, err
	}
	return a.dst, nil
}
