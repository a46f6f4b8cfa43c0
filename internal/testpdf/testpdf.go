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

// Package testpdf builds small PDF files for use in tests.
package testpdf

import (
	"bytes"
	"fmt"
	"strings"

	pdf "seehuhn.de/go/pdfassemble"
	"seehuhn.de/go/pdfassemble/pagetree"
)

// Options control the documents built by [Document].
type Options struct {
	// Label is the text shown on each page, followed by the page number.
	// The default is "page".
	Label string

	// Version is the PDF version of the document.  The default is 1.7.
	Version pdf.Version

	// InheritMediaBox stores the media box in the root of the page tree,
	// instead of in the individual pages.
	InheritMediaBox bool
}

// PageText returns the text shown on page i (0-based) of a document with
// the given label.
func PageText(label string, i int) string {
	return fmt.Sprintf("%s %d", label, i+1)
}

// Content returns the content stream of page i (0-based) of a document
// with the given label.
func Content(label string, i int) []byte {
	return fmt.Appendf(nil, "BT\n/F1 24 Tf\n72 720 Td\n(%s) Tj\nET", PageText(label, i))
}

// Document returns a document with n pages.  All pages share one font
// resource, and page i shows the text PageText(label, i).
func Document(n int, opt *Options) *pdf.Document {
	if opt == nil {
		opt = &Options{}
	}
	label := opt.Label
	if label == "" {
		label = "page"
	}
	version := opt.Version
	if version == 0 {
		version = pdf.V1_7
	}

	doc := pdf.NewDocument(version)
	font := doc.Insert(pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name("Helvetica"),
	})
	resources := doc.Insert(pdf.Dict{
		"Font": pdf.Dict{"F1": font},
	})
	mediaBox := pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(595), pdf.Integer(842)}

	tree := pagetree.NewWriter(doc)
	for i := range n {
		contents := doc.Insert(&pdf.Stream{
			Dict: pdf.Dict{},
			Data: Content(label, i),
		})
		page := pdf.Dict{
			"Type":      pdf.Name("Page"),
			"Resources": resources,
			"Contents":  contents,
		}
		if !opt.InheritMediaBox {
			page["MediaBox"] = mediaBox
		}
		err := tree.AppendPage(doc.Insert(page))
		if err != nil {
			panic(err)
		}
	}
	root, err := tree.Close()
	if err != nil {
		panic(err)
	}
	if opt.InheritMediaBox {
		rootDict, err := pdf.GetDict(doc, root)
		if err != nil {
			panic(err)
		}
		rootDict["MediaBox"] = mediaBox
	}
	return doc
}

// Build returns the serialized form of Document(n, opt).
func Build(n int, opt *Options, wopt *pdf.WriterOptions) []byte {
	data, err := Document(n, opt).Bytes(wopt)
	if err != nil {
		panic(err)
	}
	return data
}

// SimpleObjects returns the object bodies of a document with n pages,
// for use with [Classic].  Object 1 is the catalog, object 2 the root of the
// page tree, objects 3 to n+2 are the pages, and objects n+3 to 2n+2 are
// the content streams.
func SimpleObjects(n int, label string) []string {
	kids := make([]string, n)
	for i := range n {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
			strings.Join(kids, " "), n),
	}
	for i := range n {
		objs = append(objs, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", i+n+3))
	}
	for i := range n {
		data := Content(label, i)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(data), data))
	}
	return objs
}

// Classic builds a PDF file with a classic cross-reference table from the
// given object bodies.  Object i+1 has body objects[i], and object 1 must be
// the document catalog.
func Classic(objects ...string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.4\n%\x80\x80\x80\x80\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefPos := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f\r\n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefPos)
	return buf.Bytes()
}
