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

// Package pdf implements the object model of PDF files, together with a
// tolerant reader and a serializer.
//
// A file is read into a [Document], which gives access to the indirect
// objects of the file.  Objects are parsed lazily, on first access:
//
//	doc, err := pdf.Read(data, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pages, err := doc.Pages()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	... use pages ...
//
// If the cross-reference information of a file is damaged, the object table
// is reconstructed by scanning the file for object headers.
//
// A [Copier] transfers objects, and in particular pages, between documents.
// The method [Document.Write] serializes a document, optionally using
// object streams and a cross-reference stream.
//
// The following types implement the native PDF object types.
// All of these implement the [Object] interface:
//
//	Array
//	Bool
//	Dict
//	Integer
//	Name
//	Real
//	Reference
//	*Stream
//	String
//
// The PDF null object is represented by nil.
package pdf
