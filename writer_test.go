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
	"fmt"
	"testing"
)

func testDocument() *Document {
	doc := NewDocument(V1_4)
	font := doc.Insert(Dict{"Type": Name("Font"), "BaseFont": Name("Courier")})
	doc.Insert(&Stream{Dict: Dict{}, Data: []byte("binary \000\001\002 data")})
	doc.Insert(Array{font, String("x"), Real(1.5)})
	doc.SetInfo(doc.Insert(Dict{"Title": TextString("Test")}))
	return doc
}

func TestWriterOffsets(t *testing.T) {
	for _, opt := range []*WriterOptions{
		{},
		{XRefStream: true},
		{ObjectStreams: true},
	} {
		doc := testDocument()
		doc.Delete(NewReference(3, 0))
		data, err := doc.Bytes(opt)
		if err != nil {
			t.Fatal(err)
		}

		xref, err := readXRef(data)
		if err != nil {
			t.Fatal(err)
		}
		for num, entry := range xref.entries {
			if entry.Free || entry.InStream != 0 {
				continue
			}
			prefix := fmt.Sprintf("%d %d obj", num, entry.Generation)
			if !bytes.HasPrefix(data[entry.Pos:], []byte(prefix)) {
				t.Errorf("%+v: object %d not at offset %d", opt, num, entry.Pos)
			}
		}
		if err := xref.check(data); err != nil {
			t.Errorf("%+v: %v", opt, err)
		}
		if !xref.entries[3].IsFree() {
			t.Errorf("%+v: deleted object 3 is in use", opt)
		}
		if opt.ObjectStreams {
			if xref.entries[2].InStream == 0 {
				t.Errorf("catalog not in object stream")
			}
			if xref.entries[4].InStream != 0 {
				t.Errorf("stream stored in object stream")
			}
		}
	}
}

func TestWriterFreeList(t *testing.T) {
	doc := testDocument()
	doc.Delete(NewReference(3, 0))
	doc.Delete(NewReference(5, 0))
	data, err := doc.Bytes(nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range []string{
		"0000000003 65535 f\r\n",
		"0000000005 00000 f\r\n",
		"0000000000 00000 f\r\n",
	} {
		if !bytes.Contains(data, []byte(entry)) {
			t.Errorf("missing free entry %q", entry)
		}
	}
}

func TestWriterVersion(t *testing.T) {
	type testCase struct {
		doc  Version
		opt  *WriterOptions
		want string
	}
	cases := []testCase{
		{V1_4, nil, "%PDF-1.4\n"},
		{V1_4, &WriterOptions{Version: V1_6}, "%PDF-1.6\n"},
		{V1_7, &WriterOptions{Version: V1_6}, "%PDF-1.7\n"},
		{V1_2, &WriterOptions{XRefStream: true}, "%PDF-1.5\n"},
		{V1_2, &WriterOptions{ObjectStreams: true}, "%PDF-1.5\n"},
	}
	for _, c := range cases {
		doc := NewDocument(c.doc)
		data, err := doc.Bytes(c.opt)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(data, []byte(c.want)) {
			t.Errorf("%s %+v: got header %q", c.doc, c.opt, data[:9])
		}
	}
}

func TestWriterDeterministic(t *testing.T) {
	a, err := testDocument().Bytes(&WriterOptions{ObjectStreams: true})
	if err != nil {
		t.Fatal(err)
	}
	b, err := testDocument().Bytes(&WriterOptions{ObjectStreams: true})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("output differs between runs")
	}
}

func TestWriterKeepsFileID(t *testing.T) {
	doc := testDocument()
	doc.ID = [][]byte{[]byte("0123456789abcdef"), []byte("fedcba9876543210")}
	data, err := doc.Bytes(nil)
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := Read(data, &ReaderOptions{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc2.ID) != 2 {
		t.Fatalf("got ID %q", doc2.ID)
	}
	if string(doc2.ID[0]) != "0123456789abcdef" {
		t.Errorf("first ID changed to %q", doc2.ID[0])
	}
	if string(doc2.ID[1]) == "fedcba9876543210" {
		t.Error("second ID not updated")
	}
}
