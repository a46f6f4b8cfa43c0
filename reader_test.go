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

package pdf_test

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	pdf "seehuhn.de/go/pdfassemble"
	"seehuhn.de/go/pdfassemble/internal/testpdf"
)

// checkPages verifies that doc has n pages showing the given label.
func checkPages(t *testing.T, doc *pdf.Document, n int, label string) {
	t.Helper()
	pages, err := doc.Pages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != n {
		t.Fatalf("got %d pages, want %d", len(pages), n)
	}
	for i, ref := range pages {
		got, err := doc.PageContents(ref)
		if err != nil {
			t.Fatal(err)
		}
		want := testpdf.Content(label, i)
		if !bytes.Equal(got, want) {
			t.Errorf("page %d: got %q, want %q", i+1, got, want)
		}
	}
}

func TestReadClassic(t *testing.T) {
	data := testpdf.Classic(testpdf.SimpleObjects(3, "x")...)
	doc, err := pdf.Read(data, &pdf.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != pdf.V1_4 {
		t.Errorf("got version %s", doc.Version)
	}
	if doc.Recovered {
		t.Error("document marked as recovered")
	}
	checkPages(t, doc, 3, "x")

	pages, _ := doc.Pages()
	box, err := doc.MediaBox(pages[0])
	if err != nil {
		t.Fatal(err)
	}
	if box.URx != 612 || box.URy != 792 {
		t.Errorf("got media box %v", box)
	}

	obj, err := doc.Get(pdf.NewReference(99, 0))
	if obj != nil || err != nil {
		t.Errorf("missing object: got %v, %v", obj, err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, opt := range []*pdf.WriterOptions{
		nil,
		{XRefStream: true},
		{ObjectStreams: true},
		{Version: pdf.V2_0},
	} {
		t.Run(fmt.Sprintf("%+v", opt), func(t *testing.T) {
			data := testpdf.Build(7, &testpdf.Options{Label: "rt"}, opt)
			doc, err := pdf.Read(data, &pdf.ReaderOptions{Strict: true})
			if err != nil {
				t.Fatal(err)
			}
			checkPages(t, doc, 7, "rt")

			if opt != nil && opt.ObjectStreams {
				if !bytes.Contains(data, []byte("/ObjStm")) {
					t.Error("no object stream written")
				}
				if doc.Version < pdf.V1_5 {
					t.Errorf("object streams in version %s", doc.Version)
				}
			}
			if opt != nil && opt.Version == pdf.V2_0 && doc.Version != pdf.V2_0 {
				t.Errorf("got version %s", doc.Version)
			}

			// writing the document again gives the same objects
			data2, err := doc.Bytes(opt)
			if err != nil {
				t.Fatal(err)
			}
			doc2, err := pdf.Read(data2, &pdf.ReaderOptions{Strict: true})
			if err != nil {
				t.Fatal(err)
			}
			if doc2.NumObjects() != doc.NumObjects() {
				t.Errorf("got %d objects, want %d", doc2.NumObjects(), doc.NumObjects())
			}
			checkPages(t, doc2, 7, "rt")
		})
	}
}

var xrefEntry = regexp.MustCompile(`[0-9]{10} 00000 n`)

func TestReadLoadAll(t *testing.T) {
	data := testpdf.Classic(testpdf.SimpleObjects(3, "l")...)
	doc, err := pdf.Read(data, &pdf.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatal(err)
	}

	// a mix of loaded and not yet loaded objects
	before := doc.Refs()
	if len(before) != doc.NumObjects() {
		t.Fatalf("got %d references for %d objects", len(before), doc.NumObjects())
	}
	for i := 1; i < len(before); i++ {
		if before[i].Number() <= before[i-1].Number() {
			t.Fatalf("references out of order: %v", before)
		}
	}

	err = doc.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(before, doc.Refs()); d != "" {
		t.Errorf("references changed (-before +after):\n%s", d)
	}
	checkPages(t, doc, 3, "l")
}

func TestReadRecovery(t *testing.T) {
	orig := testpdf.Classic(testpdf.SimpleObjects(4, "r")...)

	type testCase struct {
		name string
		data []byte
	}
	startXRef := bytes.LastIndex(orig, []byte("startxref"))
	xrefPos := bytes.LastIndex(orig[:startXRef], []byte("xref\n"))
	cases := []testCase{
		{"zero offsets", xrefEntry.ReplaceAll(orig, []byte("0000000000 00000 n"))},
		{"shifted offsets", xrefEntry.ReplaceAllFunc(orig, func(b []byte) []byte {
			pos, _ := strconv.Atoi(string(b[:10]))
			return fmt.Appendf(nil, "%010d 00000 n", pos+1)
		})},
		{"bad startxref", bytes.Replace(orig, []byte("startxref\n"), []byte("startxref\n1"), 1)},
		{"truncated", orig[:xrefPos]},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := pdf.Read(c.data, &pdf.ReaderOptions{Strict: true})
			if err == nil {
				t.Fatal("strict mode accepted damaged file")
			}

			doc, err := pdf.Read(c.data, nil)
			if err != nil {
				t.Fatal(err)
			}
			if !doc.Recovered {
				t.Error("Recovered not set")
			}
			checkPages(t, doc, 4, "r")
		})
	}
}

func TestReadRecoveryCatalog(t *testing.T) {
	// The trailer's /Root points at the page tree root, object 2 is the
	// real catalog.
	objs := testpdf.SimpleObjects(2, "c")
	objs[0] = "<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>"
	objs[1] = "<< /Type /Catalog /Pages 1 0 R >>"
	for i := 2; i < 4; i++ {
		objs[i] = fmt.Sprintf("<< /Type /Page /Parent 1 0 R /Contents %d 0 R >>", i+3)
	}
	wrongRoot := testpdf.Classic(objs...)

	type testCase struct {
		name string
		data []byte
	}
	cases := []testCase{
		{"no trailer", wrongRoot[:bytes.LastIndex(wrongRoot, []byte("\nxref\n"))+1]},
		{"wrong root, bad startxref",
			bytes.Replace(wrongRoot, []byte("startxref\n"), []byte("startxref\n1"), 1)},
		{"wrong root, intact xref", wrongRoot},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := pdf.Read(c.data, &pdf.ReaderOptions{Strict: true})
			if err == nil {
				t.Fatal("strict mode accepted a file without usable catalog")
			}

			doc, err := pdf.Read(c.data, nil)
			if err != nil {
				t.Fatal(err)
			}
			if !doc.Recovered {
				t.Error("Recovered not set")
			}
			if doc.Catalog() != pdf.NewReference(2, 0) {
				t.Errorf("got catalog %s", doc.Catalog())
			}
			checkPages(t, doc, 2, "c")
		})
	}

	// a trailer /Root which is not a catalog, and no catalog anywhere
	noCatalog := bytes.Replace(wrongRoot, []byte("/Type /Catalog"), []byte("/Type /Other  "), 1)
	_, err := pdf.Read(noCatalog, nil)
	if !errors.Is(err, pdf.ErrUnrecoverableStructure) {
		t.Errorf("no catalog: got %v", err)
	}
}

func TestReadIncrementalUpdate(t *testing.T) {
	orig := testpdf.Classic(testpdf.SimpleObjects(2, "old")...)
	m := regexp.MustCompile(`startxref\n([0-9]+)`).FindSubmatch(orig)
	prev, _ := strconv.Atoi(string(m[1]))

	buf := bytes.NewBuffer(bytes.Clone(orig))
	content := testpdf.Content("new", 0)
	objPos := buf.Len()
	fmt.Fprintf(buf, "5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)
	xrefPos := buf.Len()
	fmt.Fprintf(buf, "xref\n5 1\n%010d 00000 n\r\n", objPos)
	fmt.Fprintf(buf, "trailer\n<< /Size 7 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", prev, xrefPos)

	doc, err := pdf.Read(buf.Bytes(), &pdf.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	pages, err := doc.Pages()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, ref := range pages {
		data, err := doc.PageContents(ref)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, string(data))
	}
	want := []string{string(testpdf.Content("new", 0)), string(testpdf.Content("old", 1))}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
}

func TestReadWrongLength(t *testing.T) {
	content := testpdf.Content("len", 0)
	data := testpdf.Classic(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length 3 >>\nstream\n%s\nendstream", content),
	)
	doc, err := pdf.Read(data, &pdf.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	checkPages(t, doc, 1, "len")
}

func TestReadVersion(t *testing.T) {
	objs := testpdf.SimpleObjects(1, "v")
	objs[0] = "<< /Type /Catalog /Pages 2 0 R /Version /1.7 >>"
	doc, err := pdf.Read(testpdf.Classic(objs...), nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != pdf.V1_7 {
		t.Errorf("catalog /Version ignored: got %s", doc.Version)
	}

	data := testpdf.Classic(testpdf.SimpleObjects(1, "v")...)
	data = bytes.Replace(data, []byte("%PDF-1.4"), []byte("%PDF-1.9"), 1)
	doc, err = pdf.Read(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != pdf.V1_7 {
		t.Errorf("unknown header version: got %s", doc.Version)
	}
}

func TestReadErrors(t *testing.T) {
	valid := testpdf.Classic(testpdf.SimpleObjects(1, "e")...)
	encrypted := bytes.Replace(valid, []byte("/Root 1 0 R >>"),
		[]byte("/Root 1 0 R /Encrypt << /Filter /Standard >> >>"), 1)
	brokenEncrypted := xrefEntry.ReplaceAll(encrypted, []byte("0000000000 00000 n"))

	type testCase struct {
		name string
		data []byte
		want error
	}
	cases := []testCase{
		{"empty", nil, pdf.ErrNoPDF},
		{"no header", []byte("hello world"), pdf.ErrNoPDF},
		{"garbage", []byte("%PDF-1.4\nthis is not a PDF file\n"), pdf.ErrUnrecoverableStructure},
		{"no catalog", []byte("%PDF-1.4\n1 0 obj\n42\nendobj\n"), pdf.ErrUnrecoverableStructure},
		{"encrypted", encrypted, pdf.ErrEncrypted},
		{"encrypted and damaged", brokenEncrypted, pdf.ErrEncrypted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := pdf.Read(c.data, nil)
			if !errors.Is(err, c.want) {
				t.Errorf("got %v, want %v", err, c.want)
			}
		})
	}

	_, err := pdf.Read([]byte("%!PS-Adobe"), nil)
	if !errors.Is(err, pdf.ErrMalformedSyntax) {
		t.Errorf("missing header is not a syntax error: %v", err)
	}
}

func FuzzRead(f *testing.F) {
	f.Add(testpdf.Classic(testpdf.SimpleObjects(2, "f")...))
	f.Add(testpdf.Build(3, nil, nil))
	f.Add(testpdf.Build(3, nil, &pdf.WriterOptions{ObjectStreams: true}))

	f.Fuzz(func(t *testing.T, data []byte) {
		doc, err := pdf.Read(data, nil)
		if err != nil {
			return
		}
		if _, err := doc.Pages(); err != nil {
			return
		}

		out, err := doc.Bytes(nil)
		if err != nil {
			return
		}
		doc2, err := pdf.Read(out, &pdf.ReaderOptions{Strict: true})
		if err != nil {
			t.Fatalf("cannot read written file: %v", err)
		}
		n1, _ := doc.NumPages()
		n2, err := doc2.NumPages()
		if err != nil {
			t.Fatal(err)
		}
		if n1 != n2 {
			t.Errorf("page count changed from %d to %d", n1, n2)
		}
	})
}
