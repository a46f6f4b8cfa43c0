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

package optimize

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	pdf "seehuhn.de/go/pdfassemble"
	"seehuhn.de/go/pdfassemble/internal/testpdf"
	"seehuhn.de/go/pdfassemble/pages"
	"seehuhn.de/go/pdfassemble/pagetree"
)

func pageContents(t *testing.T, doc *pdf.Document) []string {
	t.Helper()
	refs, err := doc.Pages()
	if err != nil {
		t.Fatal(err)
	}
	var res []string
	for _, ref := range refs {
		data, err := doc.PageContents(ref)
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, string(data))
	}
	return res
}

// bulkyDocument returns a document where every page uses the same large,
// uncompressed content, stored in separate streams.
func bulkyDocument(numPages int) (*pdf.Document, []byte) {
	doc := pdf.NewDocument(pdf.V1_7)
	content := bytes.Repeat([]byte("0 0 m 100 100 l S\n"), 200)
	var refs []pdf.Reference
	for range numPages {
		stm := doc.Insert(&pdf.Stream{Dict: pdf.Dict{}, Data: content})
		refs = append(refs, doc.Insert(pdf.Dict{
			"Type":     pdf.Name("Page"),
			"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(200), pdf.Integer(200)},
			"Contents": stm,
		}))
	}
	_, err := pagetree.Rebuild(doc, refs)
	if err != nil {
		panic(err)
	}
	return doc, content
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{Low, Medium, High} {
		got, err := ParseLevel(l.String())
		if err != nil {
			t.Error(err)
		} else if got != l {
			t.Errorf("%s: got %s", l, got)
		}
	}
	got, err := ParseLevel(" HIGH ")
	if err != nil || got != High {
		t.Errorf("got %s, %v", got, err)
	}
	_, err = ParseLevel("extreme")
	if err == nil {
		t.Error("invalid level accepted")
	}
}

func TestWriterOptions(t *testing.T) {
	if Low.WriterOptions().ObjectStreams {
		t.Error("Low uses object streams")
	}
	for _, l := range []Level{Medium, High} {
		if !l.WriterOptions().ObjectStreams {
			t.Errorf("%s does not use object streams", l)
		}
	}
}

func TestLow(t *testing.T) {
	doc, content := bulkyDocument(3)
	before, err := doc.Bytes(nil)
	if err != nil {
		t.Fatal(err)
	}

	res, stats, err := Recompress(doc, Low, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.CompressedStreams != 3 {
		t.Errorf("%d streams compressed, want 3", stats.CompressedStreams)
	}
	if stats.DuplicateStreams != 2 {
		t.Errorf("%d duplicate streams, want 2", stats.DuplicateStreams)
	}
	if stats.Orphans != 0 {
		t.Errorf("%d orphans removed at level low", stats.Orphans)
	}

	after, err := res.Bytes(Low.WriterOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(after) >= len(before) {
		t.Errorf("size %d -> %d", len(before), len(after))
	}

	reread, err := pdf.Read(after, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{string(content), string(content), string(content)}
	if d := cmp.Diff(want, pageContents(t, reread)); d != "" {
		t.Errorf("contents (-want +got):\n%s", d)
	}

	// the input must be unchanged
	if d := cmp.Diff(want, pageContents(t, doc)); d != "" {
		t.Errorf("input modified (-want +got):\n%s", d)
	}
	again, err := doc.Bytes(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, again) {
		t.Error("input document was modified")
	}
}

func TestMetadataNotCompressed(t *testing.T) {
	doc := pdf.NewDocument(pdf.V1_7)
	xml := bytes.Repeat([]byte("<x:xmpmeta/>\n"), 100)
	ref := doc.Insert(&pdf.Stream{
		Dict: pdf.Dict{"Type": pdf.Name("Metadata"), "Subtype": pdf.Name("XML")},
		Data: xml,
	})
	catalog, err := doc.CatalogDict()
	if err != nil {
		t.Fatal(err)
	}
	catalog["Metadata"] = ref

	res, stats, err := Recompress(doc, Medium, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.CompressedStreams != 0 {
		t.Errorf("%d streams compressed", stats.CompressedStreams)
	}
	stm, err := pdf.GetStream(res, ref)
	if err != nil {
		t.Fatal(err)
	}
	if stm.IsFiltered() || !bytes.Equal(stm.Data, xml) {
		t.Error("metadata stream was changed")
	}
}

func TestHigh(t *testing.T) {
	a := testpdf.Document(3, &testpdf.Options{Label: "A"})
	b := testpdf.Document(2, &testpdf.Options{Label: "B"})
	merged, err := pages.Merge([]*pdf.Document{a, b}, nil)
	if err != nil {
		t.Fatal(err)
	}
	orphan := merged.Insert(pdf.Dict{"Unused": pdf.Bool(true)})

	res, stats, err := Recompress(merged, High, nil)
	if err != nil {
		t.Fatal(err)
	}
	// the two identical fonts, and then the two resource dictionaries
	if stats.DuplicateObjects != 2 {
		t.Errorf("%d duplicate objects, want 2", stats.DuplicateObjects)
	}
	if stats.Orphans != 1 {
		t.Errorf("%d orphans, want 1", stats.Orphans)
	}
	if res.NumObjects() != merged.NumObjects()-3 {
		t.Errorf("%d objects, want %d", res.NumObjects(), merged.NumObjects()-3)
	}
	if obj, _ := merged.Get(orphan); obj == nil {
		t.Error("input document was modified")
	}

	data, err := res.Bytes(High.WriterOptions())
	if err != nil {
		t.Fatal(err)
	}
	reread, err := pdf.Read(data, &pdf.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(pageContents(t, merged), pageContents(t, reread)); d != "" {
		t.Errorf("contents (-want +got):\n%s", d)
	}
}

func TestHighIdempotent(t *testing.T) {
	doc, _ := bulkyDocument(5)
	first, _, err := Recompress(doc, High, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, stats, err := Recompress(first, High, nil)
	if err != nil {
		t.Fatal(err)
	}

	if second.NumObjects() > first.NumObjects() {
		t.Errorf("object count increased from %d to %d",
			first.NumObjects(), second.NumObjects())
	}
	if d := cmp.Diff(&Stats{}, stats); d != "" {
		t.Errorf("second pass changed the document (-want +got):\n%s", d)
	}
	if d := cmp.Diff(pageContents(t, first), pageContents(t, second)); d != "" {
		t.Errorf("contents (-want +got):\n%s", d)
	}
}

func TestStep(t *testing.T) {
	doc, _ := bulkyDocument(1)
	var calls [][2]int
	opt := &Options{
		Step: func(done, total int) error {
			calls = append(calls, [2]int{done, total})
			return nil
		},
	}
	_, _, err := Recompress(doc, High, opt)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([][2]int{{1, 3}, {2, 3}, {3, 3}}, calls); d != "" {
		t.Errorf("steps (-want +got):\n%s", d)
	}
}
