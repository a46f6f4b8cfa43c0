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
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Object represents an object in a PDF file.  There are nine basic types of
// PDF objects, which implement this interface: [Array], [Bool], [Dict],
// [Integer], [Name], [Real], [Reference], [*Stream], and [String].
// The PDF null object is represented by a nil Object.
type Object interface {
	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// Bool represents a boolean value in a PDF file.
type Bool bool

// PDF implements the [Object] interface.
func (x Bool) PDF(w io.Writer) error {
	s := "false"
	if x {
		s = "true"
	}
	_, err := io.WriteString(w, s)
	return err
}

// Integer represents an integer constant in a PDF file.
type Integer int64

// PDF implements the [Object] interface.
func (x Integer) PDF(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatInt(int64(x), 10))
	return err
}

// Real represents an real number in a PDF file.
type Real float64

// PDF implements the [Object] interface.
func (x Real) PDF(w io.Writer) error {
	s := strconv.FormatFloat(float64(x), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s = s + "."
	}
	_, err := io.WriteString(w, s)
	return err
}

// String represents a raw string in a PDF file.  The character set encoding,
// if any, is determined by the context.
type String []byte

// PDF implements the [Object] interface.
//
// Strings are written in literal form, unless more than a third of the
// bytes would need escaping, in which case hex form is used.
func (x String) PDF(w io.Writer) error {
	escapeParens := !parensBalanced(x)
	needsEscape := func(c byte) bool {
		return c < 32 || c == '\\' || escapeParens && (c == '(' || c == ')')
	}

	count := 0
	for _, c := range x {
		if needsEscape(c) {
			count++
		}
	}

	var out []byte
	if 3*count > len(x) {
		out = make([]byte, 0, 2*len(x)+2)
		out = append(out, '<')
		out = hex.AppendEncode(out, x)
		out = append(out, '>')
	} else {
		out = make([]byte, 0, len(x)+2*count+2)
		out = append(out, '(')
		for _, c := range x {
			if !needsEscape(c) {
				out = append(out, c)
				continue
			}
			if e, ok := stringEscapes[c]; ok {
				out = append(out, '\\', e)
			} else {
				out = fmt.Appendf(out, "\\%03o", c)
			}
		}
		out = append(out, ')')
	}
	_, err := w.Write(out)
	return err
}

var stringEscapes = map[byte]byte{
	'\r': 'r', '\n': 'n', '\t': 't', '\b': 'b', '\f': 'f',
	'(': '(', ')': ')', '\\': '\\',
}

// parensBalanced reports whether every ')' in s closes an earlier '('.
func parensBalanced(s []byte) bool {
	depth := 0
	for _, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return false
			}
			depth--
		}
	}
	return depth == 0
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// AsTextString interprets x as a PDF "text string" and returns
// the corresponding utf-8 encoded string.
//
// Strings starting with a UTF-16BE byte order mark are decoded as UTF-16.
// All other strings are decoded as PDFDocEncoding, which for the printable
// range agrees with ISO 8859-1.
func (x String) AsTextString() string {
	if len(x) >= 2 && x[0] == 0xFE && x[1] == 0xFF {
		s, err := utf16BE.NewDecoder().Bytes(x)
		if err == nil {
			return string(s)
		}
	}
	for _, c := range x {
		if c >= 0x80 {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(x)
			if err != nil {
				break
			}
			return string(s)
		}
	}
	return string(x)
}

// TextString creates a String object using the "text string" encoding.
// ASCII strings are stored as they are, everything else uses UTF-16BE
// with a byte order mark.
func TextString(s string) String {
	isASCII := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			isASCII = false
			break
		}
	}
	if isASCII {
		return String(s)
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	buf, err := enc.Bytes([]byte(s))
	if err != nil {
		return String(s)
	}
	return String(buf)
}

// dateLayouts lists the accepted forms of a PDF date, most specific first.
// Apostrophes are removed from the input before matching.
var dateLayouts = []string{
	"D:20060102150405-0700",
	"D:20060102150405-07",
	"D:20060102150405Z0000",
	"D:20060102150405Z",
	"D:20060102150405",
	"D:200601021504",
	"D:20060102",
	"D:200601",
	"D:2006",
}

// AsDate decodes a PDF date string such as "D:20240315103045+02'00'".
// An empty string, or the bare prefix "D:", gives the zero time.
// Many writers omit the "D:" prefix, so dates starting with a
// century are accepted without it.
func (x String) AsDate() (time.Time, error) {
	s := strings.TrimSpace(strings.ReplaceAll(x.AsTextString(), "'", ""))
	switch {
	case s == "" || s == "D:":
		return time.Time{}, nil
	case !strings.HasPrefix(s, "D:"):
		s = "D:" + s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNoDate
}

var errNoDate = errors.New("not a valid date string")

// Date encodes t as a PDF date string, with the time zone offset written
// as +HH'MM'.
func Date(t time.Time) String {
	s := t.Format("D:20060102150405-0700")
	return String(s[:len(s)-2] + "'" + s[len(s)-2:] + "'")
}

// Name represents a name object in a PDF file.
type Name string

// PDF implements the [Object] interface.
func (x Name) PDF(w io.Writer) error {
	l := []byte(x)

	buf := make([]byte, 0, len(l)+1)
	buf = append(buf, '/')
	for _, c := range l {
		if isSpace[c] || isDelimiter[c] || c < 0x21 || c > 0x7e || c == '#' {
			buf = fmt.Appendf(buf, "#%02x", c)
		} else {
			buf = append(buf, c)
		}
	}
	_, err := w.Write(buf)
	return err
}

// Array represent an array of objects in a PDF file.
type Array []Object

func (x Array) String() string {
	return describe("Array", nil, strconv.Itoa(len(x))+" elements")
}

// PDF implements the [Object] interface.
func (x Array) PDF(w io.Writer) error {
	ow := &objWriter{w: w}
	ow.str("[")
	for i, val := range x {
		if i > 0 {
			ow.str(" ")
		}
		ow.obj(val)
	}
	ow.str("]")
	return ow.err
}

// Dict represent a Dictionary object in a PDF file.
// Keys mapped to nil are treated as absent.
type Dict map[Name]Object

func (x Dict) String() string {
	entries := "1 entry"
	if len(x) != 1 {
		entries = strconv.Itoa(len(x)) + " entries"
	}
	return describe("Dict", x["Type"], entries)
}

// PDF implements the [Object] interface.
// Keys are written in sorted order, so that the output is deterministic.
func (x Dict) PDF(w io.Writer) error {
	ow := &objWriter{w: w}
	if x == nil {
		ow.str("null")
		return ow.err
	}
	keys := maps.Keys(x)
	slices.Sort(keys)
	ow.str("<<")
	for _, key := range keys {
		val := x[key]
		if val == nil {
			continue
		}
		ow.str("\n")
		ow.obj(key)
		ow.str(" ")
		ow.obj(val)
	}
	ow.str("\n>>")
	return ow.err
}

// Stream represent a stream object in a PDF file.
//
// Data holds the stream contents as stored in the file, i.e. with all
// filters from the /Filter entry still applied.  Use [Stream.Decode] to
// obtain the decoded contents.  The /Length entry of the dictionary is
// ignored on output and replaced by len(Data).
type Stream struct {
	Dict
	Data []byte
}

func (x *Stream) String() string {
	extra := []string{strconv.Itoa(len(x.Data)) + " bytes"}
	switch filter := x.Dict["Filter"].(type) {
	case Name:
		extra = append(extra, string(filter))
	case Array:
		for _, f := range filter {
			if name, ok := f.(Name); ok {
				extra = append(extra, string(name))
			}
		}
	}
	return describe("Stream", x.Dict["Type"], extra...)
}

// PDF implements the [Object] interface.
func (x *Stream) PDF(w io.Writer) error {
	dict := maps.Clone(x.Dict)
	if dict == nil {
		dict = Dict{}
	}
	dict["Length"] = Integer(len(x.Data))

	ow := &objWriter{w: w}
	ow.obj(dict)
	ow.str("\nstream\n")
	if ow.err == nil {
		_, ow.err = w.Write(x.Data)
	}
	ow.str("\nendstream")
	return ow.err
}

// describe gives the short form used by the String methods of container
// objects, e.g. "<Page Dict, 4 entries>".
func describe(kind string, tp Object, extra ...string) string {
	head := kind
	if name, ok := tp.(Name); ok {
		head = string(name) + " " + kind
	}
	return "<" + strings.Join(append([]string{head}, extra...), ", ") + ">"
}

// objWriter writes a sequence of tokens and objects, remembering the
// first error.
type objWriter struct {
	w   io.Writer
	err error
}

func (ow *objWriter) str(s string) {
	if ow.err == nil {
		_, ow.err = io.WriteString(ow.w, s)
	}
}

func (ow *objWriter) obj(obj Object) {
	if ow.err == nil {
		ow.err = writeObject(ow.w, obj)
	}
}

// Reference represents a reference to an indirect object in a PDF file.
// The lower 32 bits represent the object number, the next 16 bits the
// generation number.
type Reference uint64

// NewReference returns the reference for the given object and generation
// number.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(uint64(number) | uint64(generation)<<32)
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

func (x Reference) String() string {
	s := "obj_" + strconv.FormatUint(uint64(x.Number()), 10)
	if gen := x.Generation(); gen > 0 {
		s += "@" + strconv.FormatUint(uint64(gen), 10)
	}
	return s
}

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error {
	if x>>48 != 0 {
		return fmt.Errorf("invalid reference: 0x%016x", uint64(x))
	}
	_, err := fmt.Fprintf(w, "%d %d R", x.Number(), x.Generation())
	return err
}

// compareRefs orders references by object number, then by generation.
func compareRefs(a, b Reference) int {
	if a.Number() != b.Number() {
		if a.Number() < b.Number() {
			return -1
		}
		return 1
	}
	return int(a.Generation()) - int(b.Generation())
}

func writeObject(w io.Writer, obj Object) error {
	if obj == nil {
		_, err := io.WriteString(w, "null")
		return err
	}
	return obj.PDF(w)
}

// Format formats a PDF object as a string, in the same way as it would be
// written to a PDF file.
func Format(obj Object) string {
	buf := &bytes.Buffer{}
	err := writeObject(buf, obj)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return buf.String()
}
