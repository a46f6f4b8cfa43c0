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
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors reported by the reader.  Use [errors.Is] to test for these, since
// they are usually wrapped in a [MalformedFileError] or a positional error.
var (
	// ErrMalformedSyntax indicates a tokenizer or parser failure.
	ErrMalformedSyntax = errors.New("malformed PDF syntax")

	// ErrUnrecoverableStructure indicates that neither the cross-reference
	// data nor brute-force recovery could locate the document catalog.
	ErrUnrecoverableStructure = errors.New("unrecoverable PDF structure")

	// ErrCyclicPageTree indicates that a page tree node was reached twice.
	ErrCyclicPageTree = errors.New("cycle in page tree")

	// ErrEncrypted indicates that the file uses the standard security
	// handler, which is not supported.
	ErrEncrypted = errors.New("encrypted PDF files are not supported")

	// ErrNoPDF indicates that the input does not start with a PDF header.
	ErrNoPDF = errors.New("not a PDF file")

	// ErrUnsupportedFilter indicates a stream filter which cannot be decoded.
	ErrUnsupportedFilter = errors.New("unsupported filter")
)

// MalformedFileError indicates that the input is not a syntactically valid
// PDF file.  Pos gives the byte offset where the problem was detected, if
// known.
type MalformedFileError struct {
	Pos int64
	Err error
	Loc []string
}

func (err *MalformedFileError) Error() string {
	parts := []string{"malformed PDF"}
	if len(err.Loc) > 0 {
		parts = append(parts, strings.Join(err.Loc, ": "))
	}
	if err.Err != nil {
		parts = append(parts, err.Err.Error())
	}
	msg := strings.Join(parts, ": ")
	if err.Pos > 0 {
		msg += " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return msg
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// Is reports every MalformedFileError as an instance of
// [ErrMalformedSyntax].
func (err *MalformedFileError) Is(target error) bool {
	return target == ErrMalformedSyntax
}

// Wrap adds location information to an error.  If err is a
// MalformedFileError, loc is prepended to its location path.
func Wrap(err error, loc string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*MalformedFileError); ok {
		// copy, since the error may be shared between callers
		res := *e
		res.Loc = append([]string{loc}, e.Loc...)
		return &res
	}
	return &wrappedError{loc: loc, err: err}
}

type wrappedError struct {
	loc string
	err error
}

func (e *wrappedError) Error() string {
	return e.loc + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}

func errorf(pos int64, format string, args ...any) error {
	return &MalformedFileError{Pos: pos, Err: fmt.Errorf(format, args...)}
}
