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

package pipeline

import (
	"errors"
	"fmt"

	pdf "seehuhn.de/go/pdfassemble"
	"seehuhn.de/go/pdfassemble/pages"
)

// ErrCancelled is returned when a job is cancelled before it completes.
var ErrCancelled = errors.New("job cancelled")

var errInvalidJob = errors.New("invalid job")

// Kind classifies the errors reported by a [Controller].
type Kind int

// These are the possible error kinds.
const (
	MalformedSyntax Kind = iota + 1
	UnrecoverableStructure
	CyclicPageTree
	PageIndexOutOfRange
	InvalidRange
	EmptyMergeSet
	Cancelled
	EncryptedDocument
	InvalidJob
)

func (k Kind) String() string {
	switch k {
	case MalformedSyntax:
		return "malformed syntax"
	case UnrecoverableStructure:
		return "unrecoverable structure"
	case CyclicPageTree:
		return "cyclic page tree"
	case PageIndexOutOfRange:
		return "page index out of range"
	case InvalidRange:
		return "invalid range"
	case EmptyMergeSet:
		return "empty merge set"
	case Cancelled:
		return "cancelled"
	case EncryptedDocument:
		return "encrypted document"
	case InvalidJob:
		return "invalid job"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error type returned by [Controller.Run].
type Error struct {
	Kind Kind

	// Input is the index of the input which caused the error, or -1 if the
	// error is not tied to a specific input.
	Input int

	Err error
}

func (err *Error) Error() string {
	if err.Input >= 0 {
		return fmt.Sprintf("input %d: %s: %v", err.Input+1, err.Kind, err.Err)
	}
	return fmt.Sprintf("%s: %v", err.Kind, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

// newError wraps err into an *Error, unless it already is one.
// Cancellation is never attributed to an input.
func newError(err error, input int) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	kind := classify(err)
	if kind == Cancelled {
		input = -1
	}
	return &Error{Kind: kind, Input: input, Err: err}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrCancelled):
		return Cancelled
	case errors.Is(err, errInvalidJob):
		return InvalidJob
	case errors.Is(err, pdf.ErrEncrypted):
		return EncryptedDocument
	case errors.Is(err, pdf.ErrCyclicPageTree):
		return CyclicPageTree
	case errors.Is(err, pdf.ErrUnrecoverableStructure):
		return UnrecoverableStructure
	case errors.Is(err, pages.ErrEmptyMergeSet):
		return EmptyMergeSet
	case errors.Is(err, pages.ErrInvalidRange):
		return InvalidRange
	case errors.Is(err, pages.ErrPageIndexOutOfRange):
		return PageIndexOutOfRange
	default:
		// ErrNoPDF, ErrMalformedSyntax, unsupported filters, ...
		return MalformedSyntax
	}
}
