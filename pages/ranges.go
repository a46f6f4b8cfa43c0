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

package pages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrPageIndexOutOfRange is returned if a page index is outside the
	// range 1, ..., n where n is the number of pages in the document.
	ErrPageIndexOutOfRange = errors.New("page index out of range")

	// ErrInvalidRange is returned for page ranges where the first page comes
	// after the last page, and for page lists which are otherwise unusable.
	ErrInvalidRange = errors.New("invalid page range")

	// ErrEmptyMergeSet is returned by [Merge] if fewer than two documents
	// are given.
	ErrEmptyMergeSet = errors.New("need at least two documents to merge")
)

// ToEnd can be used as the last page of a [Range], to indicate that the
// range extends to the end of the document.
const ToEnd = -1

// Range is an inclusive range of pages.  Pages are numbered starting at 1.
type Range struct {
	First, Last int
}

func (r Range) String() string {
	switch {
	case r.Last == ToEnd:
		return fmt.Sprintf("%d-", r.First)
	case r.First == r.Last:
		return strconv.Itoa(r.First)
	default:
		return fmt.Sprintf("%d-%d", r.First, r.Last)
	}
}

// Len returns the number of pages in the range.  The range must be
// resolved, i.e. Last must not be [ToEnd].
func (r Range) Len() int {
	return r.Last - r.First + 1
}

// EachPage returns the ranges which split an n-page document into n
// single-page documents.
func EachPage(n int) []Range {
	res := make([]Range, n)
	for i := range res {
		res[i] = Range{First: i + 1, Last: i + 1}
	}
	return res
}

// ParseRanges parses a comma-separated list of page ranges, like
// "1-3,5,8-".  A range with no last page extends to the end of the
// document.
func ParseRanges(s string) ([]Range, error) {
	var res []Range
	for i, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("range %d: empty: %w", i+1, ErrInvalidRange)
		}

		a, b, isRange := strings.Cut(field, "-")
		first, err := parsePageNumber(a)
		if err != nil {
			return nil, fmt.Errorf("range %d: %w", i+1, err)
		}
		r := Range{First: first, Last: first}
		if isRange {
			b = strings.TrimSpace(b)
			if b == "" {
				r.Last = ToEnd
			} else {
				r.Last, err = parsePageNumber(b)
				if err != nil {
					return nil, fmt.Errorf("range %d: %w", i+1, err)
				}
			}
		}
		res = append(res, r)
	}
	return res, nil
}

func parsePageNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q: %w", s, ErrInvalidRange)
	}
	return n, nil
}

// ValidateRanges checks a list of page ranges without reference to a
// document.  This catches ranges where the first page comes after the last
// page, as well as page numbers smaller than one.
func ValidateRanges(ranges []Range) error {
	if len(ranges) == 0 {
		return fmt.Errorf("no page ranges given: %w", ErrInvalidRange)
	}
	for i, r := range ranges {
		if r.Last != ToEnd && r.First > r.Last {
			return fmt.Errorf("range %d: first page %d after last page %d: %w",
				i+1, r.First, r.Last, ErrInvalidRange)
		}
	}
	for i, r := range ranges {
		if r.First < 1 || (r.Last != ToEnd && r.Last < 1) {
			return fmt.Errorf("range %d (%s): page numbers start at 1: %w",
				i+1, r, ErrPageIndexOutOfRange)
		}
	}
	return nil
}

// ResolveRanges checks the ranges against a document with numPages pages
// and replaces [ToEnd] by the last page number.
func ResolveRanges(ranges []Range, numPages int) ([]Range, error) {
	err := ValidateRanges(ranges)
	if err != nil {
		return nil, err
	}
	res := make([]Range, len(ranges))
	for i, r := range ranges {
		if r.Last == ToEnd {
			r.Last = numPages
			if r.First > r.Last {
				return nil, fmt.Errorf("range %d: start page %d out of range (1-%d): %w",
					i+1, r.First, numPages, ErrPageIndexOutOfRange)
			}
		}
		if r.Last > numPages {
			return nil, fmt.Errorf("range %d: page %d out of range (1-%d): %w",
				i+1, r.Last, numPages, ErrPageIndexOutOfRange)
		}
		res[i] = r
	}
	return res, nil
}

// checkIndices verifies that all page numbers in idx are in the range
// 1, ..., numPages.
func checkIndices(idx []int, numPages int) error {
	for _, i := range idx {
		if i < 1 || i > numPages {
			return fmt.Errorf("page %d out of range (1-%d): %w",
				i, numPages, ErrPageIndexOutOfRange)
		}
	}
	return nil
}
