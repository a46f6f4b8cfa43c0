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
)

// Getter gives access to the indirect objects of a PDF document.
// Get returns nil for references to objects which do not exist.
type Getter interface {
	Get(Reference) (Object, error)
}

// maxIndirection limits the length of reference chains followed by
// [Resolve].
const maxIndirection = 16

// Resolve follows obj through any chain of indirect references and returns
// the first object which is not a [Reference].  Other objects are returned
// unchanged.  With a nil Getter every reference resolves to null, as does a
// reference to a missing object.
func Resolve(r Getter, obj Object) (Object, error) {
	start, ok := obj.(Reference)
	if !ok {
		return obj, nil
	}
	if r == nil {
		return nil, nil
	}
	ref := start
	for range maxIndirection {
		next, err := r.Get(ref)
		if err != nil {
			return nil, err
		}
		if ref, ok = next.(Reference); !ok {
			return next, nil
		}
	}
	return nil, &MalformedFileError{
		Err: errors.New("too many levels of indirection"),
		Loc: []string{"object " + start.String()},
	}
}

// getAs resolves obj and checks that the result has type T.
// Null gives the zero value of T.
func getAs[T Object](r Getter, obj Object) (T, error) {
	var zero T
	obj, err := Resolve(r, obj)
	if err != nil || obj == nil {
		return zero, err
	}
	if x, ok := obj.(T); ok {
		return x, nil
	}
	return zero, &MalformedFileError{
		Err: fmt.Errorf("expected %T but got %T", zero, obj),
	}
}

// Typed accessors.  These resolve references first, map null to the zero
// value, and return a [MalformedFileError] on a type mismatch.
var (
	GetArray  = getAs[Array]
	GetBool   = getAs[Bool]
	GetDict   = getAs[Dict]
	GetInt    = getAs[Integer]
	GetName   = getAs[Name]
	GetStream = getAs[*Stream]
	GetString = getAs[String]
)

// GetNumber resolves obj and returns its value as a float64.
// Both [Integer] and [Real] objects are accepted.
func GetNumber(r Getter, obj Object) (float64, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case Integer:
		return float64(x), nil
	case Real:
		return float64(x), nil
	case nil:
		return 0, nil
	}
	return 0, &MalformedFileError{
		Err: fmt.Errorf("expected number but got %T", obj),
	}
}

// DictType returns the /Type entry of a dictionary or stream, or the empty
// name if there is none.
func DictType(obj Object) Name {
	switch x := obj.(type) {
	case Dict:
		tp, _ := x["Type"].(Name)
		return tp
	case *Stream:
		tp, _ := x.Dict["Type"].(Name)
		return tp
	}
	return ""
}
