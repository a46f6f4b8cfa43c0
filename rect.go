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
	"math"

	"seehuhn.de/go/geom/rect"
)

var errNoRectangle = errors.New("not a valid PDF rectangle")

// GetRectangle resolves references to indirect objects and makes sure the
// resulting object is a PDF rectangle object.  The corners are normalized,
// so that LLx <= URx and LLy <= URy.
// If the object is null, nil is returned.
func GetRectangle(r Getter, obj Object) (*rect.Rect, error) {
	a, err := GetArray(r, obj)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	if len(a) != 4 {
		return nil, &MalformedFileError{Err: errNoRectangle}
	}
	var values [4]float64
	for i, obj := range a {
		values[i], err = GetNumber(r, obj)
		if err != nil {
			return nil, err
		}
	}
	return &rect.Rect{
		LLx: math.Min(values[0], values[2]),
		LLy: math.Min(values[1], values[3]),
		URx: math.Max(values[0], values[2]),
		URy: math.Max(values[1], values[3]),
	}, nil
}

// AsRectangle converts a rectangle into a PDF array.
func AsRectangle(r *rect.Rect) Array {
	res := make(Array, 0, 4)
	for _, x := range []float64{r.LLx, r.LLy, r.URx, r.URy} {
		res = append(res, number(math.Round(100*x)/100))
	}
	return res
}

// number returns x as an Integer if it has no fractional part, and as a
// Real otherwise.
func number(x float64) Object {
	if i := Integer(x); float64(i) == x {
		return i
	}
	return Real(x)
}
