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
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// FilterInfo describes one entry of the /Filter chain of a stream.
type FilterInfo struct {
	Name  Name
	Parms Dict
}

// Filters returns the filters of the stream, in the order in which they
// must be applied for decoding.  The getter is used to resolve indirect
// references in the stream dictionary; it can be nil.
func (x *Stream) Filters(r Getter) ([]FilterInfo, error) {
	filter, err := Resolve(r, x.Dict["Filter"])
	if err != nil {
		return nil, err
	}
	parms, err := Resolve(r, x.Dict["DecodeParms"])
	if err != nil {
		return nil, err
	}

	var res []FilterInfo
	switch f := filter.(type) {
	case nil:
		// no filters
	case Name:
		p, _ := parms.(Dict)
		res = append(res, FilterInfo{Name: f, Parms: p})
	case Array:
		pa, _ := parms.(Array)
		for i, fi := range f {
			fi, err := Resolve(r, fi)
			if err != nil {
				return nil, err
			}
			name, ok := fi.(Name)
			if !ok {
				return nil, fmt.Errorf("invalid filter %s", Format(fi))
			}
			var p Dict
			if i < len(pa) {
				pi, err := Resolve(r, pa[i])
				if err != nil {
					return nil, err
				}
				p, _ = pi.(Dict)
			}
			res = append(res, FilterInfo{Name: name, Parms: p})
		}
	default:
		return nil, fmt.Errorf("invalid filter %s", Format(filter))
	}
	return res, nil
}

// IsFiltered reports whether the stream has a /Filter entry.
func (x *Stream) IsFiltered() bool {
	switch f := x.Dict["Filter"].(type) {
	case nil:
		return false
	case Array:
		return len(f) > 0
	}
	return true
}

// Decode returns the stream data with all filters removed.
// Image compression filters like DCTDecode are not supported.
func (x *Stream) Decode(r Getter) ([]byte, error) {
	filters, err := x.Filters(r)
	if err != nil {
		return nil, err
	}
	data := x.Data
	for _, fi := range filters {
		data, err = decodeFilter(data, fi)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func decodeFilter(data []byte, fi FilterInfo) ([]byte, error) {
	switch fi.Name {
	case "FlateDecode", "Fl":
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		res, err := io.ReadAll(zr)
		if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && len(res) > 0) {
			return nil, err
		}
		return unpredict(res, fi.Parms)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	case "RunLengthDecode", "RL":
		return runLengthDecode(data)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedFilter, fi.Name)
}

// FlateEncode compresses data using the zlib format, as used by the
// FlateDecode filter.
func FlateEncode(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	_, err = zw.Write(data)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getParm(parms Dict, key Name, def int) int {
	if x, ok := parms[key].(Integer); ok {
		return int(x)
	}
	return def
}

// unpredict reverses the TIFF and PNG predictors of the Flate filter.
func unpredict(data []byte, parms Dict) ([]byte, error) {
	predictor := getParm(parms, "Predictor", 1)
	if predictor == 1 {
		return data, nil
	}
	colors := getParm(parms, "Colors", 1)
	bpc := getParm(parms, "BitsPerComponent", 8)
	columns := getParm(parms, "Columns", 1)
	if colors < 1 || colors > 32 || bpc < 1 || bpc > 16 || columns < 1 || columns > 1<<20 {
		return nil, errors.New("invalid predictor parameters")
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8

	if predictor == 2 {
		if bpc != 8 {
			return nil, fmt.Errorf("TIFF predictor with %d bits per component not supported", bpc)
		}
		res := bytes.Clone(data)
		for row := 0; row+rowLen <= len(res); row += rowLen {
			for i := row + bpp; i < row+rowLen; i++ {
				res[i] += res[i-bpp]
			}
		}
		return res, nil
	}
	if predictor < 10 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}

	res := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	for len(data) >= 1+rowLen {
		tp := data[0]
		row := bytes.Clone(data[1 : 1+rowLen])
		data = data[1+rowLen:]
		switch tp {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := range row {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := range row {
				var left int
				if i >= bpp {
					left = int(row[i-bpp])
				}
				row[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := range row {
				var a, c int
				if i >= bpp {
					a = int(row[i-bpp])
					c = int(prev[i-bpp])
				}
				row[i] += paeth(a, int(prev[i]), c)
			}
		default:
			return nil, fmt.Errorf("invalid PNG filter type %d", tp)
		}
		res = append(res, row...)
		prev = row
	}
	return res, nil
}

func paeth(a, b, c int) byte {
	p := a + b - c
	pa := abs(p - a)
	pb := abs(p - b)
	pc := abs(p - c)
	if pa <= pb && pa <= pc {
		return byte(a)
	} else if pb <= pc {
		return byte(b)
	}
	return byte(c)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func asciiHexDecode(data []byte) ([]byte, error) {
	res := make([]byte, 0, len(data)/2)
	var hi byte
	half := false
	for _, c := range data {
		if c == '>' {
			break
		}
		if isSpace[c] {
			continue
		}
		v, ok := hexVal(c)
		if !ok {
			return nil, fmt.Errorf("invalid character %q in ASCIIHex data", c)
		}
		if half {
			res = append(res, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		res = append(res, hi<<4)
	}
	return res, nil
}

func ascii85Decode(data []byte) ([]byte, error) {
	res := make([]byte, 0, len(data)*4/5)
	var val uint64
	n := 0
	for _, c := range data {
		if c == '~' {
			break
		}
		switch {
		case isSpace[c]:
			continue
		case c == 'z' && n == 0:
			res = append(res, 0, 0, 0, 0)
			continue
		case c < '!' || c > 'u':
			return nil, fmt.Errorf("invalid character %q in ASCII85 data", c)
		}
		val = val*85 + uint64(c-'!')
		n++
		if n == 5 {
			if val > 0xFFFFFFFF {
				return nil, errors.New("invalid ASCII85 group")
			}
			res = append(res, byte(val>>24), byte(val>>16), byte(val>>8), byte(val))
			val = 0
			n = 0
		}
	}
	switch {
	case n == 1:
		return nil, errors.New("truncated ASCII85 data")
	case n > 1:
		for k := n; k < 5; k++ {
			val = val*85 + 84
		}
		if val > 0xFFFFFFFF {
			return nil, errors.New("invalid ASCII85 group")
		}
		tail := []byte{byte(val >> 24), byte(val >> 16), byte(val >> 8), byte(val)}
		res = append(res, tail[:n-1]...)
	}
	return res, nil
}

func runLengthDecode(data []byte) ([]byte, error) {
	var res []byte
	for len(data) > 0 {
		b := int(data[0])
		data = data[1:]
		switch {
		case b == 128:
			return res, nil
		case b < 128:
			if len(data) < b+1 {
				return nil, errors.New("truncated RunLength data")
			}
			res = append(res, data[:b+1]...)
			data = data[b+1:]
		default:
			if len(data) < 1 {
				return nil, errors.New("truncated RunLength data")
			}
			res = append(res, bytes.Repeat(data[:1], 257-b)...)
			data = data[1:]
		}
	}
	return res, nil
}
