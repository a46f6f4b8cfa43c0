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
	"slices"
	"strconv"
)

// Version identifies a revision of the PDF file format.
type Version int

// The PDF versions known to the assembler.  The zero value is not a valid
// version.
const (
	_ Version = iota
	V1_0
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
)

// versionNames is indexed by Version.
var versionNames = []string{"", "1.0", "1.1", "1.2", "1.3", "1.4", "1.5", "1.6", "1.7", "2.0"}

// ParseVersion converts a version string as found in the file header or in
// the catalog's /Version entry, e.g. "1.7", into a Version.
func ParseVersion(s string) (Version, error) {
	idx := slices.Index(versionNames, s)
	if idx <= 0 {
		return 0, errVersion
	}
	return Version(idx), nil
}

// ToString returns the header form of ver, e.g. "1.7".
// An error is returned for values outside V1_0 to V2_0.
func (ver Version) ToString() (string, error) {
	if ver < V1_0 || ver > V2_0 {
		return "", errVersion
	}
	return versionNames[ver], nil
}

func (ver Version) String() string {
	if s, err := ver.ToString(); err == nil {
		return s
	}
	return "pdf.Version(" + strconv.Itoa(int(ver)) + ")"
}

var errVersion = errors.New("unsupported PDF version")
