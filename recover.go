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
	"fmt"
	"regexp"
)

var (
	whiteSpacePat = `[\000\011\012\014\015 ]+`
	objectPat     = `([0-9]{1,10})` + whiteSpacePat + `([0-9]{1,5})` + whiteSpacePat + `obj`
	markerPat     = `(?:^|[\000\011\012\014\015 ])(?:` + objectPat + `|(trailer))\b`
	markerRegexp  = regexp.MustCompile(markerPat)
)

// reconstructXRef rebuilds the cross-reference information by scanning the
// whole file for "N G obj" headers and trailer dictionaries.  If an object
// number occurs more than once, the definition closest to the end of the
// file wins.  Members of object streams are indexed as well.
//
// The /Root of the last trailer is used if it refers to a catalog found
// by the scan.  Otherwise the last catalog in the file is used.
func reconstructXRef(buf []byte) (*xRefTable, error) {
	xref := &xRefTable{
		entries: make(map[uint32]*xRefEntry),
		trailer: Dict{},
	}

	var catalogs []Reference
	var trailers []Dict
	catalogAt := make(map[uint32]xRefEntry)

	// Candidates inside an object which was already parsed are skipped.
	// This avoids false matches in binary stream data.
	skipUntil := int64(-1)
	for _, m := range markerRegexp.FindAllSubmatchIndex(buf, -1) {
		if m[2] >= 0 {
			pos := int64(m[2])
			if pos < skipUntil {
				continue
			}
			p := newParser(buf, pos)
			ref, obj, err := p.ReadIndirectObject()
			if err != nil {
				continue
			}
			skipUntil = p.lex.Pos()

			num := ref.Number()
			switch DictType(obj) {
			case "XRef":
				if stm, ok := obj.(*Stream); ok {
					xref.streams = append(xref.streams, ref)
					trailers = append(trailers, stm.Dict)
					continue
				}
			case "ObjStm":
				stm, ok := obj.(*Stream)
				if !ok {
					break
				}
				index, err := parseObjStm(stm, nil)
				if err != nil {
					break
				}
				xref.entries[num] = &xRefEntry{Pos: pos, Generation: ref.Generation()}
				for idx, member := range index.numbers {
					entry := &xRefEntry{Pos: int64(idx), InStream: num}
					xref.entries[member] = entry
					if mObj, err := index.object(idx); err == nil && isCatalog(mObj) {
						catalogs = append(catalogs, NewReference(member, 0))
						catalogAt[member] = *entry
					}
				}
				continue
			case "Catalog":
				if isCatalog(obj) {
					catalogs = append(catalogs, ref)
					catalogAt[num] = xRefEntry{Pos: pos, Generation: ref.Generation()}
				}
			}
			xref.entries[num] = &xRefEntry{Pos: pos, Generation: ref.Generation()}
		} else if m[6] >= 0 {
			pos := int64(m[7])
			if pos < skipUntil {
				continue
			}
			p := newParser(buf, pos)
			obj, err := p.ReadObject()
			if dict, ok := obj.(Dict); err == nil && ok {
				trailers = append(trailers, dict)
			}
		}
	}

	if len(xref.entries) == 0 {
		return nil, fmt.Errorf("%w: no objects found", ErrUnrecoverableStructure)
	}

	for _, dict := range trailers {
		if dict["Encrypt"] != nil {
			xref.trailer["Encrypt"] = dict["Encrypt"]
		}
	}
	// usable reports whether ref points at the surviving definition of a
	// catalog seen during the scan.
	usable := func(ref Reference) bool {
		entry := xref.entries[ref.Number()]
		want, ok := catalogAt[ref.Number()]
		if !ok || entry.IsFree() || *entry != want {
			return false
		}
		return entry.InStream != 0 || entry.Generation == ref.Generation()
	}

	for i := len(trailers) - 1; i >= 0; i-- {
		dict := trailers[i]
		root, ok := dict["Root"].(Reference)
		if !ok || !usable(root) {
			continue
		}
		for _, key := range []Name{"Root", "Info", "ID"} {
			if val, ok := dict[key]; ok {
				xref.trailer[key] = val
			}
		}
		break
	}
	if xref.trailer["Root"] == nil {
		for i := len(catalogs) - 1; i >= 0; i-- {
			if usable(catalogs[i]) {
				xref.trailer["Root"] = catalogs[i]
				break
			}
		}
		if len(trailers) > 0 {
			last := trailers[len(trailers)-1]
			for _, key := range []Name{"Info", "ID"} {
				if val, ok := last[key]; ok {
					xref.trailer[key] = val
				}
			}
		}
	}
	if xref.trailer["Root"] == nil {
		return nil, fmt.Errorf("%w: no document catalog found", ErrUnrecoverableStructure)
	}

	return xref, nil
}

func isCatalog(obj Object) bool {
	dict, ok := obj.(Dict)
	return ok && dict["Type"] == Name("Catalog") && dict["Pages"] != nil
}
