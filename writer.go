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
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// objStmSize is the maximum number of objects stored in one object stream.
const objStmSize = 100

// WriterOptions control how a document is serialized.
type WriterOptions struct {
	// Version is the minimum PDF version of the output.  The version
	// written is the maximum of this, the document version, and the
	// version required by the selected features.
	Version Version

	// ObjectStreams enables packing of non-stream objects into object
	// streams.  This implies XRefStream.
	ObjectStreams bool

	// XRefStream selects a cross-reference stream instead of a classic
	// cross-reference table.
	XRefStream bool
}

// posWriter counts the bytes written, so that the byte offsets of objects
// are known exactly.  All output is also fed into a hash, which is used to
// derive the file identifier.
type posWriter struct {
	w    io.Writer
	pos  int64
	hash hash.Hash
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	w.hash.Write(p[:n])
	return n, err
}

type writer struct {
	w    *posWriter
	xref map[uint32]*xRefEntry

	// size is one more than the largest object number used in the file
	size uint32
}

// Write serializes the document as a complete PDF file.  All objects of
// the document are written, in order of increasing object number.
func (d *Document) Write(w io.Writer, opt *WriterOptions) error {
	if opt == nil {
		opt = &WriterOptions{}
	}
	err := d.LoadAll()
	if err != nil {
		return err
	}

	useXRefStream := opt.XRefStream || opt.ObjectStreams
	version := max(d.Version, opt.Version, V1_0)
	if useXRefStream {
		version = max(version, V1_5)
	}
	versionString, err := version.ToString()
	if err != nil {
		return err
	}

	h, err := blake2b.New(16, nil)
	if err != nil {
		return err
	}
	wr := &writer{
		w:    &posWriter{w: w, hash: h},
		xref: make(map[uint32]*xRefEntry),
	}

	_, err = fmt.Fprintf(wr.w, "%%PDF-%s\n%%\x80\x80\x80\x80\n", versionString)
	if err != nil {
		return err
	}

	refs := d.Refs()
	next := uint32(1)
	if len(refs) > 0 {
		next = refs[len(refs)-1].Number() + 1
	}

	var batch []Reference
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stmRef := NewReference(next, 0)
		next++
		err := wr.writeObjectStream(stmRef, batch, d.objects)
		batch = batch[:0]
		return err
	}
	for _, ref := range refs {
		obj := d.objects[ref]
		if _, isStream := obj.(*Stream); opt.ObjectStreams && !isStream && ref.Generation() == 0 {
			batch = append(batch, ref)
			if len(batch) >= objStmSize {
				err = flush()
				if err != nil {
					return err
				}
			}
			continue
		}
		err = wr.writeIndirect(ref, obj)
		if err != nil {
			return err
		}
	}
	err = flush()
	if err != nil {
		return err
	}

	trailer := Dict{
		"Root": d.catalog,
		"Info": d.info,
	}
	newID := String(wr.w.hash.Sum(nil))
	if len(d.ID) == 2 {
		trailer["ID"] = Array{String(d.ID[0]), newID}
	} else {
		trailer["ID"] = Array{newID, newID}
	}

	if useXRefStream {
		wr.size = next + 1
		trailer["Size"] = Integer(wr.size)
		return wr.writeXRefStream(trailer)
	}
	wr.size = next
	trailer["Size"] = Integer(wr.size)
	return wr.writeXRefTable(trailer)
}

// Bytes returns the serialized document.
func (d *Document) Bytes(opt *WriterOptions) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := d.Write(buf, opt)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (wr *writer) writeIndirect(ref Reference, obj Object) error {
	wr.xref[ref.Number()] = &xRefEntry{
		Pos:        wr.w.pos,
		Generation: ref.Generation(),
	}
	_, err := fmt.Fprintf(wr.w, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}
	err = writeObject(wr.w, obj)
	if err != nil {
		return err
	}
	_, err = io.WriteString(wr.w, "\nendobj\n")
	return err
}

// writeObjectStream packs the given objects into a compressed object
// stream with reference stmRef.
func (wr *writer) writeObjectStream(stmRef Reference, refs []Reference, objects map[Reference]Object) error {
	head := &bytes.Buffer{}
	body := &bytes.Buffer{}
	for i, ref := range refs {
		if i > 0 {
			body.WriteByte('\n')
		}
		fmt.Fprintf(head, "%d %d ", ref.Number(), body.Len())
		err := writeObject(body, objects[ref])
		if err != nil {
			return err
		}
		wr.xref[ref.Number()] = &xRefEntry{
			Pos:      int64(i),
			InStream: stmRef.Number(),
		}
	}

	data, err := FlateEncode(append(head.Bytes(), body.Bytes()...))
	if err != nil {
		return err
	}
	stm := &Stream{
		Dict: Dict{
			"Type":   Name("ObjStm"),
			"N":      Integer(len(refs)),
			"First":  Integer(head.Len()),
			"Filter": Name("FlateDecode"),
		},
		Data: data,
	}
	return wr.writeIndirect(stmRef, stm)
}
