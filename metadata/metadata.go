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

// Package metadata records the producing application and modification date
// in PDF documents.
//
// Both places where PDF files store document metadata are updated: the
// document information dictionary in the trailer, and the XMP metadata
// stream referenced from the document catalog.
package metadata

import (
	"bytes"
	"time"

	"seehuhn.de/go/xmp"

	pdf "seehuhn.de/go/pdfassemble"
)

// PDF 2.0 sections: 14.3.2 14.3.3

// Stamp describes the metadata written by [Apply].
type Stamp struct {
	// Producer is the name of the application which wrote the file.
	Producer string

	// ModDate is the modification date.  If this is the zero time, the
	// current time is used.
	ModDate time.Time
}

// pdfNS is the XMP namespace for PDF properties.
type pdfNS struct {
	_        xmp.Namespace `xmp:"http://ns.adobe.com/pdf/1.3/"`
	_        xmp.Prefix    `xmp:"pdf"`
	Producer xmp.AgentName
}

// basicNS is the XMP basic namespace.
type basicNS struct {
	_            xmp.Namespace `xmp:"http://ns.adobe.com/xap/1.0/"`
	_            xmp.Prefix    `xmp:"xmp"`
	CreateDate   xmp.Date
	ModifyDate   xmp.Date
	MetadataDate xmp.Date
}

// Apply updates the document information dictionary and the XMP metadata
// of doc.  Existing entries which are not covered by the stamp are kept.
// The document version is raised to PDF 1.4 if needed.
func Apply(doc *pdf.Document, s *Stamp) error {
	modDate := s.ModDate
	if modDate.IsZero() {
		modDate = time.Now()
	}
	modDate = modDate.Round(time.Second)

	err := updateInfo(doc, s.Producer, modDate)
	if err != nil {
		return err
	}
	err = updateXMP(doc, s.Producer, modDate)
	if err != nil {
		return err
	}
	doc.Version = max(doc.Version, pdf.V1_4)
	return nil
}

func updateInfo(doc *pdf.Document, producer string, modDate time.Time) error {
	info, err := pdf.GetDict(doc, doc.Info())
	if err != nil {
		return err
	}
	if info == nil {
		info = pdf.Dict{}
		doc.SetInfo(doc.Insert(info))
	} else if _, isRef := doc.Info().(pdf.Reference); !isRef {
		doc.SetInfo(info)
	}

	if producer != "" {
		info["Producer"] = pdf.TextString(producer)
	}
	info["ModDate"] = pdf.Date(modDate)
	if info["CreationDate"] == nil {
		info["CreationDate"] = pdf.Date(modDate)
	}
	return nil
}

func updateXMP(doc *pdf.Document, producer string, modDate time.Time) error {
	catalog, err := doc.CatalogDict()
	if err != nil {
		return err
	}

	packet := Read(doc, catalog["Metadata"])
	if packet == nil {
		packet = xmp.NewPacket()
	}

	basic := &basicNS{}
	packet.Get(basic)
	if basic.CreateDate.V.IsZero() {
		basic.CreateDate = xmp.NewDate(modDate)
	}
	basic.ModifyDate = xmp.NewDate(modDate)
	basic.MetadataDate = xmp.NewDate(modDate)

	pdfInfo := &pdfNS{}
	packet.Get(pdfInfo)
	if producer != "" {
		pdfInfo.Producer = xmp.NewAgentName(producer)
	}

	err = packet.Set(basic, pdfInfo)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	err = packet.Write(buf, &xmp.PacketOptions{Pretty: true})
	if err != nil {
		return err
	}

	// Metadata streams are stored uncompressed, so that they can be found
	// by tools which do not understand PDF.
	stm := &pdf.Stream{
		Dict: pdf.Dict{
			"Type":    pdf.Name("Metadata"),
			"Subtype": pdf.Name("XML"),
		},
		Data: buf.Bytes(),
	}
	if ref, ok := catalog["Metadata"].(pdf.Reference); ok {
		doc.Put(ref, stm)
	} else {
		catalog["Metadata"] = doc.Insert(stm)
	}
	return nil
}

// Read returns the XMP packet stored in the metadata stream obj.  If obj
// is not a readable XMP metadata stream, nil is returned.
func Read(doc *pdf.Document, obj pdf.Object) *xmp.Packet {
	stm, err := pdf.GetStream(doc, obj)
	if err != nil || stm == nil {
		return nil
	}
	data, err := stm.Decode(doc)
	if err != nil {
		return nil
	}
	packet, err := xmp.Read(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return packet
}
