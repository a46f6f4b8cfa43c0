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

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"seehuhn.de/go/pdfassemble/pipeline"
)

// progressBar shows the progress of a job on a terminal.  If the output is
// not a terminal, nothing is shown.
type progressBar struct {
	w       io.Writer
	width   int
	enabled bool
	shown   bool
}

func newProgressBar(f *os.File) *progressBar {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return &progressBar{w: f}
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width < 40 {
		width = 80
	}
	return &progressBar{w: f, width: width, enabled: true}
}

// Show redraws the progress bar.
func (b *progressBar) Show(p pipeline.Progress) {
	if !b.enabled || p.State == pipeline.Idle {
		return
	}
	label := fmt.Sprintf("%-13s", p.State.String())
	suffix := fmt.Sprintf(" %3.0f%%", p.Percent)
	n := b.width - len(label) - len(suffix) - 3
	filled := int(float64(n) * p.Percent / 100)
	filled = min(max(filled, 0), n)
	fmt.Fprintf(b.w, "\r%s[%s%s]%s",
		label, strings.Repeat("=", filled), strings.Repeat(" ", n-filled), suffix)
	b.shown = true
}

// Finish draws the final state and moves to a new line.
func (b *progressBar) Finish(p pipeline.Progress) {
	if !b.shown {
		return
	}
	b.Show(p)
	fmt.Fprintln(b.w)
}
