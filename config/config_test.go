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

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfassemble/internal/testpdf"
	"seehuhn.de/go/pdfassemble/optimize"
	"seehuhn.de/go/pdfassemble/pages"
	"seehuhn.de/go/pdfassemble/pipeline"
)

func TestConfigErrorMessage(t *testing.T) {
	err := newConfigError("field", "message")
	if got := err.Error(); got != "config error in 'field': message" {
		t.Errorf("got %q", got)
	}
	err = newConfigError("", "general error")
	if got := err.Error(); got != "config error: general error" {
		t.Errorf("got %q", got)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Error("ConfigError does not wrap ErrConfiguration")
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	want := &Config{
		Logging: &LoggingConfig{Level: "warn", Format: "text"},
		Output:  &OutputConfig{},
	}
	if d := cmp.Diff(want, c); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
	if err := c.Validate(); err != nil {
		t.Error(err)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
producer: my tool
strict: true
logging:
  level: debug
  format: json
output:
  object-streams: true
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Producer: "my tool",
		Strict:   true,
		Logging:  &LoggingConfig{Level: "debug", Format: "json"},
		Output:   &OutputConfig{ObjectStreams: true},
	}
	if d := cmp.Diff(want, c); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
	level, err := c.Logging.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("got %v, %v", level, err)
	}
	if opt := c.Output.WriterOptions(); !opt.ObjectStreams || opt.XRefStream {
		t.Errorf("writer options %+v", opt)
	}
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(Default(), c); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"logging:\n  level: chatty\n",
		"logging:\n  format: xml\n",
		"unknown: 1\n",
		"strict: [\n",
	}
	for _, data := range cases {
		_, err := Parse([]byte(data))
		if err == nil {
			t.Errorf("%q: no error", data)
		}
	}
	_, err := Parse([]byte("logging:\n  level: chatty\n"))
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "logging.level" {
		t.Errorf("got %v", err)
	}
}

func TestParseJob(t *testing.T) {
	j, err := ParseJob([]byte(`
operation: split
inputs: [in.pdf]
output: parts
ranges: 1-3,5,8-
`))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]string{"in.pdf"}, j.InputPaths()); d != "" {
		t.Errorf("inputs (-want +got):\n%s", d)
	}

	cases := []struct {
		data  string
		field string
	}{
		{"operation: rotate\ninputs: [a]\noutput: b\n", "operation"},
		{"operation: merge\noutput: b\n", "inputs"},
		{"operation: merge\ninputs: [a, b]\n", "output"},
		{"operation: merge\ninputs: [a, b]\noutput: c\nranges: 1-2\n", "ranges"},
		{"operation: split\ninputs: [a]\noutput: c\nranges: 1-x\n", "ranges"},
		{"operation: compress\ninputs: [a]\noutput: c\nlevel: extreme\n", "level"},
		{"operation: split\ninputs: [a]\noutput: c\nlevel: low\n", "level"},
	}
	for _, c := range cases {
		_, err := ParseJob([]byte(c.data))
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Field != c.field {
			t.Errorf("%q: got %v, want error in %q", c.data, err, c.field)
		}
	}
}

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()
	in := testpdf.Build(3, nil, nil)
	err := os.WriteFile(filepath.Join(dir, "in.pdf"), in, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	jobFile := filepath.Join(dir, "job.yaml")
	err = os.WriteFile(jobFile, []byte("operation: compress\ninputs: [in.pdf]\noutput: out.pdf\nlevel: high\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	j, err := LoadJob(jobFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := j.OutputPath(); got != filepath.Join(dir, "out.pdf") {
		t.Errorf("output path %q", got)
	}
	job, err := j.Job()
	if err != nil {
		t.Fatal(err)
	}
	if job.Operation != pipeline.Recompress || job.Level != optimize.High {
		t.Errorf("got %s at level %s", job.Operation, job.Level)
	}
	if len(job.Inputs) != 1 || string(job.Inputs[0]) != string(in) {
		t.Error("input not read correctly")
	}

	j.Operation = "split"
	j.Level = ""
	j.Ranges = "2-"
	job, err = j.Job()
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]pages.Range{{First: 2, Last: pages.ToEnd}}, job.Ranges); d != "" {
		t.Errorf("ranges (-want +got):\n%s", d)
	}
}
