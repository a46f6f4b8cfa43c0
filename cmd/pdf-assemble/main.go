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

// Pdf-assemble merges, splits and recompresses PDF files.
//
// Usage:
//
//	pdf-assemble [-config file] [-v] merge [-f] -o out.pdf in1.pdf in2.pdf ...
//	pdf-assemble [-config file] [-v] split [-f] [-r 1-3,5,8-] [-o dir] in.pdf
//	pdf-assemble [-config file] [-v] compress [-f] [-level low|medium|high] -o out.pdf in.pdf
//	pdf-assemble [-config file] [-v] run job.yaml
//	pdf-assemble -version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"seehuhn.de/go/pdfassemble/config"
	"seehuhn.de/go/pdfassemble/internal/buildinfo"
	"seehuhn.de/go/pdfassemble/optimize"
	"seehuhn.de/go/pdfassemble/pages"
	"seehuhn.de/go/pdfassemble/pipeline"
)

const toolName = "pdf-assemble"

func main() {
	configFile := flag.String("config", "", "read settings from `file`")
	verbose := flag.Bool("v", false, "show debug messages")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Producer(toolName))
		return
	}
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	err := run(flag.Args(), *configFile, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", toolName, err)
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [options] command [arguments]\n\n", toolName)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  merge     concatenate the pages of several PDF files")
	fmt.Fprintln(out, "  split     write page ranges to separate PDF files")
	fmt.Fprintln(out, "  compress  reduce the size of a PDF file")
	fmt.Fprintln(out, "  run       execute a job file")
	fmt.Fprintln(out, "\nOptions:")
	flag.PrintDefaults()
}

// app holds the state shared by all commands.
type app struct {
	log  *slog.Logger
	ctrl *pipeline.Controller
}

func run(args []string, configFile string, verbose bool) error {
	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	producer := cfg.Producer
	if producer == "" {
		producer = buildinfo.Producer(toolName)
	}
	a := &app{
		log: logger,
		ctrl: &pipeline.Controller{
			Logger:   logger,
			Producer: producer,
			Strict:   cfg.Strict,
			Output:   cfg.Output.WriterOptions(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := args[0], args[1:]
	switch cmd {
	case "merge":
		return a.merge(ctx, args)
	case "split":
		return a.split(ctx, args)
	case "compress":
		return a.compress(ctx, args)
	case "run":
		return a.runJobFile(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(c *config.LoggingConfig) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if c.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h), nil
}

func (a *app) merge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	out := fs.String("o", "", "output file name")
	force := fs.Bool("f", false, "overwrite existing output files")
	fs.Parse(args)
	if *out == "" {
		return errors.New("merge: no output file given")
	}

	job, err := readInputs(pipeline.Merge, fs.Args())
	if err != nil {
		return err
	}
	return a.execute(ctx, job, *out, *force)
}

func (a *app) split(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	rangeSpec := fs.String("r", "", "page ranges, e.g. 1-3,5,8- (default: every page)")
	out := fs.String("o", ".", "output directory")
	force := fs.Bool("f", false, "overwrite existing output files")
	fs.Parse(args)

	var ranges []pages.Range
	if *rangeSpec != "" {
		var err error
		ranges, err = pages.ParseRanges(*rangeSpec)
		if err != nil {
			return err
		}
	}
	job, err := readInputs(pipeline.Split, fs.Args())
	if err != nil {
		return err
	}
	job.Ranges = ranges
	return a.execute(ctx, job, *out, *force)
}

func (a *app) compress(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	levelName := fs.String("level", "medium", "compression level (low, medium or high)")
	out := fs.String("o", "", "output file name")
	force := fs.Bool("f", false, "overwrite existing output files")
	fs.Parse(args)
	if *out == "" {
		return errors.New("compress: no output file given")
	}

	level, err := optimize.ParseLevel(*levelName)
	if err != nil {
		return err
	}
	job, err := readInputs(pipeline.Recompress, fs.Args())
	if err != nil {
		return err
	}
	job.Level = level
	return a.execute(ctx, job, *out, *force)
}

func (a *app) runJobFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("run: expected exactly one job file")
	}
	jf, err := config.LoadJob(args[0])
	if err != nil {
		return err
	}
	job, err := jf.Job()
	if err != nil {
		return err
	}
	return a.execute(ctx, job, jf.OutputPath(), true)
}

func readInputs(op pipeline.Operation, names []string) (*pipeline.Job, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: no input files given", op)
	}
	job := &pipeline.Job{Operation: op}
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		job.Inputs = append(job.Inputs, data)
	}
	return job, nil
}

// execute runs a job and writes the results.  For split jobs, out is a
// directory, otherwise it is a file name.
func (a *app) execute(ctx context.Context, job *pipeline.Job, out string, force bool) error {
	bar := newProgressBar(os.Stderr)
	start := time.Now()
	h := a.ctrl.Start(ctx, job, nil)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-h.Done():
			break wait
		case <-ticker.C:
			bar.Show(h.Progress())
		}
	}
	res, err := h.Wait()
	bar.Finish(h.Progress())
	if err != nil {
		return err
	}
	a.log.Debug("job finished",
		"op", job.Operation.String(),
		"outputs", len(res.Outputs),
		"elapsed", time.Since(start))

	if job.Operation != pipeline.Split {
		return writeFile(out, res.Outputs[0], force)
	}

	err = os.MkdirAll(out, 0o755)
	if err != nil {
		return err
	}
	for i, data := range res.Outputs {
		name := filepath.Join(out, fmt.Sprintf("%s-%03d.pdf", splitBase(job), i+1))
		err := writeFile(name, data, force)
		if err != nil {
			return err
		}
	}
	return nil
}

func splitBase(job *pipeline.Job) string {
	if len(job.Ranges) == 0 {
		return "page"
	}
	return "part"
}

func writeFile(name string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(name); !os.IsNotExist(err) {
			return fmt.Errorf("output file %q already exists", name)
		}
	}
	return os.WriteFile(name, data, 0o644)
}
