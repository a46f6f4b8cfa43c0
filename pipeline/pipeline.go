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

// Package pipeline runs merge, split and recompress jobs on PDF files held
// in memory.
//
// A [Controller] takes a [Job], parses the input buffers, applies the
// requested operation and serializes the resulting documents.  Progress is
// reported through a [Reporter], and jobs can be cancelled via their
// context.  A job either returns all of its output buffers, or none.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pdf "seehuhn.de/go/pdfassemble"
	"seehuhn.de/go/pdfassemble/metadata"
	"seehuhn.de/go/pdfassemble/optimize"
	"seehuhn.de/go/pdfassemble/pages"
)

// Operation is the kind of work performed by a job.
type Operation int

// These are the supported operations.
const (
	Merge Operation = iota + 1
	Split
	Recompress
)

func (op Operation) String() string {
	switch op {
	case Merge:
		return "merge"
	case Split:
		return "split"
	case Recompress:
		return "compress"
	default:
		return fmt.Sprintf("Operation(%d)", int(op))
	}
}

// ParseOperation converts an operation name into an Operation.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "merge":
		return Merge, nil
	case "split":
		return Split, nil
	case "compress", "recompress":
		return Recompress, nil
	}
	return 0, fmt.Errorf("%w: unknown operation %q", errInvalidJob, s)
}

// Job describes one unit of work.
type Job struct {
	Operation Operation

	// Inputs holds the contents of the input files.  Merge jobs need at
	// least two inputs, the other operations exactly one.
	Inputs [][]byte

	// Ranges selects the pages for the outputs of a Split job.  If this is
	// empty, every page is written to a separate output.
	Ranges []pages.Range

	// Level is the compression level for Recompress jobs.  The zero value
	// selects [optimize.Medium].
	Level optimize.Level
}

// Result holds the outcome of a successful job.
type Result struct {
	// Outputs contains one complete PDF file for each output document.
	Outputs [][]byte

	// Recovered lists the indices of the inputs for which the
	// cross-reference information had to be reconstructed.
	Recovered []int

	// Repairs is the total number of page tree entries which were fixed
	// while loading the inputs.
	Repairs int

	// Stats is set for Recompress jobs.
	Stats *optimize.Stats
}

// Controller runs jobs.  The zero value is ready to use.  A Controller
// may be used by several goroutines at the same time.
type Controller struct {
	// Logger receives log messages.  If this is nil, no messages are
	// logged.
	Logger *slog.Logger

	// Producer is recorded in the metadata of all output documents.
	Producer string

	// Strict disables the reconstruction of damaged cross-reference
	// tables.
	Strict bool

	// Output controls how the results of Merge and Split jobs are written.
	// Recompress jobs use the options of their compression level.
	Output *pdf.WriterOptions

	// Now, if set, replaces time.Now for the modification dates of the
	// output documents.
	Now func() time.Time
}

// Handle refers to a job started using [Controller.Start].
type Handle struct {
	cancel  context.CancelFunc
	tracker *Tracker
	done    chan struct{}

	res *Result
	err error
}

// Start runs a job in a new goroutine.  Progress updates are sent both to
// rep (if not nil) and to the returned Handle.
func (c *Controller) Start(ctx context.Context, job *Job, rep Reporter) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel:  cancel,
		tracker: &Tracker{},
		done:    make(chan struct{}),
	}
	var r Reporter = h.tracker
	if rep != nil {
		r = multiReporter{h.tracker, rep}
	}
	go func() {
		defer close(h.done)
		defer cancel()
		h.res, h.err = c.Run(ctx, job, r)
	}()
	return h
}

// Cancel requests cancellation of the job.  The job stops at the next page
// boundary.
func (h *Handle) Cancel() {
	h.cancel()
}

// Progress returns the most recent progress of the job.
func (h *Handle) Progress() Progress {
	return h.tracker.Progress()
}

// Done returns a channel which is closed once the job has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait waits for the job to finish and returns its result.
func (h *Handle) Wait() (*Result, error) {
	<-h.done
	return h.res, h.err
}

// Run executes a job and returns the result.  If the job fails, the
// returned error is of type *[Error].
//
// Jobs with invalid parameters are rejected before they leave the Idle
// state, and rep receives no updates for them.  All other failures end
// in the Failed state.
func (c *Controller) Run(ctx context.Context, job *Job, rep Reporter) (*Result, error) {
	r := &run{
		Controller: c,
		ctx:        ctx,
		job:        job,
		log:        c.logger().With("op", job.Operation.String()),
		progress:   &progress{rep: rep},
		res:        &Result{},
	}
	if err := r.validate(); err != nil {
		e := newError(err, -1)
		r.log.Warn("job rejected", "kind", e.Kind.String(), "input", e.Input, "err", e.Err)
		return nil, e
	}
	err := r.execute()
	if err != nil {
		e := newError(err, -1)
		r.log.Warn("job failed",
			"kind", e.Kind.String(), "input", e.Input, "err", e.Err)
		r.progress.set(Failed, r.progress.percent)
		return nil, e
	}
	r.setState(Done, 100)
	return r.res, nil
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// run holds the state of a single job.
type run struct {
	*Controller
	ctx      context.Context
	job      *Job
	log      *slog.Logger
	progress *progress
	res      *Result

	docs []*pdf.Document
}

func (r *run) setState(state State, percent float64) {
	if state != r.progress.state {
		r.log.Debug("state change",
			"from", r.progress.state.String(), "to", state.String())
	}
	r.progress.set(state, percent)
}

// checkCancel returns a non-nil error if the job has been cancelled.
func (r *run) checkCancel() error {
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

func (r *run) execute() error {
	r.setState(Loading, 0)
	err := r.load()
	if err != nil {
		return err
	}

	r.setState(Transforming, 10)
	outputs, opt, err := r.transform()
	if err != nil {
		return err
	}

	r.setState(Serializing, 90)
	return r.serialize(outputs, opt)
}

// validate checks the job parameters before any input is parsed.
func (r *run) validate() error {
	job := r.job
	switch job.Operation {
	case Merge:
		if len(job.Inputs) < 2 {
			return pages.ErrEmptyMergeSet
		}
	case Split:
		if len(job.Inputs) != 1 {
			return fmt.Errorf("%w: split needs one input, got %d",
				errInvalidJob, len(job.Inputs))
		}
		if len(job.Ranges) > 0 {
			err := pages.ValidateRanges(job.Ranges)
			if err != nil {
				return err
			}
		}
	case Recompress:
		if len(job.Inputs) != 1 {
			return fmt.Errorf("%w: compress needs one input, got %d",
				errInvalidJob, len(job.Inputs))
		}
		if job.Level != 0 && (job.Level < optimize.Low || job.Level > optimize.High) {
			return fmt.Errorf("%w: invalid compression level %d",
				errInvalidJob, int(job.Level))
		}
	default:
		return fmt.Errorf("%w: unknown operation %d", errInvalidJob, int(job.Operation))
	}

	for i, buf := range job.Inputs {
		if !bytes.HasPrefix(buf, []byte("%PDF-")) {
			return &Error{Kind: MalformedSyntax, Input: i, Err: pdf.ErrNoPDF}
		}
	}
	return nil
}

// load parses all input buffers.
func (r *run) load() error {
	n := len(r.job.Inputs)
	ropt := &pdf.ReaderOptions{Strict: r.Strict}
	for i, buf := range r.job.Inputs {
		if err := r.checkCancel(); err != nil {
			return err
		}

		doc, err := pdf.Read(buf, ropt)
		if err != nil {
			return newError(err, i)
		}
		if doc.Recovered {
			r.log.Info("cross-reference table reconstructed", "input", i)
			r.res.Recovered = append(r.res.Recovered, i)
		}
		repairs, err := doc.RepairPageTree()
		if err != nil {
			return newError(err, i)
		}
		if repairs > 0 {
			r.log.Info("page tree repaired", "input", i, "repairs", repairs)
			r.res.Repairs += repairs
		}

		r.docs = append(r.docs, doc)
		r.setState(Loading, 10*float64(i+1)/float64(n))
	}
	return nil
}

// transform applies the operation of the job to the loaded documents.
func (r *run) transform() ([]*pdf.Document, *pdf.WriterOptions, error) {
	switch r.job.Operation {
	case Merge:
		total := 0
		for i, doc := range r.docs {
			n, err := doc.NumPages()
			if err != nil {
				return nil, nil, newError(err, i)
			}
			total += n
		}
		out, err := pages.Merge(r.docs, &pages.Options{AfterPage: r.pageDone(total)})
		if err != nil {
			return nil, nil, err
		}
		r.log.Debug("merged", "inputs", len(r.docs), "pages", total)
		return []*pdf.Document{out}, r.Output, nil

	case Split:
		doc := r.docs[0]
		numPages, err := doc.NumPages()
		if err != nil {
			return nil, nil, newError(err, 0)
		}
		ranges := r.job.Ranges
		if len(ranges) == 0 {
			ranges = pages.EachPage(numPages)
		}
		ranges, err = pages.ResolveRanges(ranges, numPages)
		if err != nil {
			return nil, nil, newError(err, 0)
		}
		total := 0
		for _, rr := range ranges {
			total += rr.Len()
		}
		out, err := pages.Split(doc, ranges, &pages.Options{AfterPage: r.pageDone(total)})
		if err != nil {
			return nil, nil, newError(err, 0)
		}
		r.log.Debug("split", "outputs", len(out), "pages", total)
		return out, r.Output, nil

	case Recompress:
		level := r.job.Level
		if level == 0 {
			level = optimize.Medium
		}
		opt := &optimize.Options{
			Step: func(done, total int) error {
				if err := r.checkCancel(); err != nil {
					return err
				}
				r.setState(Transforming, 10+80*float64(done)/float64(total))
				return nil
			},
		}
		out, stats, err := optimize.Recompress(r.docs[0], level, opt)
		if err != nil {
			return nil, nil, newError(err, 0)
		}
		r.res.Stats = stats
		if stats.Orphans > 0 {
			r.log.Info("unused objects removed", "count", stats.Orphans)
		}
		r.log.Debug("recompressed",
			"level", level.String(),
			"compressed", stats.CompressedStreams,
			"duplicateStreams", stats.DuplicateStreams,
			"duplicateObjects", stats.DuplicateObjects)
		return []*pdf.Document{out}, level.WriterOptions(), nil
	}
	panic("unreachable")
}

// pageDone returns a callback for [pages.Options.AfterPage] which checks
// for cancellation and reports progress.
func (r *run) pageDone(total int) func() error {
	done := 0
	return func() error {
		if err := r.checkCancel(); err != nil {
			return err
		}
		done++
		r.setState(Transforming, 10+80*float64(done)/float64(max(total, 1)))
		return nil
	}
}

// serialize stamps and writes all output documents.  The outputs are only
// stored in the result once all of them have been written.
func (r *run) serialize(docs []*pdf.Document, opt *pdf.WriterOptions) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	stamp := &metadata.Stamp{
		Producer: r.Producer,
		ModDate:  now(),
	}

	outputs := make([][]byte, 0, len(docs))
	for i, doc := range docs {
		if err := r.checkCancel(); err != nil {
			return err
		}
		err := metadata.Apply(doc, stamp)
		if err != nil {
			return err
		}
		data, err := doc.Bytes(opt)
		if err != nil {
			return err
		}
		outputs = append(outputs, data)
		r.setState(Serializing, 90+9*float64(i+1)/float64(len(docs)))
	}
	r.res.Outputs = outputs
	return nil
}
