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

package pipeline

import (
	"fmt"
	"sync/atomic"
)

// State is the state of a job.
type State int

// These are the states a job passes through.  Jobs start in state Idle and
// end in either Done or Failed.
const (
	Idle State = iota
	Loading
	Transforming
	Serializing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Transforming:
		return "transforming"
	case Serializing:
		return "serializing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Progress describes how far a job has advanced.
type Progress struct {
	State State

	// Percent is between 0 and 100.  Over the lifetime of a job, the value
	// never decreases.
	Percent float64
}

// A Reporter receives progress updates from a running job.
//
// Report is called synchronously from the goroutine which runs the job, so
// implementations should return quickly.
type Reporter interface {
	Report(p Progress)
}

// ReporterFunc adapts an ordinary function to the [Reporter] interface.
type ReporterFunc func(p Progress)

// Report implements the [Reporter] interface.
func (f ReporterFunc) Report(p Progress) {
	f(p)
}

// Tracker is a [Reporter] which stores the most recent progress value.
// It can be polled from any goroutine.
type Tracker struct {
	p atomic.Pointer[Progress]
}

// Report implements the [Reporter] interface.
func (t *Tracker) Report(p Progress) {
	t.p.Store(&p)
}

// Progress returns the most recent progress value.
func (t *Tracker) Progress() Progress {
	p := t.p.Load()
	if p == nil {
		return Progress{}
	}
	return *p
}

// Channel is a [Reporter] which delivers progress updates over a channel.
// Sending never blocks: if the receiver has not yet consumed the previous
// value, it is replaced by the new one.
type Channel struct {
	C <-chan Progress
	c chan Progress
}

// NewChannel allocates a new Channel.
func NewChannel() *Channel {
	c := make(chan Progress, 1)
	return &Channel{C: c, c: c}
}

// Report implements the [Reporter] interface.
func (ch *Channel) Report(p Progress) {
	for {
		select {
		case ch.c <- p:
			return
		default:
		}
		// drop the stale value, unless the receiver got there first
		select {
		case <-ch.c:
		default:
		}
	}
}

type multiReporter []Reporter

func (m multiReporter) Report(p Progress) {
	for _, r := range m {
		r.Report(p)
	}
}

// progress forwards monotone progress values to a Reporter.
type progress struct {
	rep     Reporter
	state   State
	percent float64
}

func (p *progress) set(state State, percent float64) {
	percent = min(max(percent, p.percent), 100)
	p.state = state
	p.percent = percent
	if p.rep != nil {
		p.rep.Report(Progress{State: state, Percent: percent})
	}
}
