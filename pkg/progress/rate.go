/*
   Copyright 2024 btrsync authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package progress

import (
	"fmt"
	"io"
	"time"
)

// spinSeq is the rotating glyph a RateReporter prints alongside its
// running total, cycling on every tick.
const spinSeq = `|/-\`

// RateReporter renders a single, carriage-return-overwritten line of
// cumulative bytes transferred and the instantaneous transfer rate
// over the last period. It replaces a multi-line TTY grid, since
// btrsync drives one transfer wave at a time rather than many
// concurrently converging services.
type RateReporter struct {
	out    io.Writer
	period time.Duration

	prev int64
	spin int
}

// NewRateReporter renders to out, computing rate over consecutive
// Tick calls spaced period apart.
func NewRateReporter(out io.Writer, period time.Duration) *RateReporter {
	return &RateReporter{out: out, period: period}
}

// Tick prints the current line given the cumulative byte count total
// observed since the reporter's transfer began.
func (r *RateReporter) Tick(total int64) {
	delta := total - r.prev
	rate := float64(delta)
	if r.period > 0 {
		rate = float64(delta) / r.period.Seconds()
	}
	glyph := spinSeq[r.spin%len(spinSeq)]
	r.spin++
	fmt.Fprintf(r.out, "\r%c %s %s/sec", glyph, HumanBytes(float64(total)), HumanBytes(rate))
	r.prev = total
}

// Done prints a final newline, ending the overwritten line.
func (r *RateReporter) Done() {
	fmt.Fprintln(r.out)
}
