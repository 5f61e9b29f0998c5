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

package main

import (
	"fmt"
	"io"

	"github.com/andreittr/btrsync/pkg/btrsync"
	"github.com/andreittr/btrsync/pkg/btrsyncconfig"
	"github.com/andreittr/btrsync/pkg/cowtree"
	"github.com/andreittr/btrsync/pkg/progress"
)

// buildReporter picks between a periodic byte-rate reporter (-p/
// --progress, with -q unset) and a plain one-line-per-transfer
// reporter.
func buildReporter(out io.Writer, flags *rawFlags, cfg btrsyncconfig.Options, recvPath string) btrsync.Reporter {
	if flags.progress && flags.quiet == 0 {
		return &btrsync.RateReporter{
			Writer: progress.NewWriter(out, false),
			Out:    out,
			Period: cfg.ProgressPeriod,
		}
	}
	return &plainReporter{
		out:           out,
		quiet:         flags.quiet,
		verbose:       flags.verbose,
		recvBase:      recvPath,
		replicateDirs: cfg.ReplicateDirs,
	}
}

// plainReporter prints one formatted line per transfer as it starts
// and a short confirmation (or error) as it finishes; -q suppresses
// the start/success lines, -qq suppresses errors too.
type plainReporter struct {
	out           io.Writer
	quiet         int
	verbose       bool
	recvBase      string
	replicateDirs bool
}

func (r *plainReporter) Report(vols []*cowtree.Node, parent *cowtree.Node) {
	if r.quiet > 0 {
		return
	}
	volPaths, parentPath, dest, err := btrsync.TransferPaths(vols, parent, r.recvBase, r.replicateDirs)
	if err != nil {
		fmt.Fprintln(r.out, "Error:", err)
		return
	}
	fmt.Fprintln(r.out, formatTransfer(volPaths, parentPath, dest, r.verbose))
}

func (r *plainReporter) Progress(int64) {}

func (r *plainReporter) Done(vols []*cowtree.Node, parent *cowtree.Node, err error) {
	if err != nil {
		if r.quiet < 2 {
			fmt.Fprintln(r.out, "Error:", err)
		}
		return
	}
	if r.quiet == 0 {
		fmt.Fprintln(r.out, " - Done")
	}
}
