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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
	"github.com/andreittr/btrsync/pkg/btrsync"
	"github.com/andreittr/btrsync/pkg/cowtree"
)

// formatTransfer renders a prospective transfer for display: the
// volume paths being sent, whether it is incremental or full, and
// where it lands, in verbose or one-line form.
func formatTransfer(volPaths []string, parent, destdir string, verbose bool) string {
	vpaths := strings.Join(volPaths, ",\n")
	if verbose {
		kind := "full"
		if parent != "" {
			kind = "incremental from " + parent
		}
		return strings.Join([]string{"", vpaths, "\t" + kind, "\tinto " + destdir}, "\n")
	}
	kind := "full"
	if parent != "" {
		kind = "incr"
	}
	return vpaths + "\t" + kind + " -> " + destdir
}

// previewDriver builds a btrsync.Driver that only records what it
// would have transferred, for the dry-run/confirm pass; it never
// touches src or dst, and returns an error only when TransferPaths does
// (a pack whose volumes do not share a directory under replicateDirs).
func previewDriver(recvBase string, replicateDirs, verbose bool) (btrsync.Driver, *[]string) {
	var preview []string
	drv := func(ctx context.Context, vols []*cowtree.Node, par *cowtree.Node, src, dst btrfsroot.Root) error {
		volPaths, parentPath, dest, err := btrsync.TransferPaths(vols, par, recvBase, replicateDirs)
		if err != nil {
			return err
		}
		preview = append(preview, formatTransfer(volPaths, parentPath, dest, verbose))
		return nil
	}
	return drv, &preview
}

// confirmPrompt asks the operator whether to proceed with a previewed
// sync, reading Y/N/S answers from in.
type confirmPrompt struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newConfirmPrompt(in io.Reader, out io.Writer) *confirmPrompt {
	return &confirmPrompt{scanner: bufio.NewScanner(in), out: out}
}

// ask returns "S" immediately if preview is empty (nothing to confirm),
// otherwise prompts until it reads Y, N, or S; an empty line or EOF
// counts as N.
func (c *confirmPrompt) ask(preview []string) string {
	if len(preview) == 0 {
		return "S"
	}
	for {
		fmt.Fprint(c.out, "Proceed? [y/N/(s)kip]: ")
		if !c.scanner.Scan() {
			return "N"
		}
		r := strings.ToUpper(strings.TrimSpace(c.scanner.Text()))
		if r == "" {
			return "N"
		}
		switch r {
		case "Y", "N", "S":
			return r
		}
	}
}
