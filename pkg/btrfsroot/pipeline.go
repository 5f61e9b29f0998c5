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

package btrfsroot

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andreittr/btrsync/pkg/btrfs"
	"github.com/andreittr/btrsync/pkg/multierror"
	"github.com/andreittr/btrsync/pkg/syncerr"
)

// pipelineProc is one started stage of a pipeline: the command that
// produced it, the running process, and its captured stderr.
type pipelineProc struct {
	spec   btrfs.Cmd
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

// startPipeline starts steps as a chain of subprocesses, each stage's
// stdout feeding the next stage's stdin through an OS pipe. stdin feeds
// the first stage and is closed in the parent once handed off; a nil
// stdin reads from the null device. stdout receives the last stage's
// output and is left open; a nil stdout discards it. On any failure to start a stage,
// every already-started process is killed and the error is returned.
func startPipeline(ctx context.Context, steps []btrfs.Cmd, stdin, stdout *os.File) ([]*pipelineProc, error) {
	if len(steps) == 0 {
		return nil, errors.Wrap(syncerr.ErrValidation, "pipeline requires at least one command")
	}

	procs := make([]*pipelineProc, 0, len(steps))
	abort := func() {
		for _, p := range procs {
			_ = p.cmd.Process.Kill()
		}
	}

	end := stdin
	for i, step := range steps {
		last := i == len(steps)-1

		var out, nextEnd *os.File
		if last {
			out = stdout
		} else {
			r, w, err := os.Pipe()
			if err != nil {
				abort()
				return nil, errors.Wrap(err, "pipe")
			}
			out, nextEnd = w, r
		}

		cmd := exec.CommandContext(ctx, step.Program, step.Args...)
		cmd.Stdin = end
		cmd.Stdout = out
		var errBuf bytes.Buffer
		cmd.Stderr = &errBuf

		if err := cmd.Start(); err != nil {
			if !last {
				out.Close()
				nextEnd.Close()
			}
			abort()
			return nil, errors.Wrapf(err, "spawning %q", step.Program)
		}

		if end != nil {
			end.Close()
		}
		if !last {
			out.Close()
		}

		procs = append(procs, &pipelineProc{spec: step, cmd: cmd, stderr: &errBuf})
		end = nextEnd
	}
	return procs, nil
}

// waitPipeline waits for every stage to exit, aggregating a
// syncerr.BtrfsOpError per nonzero exit into a single error.
func waitPipeline(procs []*pipelineProc) error {
	var agg error
	for _, p := range procs {
		if err := p.cmd.Wait(); err != nil {
			stderr := strings.TrimSpace(p.stderr.String())
			logrus.Debugf("btrfsroot: %s exited with error: %s", p.spec.Shellify(), stderr)
			agg = multierror.Append(agg, &syncerr.BtrfsOpError{Cmd: p.spec.Shellify(), Stderr: stderr})
		}
	}
	if m, ok := agg.(*multierror.Error); ok {
		return m.ErrorOrNil()
	}
	return agg
}
