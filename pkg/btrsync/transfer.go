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

package btrsync

import (
	"context"
	"io"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
	"github.com/andreittr/btrsync/pkg/cowtree"
	"github.com/andreittr/btrsync/pkg/multierror"
	"github.com/andreittr/btrsync/pkg/progress"
)

// errReplicateDirsMismatch is returned when ReplicateDirs is set but a
// pack's volumes don't share a parent directory.
var errReplicateDirsMismatch = errors.New("btrsync: replicate-dirs requires every volume in a pack to share a parent directory")

// Reporter observes a single transfer's lifecycle: a Driver built with
// NewDriver calls Report before starting, Done once it has finished (even
// on error), and, when progress reporting is enabled, Progress on a
// periodic tick carrying the running byte count.
type Reporter interface {
	Report(vols []*cowtree.Node, parent *cowtree.Node)
	Done(vols []*cowtree.Node, parent *cowtree.Node, err error)
	Progress(total int64)
}

// noopReporter discards every event.
type noopReporter struct{}

func (noopReporter) Report([]*cowtree.Node, *cowtree.Node) {}
func (noopReporter) Done([]*cowtree.Node, *cowtree.Node, error) {}
func (noopReporter) Progress(int64) {}

// DriverOptions configures NewDriver.
type DriverOptions struct {
	// RecvBase is the root-relative path transfers are received into.
	RecvBase string
	// ReplicateDirs recreates the sent volumes' source directory
	// structure under RecvBase instead of flattening every transfer
	// into RecvBase directly. Every volume in one pack must share a
	// directory; NewDriver's returned Driver errors otherwise.
	ReplicateDirs bool
	// Reporter receives transfer lifecycle events; defaults to a no-op.
	Reporter Reporter
	// ProgressPeriod, when positive, ticks Reporter.Progress that often
	// while a transfer is in flight, and requests byte-counting stats
	// from the source Send.
	ProgressPeriod time.Duration
}

// NewDriver builds a Driver that sends vols from src and receives them
// into dst, piping the send stream directly into the receive pipeline via
// a Flow and joining the resulting send/receive/pump errors.
func NewDriver(opts DriverOptions) Driver {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = noopReporter{}
	}
	recvBase := opts.RecvBase
	if recvBase == "" {
		recvBase = "."
	}

	return func(ctx context.Context, vols []*cowtree.Node, par *cowtree.Node, src, dst btrfsroot.Root) error {
		volPaths, parentPath := sendPaths(vols, par)
		if parentPath != "" {
			logrus.Infof("btrsync: transferring %v incremental from %s", volPaths, parentPath)
		} else {
			logrus.Infof("btrsync: transferring %v (full send)", volPaths)
		}
		reporter.Report(vols, par)
		err := runTransfer(ctx, vols, par, src, dst, recvBase, opts.ReplicateDirs, opts.ProgressPeriod, reporter)
		reporter.Done(vols, par, err)
		if err != nil {
			logrus.Infof("btrsync: transfer of %v failed: %s", volPaths, err)
		} else {
			logrus.Infof("btrsync: transfer of %v done", volPaths)
		}
		return err
	}
}

func runTransfer(
	ctx context.Context,
	vols []*cowtree.Node,
	par *cowtree.Node,
	src, dst btrfsroot.Root,
	recvBase string,
	replicateDirs bool,
	progressPeriod time.Duration,
	reporter Reporter,
) error {
	volPaths, parentPath := sendPaths(vols, par)
	recvPath, err := recvPath(volPaths, recvBase, replicateDirs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// g's derived context is what Send/Receive spawn their subprocesses
	// under, so canceling it on the first failing leg (pump, send, or
	// receive) actually kills the other two instead of leaving them
	// running against the original, un-canceled ctx.
	g, gctx := errgroup.WithContext(ctx)

	stats := progressPeriod > 0
	sendReq := btrfsroot.SendRequest{Paths: volPaths, Parent: parentPath, Stats: stats}
	flo, sendFinalize, err := src.Send(gctx, sendReq)
	if err != nil {
		return err
	}

	meta := btrfsroot.ReceiveMeta{Volumes: volPaths, Parent: parentPath}
	recvFinalize, err := dst.Receive(gctx, flo, recvPath, meta)
	if err != nil {
		return err
	}

	var progressDone chan struct{}
	if stats {
		progressDone = make(chan struct{})
		go runProgress(gctx, progressPeriod, flo.Count, reporter, progressDone)
	}

	var mu sync.Mutex
	var errs *multierror.Error
	collect := func(leg func() error) func() error {
		return func() error {
			err := leg()
			mu.Lock()
			errs = multierror.Append(errs, err)
			mu.Unlock()
			return err
		}
	}
	g.Go(collect(func() error { return flo.Pump(gctx) }))
	g.Go(collect(sendFinalize))
	g.Go(collect(recvFinalize))
	_ = g.Wait()
	err = errs.ErrorOrNil()

	cancel()
	if progressDone != nil {
		<-progressDone
	}
	return err
}

// runProgress ticks reporter.Progress off count every period until ctx is
// canceled, then closes done.
func runProgress(ctx context.Context, period time.Duration, count func() int64, reporter Reporter, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reporter.Progress(count())
		}
	}
}

// TransferPaths computes the send paths, incremental parent path, and
// receive path a Driver built by NewDriver would use to move vols, without
// performing the transfer. cmd/btrsync's dry-run preview uses it to show
// what a real sync would do.
func TransferPaths(vols []*cowtree.Node, par *cowtree.Node, recvBase string, replicateDirs bool) (volPaths []string, parentPath, dest string, err error) {
	volPaths, parentPath = sendPaths(vols, par)
	dest, err = recvPath(volPaths, recvBase, replicateDirs)
	return volPaths, parentPath, dest, err
}

func sendPaths(vols []*cowtree.Node, par *cowtree.Node) (volPaths []string, parentPath string) {
	volPaths = make([]string, len(vols))
	for i, v := range vols {
		volPaths[i] = v.Subvolume.Path
	}
	if par != nil {
		parentPath = par.Subvolume.Path
	}
	return volPaths, parentPath
}

func recvPath(volPaths []string, recvBase string, replicateDirs bool) (string, error) {
	if !replicateDirs {
		return recvBase, nil
	}
	if len(volPaths) == 0 {
		return recvBase, nil
	}
	voldir := path.Dir(volPaths[0])
	for _, vp := range volPaths[1:] {
		if path.Dir(vp) != voldir {
			return "", errReplicateDirsMismatch
		}
	}
	return path.Join(recvBase, voldir), nil
}

// RateReporter adapts a progress.Writer and progress.RateReporter into a
// Reporter, logging one start/done event per transfer and ticking a
// byte-rate line while it runs.
type RateReporter struct {
	Writer progress.Writer
	Out    io.Writer
	Period time.Duration

	rate *progress.RateReporter
}

func (r *RateReporter) Report(vols []*cowtree.Node, parent *cowtree.Node) {
	r.rate = progress.NewRateReporter(r.Out, r.Period)
	ev := progress.StartedEvent(transferID(vols))
	ev.Text = transferText(vols, parent)
	r.Writer.Event(ev)
}

func (r *RateReporter) Progress(total int64) {
	if r.rate != nil {
		r.rate.Tick(total)
	}
}

func (r *RateReporter) Done(vols []*cowtree.Node, parent *cowtree.Node, err error) {
	if r.rate != nil {
		r.rate.Done()
	}
	id := transferID(vols)
	if err != nil {
		r.Writer.Event(progress.ErrorEvent(id, err))
		return
	}
	r.Writer.Event(progress.DoneEvent(id))
}

func transferID(vols []*cowtree.Node) string {
	if len(vols) == 0 {
		return "<empty>"
	}
	return vols[0].Subvolume.Path
}

func transferText(vols []*cowtree.Node, parent *cowtree.Node) string {
	if parent == nil {
		return "full send"
	}
	return "incremental from " + parent.Subvolume.Path
}
