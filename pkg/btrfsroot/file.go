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
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/andreittr/btrsync/pkg/btrfs"
	"github.com/andreittr/btrsync/pkg/cowtree"
	"github.com/andreittr/btrsync/pkg/flow"
	"github.com/andreittr/btrsync/pkg/syncerr"
)

// FileSendRoot is a read-only root backed by a single btrfs send stream
// already saved to a local file: List reports it as one volume with a
// freshly generated UUID, and Send hands back a Flow reading straight
// from the file. Receive always fails.
type FileSendRoot struct {
	RootPath string
}

// NewFileSendRoot wraps the send-stream file at rootpath.
func NewFileSendRoot(rootpath string) *FileSendRoot {
	return &FileSendRoot{RootPath: rootpath}
}

func (r *FileSendRoot) Name() string { return r.RootPath }

func (r *FileSendRoot) List(ctx context.Context) ([]*cowtree.Node, error) {
	sv := btrfs.Subvolume{UUID: randomUUID(), Path: r.RootPath}
	tree := cowtree.Build([]btrfs.Subvolume{sv}, nil)
	return tree.Roots, nil
}

func (r *FileSendRoot) Show(ctx context.Context, path string) (btrfs.ShowResult, error) {
	return btrfs.ShowResult{Path: r.RootPath, Properties: map[string]string{}, Lists: map[string][]string{}}, nil
}

func (r *FileSendRoot) Send(ctx context.Context, req SendRequest) (flow.Flow, Finalizer, error) {
	if len(req.Paths) != 1 || req.Paths[0] != r.RootPath {
		return nil, nil, errors.Wrapf(syncerr.ErrValidation, "cannot send path other than %s", r.RootPath)
	}
	f, err := os.Open(r.RootPath)
	if err != nil {
		return nil, nil, errors.Wrap(syncerr.ErrIO, err.Error())
	}
	return flow.NewFileFlow(f, req.Stats), func() error { return nil }, nil
}

func (r *FileSendRoot) Receive(ctx context.Context, f flow.Flow, recvPath string, meta ReceiveMeta) (Finalizer, error) {
	return nil, errors.Wrap(syncerr.ErrValidation, "receive() called on a read-only file send root")
}

// FileDumpRoot is a write-only root that saves received send streams to
// plain files instead of performing a real `btrfs receive`. List/Show
// optionally delegate to Subroot when one is configured; Send always
// fails.
type FileDumpRoot struct {
	RootPath       string // directory to save streams into; empty means DumpPipe alone decides the destination
	Subroot        Root   // optional delegate for List/Show
	CreateRecvPath bool
	Namer          func(meta ReceiveMeta) string
	DumpPipe       []btrfs.Cmd // optional filter pipeline the stream is piped through before saving
	Ext            string
}

func defaultNamer(meta ReceiveMeta) string {
	base := "btrsync-dump"
	if len(meta.Volumes) > 0 {
		base = filepath.Base(meta.Volumes[0])
	}
	if len(meta.Volumes) > 1 {
		base += "_et-al"
	}
	return base + ".btrfs_stream"
}

func (r *FileDumpRoot) namer() func(ReceiveMeta) string {
	if r.Namer != nil {
		return r.Namer
	}
	return defaultNamer
}

func (r *FileDumpRoot) Name() string { return r.RootPath }

func (r *FileDumpRoot) List(ctx context.Context) ([]*cowtree.Node, error) {
	if r.Subroot != nil {
		return r.Subroot.List(ctx)
	}
	return nil, nil
}

func (r *FileDumpRoot) Show(ctx context.Context, path string) (btrfs.ShowResult, error) {
	if r.Subroot != nil {
		return r.Subroot.Show(ctx, path)
	}
	return btrfs.ShowResult{Path: r.RootPath, Properties: map[string]string{}, Lists: map[string][]string{}}, nil
}

func (r *FileDumpRoot) Send(ctx context.Context, req SendRequest) (flow.Flow, Finalizer, error) {
	return nil, nil, errors.Wrap(syncerr.ErrValidation, "send() called on a receive-only dump root")
}

func (r *FileDumpRoot) Receive(ctx context.Context, f flow.Flow, recvPath string, meta ReceiveMeta) (Finalizer, error) {
	if r.RootPath == "" && len(r.DumpPipe) == 0 {
		return nil, errors.Wrap(syncerr.ErrValidation, "dump pipe required when RootPath is empty")
	}

	if r.RootPath == "" {
		pin, err := f.ConnectFD()
		if err != nil {
			return nil, errors.Wrap(syncerr.ErrIO, err.Error())
		}
		procs, err := startPipeline(ctx, r.DumpPipe, pin, nil)
		if err != nil {
			return nil, err
		}
		return func() error { return waitPipeline(procs) }, nil
	}

	odir := r.RootPath
	if recvPath != "" && recvPath != "." {
		odir = filepath.Join(r.RootPath, recvPath)
	}
	if r.CreateRecvPath {
		if err := os.MkdirAll(odir, 0o755); err != nil {
			return nil, errors.Wrap(syncerr.ErrIO, err.Error())
		}
	}
	outPath := filepath.Join(odir, r.namer()(meta)+r.Ext)
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(syncerr.ErrIO, err.Error())
	}

	if len(r.DumpPipe) > 0 {
		pin, err := f.ConnectFD()
		if err != nil {
			out.Close()
			return nil, errors.Wrap(syncerr.ErrIO, err.Error())
		}
		procs, err := startPipeline(ctx, r.DumpPipe, pin, out)
		if err != nil {
			out.Close()
			return nil, err
		}
		return func() error {
			defer out.Close()
			return waitPipeline(procs)
		}, nil
	}

	if err := f.ConnectToFD(out); err != nil {
		out.Close()
		return nil, errors.Wrap(syncerr.ErrIO, err.Error())
	}
	return func() error { return nil }, nil
}

func randomUUID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
