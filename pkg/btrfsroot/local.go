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

	"github.com/andreittr/btrsync/pkg/btrfs"
	"github.com/andreittr/btrsync/pkg/cowtree"
	"github.com/andreittr/btrsync/pkg/flow"
	"github.com/andreittr/btrsync/pkg/pathutil"
	"github.com/andreittr/btrsync/pkg/syncerr"
)

// sudoCmd prefixes a command with sudo when a root was constructed with
// Sudo: true.
var sudoCmd = btrfs.Cmd{Program: "sudo"}

// sudoWrap returns the command-wrapping transformation for plain sudo
// prefixing (the identity transform if sudo is false).
func sudoWrap(sudo bool) func(btrfs.Cmd) btrfs.Cmd {
	if !sudo {
		return func(c btrfs.Cmd) btrfs.Cmd { return c }
	}
	return func(c btrfs.Cmd) btrfs.Cmd { return c.Wrap(sudoCmd, false, "") }
}

// LocalRoot shells out to a locally installed `btrfs` binary, anchored
// at RootPath. WrapCmd and NameFn let NewSSHRoot's roots reuse every method here
// unchanged while substituting how a command is actually dispatched and
// how the root names itself — composition standing in for the
// inheritance a dynamic-language original would reach for, since Go's
// embedding does not override methods called from within the base type.
type LocalRoot struct {
	RootPath string
	Scope    Scope
	Readonly bool

	// WrapCmd transforms every command before it runs; defaults to the
	// identity transform if left nil.
	WrapCmd func(btrfs.Cmd) btrfs.Cmd
	// NameFn returns this root's display name; defaults to RootPath if
	// left nil.
	NameFn func() string

	fsroot string // resolved lazily, the <FS_TREE>-relative root path
}

// NewLocalRoot constructs a LocalRoot anchored directly at rootpath,
// with no upward discovery. Use DiscoverLocalRoot to walk up from an
// arbitrary path instead.
func NewLocalRoot(rootpath string, scope Scope, readonly, sudo bool) *LocalRoot {
	r := &LocalRoot{RootPath: rootpath, Scope: scope, Readonly: readonly, WrapCmd: sudoWrap(sudo)}
	if sudo {
		r.NameFn = func() string { return "sudo:" + r.RootPath }
	}
	return r
}

// DiscoverLocalRoot walks path's ancestry upward until it finds a
// subvolume boundary, returning a LocalRoot anchored there along with
// path expressed relative to it.
func DiscoverLocalRoot(ctx context.Context, path string, scope Scope, readonly, sudo bool) (*LocalRoot, string, error) {
	probe := func(ctx context.Context, p string) (bool, error) {
		return IsLocalRoot(ctx, p, sudo)
	}
	rp, rel, err := discoverRoot(ctx, path, probe)
	if err != nil {
		return nil, "", err
	}
	return NewLocalRoot(rp, scope, readonly, sudo), rel, nil
}

// IsLocalRoot reports whether path is itself a btrfs subvolume.
func IsLocalRoot(ctx context.Context, path string, sudo bool) (bool, error) {
	cmd, err := btrfs.Show(path, btrfs.ShowOptions{})
	if err != nil {
		return false, err
	}
	cmd = sudoWrap(sudo)(cmd)
	_, stderr, err := runCaptured(ctx, cmd)
	if err == nil {
		return true, nil
	}
	if strings.Contains(stderr, "Not a Btrfs subvolume") || strings.Contains(stderr, "No such file or directory") {
		return false, nil
	}
	return false, errors.Wrap(&syncerr.BtrfsOpError{Cmd: cmd.Shellify(), Stderr: stderr}, path)
}

func (r *LocalRoot) Name() string {
	if r.NameFn != nil {
		return r.NameFn()
	}
	return r.RootPath
}

func (r *LocalRoot) wrapCmd(cmd btrfs.Cmd) btrfs.Cmd {
	if r.WrapCmd == nil {
		return cmd
	}
	return r.WrapCmd(cmd)
}

func (r *LocalRoot) run(ctx context.Context, cmd btrfs.Cmd) ([]string, error) {
	wrapped := r.wrapCmd(cmd)
	stdout, stderr, err := runCaptured(ctx, wrapped)
	if err != nil {
		return nil, errors.Wrap(&syncerr.BtrfsOpError{Cmd: wrapped.Shellify(), Stderr: stderr}, r.RootPath)
	}
	return splitLines(stdout), nil
}

func runCaptured(ctx context.Context, cmd btrfs.Cmd) (stdout, stderr string, err error) {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Stdin = nil
	var outBuf, errBuf bytes.Buffer
	c.Stdout = &outBuf
	c.Stderr = &errBuf
	err = c.Run()
	return outBuf.String(), strings.TrimSpace(errBuf.String()), err
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (r *LocalRoot) resolveFSRoot(ctx context.Context) error {
	if r.fsroot != "" {
		return nil
	}
	cmd, err := btrfs.Show(r.RootPath, btrfs.ShowOptions{})
	if err != nil {
		return err
	}
	lines, err := r.run(ctx, cmd)
	if err != nil {
		return err
	}
	res, err := btrfs.ParseShow(lines)
	if err != nil {
		return err
	}
	if res.Path == "/" {
		r.fsroot = btrfs.FSTree
	} else {
		r.fsroot = btrfs.FSTree + "/" + strings.TrimPrefix(res.Path, "/")
	}
	return nil
}

func (r *LocalRoot) localPath(p string) (string, error) {
	if !pathutil.IsSubpath(p) {
		return "", errors.Wrapf(syncerr.ErrValidation, "path %q must be relative and cannot escape its base directory", p)
	}
	if p == "." {
		return r.RootPath, nil
	}
	return r.RootPath + "/" + p, nil
}

func (r *LocalRoot) List(ctx context.Context) ([]*cowtree.Node, error) {
	if err := r.resolveFSRoot(ctx); err != nil {
		return nil, err
	}

	roCmd, err := btrfs.List(r.RootPath, r.Scope == ScopeAll, r.Readonly, "u")
	if err != nil {
		return nil, err
	}
	roLines, err := r.run(ctx, roCmd)
	if err != nil {
		return nil, err
	}
	roVols, err := btrfs.ParseList(roLines)
	if err != nil {
		return nil, err
	}
	checkedUUIDs := make(map[string]bool, len(roVols))
	for _, v := range roVols {
		checkedUUIDs[v.UUID] = true
	}

	allCmd, err := btrfs.List(r.RootPath, r.Scope != ScopeIsolated, false, "uqR")
	if err != nil {
		return nil, err
	}
	allLines, err := r.run(ctx, allCmd)
	if err != nil {
		return nil, err
	}
	allVols, err := btrfs.ParseList(allLines)
	if err != nil {
		return nil, err
	}
	allVols, err = btrfs.RelPaths(allVols, r.fsroot)
	if err != nil {
		return nil, err
	}

	tree := cowtree.Build(allVols, func(v btrfs.Subvolume) bool {
		return checkedUUIDs[v.UUID] && !strings.HasPrefix(v.Path, btrfs.FSTree)
	})
	return tree.Roots, nil
}

// EnsurePath creates recvPath (root-relative) and any missing parent
// directories, using the same command wrapping (sudo, ssh) this root
// uses for every other operation. Callers with CreateDestPath/
// ReplicateDirs set use it before a receive targets a directory that
// may not exist yet.
func (r *LocalRoot) EnsurePath(ctx context.Context, recvPath string) error {
	tpath, err := r.localPath(recvPath)
	if err != nil {
		return err
	}
	_, err = r.run(ctx, btrfs.Cmd{Program: "mkdir", Args: []string{"-p", tpath}})
	return err
}

func (r *LocalRoot) Show(ctx context.Context, path string) (btrfs.ShowResult, error) {
	tpath, err := r.localPath(path)
	if err != nil {
		return btrfs.ShowResult{}, err
	}
	if err := r.resolveFSRoot(ctx); err != nil {
		return btrfs.ShowResult{}, err
	}
	cmd, err := btrfs.Show(tpath, btrfs.ShowOptions{})
	if err != nil {
		return btrfs.ShowResult{}, err
	}
	lines, err := r.run(ctx, cmd)
	if err != nil {
		return btrfs.ShowResult{}, err
	}
	return btrfs.ParseShow(lines)
}

func (r *LocalRoot) Send(ctx context.Context, req SendRequest) (flow.Flow, Finalizer, error) {
	if err := r.resolveFSRoot(ctx); err != nil {
		return nil, nil, err
	}
	paths := make([]string, len(req.Paths))
	for i, p := range req.Paths {
		tp, err := r.localPath(p)
		if err != nil {
			return nil, nil, err
		}
		paths[i] = tp
	}
	opts := btrfs.SendOptions{Clones: make([]string, len(req.Clones))}
	if req.Parent != "" {
		tp, err := r.localPath(req.Parent)
		if err != nil {
			return nil, nil, err
		}
		opts.Parent = tp
	}
	for i, c := range req.Clones {
		tp, err := r.localPath(c)
		if err != nil {
			return nil, nil, err
		}
		opts.Clones[i] = tp
	}
	cmd, err := btrfs.Send(opts, paths...)
	if err != nil {
		return nil, nil, err
	}
	wrapped := r.wrapCmd(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, errors.Wrap(syncerr.ErrIO, err.Error())
	}
	procs, err := startPipeline(ctx, []btrfs.Cmd{wrapped}, nil, pw)
	pw.Close()
	if err != nil {
		pr.Close()
		return nil, nil, err
	}
	f := flow.NewPipeFlow(pr, req.Stats)
	finalize := func() error { return waitPipeline(procs) }
	return f, finalize, nil
}

func (r *LocalRoot) Receive(ctx context.Context, f flow.Flow, recvPath string, meta ReceiveMeta) (Finalizer, error) {
	if err := r.resolveFSRoot(ctx); err != nil {
		return nil, err
	}
	tpath, err := r.localPath(recvPath)
	if err != nil {
		return nil, err
	}
	cmd := r.wrapCmd(btrfs.Receive(tpath, false))

	pin, err := f.ConnectFD()
	if err != nil {
		return nil, errors.Wrap(syncerr.ErrIO, err.Error())
	}
	procs, err := startPipeline(ctx, []btrfs.Cmd{cmd}, pin, nil)
	if err != nil {
		return nil, err
	}
	return func() error { return waitPipeline(procs) }, nil
}
