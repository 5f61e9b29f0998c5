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

// Package btrfsroot provides the btrfs root abstraction: a capability
// set anchored at a filesystem path that can list/show subvolumes and
// drive send/receive pipelines, with concrete implementations shelling
// out locally, over SSH, or reading/writing plain files.
package btrfsroot

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/andreittr/btrsync/pkg/btrfs"
	"github.com/andreittr/btrsync/pkg/cowtree"
	"github.com/andreittr/btrsync/pkg/flow"
	"github.com/andreittr/btrsync/pkg/syncerr"
)

// Scope controls how widely a root discovers subvolumes relative to
// its anchor path.
type Scope int

const (
	// ScopeAll lists every reachable subvolume for both parentage
	// computation and the checked candidate set.
	ScopeAll Scope = iota
	// ScopeStrict restricts the checked candidate set to direct
	// descendants of the root, but still lists all reachable
	// subvolumes for parentage.
	ScopeStrict
	// ScopeIsolated restricts both listings to direct descendants;
	// parent inference may be degraded as a result.
	ScopeIsolated
)

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeStrict:
		return "strict"
	case ScopeIsolated:
		return "isolated"
	default:
		return "unknown"
	}
}

// ParseScope parses one of "all", "strict", "isolated".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "all":
		return ScopeAll, nil
	case "strict":
		return ScopeStrict, nil
	case "isolated":
		return ScopeIsolated, nil
	default:
		return 0, errors.Wrapf(syncerr.ErrValidation, "unknown scope %q", s)
	}
}

// Finalizer is returned alongside a send/receive Flow; it blocks until
// the underlying subprocess pipeline has exited and reports its result.
// Callers must call it exactly once, after pumping the Flow to EOF.
type Finalizer func() error

// SendRequest names the subvolumes to send and the incremental parent
// (and any clone sources) to send against.
type SendRequest struct {
	Paths  []string
	Parent string
	Clones []string

	// Stats requests a Flow that tracks Count(), for callers that tick
	// a progress reporter off the running byte total. Left false, the
	// returned Flow may hand its source fd straight to the receiver
	// with no interposed pump, which is cheaper but reports Count() as
	// always zero.
	Stats bool
}

// ReceiveMeta carries the transfer context a receiving root may want to
// know about (e.g. to name a dump file), mirroring the `meta` dict a
// Transfer passes to receive().
type ReceiveMeta struct {
	Volumes []string
	Parent  string
}

// Root is the capability set every concrete btrfs root implements:
// discover subvolumes, inspect one, and drive a send or receive
// pipeline against it.
type Root interface {
	// Name identifies the root for logging (e.g. "user@host:/path").
	Name() string
	// List returns the COW forest of subvolumes visible within this
	// root's scope.
	List(ctx context.Context) ([]*cowtree.Node, error)
	// Show returns the filesystem path and decoded properties of the
	// subvolume at path (root-relative).
	Show(ctx context.Context, path string) (btrfs.ShowResult, error)
	// Send opens a send pipeline for req, returning the byte Flow it
	// produces and a Finalizer to await after pumping.
	Send(ctx context.Context, req SendRequest) (flow.Flow, Finalizer, error)
	// Receive starts a receive pipeline consuming f into path, returning
	// a Finalizer to await after pumping.
	Receive(ctx context.Context, f flow.Flow, recvPath string, meta ReceiveMeta) (Finalizer, error)
}

// isRootFunc probes whether path is itself a subvolume boundary.
type isRootFunc func(ctx context.Context, path string) (bool, error)

// discoverRoot walks path's directory ancestry upward until isRoot
// reports true, returning the discovered root path and path expressed
// relative to it. Shared by every root implementation that anchors
// itself via a directory walk (local and SSH).
func discoverRoot(ctx context.Context, start string, isRoot isRootFunc) (rootpath, rel string, err error) {
	rp := start
	for rp != "/" {
		ok, err := isRoot(ctx, rp)
		if err != nil {
			return "", "", err
		}
		if ok {
			break
		}
		rp = path.Dir(rp)
	}
	if rp == "/" {
		ok, err := isRoot(ctx, rp)
		if err != nil {
			return "", "", err
		}
		if !ok {
			return "", "", &syncerr.RootDiscoveryError{Path: start}
		}
	}
	rel, err = relTo(start, rp)
	if err != nil {
		return "", "", err
	}
	return rp, rel, nil
}

func relTo(target, base string) (string, error) {
	if base == target {
		return ".", nil
	}
	prefix := base
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(target, prefix) {
		return "", errors.Errorf("btrfsroot: %q is not under %q", target, base)
	}
	return strings.TrimPrefix(target, prefix), nil
}
