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

// Package btrsync drives the sync of btrfs subvolumes from a source
// root to a destination root: a Planner walks the source's COW
// hierarchy wave by wave, deciding what to send and against which
// incremental parent, and a Driver (transfer.go) actually shells the
// chosen subvolumes through Send/Receive.
package btrsync

import (
	"context"
	"path"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
	"github.com/andreittr/btrsync/pkg/cowtree"
	"github.com/andreittr/btrsync/pkg/multierror"
	"github.com/andreittr/btrsync/pkg/syncerr"
)

// KeyFunc extracts an equality key from a subvolume for diffing across
// roots; an empty string means "no opinion" and never matches.
type KeyFunc func(*cowtree.Node) string

// UUIDKey keys on a subvolume's own UUID.
func UUIDKey(n *cowtree.Node) string { return n.Subvolume.UUID }

// ReceivedUUIDKey keys on the UUID a subvolume was received with, so a
// snapshot transferred once is recognized as present even under a
// locally reassigned UUID.
func ReceivedUUIDKey(n *cowtree.Node) string { return n.Subvolume.ReceivedUUID.OrZero() }

// DefaultKeys is the key function set used when a Planner is not given
// an explicit override: match on UUID or received UUID.
var DefaultKeys = []KeyFunc{UUIDKey, ReceivedUUIDKey}

// TargetFunc decides whether vol is considered for sync at all.
type TargetFunc func(vol *cowtree.Node) bool

// CheckFunc decides whether the sync of vol against the given
// incremental parent (nil for a full send) should proceed.
type CheckFunc func(vol, parent *cowtree.Node) bool

// StopFunc is called after the volumes in vols have been transferred
// successfully; returning true ends the sync. In sequential mode no
// further pack is dispatched; in parallel mode the packs of the current
// wave still finish, and no later wave starts.
type StopFunc func(vols []*cowtree.Node) bool

func defaultTarget(*cowtree.Node) bool             { return true }
func defaultCheck(*cowtree.Node, *cowtree.Node) bool { return true }
func defaultStop([]*cowtree.Node) bool             { return false }

// Options controls one Sync invocation.
type Options struct {
	// Batch packs multiple volumes sharing the same incremental parent
	// and destination directory into a single transfer.
	Batch bool
	// Parallel dispatches every pack of a wave concurrently instead of
	// one at a time.
	Parallel bool
	// TransferExisting reconsiders volumes already present at the
	// destination instead of skipping them.
	TransferExisting bool

	Target TargetFunc
	Check  CheckFunc
	Stop   StopFunc
}

// Driver performs the actual transfer of vols (sharing the incremental
// parent par, nil for a full send) from src to dst.
type Driver func(ctx context.Context, vols []*cowtree.Node, par *cowtree.Node, src, dst btrfsroot.Root) error

// Planner walks the COW hierarchy of a source root and syncs it to a
// destination root.
type Planner struct {
	Src, Dst btrfsroot.Root

	// SrcKeys/DstKeys key each side's subvolumes for the cross-root
	// diff; two subvolumes are considered identical whenever any
	// SrcKeys function and any DstKeys function agree on a non-empty
	// value. Default to DefaultKeys when nil.
	SrcKeys, DstKeys []KeyFunc
}

// New builds a Planner with the default key functions.
func New(src, dst btrfsroot.Root) *Planner {
	return &Planner{Src: src, Dst: dst, SrcKeys: DefaultKeys, DstKeys: DefaultKeys}
}

type candidate struct {
	vol    *cowtree.Node
	parent *cowtree.Node
}

type pack struct {
	vols   []*cowtree.Node
	parent *cowtree.Node
}

// Sync lists both roots, diffs them, then walks the source hierarchy
// wave by wave (COW-tree BFS depth order, so a parent's transfer is
// always dispatched before its children's), dispatching driver for
// each resulting pack. It returns false if any transfer failed,
// alongside an aggregated error reporting every failure seen (not just
// the first).
func (p *Planner) Sync(ctx context.Context, driver Driver, opts Options) (bool, error) {
	target := opts.Target
	if target == nil {
		target = defaultTarget
	}
	check := opts.Check
	if check == nil {
		check = defaultCheck
	}
	stop := opts.Stop
	if stop == nil {
		stop = defaultStop
	}
	srcKeys := p.SrcKeys
	if srcKeys == nil {
		srcKeys = DefaultKeys
	}
	dstKeys := p.DstKeys
	if dstKeys == nil {
		dstKeys = DefaultKeys
	}

	srcRoots, err := p.Src.List(ctx)
	if err != nil {
		return false, err
	}
	dstRoots, err := p.Dst.List(ctx)
	if err != nil {
		return false, err
	}

	present, parentOf := buildDiff(srcRoots, dstRoots, toNodeKeyFns(srcKeys), toNodeKeyFns(dstKeys))
	mark := func(vols []*cowtree.Node) {
		for _, v := range vols {
			present[v.Subvolume.UUID] = true
		}
	}

	var errAcc *multierror.Error
	erred := false
	finish := false

	for i, volgr := range volGroups(srcRoots) {
		logrus.Infof("btrsync: wave %d: considering %d subvolume(s)", i, len(volgr))
		var cands []candidate
		for _, vol := range volgr {
			if !target(vol) {
				continue
			}
			if !opts.TransferExisting && present[vol.Subvolume.UUID] {
				continue
			}
			par := parentOf(vol)
			if !check(vol, par) {
				continue
			}
			cands = append(cands, candidate{vol: vol, parent: par})
		}
		packs := buildPacks(cands, opts.Batch)

		if opts.Parallel {
			erred, finish = p.dispatchParallel(ctx, driver, packs, mark, stop, &errAcc)
		} else {
			erred, finish = p.dispatchSequential(ctx, driver, packs, mark, stop, &errAcc)
		}
		logrus.Infof("btrsync: wave %d done, erred=%v finish=%v", i, erred, finish)
		if finish || erred {
			break
		}
	}
	return !erred, errAcc.ErrorOrNil()
}

func (p *Planner) dispatchSequential(ctx context.Context, driver Driver, packs []pack, mark func([]*cowtree.Node), stop StopFunc, errAcc **multierror.Error) (erred, finish bool) {
	for _, pk := range packs {
		if err := driver(ctx, pk.vols, pk.parent, p.Src, p.Dst); err != nil {
			*errAcc = multierror.Append(*errAcc, errors.Wrap(syncerr.ErrCancelled, err.Error()))
			return true, finish
		}
		mark(pk.vols)
		if stop(pk.vols) {
			return false, true
		}
	}
	return false, false
}

func (p *Planner) dispatchParallel(ctx context.Context, driver Driver, packs []pack, mark func([]*cowtree.Node), stop StopFunc, errAcc **multierror.Error) (erred, finish bool) {
	type result struct {
		pk  pack
		err error
	}
	results := make(chan result, len(packs))
	var wg sync.WaitGroup
	for _, pk := range packs {
		wg.Add(1)
		go func(pk pack) {
			defer wg.Done()
			err := driver(ctx, pk.vols, pk.parent, p.Src, p.Dst)
			results <- result{pk: pk, err: err}
		}(pk)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.err != nil {
			erred = true
			*errAcc = multierror.Append(*errAcc, errors.Wrap(syncerr.ErrCancelled, r.err.Error()))
			continue
		}
		mark(r.pk.vols)
		if stop(r.pk.vols) {
			finish = true
		}
	}
	return erred, finish
}

// volGroups splits roots and their COW descendants into waves, one per
// COW-tree BFS depth: every volume in a wave can be safely transferred
// in any order (or concurrently) once the previous wave has landed,
// since COW parents are always one wave ahead of their children.
func volGroups(roots []*cowtree.Node) [][]*cowtree.Node {
	var groups [][]*cowtree.Node
	var cur []*cowtree.Node
	cowtree.BFS(roots, -1, true, func(n *cowtree.Node, ok bool) bool {
		if !ok {
			groups = append(groups, cur)
			cur = nil
			return true
		}
		cur = append(cur, n)
		return true
	})
	return groups
}

// buildDiff computes which source-side UUIDs already exist at the
// destination, and returns a parent-lookup closure that returns a
// volume's nearest COW ancestor (excluding itself) already present at
// the destination, or nil for a full send.
func buildDiff(srcRoots, dstRoots []*cowtree.Node, srcKeys, dstKeys []func(*cowtree.Node) string) (present map[string]bool, parentOf func(*cowtree.Node) *cowtree.Node) {
	coma, _ := cowtree.Diff(srcRoots, dstRoots, srcKeys, dstKeys)
	present = make(map[string]bool, len(coma))
	for uuid := range coma {
		present[uuid] = true
	}
	parentOf = func(vol *cowtree.Node) *cowtree.Node {
		ancestors := cowtree.Ancestors(vol)
		for _, anc := range ancestors[1:] {
			if present[anc.Subvolume.UUID] {
				return anc
			}
		}
		return nil
	}
	return present, parentOf
}

func toNodeKeyFns(keys []KeyFunc) []func(*cowtree.Node) string {
	out := make([]func(*cowtree.Node) string, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

// buildPacks groups candidates into transfer packs. With batch
// disabled, every candidate becomes its own singleton pack. With batch
// enabled, candidates sharing an incremental parent and a destination
// directory are packed together, preserving first-seen order of both
// packs and the volumes within each.
func buildPacks(cands []candidate, batch bool) []pack {
	if !batch {
		out := make([]pack, len(cands))
		for i, c := range cands {
			out[i] = pack{vols: []*cowtree.Node{c.vol}, parent: c.parent}
		}
		return out
	}

	type key struct {
		parentUUID string
		dir        string
	}
	order := make([]key, 0, len(cands))
	groups := make(map[key]*pack, len(cands))
	for _, c := range cands {
		var puid string
		if c.parent != nil {
			puid = c.parent.Subvolume.UUID
		}
		k := key{parentUUID: puid, dir: path.Dir(c.vol.Subvolume.Path)}
		g, ok := groups[k]
		if !ok {
			g = &pack{parent: c.parent}
			groups[k] = g
			order = append(order, k)
		}
		g.vols = append(g.vols, c.vol)
	}
	out := make([]pack, len(order))
	for i, k := range order {
		out[i] = *groups[k]
	}
	return out
}
