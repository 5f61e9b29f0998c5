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

// Package cowtree reconstructs the copy-on-write (snapshot) parentage
// hierarchy of a set of btrfs subvolumes, and provides the diff
// operation that identifies common subvolumes across two such
// hierarchies.
package cowtree

import (
	"github.com/andreittr/btrsync/pkg/btrfs"
	"github.com/andreittr/btrsync/pkg/walk"
)

// Node is a subvolume enriched with its computed COW parentage. Nodes
// are built once by Build and never mutated afterwards.
type Node struct {
	Subvolume btrfs.Subvolume
	Checked   bool

	CowParent   *Node
	CowChildren []*Node

	// fsChildren holds every node seen so far whose parent_uuid points
	// at this one, in arrival order, regardless of checked status; used
	// only during construction for the sibling-subtree scan.
	fsChildren []*Node
	// resolved is true once CowParent has been finalized, including to
	// nil for a genuine root; it is distinct from CowParent == nil
	// because a still-pending node also reports CowParent == nil.
	resolved bool
}

// Ancestors returns node and its chain of COW ancestors, nearest first.
func Ancestors(node *Node) []*Node {
	var out []*Node
	for n := node; n != nil; n = n.CowParent {
		out = append(out, n)
	}
	return out
}

// Predicate decides whether a subvolume should participate in the COW
// hierarchy (become a potential cow_parent / root / cow_children
// member). A nil Predicate accepts everything.
type Predicate func(btrfs.Subvolume) bool

// Tree is the forest of COW hierarchies built from a flat set of
// subvolumes.
type Tree struct {
	Roots []*Node

	seen map[string]*Node
}

// Build reconstructs the COW parentage hierarchy of subvols, in input
// order. check decides which subvolumes are eligible to be a
// cow_parent, appear in Roots, or appear in any CowChildren list; pass
// nil to accept every subvolume.
func Build(subvols []btrfs.Subvolume, check Predicate) *Tree {
	if check == nil {
		check = func(btrfs.Subvolume) bool { return true }
	}

	t := &Tree{seen: make(map[string]*Node, len(subvols))}
	parentWaitlist := make(map[string][]*Node)
	preqWaitlist := make(map[string][]*Node)

	finish := func(v *Node) {
		if !v.Checked {
			return
		}
		if v.CowParent == nil {
			t.Roots = append(t.Roots, v)
		} else {
			v.CowParent.CowChildren = append(v.CowParent.CowChildren, v)
		}
	}

	var drainPreq func(p *Node)
	drainPreq = func(p *Node) {
		waiters := preqWaitlist[p.Subvolume.UUID]
		delete(preqWaitlist, p.Subvolume.UUID)
		for _, v := range waiters {
			v.CowParent = p.CowParent
			v.resolved = true
			drainPreq(v)
			finish(v)
		}
	}

	// tryInheritPreq attempts to resolve v's cow_parent given its raw
	// snapshot parent p, per the parent-attach promotion rule: prefer p
	// itself if checked (depth 0 of the maxdepth=1 sibling scan), else
	// the most-recently-attached checked child already under p (depth 1
	// of that scan, no further descent), else p's own resolved
	// cow_parent. Returns false if none of these is available yet,
	// meaning p is itself an unresolved, unchecked node.
	tryInheritPreq := func(v, p *Node) bool {
		if p.Checked {
			v.CowParent = p
			return true
		}
		if sib := firstChecked(reversedCopy(p.fsChildren), 0); sib != nil {
			v.CowParent = sib
			return true
		}
		if p.resolved {
			v.CowParent = p.CowParent
			return true
		}
		return false
	}

	var drainParentWait func(p *Node)
	drainParentWait = func(p *Node) {
		uid := p.Subvolume.UUID
		waiters := parentWaitlist[uid]
		delete(parentWaitlist, uid)
		for _, v := range waiters {
			attach(v, p, tryInheritPreq, preqWaitlist, drainPreq, finish)
		}
	}

	for _, sv := range subvols {
		v := &Node{Subvolume: sv, Checked: check(sv)}

		puid, hasParent := sv.ParentUUID.Get()
		switch {
		case !hasParent:
			v.CowParent = nil
			v.resolved = true
			finish(v)
		case t.seen[puid] != nil:
			attach(v, t.seen[puid], tryInheritPreq, preqWaitlist, drainPreq, finish)
		default:
			parentWaitlist[puid] = append(parentWaitlist[puid], v)
		}

		t.seen[sv.UUID] = v
		drainParentWait(v)
	}

	// Orphan resolution: UUIDs still in parentWaitlist were never
	// presented. Each bucket's waiters are resolved against each other,
	// most-recently-seen orphan first, scanning the orphans themselves
	// only (no descent into their own children).
	for _, orphans := range parentWaitlist {
		var sibs []*Node
		for _, v := range orphans {
			if sib := firstChecked(reversedCopy(sibs), 0); sib != nil {
				v.CowParent = sib
			} else {
				v.CowParent = nil
			}
			v.resolved = true
			sibs = append(sibs, v)
			drainPreq(v)
			finish(v)
		}
	}

	return t
}

// attach performs the parent-attach step for v given its raw snapshot
// parent p: append v to p's fs_children, then resolve v.CowParent via
// tryInheritPreq, falling back to preqWaitlist on failure. v is
// appended to p.fsChildren only after the sibling scan runs against it,
// so v can never be found as its own sibling candidate.
func attach(
	v, p *Node,
	tryInheritPreq func(v, p *Node) bool,
	preqWaitlist map[string][]*Node,
	drainPreq func(p *Node),
	finish func(v *Node),
) {
	ok := tryInheritPreq(v, p)
	p.fsChildren = append(p.fsChildren, v)
	if !ok {
		preqWaitlist[p.Subvolume.UUID] = append(preqWaitlist[p.Subvolume.UUID], v)
		return
	}
	v.resolved = true
	drainPreq(v)
	finish(v)
}

// firstChecked returns the first Checked node found by a breadth-first
// scan of nodes and (up to maxDepth) their fsChildren, or nil.
func firstChecked(nodes []*Node, maxDepth int) *Node {
	var found *Node
	walk.BFS(nodes, func(n *Node) []*Node {
		return reversedCopy(n.fsChildren)
	}, maxDepth, false, func(n *Node, ok bool) bool {
		if n.Checked {
			found = n
			return false
		}
		return true
	})
	return found
}

func reversedCopy(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

// DFS iterates, depth-first, over node and its COW descendants.
func DFS(node *Node, visit func(*Node)) {
	walk.DFS(node, func(n *Node) []*Node { return n.CowChildren }, visit)
}

// BFS iterates, breadth-first, over nodes and their COW descendants.
func BFS(nodes []*Node, maxDepth int, depthMarkers bool, visit func(n *Node, ok bool) bool) {
	walk.BFS(nodes, func(n *Node) []*Node { return n.CowChildren }, maxDepth, depthMarkers, visit)
}

// Diff compares the COW hierarchies rooted at aroots and broots,
// identifying subvolumes as identical whenever any akey function and
// any bkey function produce the same non-empty value for them (every
// akey is tried against every bkey, not just pairwise). It returns two
// maps, keyed by UUID, from each side's nodes to the list of matching
// nodes on the other side.
func Diff(aroots, broots []*Node, akeys, bkeys []func(*Node) string) (coma, comb map[string][]*Node) {
	coma = make(map[string][]*Node)
	comb = make(map[string][]*Node)

	var aAll, bAll []*Node
	BFS(aroots, -1, false, func(n *Node, ok bool) bool { aAll = append(aAll, n); return true })
	BFS(broots, -1, false, func(n *Node, ok bool) bool { bAll = append(bAll, n); return true })

	agrps := make([]map[string][]*Node, len(akeys))
	for i, akey := range akeys {
		agrps[i] = walk.Group(aAll, akey)
	}
	bgrps := make([]map[string][]*Node, len(bkeys))
	for i, bkey := range bkeys {
		bgrps[i] = walk.Group(bAll, bkey)
	}

	for _, agrp := range agrps {
		for ak, avols := range agrp {
			if ak == "" {
				continue
			}
			for _, bgrp := range bgrps {
				bvols, ok := bgrp[ak]
				if !ok {
					continue
				}
				for _, avol := range avols {
					coma[avol.Subvolume.UUID] = append(coma[avol.Subvolume.UUID], bvols...)
				}
				for _, bvol := range bvols {
					comb[bvol.Subvolume.UUID] = append(comb[bvol.Subvolume.UUID], avols...)
				}
			}
		}
	}
	return coma, comb
}
