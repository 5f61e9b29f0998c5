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

package cowtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreittr/btrsync/pkg/btrfs"
)

func vol(uuid string, parent string) btrfs.Subvolume {
	sv := btrfs.Subvolume{UUID: uuid}
	if parent != "" {
		sv.ParentUUID = btrfs.Some(parent)
	}
	return sv
}

func byUUID(t *Tree, uuid string) *Node {
	return t.seen[uuid]
}

func TestBuildChain(t *testing.T) {
	// S2: V0 (root), V1 (parent V0), V2 (parent V1), all checked.
	subvols := []btrfs.Subvolume{
		vol("u0", ""),
		vol("u1", "u0"),
		vol("u2", "u1"),
	}
	tree := Build(subvols, nil)
	require.Len(t, tree.Roots, 1)
	v0 := tree.Roots[0]
	assert.Equal(t, "u0", v0.Subvolume.UUID)
	require.Len(t, v0.CowChildren, 1)
	v1 := v0.CowChildren[0]
	assert.Equal(t, "u1", v1.Subvolume.UUID)
	require.Len(t, v1.CowChildren, 1)
	assert.Equal(t, "u2", v1.CowChildren[0].Subvolume.UUID)
}

func TestOrphanResolutionBySibling(t *testing.T) {
	// S5: X and Y both reference a parent that never shows up; X
	// becomes root, Y attaches to X via the sibling-subtree scan.
	subvols := []btrfs.Subvolume{
		vol("x", "ghost"),
		vol("y", "ghost"),
	}
	tree := Build(subvols, nil)
	require.Len(t, tree.Roots, 1)
	x := tree.Roots[0]
	assert.Equal(t, "x", x.Subvolume.UUID)
	require.Len(t, x.CowChildren, 1)
	assert.Equal(t, "y", x.CowChildren[0].Subvolume.UUID)
}

func TestSiblingScanDoesNotDescendPastDepthOne(t *testing.T) {
	// par is unchecked; its only attached child sib is also unchecked,
	// but sib's own child subsib is checked. A new node parented at par
	// must not find subsib (that is two levels below par, past the
	// maxdepth=1 bound) and instead falls back to par's own resolved
	// cow_parent.
	subvols := []btrfs.Subvolume{
		vol("root", ""),
		vol("par", "root"),
		vol("sib", "par"),
		vol("subsib", "sib"),
		vol("late", "par"),
	}
	checked := map[string]bool{"root": true, "par": false, "sib": false, "subsib": true, "late": true}
	tree := Build(subvols, func(sv btrfs.Subvolume) bool { return checked[sv.UUID] })

	late := byUUID(tree, "late")
	require.NotNil(t, late.CowParent)
	assert.Equal(t, "root", late.CowParent.Subvolume.UUID)
}

func TestUncheckedParentSkippedViaSibling(t *testing.T) {
	// par is unchecked; a checked sibling attached earlier under par
	// should be preferred over skipping straight to par's own parent.
	subvols := []btrfs.Subvolume{
		vol("root", ""),
		vol("par", "root"),   // unchecked
		vol("sib", "par"),    // checked, attaches directly under par
		vol("late", "par"), // checked, should prefer sib over root
	}
	checked := map[string]bool{"root": true, "par": false, "sib": true, "late": true}
	tree := Build(subvols, func(sv btrfs.Subvolume) bool { return checked[sv.UUID] })

	late := byUUID(tree, "late")
	require.NotNil(t, late.CowParent)
	assert.Equal(t, "sib", late.CowParent.Subvolume.UUID)
}

func TestPreqWaitlistRetroactiveFix(t *testing.T) {
	// x arrives before its own parent g, so x sits unresolved. y then
	// arrives with parent_uuid=x, but x is unchecked and has no checked
	// fs_children yet, so y must wait in preqWaitlist until x itself
	// resolves against g, then be retroactively attached to x's
	// resolved cow_parent (g).
	subvols := []btrfs.Subvolume{
		vol("x", "g"),
		vol("y", "x"),
		vol("g", ""),
	}
	checked := map[string]bool{"x": false, "y": true, "g": true}
	tree := Build(subvols, func(sv btrfs.Subvolume) bool { return checked[sv.UUID] })

	require.Len(t, tree.Roots, 1)
	g := tree.Roots[0]
	assert.Equal(t, "g", g.Subvolume.UUID)
	require.Len(t, g.CowChildren, 1)
	assert.Equal(t, "y", g.CowChildren[0].Subvolume.UUID)

	y := byUUID(tree, "y")
	require.NotNil(t, y.CowParent)
	assert.Equal(t, "g", y.CowParent.Subvolume.UUID)
}

func TestAncestors(t *testing.T) {
	subvols := []btrfs.Subvolume{
		vol("u0", ""),
		vol("u1", "u0"),
		vol("u2", "u1"),
	}
	tree := Build(subvols, nil)
	u2 := byUUID(tree, "u2")
	chain := Ancestors(u2)
	require.Len(t, chain, 3)
	assert.Equal(t, []string{"u2", "u1", "u0"}, []string{
		chain[0].Subvolume.UUID, chain[1].Subvolume.UUID, chain[2].Subvolume.UUID,
	})
}

func TestDiff(t *testing.T) {
	a := Build([]btrfs.Subvolume{vol("a0", "")}, nil)
	b := Build([]btrfs.Subvolume{{UUID: "b0", ReceivedUUID: btrfs.Some("a0")}}, nil)

	byUUIDKey := func(n *Node) string { return n.Subvolume.UUID }
	byReceived := func(n *Node) string {
		if ru, ok := n.Subvolume.ReceivedUUID.Get(); ok {
			return ru
		}
		return ""
	}

	coma, comb := Diff(a.Roots, b.Roots, []func(*Node) string{byUUIDKey}, []func(*Node) string{byReceived})
	require.Contains(t, coma, "a0")
	assert.Equal(t, "b0", coma["a0"][0].Subvolume.UUID)
	require.Contains(t, comb, "b0")
	assert.Equal(t, "a0", comb["b0"][0].Subvolume.UUID)
}
