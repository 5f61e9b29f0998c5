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

// Package btrfs models btrfs subvolume records and the handful of
// btrfs-progs subcommands (list/show/send/receive) used to discover and
// move them, along with the line-oriented parsers for their output.
package btrfs

import (
	"fmt"
	"strings"

	"github.com/andreittr/btrsync/pkg/pathutil"
)

// FSTree is the reserved token btrfs-progs prints in place of an
// absolute filesystem-root-relative path.
const FSTree = "<FS_TREE>"

// Subvolume is a flat record as reported by `btrfs subvolume list`,
// enriched just enough to be fed into a cowtree.Tree. UUID identity and
// path are the fields the core cares about; ID/Generation/TopLevel are
// opaque payload carried through unexamined.
type Subvolume struct {
	UUID         string
	ParentUUID   Optional[string]
	ReceivedUUID Optional[string]
	Path         string

	ID         Optional[uint64]
	Generation Optional[uint64]
	TopLevel   Optional[uint64]
}

// AbsPaths rewrites the paths of vols to be absolute (FSTree-prefixed),
// merging any already-relative path onto rootpath. Absolute paths are
// left unchanged.
func AbsPaths(vols []Subvolume, rootpath string) ([]Subvolume, error) {
	if !strings.HasPrefix(rootpath, FSTree) {
		return nil, fmt.Errorf("btrfs: root path %q must start with %s", rootpath, FSTree)
	}
	out := make([]Subvolume, len(vols))
	for i, v := range vols {
		if strings.HasPrefix(v.Path, FSTree) {
			out[i] = v
			continue
		}
		nv := v
		nv.Path = pathutil.Merge(rootpath, v.Path, FSTree)
		out[i] = nv
	}
	return out, nil
}

// RelPaths rewrites the paths of vols that lie under rootpath to be
// relative to it. Paths already relative to the filesystem root are
// always rewritten relative to rootpath (gaining ".." components when
// they lie outside it), unless rootpath is FSTree itself; FSTree paths
// outside rootpath are left unchanged.
func RelPaths(vols []Subvolume, rootpath string) ([]Subvolume, error) {
	if !strings.HasPrefix(rootpath, FSTree) {
		return nil, fmt.Errorf("btrfs: root path %q must start with %s", rootpath, FSTree)
	}
	relroot := strings.TrimPrefix(strings.TrimPrefix(rootpath, FSTree), "/")
	out := make([]Subvolume, len(vols))
	for i, v := range vols {
		switch {
		case strings.HasPrefix(v.Path, rootpath):
			nv := v
			nv.Path = pathutil.Rel(v.Path, rootpath)
			out[i] = nv
		case relroot != "" && !strings.HasPrefix(v.Path, FSTree):
			nv := v
			nv.Path = pathutil.Rel(v.Path, relroot)
			out[i] = nv
		default:
			out[i] = v
		}
	}
	return out, nil
}
