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

package btrfs

import (
	"fmt"
	"strconv"
	"strings"
)

// tabsplit splits a tab-separated line, trimming whitespace and
// dropping empty cells, matching the column layout `btrfs subvolume
// list -t` prints.
func tabsplit(line string) []string {
	fields := strings.Split(line, "\t")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// valid maps the literal "-" cell btrfs-progs prints for an absent
// value to the empty string; callers distinguish absence from an
// actually-empty string via Optional, not via "".
func valid(v string) (string, bool) {
	if v == "-" {
		return "", false
	}
	return v, true
}

// ParseList parses the lines of `btrfs subvolume list -t ...` output
// (as produced by List) into Subvolume records. Line 1 is a
// tab-separated header; line 2 must be a "-"-prefixed separator; every
// subsequent line is a row keyed by the header.
func ParseList(lines []string) ([]Subvolume, error) {
	if len(lines) < 2 {
		return nil, fmt.Errorf("btrfs: list output too short, expected at least a header and separator")
	}
	hdrs := tabsplit(lines[0])
	if !strings.HasPrefix(lines[1], "-") {
		return nil, fmt.Errorf("btrfs: expected separator on line 2, got %q", lines[1])
	}
	out := make([]Subvolume, 0, len(lines)-2)
	for _, line := range lines[2:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := tabsplit(line)
		row := make(map[string]string, len(hdrs))
		for i, h := range hdrs {
			if i < len(cells) {
				row[h] = cells[i]
			}
		}
		sv, err := subvolumeFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, nil
}

func subvolumeFromRow(row map[string]string) (Subvolume, error) {
	var sv Subvolume
	if p, ok := valid(row["path"]); ok {
		sv.Path = p
	}
	if u, ok := valid(row["uuid"]); ok {
		sv.UUID = u
	}
	if pu, ok := valid(row["parent_uuid"]); ok {
		sv.ParentUUID = Some(pu)
	}
	if ru, ok := valid(row["received_uuid"]); ok {
		sv.ReceivedUUID = Some(ru)
	}
	if id, ok := valid(row["ID"]); ok {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return Subvolume{}, fmt.Errorf("btrfs: parsing ID %q: %w", id, err)
		}
		sv.ID = Some(n)
	}
	if gen, ok := valid(row["gen"]); ok {
		n, err := strconv.ParseUint(gen, 10, 64)
		if err != nil {
			return Subvolume{}, fmt.Errorf("btrfs: parsing gen %q: %w", gen, err)
		}
		sv.Generation = Some(n)
	}
	if tl, ok := valid(row["top level"]); ok {
		n, err := strconv.ParseUint(tl, 10, 64)
		if err != nil {
			return Subvolume{}, fmt.Errorf("btrfs: parsing top level %q: %w", tl, err)
		}
		sv.TopLevel = Some(n)
	}
	return sv, nil
}

// ShowResult is the decoded output of `btrfs subvolume show`: the
// filesystem path of the subvolume, followed by its reported
// properties (some of which, like "Snapshot(s)", are multi-line lists).
type ShowResult struct {
	Path       string
	Properties map[string]string
	Lists      map[string][]string
}

// ParseShow parses the lines of `btrfs subvolume show ...` output (as
// produced by Show). The first line is the subvolume's filesystem
// path; subsequent "key<TAB>value..." lines are scalar properties, and
// a bare "key" line with no tab-separated value starts a multi-line
// list that continues until the next "key<TAB>value" line.
func ParseShow(lines []string) (ShowResult, error) {
	if len(lines) == 0 {
		return ShowResult{}, fmt.Errorf("btrfs: show output is empty")
	}
	res := ShowResult{
		Path:       lines[0],
		Properties: map[string]string{},
		Lists:      map[string][]string{},
	}
	var mlKey string
	var ml []string
	flush := func() {
		if ml != nil {
			res.Lists[mlKey] = ml
			ml = nil
		}
	}
	for _, line := range lines[1:] {
		cells := tabsplit(line)
		if len(cells) == 0 {
			continue
		}
		k, v := cells[0], cells[1:]
		if len(v) == 0 {
			if ml == nil {
				mlKey = k
				ml = []string{}
			} else {
				ml = append(ml, k)
			}
			continue
		}
		flush()
		if val, ok := valid(strings.Join(v, " ")); ok {
			res.Properties[k] = val
		}
	}
	flush()
	return res, nil
}
