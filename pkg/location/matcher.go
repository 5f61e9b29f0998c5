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

package location

import (
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/andreittr/btrsync/pkg/syncerr"
)

// Matcher decides which discovered subvolume paths a sync targets, and
// when the sync should stop processing the remaining candidates for
// the current source argument.
type Matcher interface {
	// Match reports whether path is targeted by this matcher.
	Match(path string) bool
	// Stop reports whether processing should end after handling paths,
	// the already-matched set from the current wave.
	Stop(paths []string) bool
}

// BaseMatch implements include/exclude glob filtering shared by every
// concrete Matcher: a path is included if no include globs were given
// or it matches at least one, and is always excluded if it matches any
// exclude glob. baseMatch narrows (or rejects outright) the path
// presented to the glob lists; the zero value passes every path
// through unchanged.
type BaseMatch struct {
	Incl []string
	Excl []string

	// BaseMatchFn narrows path before glob matching, returning ok=false
	// to reject path outright regardless of the glob lists. Defaults to
	// the identity transform when nil.
	BaseMatchFn func(path string) (narrowed string, ok bool)
}

func (b *BaseMatch) baseMatch(p string) (string, bool) {
	if b.BaseMatchFn == nil {
		return p, true
	}
	return b.BaseMatchFn(p)
}

// Match implements Matcher.
func (b *BaseMatch) Match(p string) bool {
	rpath, ok := b.baseMatch(p)
	if !ok {
		return false
	}
	if len(b.Incl) > 0 && !anyGlobMatch(b.Incl, rpath) {
		return false
	}
	if anyGlobMatch(b.Excl, rpath) {
		return false
	}
	return true
}

// Stop implements Matcher, always continuing.
func (b *BaseMatch) Stop([]string) bool { return false }

func anyGlobMatch(globs []string, p string) bool {
	for _, g := range globs {
		if ok, _ := path.Match(g, p); ok {
			return true
		}
	}
	return false
}

// SingleMatch targets exactly one path and stops all further
// processing of the current source argument once it has been handled.
type SingleMatch struct {
	BaseMatch
	Path string
}

// NewSingleMatch builds a Matcher targeting exactly p.
func NewSingleMatch(p string) *SingleMatch {
	m := &SingleMatch{Path: p}
	m.BaseMatchFn = func(candidate string) (string, bool) {
		if candidate != p {
			return "", false
		}
		return candidate, true
	}
	return m
}

// Stop always returns true: SingleMatch targets exactly one path, so
// there is nothing left to process once it is handled.
func (m *SingleMatch) Stop(paths []string) bool { return true }

// UnderGlob matches every path exactly one component below a glob
// prefix (path.Match's "*" does not cross "/", so neither the prefix
// itself nor deeper paths match), presenting the portion relative to
// that prefix to the include/exclude lists.
type UnderGlob struct {
	BaseMatch
	glob string
}

// NewUnderGlob builds a Matcher for every path under glob (a
// slash-separated, relative glob pattern; a trailing "/*" is implied
// if not already present).
func NewUnderGlob(glob string) (*UnderGlob, error) {
	if path.IsAbs(glob) {
		return nil, errors.Wrap(syncerr.ErrValidation, "glob must specify a relative path")
	}
	if !strings.HasSuffix(glob, "*") {
		glob = path.Join(glob, "*")
	}
	prefix := strings.TrimSuffix(glob, "*")

	m := &UnderGlob{glob: glob}
	m.BaseMatchFn = func(candidate string) (string, bool) {
		if ok, _ := path.Match(glob, candidate); !ok {
			return "", false
		}
		return strings.TrimPrefix(candidate, prefix), true
	}
	return m, nil
}

// String returns the matcher's glob, for diagnostics.
func (m *UnderGlob) String() string { return "UnderGlob(" + m.glob + ")" }
