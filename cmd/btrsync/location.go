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

package main

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
	"github.com/andreittr/btrsync/pkg/location"
)

// rootBuildOptions bundles the settings resolveDestRoot/resolveSrcRoot
// need beyond the bare location string.
type rootBuildOptions struct {
	scope btrfsroot.Scope
	sudo  bool
}

func sshOptionsFor(ssh location.SSHLoc, sudo bool) (btrfsroot.SSHOptions, error) {
	opts := btrfsroot.SSHOptions{Host: ssh.Host, User: ssh.User, Sudo: sudo}
	if ssh.Port != "" {
		p, err := strconv.Atoi(ssh.Port)
		if err != nil {
			return btrfsroot.SSHOptions{}, err
		}
		opts.Port = p
	}
	return opts, nil
}

// isRoot reports whether parsed.Path is itself a subvolume boundary.
func isRoot(ctx context.Context, parsed location.Parsed, opts rootBuildOptions) (bool, error) {
	if parsed.Scheme == location.SchemeSSH {
		ssh, err := sshOptionsFor(parsed.SSH, opts.sudo)
		if err != nil {
			return false, err
		}
		return btrfsroot.IsSSHRoot(ctx, parsed.Path, ssh)
	}
	return btrfsroot.IsLocalRoot(ctx, parsed.Path, opts.sudo)
}

// newRootAt constructs a root directly anchored at parsed.Path, with no
// upward discovery (parsed.Path is already known to be a boundary).
func newRootAt(parsed location.Parsed, opts rootBuildOptions, readonly bool) (btrfsroot.Root, error) {
	if parsed.Scheme == location.SchemeSSH {
		ssh, err := sshOptionsFor(parsed.SSH, opts.sudo)
		if err != nil {
			return nil, err
		}
		return btrfsroot.NewSSHRoot(parsed.Path, opts.scope, readonly, ssh), nil
	}
	return btrfsroot.NewLocalRoot(parsed.Path, opts.scope, readonly, opts.sudo), nil
}

// discoverRootFrom walks parsed.Path's ancestry upward until it finds a
// subvolume boundary, returning the root anchored there and
// parsed.Path expressed relative to it.
func discoverRootFrom(ctx context.Context, parsed location.Parsed, opts rootBuildOptions, readonly bool) (btrfsroot.Root, string, error) {
	if parsed.Scheme == location.SchemeSSH {
		ssh, err := sshOptionsFor(parsed.SSH, opts.sudo)
		if err != nil {
			return nil, "", err
		}
		return btrfsroot.DiscoverSSHRoot(ctx, parsed.Path, opts.scope, readonly, ssh)
	}
	return btrfsroot.DiscoverLocalRoot(ctx, parsed.Path, opts.scope, readonly, opts.sudo)
}

// resolveDestRoot parses and discovers the destination root, returning
// the root anchored at its discovered boundary and the receive path
// for loc relative to it.
func resolveDestRoot(ctx context.Context, loc string, opts rootBuildOptions) (btrfsroot.Root, string, error) {
	parsed, err := location.Parse(loc)
	if err != nil {
		return nil, "", err
	}
	return discoverRootFrom(ctx, parsed, opts, false)
}

// srcMatch bundles a source's Matcher with its embedded BaseMatch, so
// callers can set include/exclude globs without a type switch over
// which concrete Matcher resolveSrcRoot built.
type srcMatch struct {
	location.Matcher
	base *location.BaseMatch
}

func (m srcMatch) setFilters(incl, excl []string) {
	m.base.Incl = incl
	m.base.Excl = excl
}

// resolveSrcRoot parses and discovers a source root, returning a
// Matcher that targets either exactly the path named (when it is
// itself a subvolume), everything under the root (a trailing slash),
// or everything under a glob prefix.
func resolveSrcRoot(ctx context.Context, loc string, opts rootBuildOptions) (btrfsroot.Root, srcMatch, error) {
	parsed, err := location.Parse(loc)
	if err != nil {
		return nil, srcMatch{}, err
	}

	atRoot, err := isRoot(ctx, parsed, opts)
	if err != nil {
		return nil, srcMatch{}, err
	}

	if atRoot {
		if strings.HasSuffix(parsed.Path, "/") {
			root, err := newRootAt(parsed, opts, true)
			if err != nil {
				return nil, srcMatch{}, err
			}
			m, err := location.NewUnderGlob("*")
			if err != nil {
				return nil, srcMatch{}, err
			}
			return root, srcMatch{Matcher: m, base: &m.BaseMatch}, nil
		}
		root, rel, err := discoverRootFrom(ctx, location.Parsed{Scheme: parsed.Scheme, SSH: parsed.SSH, Path: path.Dir(parsed.Path)}, opts, true)
		if err != nil {
			return nil, srcMatch{}, err
		}
		m := location.NewSingleMatch(path.Join(rel, path.Base(parsed.Path)))
		return root, srcMatch{Matcher: m, base: &m.BaseMatch}, nil
	}

	root, rel, err := discoverRootFrom(ctx, location.Parsed{Scheme: parsed.Scheme, SSH: parsed.SSH, Path: path.Dir(parsed.Path)}, opts, true)
	if err != nil {
		return nil, srcMatch{}, err
	}
	m, err := location.NewUnderGlob(path.Join(rel, path.Base(parsed.Path)))
	if err != nil {
		return nil, srcMatch{}, err
	}
	return root, srcMatch{Matcher: m, base: &m.BaseMatch}, nil
}
