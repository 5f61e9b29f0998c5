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
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/andreittr/btrsync/pkg/syncerr"
)

// Cmd is a (program, arguments) pair, the representation every root
// implementation (local, ssh, ...) consumes to actually run a command.
type Cmd struct {
	Program string
	Args    []string
}

// Shellify returns a shell-escaped, space-joined command string form of c.
func (c Cmd) Shellify() string {
	tok := make([]string, 0, len(c.Args)+1)
	tok = append(tok, quote(c.Program))
	for _, a := range c.Args {
		tok = append(tok, quote(a))
	}
	return strings.Join(tok, " ")
}

// Wrap returns a new Cmd that passes c as arguments to outer. If
// shellfmt is true, c is passed as a single shell-escaped string
// argument to outer; otherwise c.Program and c.Args are appended as
// individual arguments. If endmark is non-empty, it is appended as a
// final argument after c.
func (c Cmd) Wrap(outer Cmd, shellfmt bool, endmark string) Cmd {
	args := make([]string, 0, len(outer.Args)+len(c.Args)+2)
	args = append(args, outer.Args...)
	if shellfmt {
		args = append(args, c.Shellify())
	} else {
		args = append(args, c.Program)
		args = append(args, c.Args...)
	}
	if endmark != "" {
		args = append(args, endmark)
	}
	return Cmd{Program: outer.Program, Args: args}
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9@%_+=:,./-]+$`)

// quote mimics Python's shlex.quote: returns s unchanged if it contains
// only characters that never need escaping in a POSIX shell word,
// otherwise wraps it in single quotes, escaping any embedded quote.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// listFields is the full set of subvolume fields `btrfs subvolume list`
// can print; see btrfs-subvolume(8).
const listFields = "pcguqR"

// List builds a `btrfs subvolume list` command. listAll selects -a
// (every subvolume in the filesystem) over -o (direct descendants of
// path only). fields must be a subset of "pcguqR"; the zero value
// selects all of them.
func List(path string, listAll, readonly bool, fields string) (Cmd, error) {
	if fields == "" {
		fields = listFields
	}
	for _, f := range fields {
		if !strings.ContainsRune(listFields, f) {
			return Cmd{}, errors.Wrapf(syncerr.ErrValidation, "btrfs: unknown list field %q; allowed fields are %s", f, listFields)
		}
	}
	args := []string{"subvolume", "list", "-t"}
	if listAll {
		args = append(args, "-a")
	} else {
		args = append(args, "-o")
	}
	if readonly {
		args = append(args, "-r")
	}
	args = append(args, "-"+fields, path)
	return Cmd{Program: "btrfs", Args: args}, nil
}

// SendOptions configures a Send command.
type SendOptions struct {
	Parent         string   // -p, empty means no parent (full send)
	Clones         []string // -c, repeated
	KeepCompressed bool     // --compressed-data
}

// Send builds a `btrfs send` command for one or more paths. At least
// one path is required.
func Send(opts SendOptions, paths ...string) (Cmd, error) {
	if len(paths) == 0 {
		return Cmd{}, errors.Wrap(syncerr.ErrValidation, "btrfs: send requires at least one path")
	}
	args := []string{"send"}
	if opts.KeepCompressed {
		args = append(args, "--compressed-data")
	}
	if opts.Parent != "" {
		args = append(args, "-p", opts.Parent)
	}
	for _, cl := range opts.Clones {
		args = append(args, "-c", cl)
	}
	args = append(args, paths...)
	return Cmd{Program: "btrfs", Args: args}, nil
}

// Receive builds a `btrfs receive` command.
func Receive(path string, forceDecompress bool) Cmd {
	args := []string{"receive"}
	if forceDecompress {
		args = append(args, "--force-decompress")
	}
	args = append(args, path)
	return Cmd{Program: "btrfs", Args: args}
}

// ShowOptions configures a Show command. At most one of UUID and
// RootID may be set.
type ShowOptions struct {
	UUID   string
	RootID string
}

// Show builds a `btrfs subvolume show` command.
func Show(path string, opts ShowOptions) (Cmd, error) {
	if opts.UUID != "" && opts.RootID != "" {
		return Cmd{}, errors.Wrap(syncerr.ErrValidation, "btrfs: at most one of uuid and rootid may be specified")
	}
	args := []string{"subvolume", "show"}
	switch {
	case opts.UUID != "":
		args = append(args, "-u", opts.UUID)
	case opts.RootID != "":
		args = append(args, "-r", opts.RootID)
	}
	args = append(args, path)
	return Cmd{Program: "btrfs", Args: args}, nil
}
