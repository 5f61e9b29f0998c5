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

// Package location parses the command-line location grammar btrsync
// accepts for its source and destination arguments: bare local paths,
// SCP-style [user@]host:path, and scheme://netloc/path URLs (ssh://
// and file:// in particular).
package location

import (
	"net/url"
	"regexp"

	"github.com/pkg/errors"

	"github.com/andreittr/btrsync/pkg/syncerr"
)

// Scheme identifies which kind of root a Parsed location resolves to.
type Scheme string

const (
	SchemeLocal Scheme = "local"
	SchemeSSH   Scheme = "ssh"
)

// SSHLoc holds the parsed and validated parameters of an SSH location.
type SSHLoc struct {
	User string // empty when unspecified
	Host string
	Port string // empty when unspecified
}

var (
	sshREt  = regexp.MustCompile(`^(?:([^@]*)@)?(.*)$`)
	sshLocR = regexp.MustCompile(`^((?:[^/:@]*@)?\[[A-Fa-f0-9:]+\]|[^/:]*):(.*)$`)
	urlSchR = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// parseSSHFromSCP parses an SSH location from a `user@hostname` form
// (no port component).
func parseSSHFromSCP(s string) SSHLoc {
	m := sshREt.FindStringSubmatch(s)
	return SSHLoc{User: m[1], Host: m[2]}
}

// Validate checks that Host is non-empty. It does not reject an
// explicitly empty user or port (as in "@host:path" or
// "ssh://host:/path"): SSHLoc stores those the same way as an absent
// user or port.
func (l SSHLoc) Validate() error {
	if l.Host == "" {
		return errors.Wrap(syncerr.ErrValidation, "SSH host cannot be empty")
	}
	return nil
}

// Parsed is the result of parsing a location string.
type Parsed struct {
	Scheme Scheme
	SSH    SSHLoc // populated when Scheme == SchemeSSH
	Path   string
}

// Parse parses locstr into a Parsed location, per the grammar:
//
//   - a bare path with no leading scheme and no `host:` prefix is local;
//   - `[user@]host:path` (SCP form) is SSH;
//   - `ssh://[user@]host[:port]/path` is SSH;
//   - `file:///path` is local, stripped of its scheme;
//   - any other `scheme://...` is rejected, since btrsync only speaks
//     local and SSH roots.
func Parse(locstr string) (Parsed, error) {
	sshMatch := sshLocR.FindStringSubmatch(locstr)
	if sshMatch == nil {
		return Parsed{Scheme: SchemeLocal, Path: locstr}, nil
	}

	if urlSchR.MatchString(locstr) {
		u, err := url.Parse(locstr)
		if err != nil {
			return Parsed{}, errors.Wrapf(syncerr.ErrValidation, "invalid location %q: %v", locstr, err)
		}
		switch u.Scheme {
		case "file":
			return Parsed{Scheme: SchemeLocal, Path: u.Path}, nil
		case "ssh":
			ssh := SSHLoc{Host: u.Hostname(), Port: u.Port()}
			if u.User != nil {
				ssh.User = u.User.Username()
			}
			if err := ssh.Validate(); err != nil {
				return Parsed{}, err
			}
			return Parsed{Scheme: SchemeSSH, SSH: ssh, Path: u.Path}, nil
		default:
			return Parsed{}, errors.Wrapf(syncerr.ErrValidation, "unsupported location scheme %q", u.Scheme)
		}
	}

	host, path := sshMatch[1], sshMatch[2]
	ssh := parseSSHFromSCP(host)
	if err := ssh.Validate(); err != nil {
		return Parsed{}, err
	}
	return Parsed{Scheme: SchemeSSH, SSH: ssh, Path: path}, nil
}
