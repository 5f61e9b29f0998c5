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

package btrfsroot

import (
	"context"
	"strconv"
	"strings"

	"github.com/andreittr/btrsync/pkg/btrfs"
)

// SSHOptions configures the ssh invocation an SSH-wrapped LocalRoot
// ships every command pipeline through.
type SSHOptions struct {
	Host     string
	User     string
	Port     int // 0 means default
	KeyPath  string
	Compress bool
	Sudo     bool
}

func (o SSHOptions) sshCmd() btrfs.Cmd {
	args := []string{}
	if o.Compress {
		args = append(args, "-C")
	}
	if o.User != "" {
		args = append(args, "-l", o.User)
	}
	if o.Port != 0 {
		args = append(args, "-p", strconv.Itoa(o.Port))
	}
	if o.KeyPath != "" {
		args = append(args, "-i", o.KeyPath)
	}
	args = append(args, o.Host)
	return btrfs.Cmd{Program: "ssh", Args: args}
}

// wrap ships cmd through ssh as a single shell-quoted argument,
// applying sudo inside the remote shell first when configured.
func (o SSHOptions) wrap(cmd btrfs.Cmd) btrfs.Cmd {
	if o.Sudo {
		cmd = cmd.Wrap(sudoCmd, false, "")
	}
	return cmd.Wrap(o.sshCmd(), true, "")
}

func (o SSHOptions) name() string {
	prefix := ""
	if o.User != "" {
		prefix = o.User + "@"
	}
	return prefix + o.Host
}

// NewSSHRoot constructs a LocalRoot anchored directly at rootpath on
// the remote host described by ssh, with every command relayed through
// an `ssh` invocation instead of running locally.
func NewSSHRoot(rootpath string, scope Scope, readonly bool, ssh SSHOptions) *LocalRoot {
	r := &LocalRoot{RootPath: rootpath, Scope: scope, Readonly: readonly, WrapCmd: ssh.wrap}
	r.NameFn = func() string { return ssh.name() + ":" + r.RootPath }
	return r
}

// IsSSHRoot reports whether path is itself a btrfs subvolume on the
// remote host described by ssh.
func IsSSHRoot(ctx context.Context, path string, ssh SSHOptions) (bool, error) {
	cmd, err := btrfs.Show(path, btrfs.ShowOptions{})
	if err != nil {
		return false, err
	}
	_, stderr, err := runCaptured(ctx, ssh.wrap(cmd))
	if err == nil {
		return true, nil
	}
	if strings.Contains(stderr, "Not a Btrfs subvolume") || strings.Contains(stderr, "No such file or directory") {
		return false, nil
	}
	return false, err
}

// DiscoverSSHRoot walks path's ancestry upward on the remote host until
// it finds a subvolume boundary.
func DiscoverSSHRoot(ctx context.Context, path string, scope Scope, readonly bool, ssh SSHOptions) (*LocalRoot, string, error) {
	probe := func(ctx context.Context, p string) (bool, error) {
		return IsSSHRoot(ctx, p, ssh)
	}
	rp, rel, err := discoverRoot(ctx, path, probe)
	if err != nil {
		return nil, "", err
	}
	return NewSSHRoot(rp, scope, readonly, ssh), rel, nil
}
