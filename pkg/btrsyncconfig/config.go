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

// Package btrsyncconfig bundles the planner and transfer driver's
// recognized options, populated from CLI flags with environment
// variable fallbacks the way cmd/btrsync's flag registration falls
// back to BTRSYNC_* variables when a flag was left unset.
package btrsyncconfig

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
)

const (
	// EnvParallel sets the default for --parallel when unset.
	EnvParallel = "BTRSYNC_PARALLEL"
	// EnvScope sets the default for --scope when unset.
	EnvScope = "BTRSYNC_SCOPE"
	// EnvProgressPeriod sets ProgressPeriod. cmd/btrsync replaces that
	// value with --progress-period (default 1s) whenever --progress is
	// given without -q.
	EnvProgressPeriod = "BTRSYNC_PROGRESS_PERIOD"
	// EnvSudoSource sets the default for --sudo-src when unset.
	EnvSudoSource = "BTRSYNC_SUDO_SRC"
	// EnvSudoDest sets the default for --sudo-dest when unset.
	EnvSudoDest = "BTRSYNC_SUDO_DEST"
)

// Options is the full recognized options bundle a BtrSync planner and
// its Transfer driver consult.
type Options struct {
	// Batch packs the volumes of a wave that share the same incremental
	// parent and the same directory into a single transfer.
	Batch bool
	// Parallel allows more than one transfer in flight within a wave.
	Parallel bool
	// TransferExisting re-sends a subvolume that already exists at the
	// destination instead of skipping it.
	TransferExisting bool
	// IncrementalOnly rejects any candidate with no COW parent, the
	// behavior of the teacher's IncrSync variant.
	IncrementalOnly bool
	// ReplicateDirs creates intermediate directories at the
	// destination mirroring the source subvolume's path, rather than
	// flattening everything into one receive path.
	ReplicateDirs bool
	// CreateDestPath creates the destination root itself if missing.
	CreateDestPath bool
	// ProgressPeriod is how often a RateReporter ticks during a single
	// transfer; zero disables rate reporting.
	ProgressPeriod time.Duration
	// Scope bounds subvolume discovery on both roots.
	Scope btrfsroot.Scope
	// SudoSource runs every command against the source root under sudo.
	SudoSource bool
	// SudoDest runs every command against the destination root under sudo.
	SudoDest bool
}

// Default returns the zero-value Options augmented with the package
// defaults (ScopeAll).
func Default() Options {
	return Options{Scope: btrfsroot.ScopeAll}
}

// ApplyEnv sets each field of o whose BTRSYNC_* environment variable is
// present, overwriting whatever o held; fields whose variable is unset
// are left alone. It returns the updated Options. Flags take precedence over environment variables,
// so callers apply ApplyEnv before parsing flags, then let flag
// parsing overwrite whatever the environment set.
func ApplyEnv(o Options) (Options, error) {
	if v, ok := os.LookupEnv(EnvParallel); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, errors.Wrapf(err, "%s must be a boolean", EnvParallel)
		}
		o.Parallel = b
	}
	if v, ok := os.LookupEnv(EnvScope); ok {
		s, err := btrfsroot.ParseScope(v)
		if err != nil {
			return o, errors.Wrapf(err, "%s", EnvScope)
		}
		o.Scope = s
	}
	if v, ok := os.LookupEnv(EnvProgressPeriod); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return o, errors.Wrapf(err, "%s must be a duration", EnvProgressPeriod)
		}
		o.ProgressPeriod = d
	}
	if v, ok := os.LookupEnv(EnvSudoSource); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, errors.Wrapf(err, "%s must be a boolean", EnvSudoSource)
		}
		o.SudoSource = b
	}
	if v, ok := os.LookupEnv(EnvSudoDest); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, errors.Wrapf(err, "%s must be a boolean", EnvSudoDest)
		}
		o.SudoDest = b
	}
	return o, nil
}
