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
	"time"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
	"github.com/andreittr/btrsync/pkg/btrsyncconfig"
)

// autoMode mirrors cli.py's tri-state `auto`: nil means ask for
// confirmation, a true value means proceed without asking, and a false
// value means print what would happen without doing it.
type autoMode = *bool

func resolveAutoMode(f *rawFlags) autoMode {
	switch {
	case f.noConfirm:
		v := true
		return &v
	case f.dryRun:
		v := false
		return &v
	default:
		return nil
	}
}

// buildOptions turns the raw flags into a btrsyncconfig.Options,
// layering BTRSYNC_* environment fallbacks under whatever flags the
// user actually set.
func buildOptions(f *rawFlags) (btrsyncconfig.Options, error) {
	o, err := btrsyncconfig.ApplyEnv(btrsyncconfig.Default())
	if err != nil {
		return btrsyncconfig.Options{}, err
	}

	o.Batch = o.Batch || f.batch
	o.Parallel = o.Parallel || f.parallel
	o.TransferExisting = o.TransferExisting || f.existing
	o.IncrementalOnly = f.incrementalOnly
	o.ReplicateDirs = f.replicateDirs
	o.CreateDestPath = f.createDestPath || f.replicateDirs

	if f.progress && f.quiet == 0 {
		o.ProgressPeriod = time.Duration(f.progressPeriod * float64(time.Second))
	}

	if f.scope != "" {
		scope, err := btrfsroot.ParseScope(f.scope)
		if err != nil {
			return btrsyncconfig.Options{}, err
		}
		o.Scope = scope
	}

	o.SudoSource = o.SudoSource || f.sudo || f.sudoSrc
	o.SudoDest = o.SudoDest || f.sudo || f.sudoDest

	return o, nil
}
