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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
	"github.com/andreittr/btrsync/pkg/btrsyncconfig"
)

func TestResolveAutoMode(t *testing.T) {
	assert.Nil(t, resolveAutoMode(&rawFlags{}))

	m := resolveAutoMode(&rawFlags{noConfirm: true})
	require.NotNil(t, m)
	assert.True(t, *m)

	m = resolveAutoMode(&rawFlags{dryRun: true})
	require.NotNil(t, m)
	assert.False(t, *m)

	assert.Nil(t, resolveAutoMode(&rawFlags{interactive: true}))
}

func TestBuildOptionsAppliesFlags(t *testing.T) {
	f := &rawFlags{
		batch:          true,
		parallel:       true,
		existing:       true,
		replicateDirs:  true,
		progress:       true,
		progressPeriod: 2.5,
		sudo:           true,
		scope:          "strict",
	}
	o, err := buildOptions(f)
	require.NoError(t, err)
	assert.True(t, o.Batch)
	assert.True(t, o.Parallel)
	assert.True(t, o.TransferExisting)
	assert.True(t, o.ReplicateDirs)
	assert.True(t, o.CreateDestPath, "replicate-dirs implies create-destpath")
	assert.Equal(t, 2500*time.Millisecond, o.ProgressPeriod)
	assert.True(t, o.SudoSource)
	assert.True(t, o.SudoDest)
	assert.Equal(t, btrfsroot.ScopeStrict, o.Scope)
}

func TestBuildOptionsQuietSuppressesProgressPeriod(t *testing.T) {
	f := &rawFlags{progress: true, progressPeriod: 2, quiet: 1}
	o, err := buildOptions(f)
	require.NoError(t, err)
	assert.Zero(t, o.ProgressPeriod)
}

func TestBuildOptionsRejectsBadScope(t *testing.T) {
	_, err := buildOptions(&rawFlags{scope: "bogus"})
	assert.Error(t, err)
}

func TestBuildOptionsLayersOverEnvDefaults(t *testing.T) {
	t.Setenv(btrsyncconfig.EnvParallel, "true")
	t.Setenv(btrsyncconfig.EnvSudoDest, "true")

	o, err := buildOptions(&rawFlags{})
	require.NoError(t, err)
	assert.True(t, o.Parallel, "flag unset, environment default should apply")
	assert.True(t, o.SudoDest)
	assert.False(t, o.SudoSource)
}
