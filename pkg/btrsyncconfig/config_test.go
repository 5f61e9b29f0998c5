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

package btrsyncconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreittr/btrsync/pkg/btrfsroot"
)

func TestApplyEnvFillsFromEnvironment(t *testing.T) {
	t.Setenv(EnvParallel, "true")
	t.Setenv(EnvScope, "strict")
	t.Setenv(EnvProgressPeriod, "500ms")
	t.Setenv(EnvSudoDest, "true")

	o, err := ApplyEnv(Default())
	require.NoError(t, err)
	assert.True(t, o.Parallel)
	assert.Equal(t, btrfsroot.ScopeStrict, o.Scope)
	assert.Equal(t, 500*time.Millisecond, o.ProgressPeriod)
	assert.True(t, o.SudoDest)
	assert.False(t, o.SudoSource)
}

func TestApplyEnvLeavesUnsetFieldsAlone(t *testing.T) {
	o, err := ApplyEnv(Default())
	require.NoError(t, err)
	assert.Equal(t, Default(), o)
}

func TestApplyEnvRejectsBadScope(t *testing.T) {
	t.Setenv(EnvScope, "bogus")
	_, err := ApplyEnv(Default())
	assert.Error(t, err)
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	t.Setenv(EnvProgressPeriod, "not-a-duration")
	_, err := ApplyEnv(Default())
	assert.Error(t, err)
}
