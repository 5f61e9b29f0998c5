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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleMatchMatchesOnlyItsPath(t *testing.T) {
	m := NewSingleMatch("/data/vol1")
	assert.True(t, m.Match("/data/vol1"))
	assert.False(t, m.Match("/data/vol2"))
	assert.True(t, m.Stop([]string{"/data/vol1"}))
}

func TestUnderGlobMatchesBelowPrefix(t *testing.T) {
	m, err := NewUnderGlob("backups")
	require.NoError(t, err)
	assert.True(t, m.Match("backups/vol1"))
	assert.False(t, m.Match("other/vol1"))
	assert.False(t, m.Stop([]string{"backups/vol1"}))
}

func TestUnderGlobRejectsAbsoluteGlob(t *testing.T) {
	_, err := NewUnderGlob("/backups")
	assert.Error(t, err)
}

func TestBaseMatchIncludeExclude(t *testing.T) {
	m, err := NewUnderGlob("vols")
	require.NoError(t, err)
	m.Incl = []string{"keep*"}
	m.Excl = []string{"keepme-not"}

	assert.True(t, m.Match("vols/keepme"))
	assert.False(t, m.Match("vols/keepme-not"))
	assert.False(t, m.Match("vols/other"))
}
