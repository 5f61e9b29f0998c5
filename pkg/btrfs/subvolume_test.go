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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsPaths(t *testing.T) {
	vols := []Subvolume{
		{UUID: "u1", Path: "vol1"},
		{UUID: "u2", Path: FSTree + "/already/abs"},
	}
	out, err := AbsPaths(vols, FSTree+"/mnt")
	require.NoError(t, err)
	assert.Equal(t, FSTree+"/mnt/vol1", out[0].Path)
	assert.Equal(t, FSTree+"/already/abs", out[1].Path)
}

func TestAbsPathsRejectsNonFSTreeRoot(t *testing.T) {
	_, err := AbsPaths(nil, "/mnt")
	assert.Error(t, err)
}

func TestRelPaths(t *testing.T) {
	vols := []Subvolume{
		{UUID: "u1", Path: FSTree + "/mnt/vol1"},
		{UUID: "u2", Path: "mnt/vol2"},
		{UUID: "u3", Path: FSTree + "/other/vol3"},
	}
	out, err := RelPaths(vols, FSTree+"/mnt")
	require.NoError(t, err)
	assert.Equal(t, "vol1", out[0].Path)
	assert.Equal(t, "vol2", out[1].Path)
	assert.Equal(t, FSTree+"/other/vol3", out[2].Path)
}
