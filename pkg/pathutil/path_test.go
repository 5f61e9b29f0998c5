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

package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	cases := []struct {
		a, b, root, want string
	}{
		{"/a/b/c", "b/c/d", "/", "/a/b/c/d"},
		{"/a", "/b", "/", "/a/b"},
		{"", "v", "/", "v"},
		{"<FS_TREE>/vol", "vol/sub", "<FS_TREE>", "<FS_TREE>/vol/sub"},
	}
	for _, c := range cases {
		got := Merge(c.a, c.b, c.root)
		assert.Equal(t, c.want, got, "Merge(%q, %q, %q)", c.a, c.b, c.root)
	}
}

func TestIsSubpath(t *testing.T) {
	assert.False(t, IsSubpath("/abs"))
	assert.True(t, IsSubpath("a/../b"))
	assert.False(t, IsSubpath("../x"))
	assert.True(t, IsSubpath("a/b/c"))
}

func TestRel(t *testing.T) {
	assert.Equal(t, "c", Rel("/a/b/c", "/a/b"))
	assert.Equal(t, "../x", Rel("/a/x", "/a/b"))
	assert.Equal(t, ".", Rel("/a/b", "/a/b"))
}
