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

package progress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanBytesPicksUnit(t *testing.T) {
	for _, tc := range []struct {
		n    float64
		unit string
	}{
		{2048, "KiB"},
		{5 * 1024 * 1024, "MiB"},
		{3 * 1024 * 1024 * 1024, "GiB"},
	} {
		got := HumanBytes(tc.n)
		assert.True(t, strings.Contains(got, tc.unit), "HumanBytes(%v) = %q, want to contain %q", tc.n, got, tc.unit)
	}
}

func TestHumanBytesZero(t *testing.T) {
	got := HumanBytes(0)
	assert.Contains(t, got, "B")
	assert.NotContains(t, got, "KiB")
}
