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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreittr/btrsync/pkg/btrfs"
	"github.com/andreittr/btrsync/pkg/cowtree"
)

func TestFormatTransferOneLine(t *testing.T) {
	got := formatTransfer([]string{"/vol/a"}, "", "dest", false)
	assert.Equal(t, "/vol/a\tfull -> dest", got)

	got = formatTransfer([]string{"/vol/a"}, "/vol/base", "dest", false)
	assert.Equal(t, "/vol/a\tincr -> dest", got)
}

func TestFormatTransferVerbose(t *testing.T) {
	got := formatTransfer([]string{"/vol/a", "/vol/b"}, "/vol/base", "dest", true)
	assert.Contains(t, got, "/vol/a,\n/vol/b")
	assert.Contains(t, got, "incremental from /vol/base")
	assert.Contains(t, got, "into dest")
}

func TestPreviewDriverRecordsWithoutTouchingRoots(t *testing.T) {
	roots := cowtree.Build([]btrfs.Subvolume{{UUID: "a", Path: "/vol/a"}}, nil).Roots
	drv, preview := previewDriver("base", false, false)

	err := drv(context.Background(), roots, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, *preview, 1)
	assert.Equal(t, "/vol/a\tfull -> base", (*preview)[0])
}

func TestConfirmPromptEmptyPreviewSkips(t *testing.T) {
	p := newConfirmPrompt(strings.NewReader(""), &bytes.Buffer{})
	assert.Equal(t, "S", p.ask(nil))
}

func TestConfirmPromptRetriesOnUnrecognizedInput(t *testing.T) {
	var out bytes.Buffer
	p := newConfirmPrompt(strings.NewReader("maybe\ny\n"), &out)
	assert.Equal(t, "Y", p.ask([]string{"something"}))
	assert.Contains(t, out.String(), "Proceed?")
}

func TestConfirmPromptEOFIsNo(t *testing.T) {
	p := newConfirmPrompt(strings.NewReader(""), &bytes.Buffer{})
	assert.Equal(t, "N", p.ask([]string{"something"}))
}
