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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreittr/btrsync/pkg/flow"
)

func TestFileSendRootList(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "stream.btrfs")
	require.NoError(t, os.WriteFile(tmp, []byte("payload"), 0o644))

	r := NewFileSendRoot(tmp)
	roots, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, tmp, roots[0].Subvolume.Path)
}

func TestFileSendRootRejectsOtherPaths(t *testing.T) {
	r := NewFileSendRoot("/a")
	_, _, err := r.Send(context.Background(), SendRequest{Paths: []string{"/b"}})
	assert.Error(t, err)
}

func TestFileSendRootSendReadsFile(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "stream.btrfs")
	require.NoError(t, os.WriteFile(tmp, []byte("payload bytes"), 0o644))

	r := NewFileSendRoot(tmp)
	f, finalize, err := r.Send(context.Background(), SendRequest{Paths: []string{tmp}})
	require.NoError(t, err)
	require.NoError(t, finalize())

	fd, err := f.ConnectFD()
	require.NoError(t, err)
	data := make([]byte, len("payload bytes"))
	n, err := fd.Read(data)
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(data[:n]))
}

func TestFileDumpRootSavesNamedFile(t *testing.T) {
	dir := t.TempDir()
	r := &FileDumpRoot{RootPath: dir, CreateRecvPath: true}

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	go func() {
		_, _ = pw.Write([]byte("stream data"))
		pw.Close()
	}()

	f := flow.NewPipeFlow(pr, false)
	finalize, err := r.Receive(context.Background(), f, ".", ReceiveMeta{Volumes: []string{"vol1"}})
	require.NoError(t, err)
	require.NoError(t, f.Pump(context.Background()))
	require.NoError(t, finalize())

	got, err := os.ReadFile(filepath.Join(dir, "vol1.btrfs_stream"))
	require.NoError(t, err)
	assert.Equal(t, "stream data", string(got))
}

func TestFileDumpRootRejectsSend(t *testing.T) {
	r := &FileDumpRoot{RootPath: "/tmp"}
	_, _, err := r.Send(context.Background(), SendRequest{})
	assert.Error(t, err)
}
