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

package flow

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeFlowDirectHandoffWithoutStats(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	f := NewPipeFlow(r, false)
	fd, err := f.ConnectFD()
	require.NoError(t, err)
	assert.Same(t, r, fd)
}

func TestPipeFlowStatsInterposesPump(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	payload := []byte("snapshot stream payload")
	go func() {
		_, _ = w.Write(payload)
		w.Close()
	}()

	f := NewPipeFlow(r, true)
	fd, err := f.ConnectFD()
	require.NoError(t, err)
	require.NotSame(t, r, fd)

	done := make(chan error, 1)
	go func() { done <- f.Pump(context.Background()) }()

	got, err := io.ReadAll(fd)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, <-done)
	assert.Equal(t, int64(len(payload)), f.Count())
}

func TestFileFlowConnectPipeAlwaysPumps(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "flow")
	require.NoError(t, err)
	payload := []byte("regular file contents")
	_, err = tmp.Write(payload)
	require.NoError(t, err)
	_, err = tmp.Seek(0, io.SeekStart)
	require.NoError(t, err)

	f := NewFileFlow(tmp, true)
	fd, err := f.ConnectPipe()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.Pump(context.Background()) }()

	got, err := io.ReadAll(fd)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, <-done)
	assert.Equal(t, int64(len(payload)), f.Count())
}

func TestPumpCancellation(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	sink, sinkW, err := os.Pipe()
	require.NoError(t, err)
	defer sinkW.Close()
	defer sink.Close()

	f := NewPipeFlow(r, false)
	require.NoError(t, f.ConnectToFD(sinkW))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Pump(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pump did not observe cancellation")
	}
}
