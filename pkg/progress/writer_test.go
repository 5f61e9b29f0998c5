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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlainWriterEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	w.Event(StartedEvent("vol1"))
	w.Event(DoneEvent("vol1"))
	out := buf.String()
	assert.Contains(t, out, "vol1")
	assert.Contains(t, out, "sending")
	assert.Contains(t, out, "done")
}

func TestQuietWriterSuppressesOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.Event(StartedEvent("vol1"))
	w.TailMsgf("wave complete")
	assert.Empty(t, buf.String())
}

func TestContextWriterDefaultsToNoop(t *testing.T) {
	w := ContextWriter(context.Background())
	assert.NotPanics(t, func() { w.Event(StartedEvent("x")) })
}

func TestWithContextWriterRoundtrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	ctx := WithContextWriter(context.Background(), w)
	ContextWriter(ctx).Event(DoneEvent("vol2"))
	assert.Contains(t, buf.String(), "vol2")
}

func TestRateReporterComputesDelta(t *testing.T) {
	var buf bytes.Buffer
	r := NewRateReporter(&buf, time.Second)
	r.Tick(1024)
	r.Tick(2048)
	r.Done()
	out := buf.String()
	assert.True(t, strings.Contains(out, "\r"))
	assert.Contains(t, out, "KiB")
}
