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
	"context"
	"io"
	"os"

	"golang.org/x/term"
)

// Writer reports per-volume transfer events to a human.
type Writer interface {
	Event(Event)
	// TailMsgf writes a one-off line outside the per-volume event
	// stream, e.g. a wave summary.
	TailMsgf(string, ...interface{})
}

type writerKey struct{}

// WithContextWriter attaches w to ctx so deeply nested callers (e.g. a
// Root implementation reporting Send/Receive progress) can reach it
// without threading it through every signature.
func WithContextWriter(ctx context.Context, w Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// ContextWriter returns the Writer attached to ctx, or a no-op Writer
// if none was attached.
func ContextWriter(ctx context.Context) Writer {
	if w, ok := ctx.Value(writerKey{}).(Writer); ok {
		return w
	}
	return noopWriter{}
}

// NewWriter returns a plain line-oriented Writer, or a no-op Writer
// when quiet is set.
func NewWriter(out io.Writer, quiet bool) Writer {
	if quiet {
		return noopWriter{}
	}
	return &plainWriter{out: out}
}

// IsTerminal reports whether f is attached to a terminal. NewWriter and
// cmd/btrsync do not consult it: the choice of writer follows the
// quiet and --progress settings only.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type noopWriter struct{}

func (noopWriter) Event(Event)                     {}
func (noopWriter) TailMsgf(string, ...interface{}) {}
