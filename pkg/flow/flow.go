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

// Package flow provides the one-shot byte-stream abstraction that
// connects a send producer to a receive consumer: a Flow is set up
// exactly once, pumped to EOF, and torn down exactly once.
package flow

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/andreittr/btrsync/pkg/syncerr"
)

// pumpBufSize is the buffered read/write chunk size used when splice is
// unavailable.
const pumpBufSize = 1 << 20

// Flow is a one-shot byte channel between a send producer and a receive
// consumer. Exactly one of ConnectFD, ConnectPipe, or ConnectToFD is
// called during setup; Pump is then run at most once.
type Flow interface {
	// ConnectFD returns a file descriptor the consumer may read from
	// directly, when no intermediate pump is required.
	ConnectFD() (*os.File, error)
	// ConnectPipe returns the read end of a pipe; a pump will copy the
	// underlying source into its write end.
	ConnectPipe() (*os.File, error)
	// ConnectToFD directs the flow to pump its source into sink.
	ConnectToFD(sink *os.File) error
	// Pump copies bytes until EOF, closing both endpoints exactly once,
	// updating Count if statistics were enabled before setup. It blocks
	// until the copy completes, fails, or ctx is canceled.
	Pump(ctx context.Context) error
	// Count returns the total bytes transferred so far. Safe to call
	// concurrently with Pump when stats were enabled.
	Count() int64
}

// pump runs the splice-or-copy loop shared by PipeFlow and FileFlow
// between src and dst, closing both on return, and reports into counter
// when non-nil.
func pump(ctx context.Context, src, dst *os.File, counter *int64) error {
	defer src.Close()
	defer dst.Close()

	done := make(chan error, 1)
	go func() {
		done <- pumpLoop(src, dst, counter)
	}()

	select {
	case <-ctx.Done():
		_ = src.Close()
		_ = dst.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// pumpLoop is the blocking copy loop dispatched to its own goroutine:
// it tries a zero-copy splice first and falls back to a buffered copy
// only when splice reports EINVAL before copying anything. EAGAIN and
// EINTR are retried; any other splice error is returned.
func pumpLoop(src, dst *os.File, counter *int64) error {
	if err := spliceLoop(src, dst, counter); err != errSpliceUnsupported {
		return err
	}
	return bufferedLoop(src, dst, counter)
}

var errSpliceUnsupported = errors.New("splice unsupported")

func spliceLoop(src, dst *os.File, counter *int64) error {
	srcFD, dstFD := int(src.Fd()), int(dst.Fd())
	for {
		n, err := unix.Splice(srcFD, nil, dstFD, nil, pumpBufSize, 0)
		if err != nil {
			if err == unix.EINVAL && n == 0 {
				return errSpliceUnsupported
			}
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return wrapIOError(errors.Wrap(err, "splice"))
		}
		if n == 0 {
			return nil
		}
		if counter != nil {
			atomic.AddInt64(counter, n)
		}
	}
}

func bufferedLoop(src, dst *os.File, counter *int64) error {
	buf := make([]byte, pumpBufSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return wrapIOError(errors.Wrap(werr, "write"))
			}
			if counter != nil {
				atomic.AddInt64(counter, int64(n))
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapIOError(errors.Wrap(err, "read"))
		}
	}
}

// PipeFlow wraps a source that is already the read end of a pipe. When
// stats are disabled, ConnectFD/ConnectPipe hand back the underlying
// descriptor directly with no pump; when enabled, an intermediate pipe
// and pump are interposed so Count can observe the byte stream.
type PipeFlow struct {
	src   *os.File
	stats bool
	count int64

	pumpSrc, pumpDst *os.File
}

// NewPipeFlow wraps src, the read end of an existing pipe. Set stats to
// observe Count via a counting pump even when a direct handoff would
// otherwise suffice.
func NewPipeFlow(src *os.File, stats bool) *PipeFlow {
	return &PipeFlow{src: src, stats: stats}
}

func (f *PipeFlow) ConnectFD() (*os.File, error) {
	if !f.stats {
		return f.src, nil
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "pipe")
	}
	f.pumpSrc, f.pumpDst = f.src, w
	return r, nil
}

func (f *PipeFlow) ConnectPipe() (*os.File, error) { return f.ConnectFD() }

func (f *PipeFlow) ConnectToFD(sink *os.File) error {
	f.pumpSrc, f.pumpDst = f.src, sink
	return nil
}

func (f *PipeFlow) Pump(ctx context.Context) error {
	if f.pumpSrc == nil {
		return nil
	}
	var counter *int64
	if f.stats {
		counter = &f.count
	}
	return pump(ctx, f.pumpSrc, f.pumpDst, counter)
}

func (f *PipeFlow) Count() int64 { return atomic.LoadInt64(&f.count) }

// FileFlow wraps a source that is a seekable regular file. Unlike
// PipeFlow, ConnectPipe always interposes a pump, since a seekable file
// descriptor cannot be handed to a consumer expecting pipe semantics.
type FileFlow struct {
	src   *os.File
	stats bool
	count int64

	pumpSrc, pumpDst *os.File
}

// NewFileFlow wraps src, an open seekable file.
func NewFileFlow(src *os.File, stats bool) *FileFlow {
	return &FileFlow{src: src, stats: stats}
}

func (f *FileFlow) ConnectFD() (*os.File, error) {
	if !f.stats {
		return f.src, nil
	}
	return f.ConnectPipe()
}

func (f *FileFlow) ConnectPipe() (*os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "pipe")
	}
	f.pumpSrc, f.pumpDst = f.src, w
	return r, nil
}

func (f *FileFlow) ConnectToFD(sink *os.File) error {
	f.pumpSrc, f.pumpDst = f.src, sink
	return nil
}

func (f *FileFlow) Pump(ctx context.Context) error {
	if f.pumpSrc == nil {
		return nil
	}
	var counter *int64
	if f.stats {
		counter = &f.count
	}
	return pump(ctx, f.pumpSrc, f.pumpDst, counter)
}

func (f *FileFlow) Count() int64 { return atomic.LoadInt64(&f.count) }

// wrapIOError tags err as a syncerr.ErrIO without discarding its
// original message, for callers that need to classify flow failures
// alongside root/command errors.
func wrapIOError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(syncerr.ErrIO, err.Error())
}
