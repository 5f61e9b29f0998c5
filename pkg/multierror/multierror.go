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

// Package multierror accumulates the per-task failures that come out of
// a wave of concurrent transfers into a single error, so a caller that
// waits on a wave sees every failure instead of just the first.
package multierror

import (
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Error wraps a multierror.Error with the line-per-error rendering used
// throughout btrsync's CLI output.
type Error struct {
	err *multierror.Error
}

func (e *Error) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	e.err.ErrorFormat = listErrorFunc
	return e.err.Error()
}

// WrappedErrors returns the accumulated errors in append order. Not safe
// for concurrent use; exists to satisfy errwrap.Wrapper.
func (e *Error) WrappedErrors() []error {
	return e.err.WrappedErrors()
}

// Unwrap returns the first wrapped error, or nil if there are none.
func (e *Error) Unwrap() error {
	if e == nil || e.err == nil {
		return nil
	}
	return e.err.Unwrap()
}

// ErrorOrNil returns e if it wraps at least one error, else nil. Callers
// should funnel an accumulator through this before returning it, so an
// empty accumulator reports success.
func (e *Error) ErrorOrNil() error {
	if e == nil || e.err == nil || len(e.err.Errors) == 0 {
		return nil
	}
	return e
}

// Append adds errs to err, converting err to an *Error first if it isn't
// already one.
func Append(err error, errs ...error) *Error {
	acc, ok := err.(*Error)
	if !ok {
		acc = &Error{}
		if err != nil {
			acc.err = multierror.Append(acc.err, err)
		}
	}
	if acc == nil {
		acc = &Error{}
	}
	for _, e := range errs {
		acc.err = multierror.Append(acc.err, e)
	}
	return acc
}

func listErrorFunc(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = "Error: " + err.Error()
	}
	return strings.Join(messages, "\n")
}
