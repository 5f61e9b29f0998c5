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

// Package syncerr defines the error vocabulary shared by every layer of
// the sync pipeline (root discovery, command execution, planning,
// transfer), along with the Is* predicates used to classify an error
// without caring which layer produced it.
package syncerr

import (
	"github.com/pkg/errors"
)

var (
	// ErrBtrfsOp is returned when a spawned btrfs command exits nonzero.
	ErrBtrfsOp = errors.New("btrfs command failed")
	// ErrRootDiscovery is returned when root discovery walks up to / without
	// finding a subvolume boundary.
	ErrRootDiscovery = errors.New("could not discover btrfs root")
	// ErrIO is returned for pipe, splice, or process-spawn failures.
	ErrIO = errors.New("i/o error")
	// ErrValidation is returned for a rejected argument: an unknown list
	// field letter, empty send paths, a non-subpath, an unknown location
	// protocol, or a malformed SSH location.
	ErrValidation = errors.New("validation error")
	// ErrCancelled is returned when a task is canceled as a result of a
	// sibling task's failure.
	ErrCancelled = errors.New("canceled")
)

// IsBtrfsOpError returns true if the unwrapped error is ErrBtrfsOp.
func IsBtrfsOpError(err error) bool {
	return errors.Is(err, ErrBtrfsOp)
}

// IsRootDiscoveryError returns true if the unwrapped error is ErrRootDiscovery.
func IsRootDiscoveryError(err error) bool {
	return errors.Is(err, ErrRootDiscovery)
}

// IsIOError returns true if the unwrapped error is ErrIO.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsValidationError returns true if the unwrapped error is ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCancelledError returns true if the unwrapped error is ErrCancelled.
func IsCancelledError(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// BtrfsOpError wraps ErrBtrfsOp with the offending command and its
// decoded stderr.
type BtrfsOpError struct {
	Cmd    string
	Stderr string
}

func (e *BtrfsOpError) Error() string {
	if e.Stderr == "" {
		return "btrfs command failed: " + e.Cmd
	}
	return "btrfs command failed: " + e.Cmd + ": " + e.Stderr
}

func (e *BtrfsOpError) Unwrap() error { return ErrBtrfsOp }

// RootDiscoveryError wraps ErrRootDiscovery with the path discovery
// started from.
type RootDiscoveryError struct {
	Path string
}

func (e *RootDiscoveryError) Error() string {
	return "no btrfs subvolume found above " + e.Path
}

func (e *RootDiscoveryError) Unwrap() error { return ErrRootDiscovery }

// ValidationError wraps ErrValidation with a human-readable reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }
