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

package syncerr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsBtrfsOpError(t *testing.T) {
	err := errors.Wrap(ErrBtrfsOp, "btrfs subvolume show /mnt/vol")
	assert.True(t, IsBtrfsOpError(err))
	assert.False(t, IsBtrfsOpError(errors.New("another error")))

	wrapped := &BtrfsOpError{Cmd: "btrfs send /mnt/vol", Stderr: "ERROR: cannot find parent"}
	assert.True(t, IsBtrfsOpError(wrapped))
	assert.Contains(t, wrapped.Error(), "cannot find parent")
}

func TestIsRootDiscoveryError(t *testing.T) {
	err := errors.Wrap(ErrRootDiscovery, "/mnt/vol")
	assert.True(t, IsRootDiscoveryError(err))
	assert.False(t, IsRootDiscoveryError(errors.New("another error")))

	wrapped := &RootDiscoveryError{Path: "/mnt/vol"}
	assert.True(t, IsRootDiscoveryError(wrapped))
	assert.Contains(t, wrapped.Error(), "/mnt/vol")
}

func TestIsIOError(t *testing.T) {
	err := errors.Wrap(ErrIO, "splice")
	assert.True(t, IsIOError(err))
	assert.False(t, IsIOError(errors.New("another error")))
}

func TestIsValidationError(t *testing.T) {
	err := errors.Wrap(ErrValidation, "unknown list field")
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(errors.New("another error")))

	wrapped := &ValidationError{Reason: "unknown list field: z"}
	assert.True(t, IsValidationError(wrapped))
	assert.Equal(t, "unknown list field: z", wrapped.Error())
}

func TestIsCancelledError(t *testing.T) {
	err := errors.Wrap(ErrCancelled, "sibling task failed")
	assert.True(t, IsCancelledError(err))
	assert.False(t, IsCancelledError(errors.New("another error")))
}
