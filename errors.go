// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package clickadc

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument indicates a channel, ratio or count outside its
	// valid range.
	// It is always returned before any bus traffic.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO indicates a transfer failure on the bus.
	// Use errors.As with *IOError for the details.
	ErrIO = errors.New("io error")

	// ErrProtocolDesync indicates the channel identifier in a frame did not
	// match the expected channel.
	// Use errors.As with *DesyncError for the details.
	ErrProtocolDesync = errors.New("protocol desync")

	// ErrNotInitialized indicates the device must be initialized, or
	// re-initialized after an error, before sampling.
	ErrNotInitialized = errors.New("not initialized")

	// ErrSequenceConsumed indicates an attempt to range over a sequence a
	// second time.
	ErrSequenceConsumed = errors.New("sequence already consumed")

	// ErrBusy indicates a sequence is still being ranged over.
	ErrBusy = errors.New("sequence in progress")

	// ErrClosed indicates the device is closed.
	ErrClosed = errors.New("closed")
)

// InvalidArgument returns an ErrInvalidArgument describing the problem.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// IOError is a failed bus transfer.
//
// The device register state is unknown after an IOError, so the only safe
// recovery is to Init the device again.
type IOError struct {
	Op  string
	Err error
}

// NewIOError wraps err, the failure of operation op.
func NewIOError(op string, err error) *IOError {
	return &IOError{Op: op, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrIO, e.Op, e.Err)
}

// Unwrap returns the underlying transfer error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is allows IOError to match ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// DesyncError is a channel identifier mismatch.
type DesyncError struct {
	Expected int
	Got      int
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("%s: expected channel %d, got %d", ErrProtocolDesync, e.Expected, e.Got)
}

// Is allows DesyncError to match ErrProtocolDesync.
func (e *DesyncError) Is(target error) bool {
	return target == ErrProtocolDesync
}
