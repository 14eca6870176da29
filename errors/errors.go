/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotResponsible is returned when a write targets a key owned by another member.
	ErrNotResponsible = errors.New("member is not responsible for the key")

	// ErrNotInitialized is returned when a component is used before it is started.
	ErrNotInitialized = errors.New("component is not initialized")

	// ErrUnknownResourceType is returned when no storage or processor is registered for a resource type.
	ErrUnknownResourceType = errors.New("unknown resource type")

	// ErrNoTransportAgent is returned when no transport agent is registered for a resource type.
	ErrNoTransportAgent = errors.New("no transport agent registered")

	// ErrMemberNotFound is returned when the target member is not part of the cluster.
	ErrMemberNotFound = errors.New("member not found")

	// ErrEngineStopped is returned when a task is submitted to a stopped execution engine.
	ErrEngineStopped = errors.New("execution engine is stopped")

	// ErrEngineFull is returned when the execution engine cannot queue more tasks.
	ErrEngineFull = errors.New("execution engine queue is full")

	// ErrNotConnected is returned when a remote call is attempted on a dead connection.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidConfig is returned when a configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidRecord is returned when a record cannot be decoded or lacks an identity.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrSchedulerNotStarted is returned when a scheduler is stopped before being started.
	ErrSchedulerNotStarted = errors.New("scheduler has not started")

	// ErrClusterNotStarted is returned when membership is queried before the cluster is started.
	ErrClusterNotStarted = errors.New("cluster has not started")

	// ErrUnknownResolverPolicy is returned when no conflict resolver is registered under a policy name.
	ErrUnknownResolverPolicy = errors.New("unknown conflict resolver policy")

	// ErrUnknownCompression is returned when the configured compression algorithm is not supported.
	ErrUnknownCompression = errors.New("unknown compression algorithm")

	// ErrOperationDiscarded is returned when the conflict resolver rejects a local write.
	ErrOperationDiscarded = errors.New("operation discarded by the conflict resolver")

	// ErrRemoteCallFailed is returned when a peer or server answers a request with a failure.
	ErrRemoteCallFailed = errors.New("remote call failed")
)

// NewErrNotResponsible formats an ErrNotResponsible with the key and its owner
func NewErrNotResponsible(key, owner string) error {
	return fmt.Errorf("(key=%s, owner=%s) %w", key, owner, ErrNotResponsible)
}

// NewErrUnknownResourceType formats an ErrUnknownResourceType with the given type
func NewErrUnknownResourceType(resourceType string) error {
	return fmt.Errorf("(type=%s) %w", resourceType, ErrUnknownResourceType)
}

// NewErrMemberNotFound formats an ErrMemberNotFound with the given address
func NewErrMemberNotFound(address string) error {
	return fmt.Errorf("(member=%s) %w", address, ErrMemberNotFound)
}

// NewErrInvalidConfig wraps a validation error with ErrInvalidConfig
func NewErrInvalidConfig(err error) error {
	return errors.Join(ErrInvalidConfig, err)
}

// NewErrInvalidRecord wraps a decoding error with ErrInvalidRecord
func NewErrInvalidRecord(err error) error {
	return errors.Join(ErrInvalidRecord, err)
}

// NewErrRemoteCallFailed formats an ErrRemoteCallFailed with the remote reason
func NewErrRemoteCallFailed(target, reason string) error {
	return fmt.Errorf("(target=%s, reason=%s) %w", target, reason, ErrRemoteCallFailed)
}

// PanicError wraps a value recovered from a panic
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError from a recovered value
func NewPanicError(recovered any) *PanicError {
	if err, ok := recovered.(error); ok {
		return &PanicError{err: fmt.Errorf("panic: %w", err)}
	}
	return &PanicError{err: fmt.Errorf("panic: %v", recovered)}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying error
func (e *PanicError) Unwrap() error {
	return errors.Unwrap(e.err)
}
