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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	err := NewErrNotResponsible("public@@DEFAULT_GROUP@@orders", "10.0.0.2:7848")
	require.EqualError(t, err, "(key=public@@DEFAULT_GROUP@@orders, owner=10.0.0.2:7848) member is not responsible for the key")
	assert.ErrorIs(t, err, ErrNotResponsible)

	err = NewErrUnknownResourceType("mcp-endpoint")
	assert.ErrorIs(t, err, ErrUnknownResourceType)

	err = NewErrMemberNotFound("10.0.0.3:7848")
	assert.ErrorIs(t, err, ErrMemberNotFound)

	cause := errors.New("interval must be positive")
	err = NewErrInvalidConfig(cause)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, cause)

	err = NewErrInvalidRecord(cause)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = NewErrRemoteCallFailed("10.0.0.3:7848", "timeout")
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
}

func TestPanicError(t *testing.T) {
	cause := errors.New("nil map")
	err := NewPanicError(cause)
	require.EqualError(t, err, "panic: nil map")
	assert.ErrorIs(t, err, cause)

	err = NewPanicError("index out of range")
	require.EqualError(t, err, "panic: index out of range")
	assert.NoError(t, err.Unwrap())
}
