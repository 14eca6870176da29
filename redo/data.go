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

package redo

import "fmt"

// Type is the action a redo entry still requires
type Type int

const (
	// None means the entry is registered and expected to be
	None Type = iota
	// Register means the entry must be registered again
	Register
	// Unregister means an unregister has not been acknowledged yet
	Unregister
	// Remove means the entry can be purged from the store
	Remove
)

// String returns the name of the redo type
func (t Type) String() string {
	switch t {
	case None:
		return "NONE"
	case Register:
		return "REGISTER"
	case Unregister:
		return "UNREGISTER"
	case Remove:
		return "REMOVE"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Data is the registration intent of one key
type Data[T any] struct {
	Key   string
	Value T

	registered         bool
	expectedRegistered bool
	unregistering      bool
}

// Registered returns true when the server acknowledged the registration
func (d Data[T]) Registered() bool {
	return d.registered
}

// ExpectedRegistered returns true while the registration is still desired
func (d Data[T]) ExpectedRegistered() bool {
	return d.expectedRegistered
}

// Unregistering returns true while an unregister is in flight
func (d Data[T]) Unregistering() bool {
	return d.unregistering
}

// Type derives the action the entry requires
func (d Data[T]) Type() Type {
	switch {
	case d.unregistering:
		return Unregister
	case !d.registered && d.expectedRegistered:
		return Register
	case !d.registered && !d.expectedRegistered:
		return Remove
	default:
		return None
	}
}
