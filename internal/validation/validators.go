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

package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type booleanValidator struct {
	check   bool
	message string
}

// NewBooleanValidator creates a validator that fails with message when check is false
func NewBooleanValidator(check bool, message string) Validator {
	return booleanValidator{check: check, message: message}
}

// Validate implements Validator
func (v booleanValidator) Validate() error {
	if !v.check {
		return errors.New(v.message)
	}
	return nil
}

type emptyStringValidator struct {
	field string
	value string
}

// NewEmptyStringValidator creates a validator that fails when value is blank
func NewEmptyStringValidator(field, value string) Validator {
	return emptyStringValidator{field: field, value: value}
}

// Validate implements Validator
func (v emptyStringValidator) Validate() error {
	if strings.TrimSpace(v.value) == "" {
		return fmt.Errorf("the [%s] is required", v.field)
	}
	return nil
}

type durationValidator struct {
	field string
	value time.Duration
}

// NewPositiveDurationValidator creates a validator that fails when value is not strictly positive
func NewPositiveDurationValidator(field string, value time.Duration) Validator {
	return durationValidator{field: field, value: value}
}

// Validate implements Validator
func (v durationValidator) Validate() error {
	if v.value <= 0 {
		return fmt.Errorf("the [%s] must be greater than zero, got %s", v.field, v.value)
	}
	return nil
}

type oneOfValidator struct {
	field   string
	value   string
	allowed []string
}

// NewOneOfValidator creates a validator that fails when value is not one of allowed
func NewOneOfValidator(field, value string, allowed ...string) Validator {
	return oneOfValidator{field: field, value: value, allowed: allowed}
}

// Validate implements Validator
func (v oneOfValidator) Validate() error {
	if !slices.Contains(v.allowed, v.value) {
		return fmt.Errorf("the [%s] must be one of %v, got %q", v.field, v.allowed, v.value)
	}
	return nil
}
