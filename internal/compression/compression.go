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

// Package compression compresses snapshot payloads exchanged between
// cluster members.
package compression

import (
	"fmt"

	"github.com/tochemey/distro/errors"
)

const (
	// Zstd is the name of the Zstandard compression algorithm.
	// Reference: https://www.iana.org/assignments/http-parameters/http-parameters.xml#content-coding
	Zstd = "zstd"
	// Brotli is the name of the Brotli compression algorithm.
	Brotli = "br"
	// None leaves payloads untouched.
	None = "none"
)

// Compressor compresses and decompresses whole payloads
type Compressor interface {
	// Name returns the algorithm name carried on the wire
	Name() string
	// Compress returns the compressed form of data
	Compress(data []byte) ([]byte, error)
	// Decompress returns the original form of data
	Decompress(data []byte) ([]byte, error)
}

// New returns the Compressor registered under name
func New(name string) (Compressor, error) {
	switch name {
	case Zstd:
		return zstdCompressor{}, nil
	case Brotli, "brotli":
		return NewBrotli(DefaultBrotliLevel), nil
	case None, "":
		return noop{}, nil
	default:
		return nil, fmt.Errorf("(compression=%s) %w", name, errors.ErrUnknownCompression)
	}
}

// Names returns the supported algorithm names
func Names() []string {
	return []string{Zstd, Brotli, "brotli", None}
}

type noop struct{}

func (noop) Name() string                           { return None }
func (noop) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noop) Decompress(data []byte) ([]byte, error) { return data, nil }
