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

package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
)

// DefaultBrotliLevel trades compression ratio for speed on snapshot payloads
const DefaultBrotliLevel = brotli.DefaultCompression

var (
	brotliWriterPools sync.Map // level -> *sync.Pool
	brotliReaderPool  = sync.Pool{
		New: func() any {
			return brotli.NewReader(nil)
		},
	}
)

func getWriterPool(level int) *sync.Pool {
	if pool, ok := brotliWriterPools.Load(level); ok {
		return pool.(*sync.Pool)
	}
	pool, _ := brotliWriterPools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			return brotli.NewWriterLevel(nil, level)
		},
	})
	return pool.(*sync.Pool)
}

// BrotliCompressor compresses payloads with Brotli at a fixed level
type BrotliCompressor struct {
	pool *sync.Pool
}

var _ Compressor = (*BrotliCompressor)(nil)

// NewBrotli creates a BrotliCompressor at the given level
func NewBrotli(level int) *BrotliCompressor {
	if level < brotli.BestSpeed || level > brotli.BestCompression {
		level = DefaultBrotliLevel
	}
	return &BrotliCompressor{pool: getWriterPool(level)}
}

// Name implements Compressor
func (b *BrotliCompressor) Name() string { return Brotli }

// Compress implements Compressor
func (b *BrotliCompressor) Compress(data []byte) ([]byte, error) {
	writer := b.pool.Get().(*brotli.Writer)
	defer b.pool.Put(writer)

	buf := new(bytes.Buffer)
	writer.Reset(buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress implements Compressor
func (b *BrotliCompressor) Decompress(data []byte) ([]byte, error) {
	reader := brotliReaderPool.Get().(*brotli.Reader)
	defer brotliReaderPool.Put(reader)

	if err := reader.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}
