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
	"runtime"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdEncodersPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return enc
	},
}

var zstdDecodersPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(64<<20))
		return dec
	},
}

func zstdEncoder() *zstd.Encoder {
	enc, ok := zstdEncodersPool.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(runtime.GOMAXPROCS(0)))
	}
	return enc
}

func zstdDecoder() *zstd.Decoder {
	dec, ok := zstdDecodersPool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		dec, _ = zstd.NewReader(nil)
	}
	return dec
}

// zstdCompressor uses pooled stateless encoders and decoders
type zstdCompressor struct{}

var _ Compressor = zstdCompressor{}

func (zstdCompressor) Name() string { return Zstd }

func (zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zstdEncoder()
	defer zstdEncodersPool.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zstdDecoder()
	defer zstdDecodersPool.Put(dec)
	return dec.DecodeAll(data, nil)
}

// NewZstd returns the zstd Compressor
func NewZstd() Compressor {
	return zstdCompressor{}
}
