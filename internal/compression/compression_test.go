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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/distro/errors"
)

func TestCompression(t *testing.T) {
	payload := bytes.Repeat([]byte("public@@DEFAULT_GROUP@@orders#10.0.0.1#8080#DEFAULT;"), 256)

	for _, name := range []string{Zstd, Brotli, None} {
		t.Run("With "+name, func(t *testing.T) {
			compressor, err := New(name)
			require.NoError(t, err)
			assert.Equal(t, name, compressor.Name())

			compressed, err := compressor.Compress(payload)
			require.NoError(t, err)
			if name != None {
				assert.Less(t, len(compressed), len(payload))
			}

			actual, err := compressor.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, actual)

			// pooled encoders must be reusable
			again, err := compressor.Compress([]byte("second"))
			require.NoError(t, err)
			actual, err = compressor.Decompress(again)
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), actual)
		})
	}

	t.Run("With unknown algorithm", func(t *testing.T) {
		_, err := New("lz4")
		require.ErrorIs(t, err, errors.ErrUnknownCompression)
	})

	t.Run("With corrupt zstd payload", func(t *testing.T) {
		compressor, err := New(Zstd)
		require.NoError(t, err)
		_, err = compressor.Decompress([]byte("not zstd"))
		require.Error(t, err)
	})

	t.Run("With out of range brotli level", func(t *testing.T) {
		compressor := NewBrotli(42)
		compressed, err := compressor.Compress([]byte("x"))
		require.NoError(t, err)
		actual, err := compressor.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), actual)
	})
}
