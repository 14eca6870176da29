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

package log

import (
	"bytes"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZap(t *testing.T) {
	t.Run("With debug level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := New(DebugLevel, buffer)
		require.Equal(t, DebugLevel, logger.LogLevel())

		logger.Debug("verify round started")
		require.NoError(t, logger.Sync())

		msg, err := extractField(buffer.Bytes(), "msg")
		require.NoError(t, err)
		assert.Equal(t, "verify round started", msg)

		lvl, err := extractField(buffer.Bytes(), "level")
		require.NoError(t, err)
		assert.Equal(t, DebugLevel.String(), lvl)
	})
	t.Run("With info level drops debug", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := New(InfoLevel, buffer)
		logger.Debug("hidden")
		require.NoError(t, logger.Sync())
		assert.Empty(t, buffer.String())

		logger.Infof("member %s joined", "127.0.0.1:8848")
		require.NoError(t, logger.Sync())
		msg, err := extractField(buffer.Bytes(), "msg")
		require.NoError(t, err)
		assert.Equal(t, "member 127.0.0.1:8848 joined", msg)
	})
	t.Run("With warn and error levels", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := New(WarningLevel, buffer)
		require.Equal(t, WarningLevel, logger.LogLevel())
		logger.Info("hidden")
		logger.Warnf("sync to %s failed", "peer")
		require.NoError(t, logger.Sync())
		lvl, err := extractField(buffer.Bytes(), "level")
		require.NoError(t, err)
		assert.Equal(t, WarningLevel.String(), lvl)

		buffer.Reset()
		errLogger := New(ErrorLevel, buffer)
		errLogger.Warn("hidden")
		errLogger.Error("boom")
		require.NoError(t, errLogger.Sync())
		lvl, err = extractField(firstLine(buffer.Bytes()), "level")
		require.NoError(t, err)
		assert.Equal(t, ErrorLevel.String(), lvl)
	})
	t.Run("With structured fields", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := New(InfoLevel, buffer)
		logger.With("member", "10.0.0.1:7848", "type", "naming-instance", "orphan").Info("verify")
		require.NoError(t, logger.Sync())

		var payload map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(buffer.Bytes(), &payload))
		assert.Contains(t, payload, "member")
		assert.Contains(t, payload, "type")
		assert.Contains(t, payload, "_")
	})
	t.Run("With no fields returns the same logger", func(t *testing.T) {
		logger := New(InfoLevel, new(bytes.Buffer))
		assert.Same(t, logger, logger.With())
		assert.Same(t, logger, logger.With(1, 2))
	})
	t.Run("With a named logger", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := New(InfoLevel, buffer)
		assert.Same(t, logger, logger.Named(""))
		logger.Named("distro").Named("verify").Info("round")
		require.NoError(t, logger.Sync())
		name, err := extractField(buffer.Bytes(), "logger")
		require.NoError(t, err)
		assert.Equal(t, "distro.verify", name)
	})
	t.Run("With outputs and std logger", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := New(InfoLevel, buffer)
		require.Len(t, logger.LogOutput(), 1)
		std := logger.StdLogger()
		require.NotNil(t, std)
		std.Print("from std")
		require.NoError(t, logger.Sync())
		msg, err := extractField(buffer.Bytes(), "msg")
		require.NoError(t, err)
		assert.Equal(t, "from std", msg)
	})
	t.Run("With panic level", func(t *testing.T) {
		logger := New(PanicLevel, new(bytes.Buffer))
		assert.Equal(t, PanicLevel, logger.LogLevel())
		assert.Panics(t, func() { logger.Panic("stop") })
	})
}

func TestDiscardLogger(t *testing.T) {
	DiscardLogger.Info("nothing")
	DiscardLogger.Debugf("nothing %d", 1)
	assert.Equal(t, DiscardLogger, DiscardLogger.With("k", "v"))
	assert.Equal(t, DiscardLogger, DiscardLogger.Named("distro"))
	assert.NoError(t, DiscardLogger.Sync())
	assert.Equal(t, InfoLevel, DiscardLogger.LogLevel())
	assert.Len(t, DiscardLogger.LogOutput(), 1)
	assert.NotNil(t, DiscardLogger.StdLogger())
	assert.Panics(t, func() { DiscardLogger.Panicf("boom %s", "now") })
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, WarningLevel, ParseLevel("warning"))
	assert.Equal(t, WarningLevel, ParseLevel(" warn "))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, FatalLevel, ParseLevel("fatal"))
	assert.Equal(t, PanicLevel, ParseLevel("panic"))
	assert.Equal(t, InvalidLevel, ParseLevel("verbose"))
	assert.Equal(t, "invalid", Level(42).String())
}

func firstLine(out []byte) []byte {
	if idx := bytes.IndexByte(out, '\n'); idx >= 0 {
		return out[:idx]
	}
	return out
}

func extractField(out []byte, name string) (string, error) {
	payload := make(map[string]json.RawMessage)
	if err := json.Unmarshal(firstLine(out), &payload); err != nil {
		return "", err
	}
	if raw, ok := payload[name]; ok {
		return strconv.Unquote(string(raw))
	}
	return "", nil
}
