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

package cluster

import (
	"bytes"
	"io"
	"regexp"

	"github.com/tochemey/distro/log"
)

// logWriter routes the memberlist log lines to the logger at the level
// carried by their prefix
type logWriter struct {
	logger log.Logger
	info   *regexp.Regexp
	debug  *regexp.Regexp
	warn   *regexp.Regexp
	error  *regexp.Regexp
}

// make sure that the logWriter implements the io.Writer interface fully
var _ io.Writer = (*logWriter)(nil)

// newLogWriter create an instance of logWriter
func newLogWriter(logger log.Logger) *logWriter {
	return &logWriter{
		logger: logger,
		info:   regexp.MustCompile(`\[INFO\] (.+)`),
		debug:  regexp.MustCompile(`\[DEBUG\] (.+)`),
		warn:   regexp.MustCompile(`\[WARN\] (.+)`),
		error:  regexp.MustCompile(`\[ERR(?:OR)?\] (.+)`),
	}
}

// Write writes len(p) bytes from p to the underlying data stream.
func (l *logWriter) Write(message []byte) (n int, err error) {
	text := string(bytes.TrimSpace(message))

	if matches := l.info.FindStringSubmatch(text); len(matches) > 1 {
		l.logger.Info(matches[1])
		return len(message), nil
	}

	if matches := l.debug.FindStringSubmatch(text); len(matches) > 1 {
		l.logger.Debug(matches[1])
		return len(message), nil
	}

	if matches := l.warn.FindStringSubmatch(text); len(matches) > 1 {
		l.logger.Warn(matches[1])
		return len(message), nil
	}

	if matches := l.error.FindStringSubmatch(text); len(matches) > 1 {
		l.logger.Error(matches[1])
		return len(message), nil
	}

	if text != "" {
		l.logger.Debug(text)
	}
	return len(message), nil
}
