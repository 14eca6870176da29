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

import (
	"context"

	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
)

// Handler replays the intents of one kind against the server
type Handler[T any] interface {
	Register(ctx context.Context, key string, value T) error
	Deregister(ctx context.Context, key string, value T) error
}

// Kind is a Store bound to the Handler replaying its intents
type Kind interface {
	// Name returns the kind of the bound Store
	Name() string
	// Pending returns the number of entries needing a redo
	Pending() int

	replay(ctx context.Context, logger log.Logger, redoMetric *metric.RedoMetric)
	invalidate()
	clear()
}

type binding[T any] struct {
	store   *Store[T]
	handler Handler[T]
}

var _ Kind = (*binding[any])(nil)

// Bind binds a Store to the Handler replaying its intents
func Bind[T any](store *Store[T], handler Handler[T]) Kind {
	return &binding[T]{store: store, handler: handler}
}

func (b *binding[T]) Name() string {
	return b.store.Kind()
}

func (b *binding[T]) Pending() int {
	return len(b.store.FindNeedingRedo())
}

func (b *binding[T]) invalidate() {
	b.store.invalidate()
}

func (b *binding[T]) clear() {
	b.store.Clear()
}

// replay runs the entries sequentially. A failing entry does not stop the
// remaining ones.
func (b *binding[T]) replay(ctx context.Context, logger log.Logger, redoMetric *metric.RedoMetric) {
	for _, data := range b.store.FindNeedingRedo() {
		if ctx.Err() != nil {
			return
		}

		redoType := data.Type()
		if err := b.redo(ctx, data); err != nil {
			logger.Warnf("failed to redo %s of key=(%s) kind=(%s): %v", redoType, data.Key, b.Name(), err)
			if redoMetric != nil {
				redoMetric.Failed(ctx, b.Name(), redoType.String())
			}
			continue
		}

		logger.Debugf("redo %s of key=(%s) kind=(%s) done", redoType, data.Key, b.Name())
		if redoMetric != nil {
			redoMetric.Replayed(ctx, b.Name(), redoType.String())
		}
	}
}

func (b *binding[T]) redo(ctx context.Context, data Data[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewPanicError(r)
		}
	}()

	switch data.Type() {
	case Register:
		if err := b.handler.Register(ctx, data.Key, data.Value); err != nil {
			return err
		}
		b.store.MarkRegistered(data.Key)
	case Unregister:
		if err := b.handler.Deregister(ctx, data.Key, data.Value); err != nil {
			return err
		}
		b.store.CompleteDeregister(data.Key)
	case Remove:
		b.store.Remove(data.Key)
	case None:
	}
	return nil
}
