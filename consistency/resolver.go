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

package consistency

import (
	"fmt"
	"time"

	"github.com/tochemey/distro/errors"
)

const (
	// UnionPolicy names the union-merge resolver
	UnionPolicy = "union"

	// DefaultWindow is the default clock-skew tolerance
	DefaultWindow = 5 * time.Second
)

// Resolver merges an incoming operation into the current Datum of a key.
// It returns the Datum to publish and true when the operation is accepted,
// or the current Datum and false when it is discarded. current may be nil
// when the key holds no data yet.
type Resolver[R Record] interface {
	Resolve(key string, current *Datum[R], op Operation[R]) (*Datum[R], bool)
}

// NewResolver returns the resolver registered under policy
func NewResolver[R Record](policy string, window time.Duration) (Resolver[R], error) {
	switch policy {
	case UnionPolicy, "":
		return NewUnionResolver[R](window), nil
	default:
		return nil, fmt.Errorf("(policy=%s) %w", policy, errors.ErrUnknownResolverPolicy)
	}
}

// Policies lists the registered resolver policies
func Policies() []string {
	return []string{UnionPolicy}
}

// UnionResolver applies the union-merge rule with a clock-skew window.
//
// Let delta be the operation origin time minus the Datum real time:
//   - delta < -window: the operation is stale and discarded.
//   - delta > window: the operation is applied, the counter is incremented
//     and the Datum real time moves to the operation origin.
//   - otherwise the operation is concurrent: an ADD is unioned in and
//     increments the counter without moving the real time. A REMOVE skips
//     the records added within the window of the Datum real time and
//     deletes the others. It is discarded when it deletes nothing.
type UnionResolver[R Record] struct {
	window time.Duration
}

var _ Resolver[Record] = (*UnionResolver[Record])(nil)

// NewUnionResolver creates a UnionResolver with the given window
func NewUnionResolver[R Record](window time.Duration) *UnionResolver[R] {
	if window < 0 {
		window = -window
	}
	return &UnionResolver[R]{window: window}
}

// Window returns the clock-skew tolerance
func (u *UnionResolver[R]) Window() time.Duration {
	return u.window
}

// Resolve implements Resolver
func (u *UnionResolver[R]) Resolve(key string, current *Datum[R], op Operation[R]) (*Datum[R], bool) {
	if current == nil {
		if op.Kind != OpAdd || len(op.Records) == 0 {
			return nil, false
		}
		next := &Datum[R]{
			Key:      key,
			Records:  make(map[string]R, len(op.Records)),
			Counter:  1,
			RealTime: op.OriginRealTime,
			AddedAt:  make(map[string]time.Time, len(op.Records)),
		}
		apply(next, op)
		return next, true
	}

	delta := op.OriginRealTime.Sub(current.RealTime)
	switch {
	case delta < -u.window:
		return current, false
	case delta > u.window:
		next := current.clone()
		apply(next, op)
		next.Counter++
		next.RealTime = op.OriginRealTime
		return next, true
	default:
		if op.Kind == OpRemove {
			op = u.settled(current, op)
			if len(op.Records) == 0 {
				return current, false
			}
		}
		next := current.clone()
		apply(next, op)
		next.Counter++
		return next, true
	}
}

// settled narrows a concurrent REMOVE to the present records whose latest
// ADD is older than the window of the Datum real time
func (u *UnionResolver[R]) settled(current *Datum[R], op Operation[R]) Operation[R] {
	horizon := current.RealTime.Add(-u.window)
	records := make([]R, 0, len(op.Records))
	for _, record := range op.Records {
		identity := record.Identity()
		if !current.Contains(identity) {
			continue
		}
		if at, ok := current.AddedAt[identity]; ok && !at.Before(horizon) {
			continue
		}
		records = append(records, record)
	}
	op.Records = records
	return op
}

func apply[R Record](datum *Datum[R], op Operation[R]) {
	for _, record := range op.Records {
		identity := record.Identity()
		switch op.Kind {
		case OpAdd:
			datum.Records[identity] = record
			if at, ok := datum.AddedAt[identity]; !ok || op.OriginRealTime.After(at) {
				datum.AddedAt[identity] = op.OriginRealTime
			}
		case OpRemove:
			delete(datum.Records, identity)
			delete(datum.AddedAt, identity)
		}
	}
}
