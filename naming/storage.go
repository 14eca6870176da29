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

package naming

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/distro/consistency"
	"github.com/tochemey/distro/distro"
	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/codec"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
)

// ResourceType is the distro resource type of the ephemeral instances
const ResourceType = "naming-instance"

// Oracle tells which member owns a key
type Oracle interface {
	Owner(key string) string
	Responsible(key string) bool
}

// Datum is the replicated state of a service
type Datum = consistency.Datum[Instance]

// Operation is a change of the instances of a service
type Operation = consistency.Operation[Instance]

// Storage keeps the ephemeral instances of every service and exposes them
// to the distro protocol. It is both the distro.DataStorage and the
// distro.DataProcessor of ResourceType.
type Storage struct {
	store    *consistency.Store[Instance]
	oracle   Oracle
	finished *atomic.Bool
	logger   log.Logger
	metric   *metric.DistroMetric

	mu        sync.RWMutex
	listeners []func(key string)
}

var (
	_ distro.DataStorage   = (*Storage)(nil)
	_ distro.DataProcessor = (*Storage)(nil)
)

// NewStorage creates a Storage merging writes with resolver. logger and
// distroMetric may be nil.
func NewStorage(resolver consistency.Resolver[Instance], oracle Oracle, logger log.Logger, distroMetric *metric.DistroMetric) *Storage {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Storage{
		store:    consistency.NewStore(resolver),
		oracle:   oracle,
		finished: atomic.NewBool(false),
		logger:   logger,
		metric:   distroMetric,
	}
}

// Listen registers fn to be called with the key of every Datum changed by
// an accepted operation, local or replicated
func (s *Storage) Listen(fn func(key string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Apply merges op into the Datum of key
func (s *Storage) Apply(key string, op Operation) (*Datum, bool) {
	datum, accepted := s.store.Apply(key, op)
	if s.metric != nil {
		if accepted {
			s.metric.MergeApplied(context.Background(), ResourceType)
		} else {
			s.metric.MergeDiscarded(context.Background(), ResourceType)
		}
	}

	if !accepted {
		s.logger.Debugf("%s of %d instance(s) on key=(%s) discarded", op.Kind, len(op.Records), key)
		return datum, false
	}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, listener := range listeners {
		listener(key)
	}
	return datum, true
}

// Get returns the Datum of key
func (s *Storage) Get(key string) (*Datum, bool) {
	return s.store.Get(key)
}

// Keys returns the service keys holding data
func (s *Storage) Keys() []string {
	return s.store.Keys()
}

// Sweep evicts the empty Datums untouched for longer than horizon and
// returns the number of evicted keys
func (s *Storage) Sweep(horizon time.Duration) int {
	deadline := time.Now().Add(-horizon)
	var candidates []string
	s.store.Range(func(key string, datum *Datum) bool {
		if datum.Len() == 0 && datum.RealTime.Before(deadline) {
			candidates = append(candidates, key)
		}
		return true
	})

	evicted := 0
	for _, key := range candidates {
		if s.store.Evict(key) {
			evicted++
		}
	}
	return evicted
}

// NewOperationData encodes op into the Data pushed to the peers: an Add for
// an ADD, a Delete for a REMOVE
func NewOperationData(key string, op Operation) (*distro.Data, error) {
	content, err := codec.Marshal(op)
	if err != nil {
		return nil, err
	}
	dataType := distro.Add
	if op.Kind == consistency.OpRemove {
		dataType = distro.Delete
	}
	return distro.NewData(distro.NewKey(key, ResourceType), dataType, content), nil
}

// GetDistroData implements distro.DataStorage. The Data carries the full
// Datum of the key.
func (s *Storage) GetDistroData(key distro.Key) (*distro.Data, error) {
	datum, ok := s.store.Get(key.ResourceKey)
	if !ok {
		return nil, nil
	}

	content, err := codec.Marshal(datum)
	if err != nil {
		return nil, err
	}
	return distro.NewData(key, distro.Change, content), nil
}

// GetDatumSnapshot implements distro.DataStorage. Every Datum is encoded on
// its own so that a corrupted one does not spoil the whole snapshot.
func (s *Storage) GetDatumSnapshot() (*distro.Data, error) {
	var (
		datums [][]byte
		err    error
	)

	s.store.Range(func(key string, datum *Datum) bool {
		if datum.Len() == 0 {
			return true
		}
		var bytea []byte
		if bytea, err = codec.Marshal(datum); err != nil {
			return false
		}
		datums = append(datums, bytea)
		return true
	})

	if err != nil {
		return nil, err
	}

	content, err := codec.Marshal(datums)
	if err != nil {
		return nil, err
	}
	return distro.NewData(distro.NewKey("", ResourceType), distro.Snapshot, content), nil
}

// GetVerifyData implements distro.DataStorage. It returns the checksum of
// every key this member owns. An emptied key is verified until the sweeper
// evicts it so that the peers that missed its last removal drop it too.
func (s *Storage) GetVerifyData() []*distro.Data {
	var items []*distro.Data
	s.store.Range(func(key string, datum *Datum) bool {
		if !s.oracle.Responsible(key) {
			return true
		}

		item, err := distro.NewVerifyData(distro.NewKey(key, ResourceType), datum.Checksum())
		if err != nil {
			s.logger.Warnf("failed to encode the verify data of key=(%s): %v", key, err)
			return true
		}
		items = append(items, item)
		return true
	})
	return items
}

// IsFinishInitial implements distro.DataStorage
func (s *Storage) IsFinishInitial() bool {
	return s.finished.Load()
}

// FinishInitial implements distro.DataStorage
func (s *Storage) FinishInitial() {
	s.finished.Store(true)
}

// ProcessType implements distro.DataProcessor
func (s *Storage) ProcessType() string {
	return ResourceType
}

// ProcessData implements distro.DataProcessor. An Add or a Delete carries
// one operation of a peer, merged as is. A Change carries the full Datum of
// the owner: the records missing from it are removed and the others are
// added, both at the owner's time.
func (s *Storage) ProcessData(data *distro.Data) bool {
	key := data.Key.ResourceKey
	switch data.Type {
	case distro.Add, distro.Delete:
		op, err := decodeOperation(data)
		if err != nil {
			s.logger.Warnf("failed to decode the operation on key=(%s): %v", key, err)
			return false
		}
		if op.Records = s.valid(key, op.Records); len(op.Records) > 0 {
			s.Apply(key, op)
		}
		return true
	case distro.Change:
		remote, err := decodeDatum(data.Content)
		if err != nil {
			s.logger.Warnf("failed to decode the datum of key=(%s): %v", key, err)
			return false
		}
		s.reconcile(key, remote)
		return true
	default:
		s.logger.Warnf("unexpected %s data on key=(%s)", data.Type, key)
		return false
	}
}

// ProcessVerifyData implements distro.DataProcessor
func (s *Storage) ProcessVerifyData(data *distro.Data, source string) bool {
	verifyData, err := distro.DecodeVerifyData(data)
	if err != nil {
		s.logger.Warnf("failed to decode the verify data sent by member=(%s): %v", source, err)
		return false
	}

	if s.oracle.Responsible(verifyData.Key) {
		// ownership is moving; the new owner verifies on its next tick
		s.logger.Debugf("verify from member=(%s) ignored: %v", source, errors.NewErrNotResponsible(verifyData.Key, s.oracle.Owner(verifyData.Key)))
		return true
	}

	// a missing key has the checksum of an empty one
	local, _ := s.store.Get(verifyData.Key)
	if local.Checksum() != verifyData.Checksum {
		s.logger.Debugf("key=(%s) differs from member=(%s)", verifyData.Key, source)
		return false
	}
	return true
}

// ProcessSnapshot implements distro.DataProcessor. Snapshot records are only
// added; a Datum that cannot be decoded is skipped.
func (s *Storage) ProcessSnapshot(data *distro.Data) bool {
	var datums [][]byte
	if err := codec.Unmarshal(data.Content, &datums); err != nil {
		s.logger.Warnf("failed to decode the snapshot: %v", err)
		return false
	}

	for _, bytea := range datums {
		remote, err := decodeDatum(bytea)
		if err != nil {
			s.logger.Warnf("skipping a snapshot datum: %v", err)
			continue
		}
		if records := s.validRecords(remote); len(records) > 0 {
			s.Apply(remote.Key, consistency.NewAdd(remote.RealTime, records...))
		}
	}
	return true
}

func (s *Storage) reconcile(key string, remote *Datum) {
	records := s.validRecords(remote)

	if local, ok := s.store.Get(key); ok {
		var removed []Instance
		for identity, instance := range local.Records {
			if !remote.Contains(identity) {
				removed = append(removed, instance)
			}
		}
		if len(removed) > 0 {
			s.Apply(key, consistency.NewRemove(remote.RealTime, removed...))
		}
	}

	if len(records) > 0 {
		s.Apply(key, consistency.NewAdd(remote.RealTime, records...))
	}
}

func (s *Storage) validRecords(datum *Datum) []Instance {
	records := make([]Instance, 0, datum.Len())
	for identity, instance := range datum.Records {
		if err := instance.Validate(); err != nil || identity != instance.Identity() {
			s.logger.Warnf("skipping instance=(%s) of key=(%s): invalid record", identity, datum.Key)
			continue
		}
		records = append(records, instance)
	}
	return records
}

// valid returns the records of an operation that are valid instances
func (s *Storage) valid(key string, records []Instance) []Instance {
	result := make([]Instance, 0, len(records))
	for _, instance := range records {
		if err := instance.Validate(); err != nil {
			s.logger.Warnf("skipping instance=(%s) of key=(%s): invalid record", instance.Identity(), key)
			continue
		}
		result = append(result, instance)
	}
	return result
}

func decodeOperation(data *distro.Data) (Operation, error) {
	var op Operation
	if err := codec.Unmarshal(data.Content, &op); err != nil {
		return op, errors.NewErrInvalidRecord(err)
	}
	op.Kind = consistency.OpAdd
	if data.Type == distro.Delete {
		op.Kind = consistency.OpRemove
	}
	return op, nil
}

func decodeDatum(content []byte) (*Datum, error) {
	datum := new(Datum)
	if err := codec.Unmarshal(content, datum); err != nil {
		return nil, errors.NewErrInvalidRecord(err)
	}
	return datum, nil
}
