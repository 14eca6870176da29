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

// Package consistency holds the replicated data model of the ephemeral
// registry together with the coordination-free merge rule applied to it.
package consistency

import (
	"slices"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// Record is a value held by a Datum. Two records are the same record when
// their identities are equal.
type Record interface {
	// Identity returns the record identity, e.g. ip#port#cluster for instances
	Identity() string
	// Digest returns a stable rendering of the record content used to
	// compute checksums
	Digest() string
}

// OpKind is the kind of an Operation
type OpKind int

const (
	// OpAdd upserts records into a Datum
	OpAdd OpKind = iota
	// OpRemove deletes records from a Datum
	OpRemove
)

// String returns the operation kind name
func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "ADD"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Operation is a change to apply to the Datum of a key
type Operation[R Record] struct {
	Kind           OpKind    `json:"kind"`
	Records        []R       `json:"records"`
	OriginRealTime time.Time `json:"origin"`
}

// NewAdd creates an ADD operation stamped at origin
func NewAdd[R Record](origin time.Time, records ...R) Operation[R] {
	return Operation[R]{Kind: OpAdd, Records: records, OriginRealTime: origin}
}

// NewRemove creates a REMOVE operation stamped at origin
func NewRemove[R Record](origin time.Time, records ...R) Operation[R] {
	return Operation[R]{Kind: OpRemove, Records: records, OriginRealTime: origin}
}

// Datum is the replicated state of a single key. A Datum is never mutated
// once published: every accepted operation produces a new Datum.
type Datum[R Record] struct {
	Key      string       `json:"key"`
	Records  map[string]R `json:"records"`
	Counter  uint64       `json:"counter"`
	RealTime time.Time    `json:"realTime"`
	// AddedAt holds the origin time of the latest ADD of every record
	AddedAt map[string]time.Time `json:"addedAt,omitempty"`
}

// Len returns the number of records
func (d *Datum[R]) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Contains reports whether a record with the given identity is present
func (d *Datum[R]) Contains(identity string) bool {
	if d == nil {
		return false
	}
	_, ok := d.Records[identity]
	return ok
}

// Values returns the records ordered by identity
func (d *Datum[R]) Values() []R {
	if d == nil {
		return nil
	}
	identities := d.identities()
	values := make([]R, 0, len(identities))
	for _, identity := range identities {
		values = append(values, d.Records[identity])
	}
	return values
}

// Checksum returns a digest of the record set. Two replicas holding the
// same records yield the same checksum regardless of insertion order.
func (d *Datum[R]) Checksum() string {
	hasher := xxh3.New()
	if d != nil {
		for _, identity := range d.identities() {
			_, _ = hasher.WriteString(d.Records[identity].Digest())
			_, _ = hasher.WriteString("\n")
		}
	}
	return strconv.FormatUint(hasher.Sum64(), 16)
}

func (d *Datum[R]) clone() *Datum[R] {
	records := make(map[string]R, len(d.Records))
	addedAt := make(map[string]time.Time, len(d.Records))
	for identity, record := range d.Records {
		records[identity] = record
		if at, ok := d.AddedAt[identity]; ok {
			addedAt[identity] = at
		}
	}
	return &Datum[R]{
		Key:      d.Key,
		Records:  records,
		Counter:  d.Counter,
		RealTime: d.RealTime,
		AddedAt:  addedAt,
	}
}

func (d *Datum[R]) identities() []string {
	identities := make([]string, 0, len(d.Records))
	for identity := range d.Records {
		identities = append(identities, identity)
	}
	slices.Sort(identities)
	return identities
}
