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

package distro

import (
	"fmt"
	"strings"

	"github.com/tochemey/distro/internal/codec"
)

// DataOperation defines the kind of a distro Data
type DataOperation int

const (
	// Add carries records added to a key
	Add DataOperation = iota
	// Change carries the full state of a key
	Change
	// Delete carries records removed from a key
	Delete
	// Verify carries the digest of a key
	Verify
	// Snapshot carries every key of a resource type
	Snapshot
	// Query asks for the state of a key
	Query
)

// String returns the string representation of the operation
func (o DataOperation) String() string {
	switch o {
	case Add:
		return "ADD"
	case Change:
		return "CHANGE"
	case Delete:
		return "DELETE"
	case Verify:
		return "VERIFY"
	case Snapshot:
		return "SNAPSHOT"
	case Query:
		return "QUERY"
	default:
		return fmt.Sprintf("DataOperation(%d)", int(o))
	}
}

const keySeparator = "@@"

// Key identifies a replicated unit within a resource type
type Key struct {
	// ResourceKey is the opaque key of the data
	ResourceKey string `json:"resourceKey"`
	// ResourceType is the registered resource type the key belongs to
	ResourceType string `json:"resourceType"`
	// TargetServer optionally names the member the key is bound to
	TargetServer string `json:"targetServer,omitempty"`
}

// NewKey creates a Key
func NewKey(resourceKey, resourceType string) Key {
	return Key{ResourceKey: resourceKey, ResourceType: resourceType}
}

// WithTarget returns a copy of the key bound to the given member
func (k Key) WithTarget(target string) Key {
	k.TargetServer = target
	return k
}

// String returns the key string representation
func (k Key) String() string {
	if k.TargetServer == "" {
		return k.ResourceType + keySeparator + k.ResourceKey
	}
	return k.TargetServer + keySeparator + k.ResourceType + keySeparator + k.ResourceKey
}

// Data is the unit exchanged between members
type Data struct {
	Key     Key
	Type    DataOperation
	Content []byte
}

// NewData creates a Data
func NewData(key Key, op DataOperation, content []byte) *Data {
	return &Data{Key: key, Type: op, Content: content}
}

// VerifyData is the content of a Verify Data: the digest of one key
type VerifyData struct {
	Key      string `json:"key"`
	Checksum string `json:"checksum"`
}

// NewVerifyData encodes a key digest into a Verify Data
func NewVerifyData(key Key, checksum string) (*Data, error) {
	content, err := codec.Marshal(&VerifyData{Key: key.ResourceKey, Checksum: checksum})
	if err != nil {
		return nil, err
	}
	return NewData(key, Verify, content), nil
}

// DecodeVerifyData decodes the content of a Verify Data
func DecodeVerifyData(data *Data) (*VerifyData, error) {
	verifyData := new(VerifyData)
	if err := codec.Unmarshal(data.Content, verifyData); err != nil {
		return nil, err
	}
	return verifyData, nil
}

// Envelope is the wire unit of the distro transport
type Envelope struct {
	Type         DataOperation `json:"type"`
	ResourceType string        `json:"resourceType"`
	ResourceKey  string        `json:"resourceKey,omitempty"`
	Source       string        `json:"source,omitempty"`
	Payload      []byte        `json:"payload,omitempty"`
}

// ToEnvelope wraps the data into an Envelope sent by source
func (d *Data) ToEnvelope(source string) *Envelope {
	return &Envelope{
		Type:         d.Type,
		ResourceType: d.Key.ResourceType,
		ResourceKey:  d.Key.ResourceKey,
		Source:       source,
		Payload:      d.Content,
	}
}

// Data returns the Data carried by the envelope
func (e *Envelope) Data() *Data {
	return NewData(NewKey(e.ResourceKey, e.ResourceType), e.Type, e.Payload)
}

// EngineKey returns the task key of the given parts
func EngineKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}
