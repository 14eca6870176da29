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
	"context"
	"slices"
	"sync"
)

// DataStorage exposes the data of one resource type to the protocol
type DataStorage interface {
	// GetDistroData returns the Data of the key or nil when the key is unknown
	GetDistroData(key Key) (*Data, error)
	// GetDatumSnapshot returns every key of the resource type
	GetDatumSnapshot() (*Data, error)
	// GetVerifyData returns the digests of the keys this member owns.
	// The result may be empty.
	GetVerifyData() []*Data
	// IsFinishInitial reports whether the initial load has completed
	IsFinishInitial() bool
	// FinishInitial marks the initial load as completed
	FinishInitial()
}

// DataProcessor applies the Data received from peers
type DataProcessor interface {
	// ProcessType returns the resource type handled by the processor
	ProcessType() string
	// ProcessData applies an Add, a Change or a Delete Data
	ProcessData(data *Data) bool
	// ProcessVerifyData returns false when the local digest differs
	ProcessVerifyData(data *Data, source string) bool
	// ProcessSnapshot applies a Snapshot Data
	ProcessSnapshot(data *Data) bool
}

// Callback receives the outcome of an asynchronous transport call
type Callback interface {
	OnSuccess()
	OnFailed(err error)
}

// TransportAgent sends Data to one peer
type TransportAgent interface {
	// SupportCallback reports whether the WithCallback variants are supported
	SupportCallback() bool
	SyncData(ctx context.Context, data *Data, target string) bool
	SyncDataWithCallback(ctx context.Context, data *Data, target string, callback Callback)
	SyncVerifyData(ctx context.Context, data *Data, target string) bool
	SyncVerifyDataWithCallback(ctx context.Context, data *Data, target string, callback Callback)
	GetData(ctx context.Context, key Key, target string) (*Data, error)
	GetDatumSnapshot(ctx context.Context, target string) (*Data, error)
}

// ComponentHolder holds the storages, processors and agents per resource type
type ComponentHolder struct {
	mu         sync.RWMutex
	storages   map[string]DataStorage
	processors map[string]DataProcessor
	agents     map[string]TransportAgent
}

// NewComponentHolder creates an instance of ComponentHolder
func NewComponentHolder() *ComponentHolder {
	return &ComponentHolder{
		storages:   make(map[string]DataStorage),
		processors: make(map[string]DataProcessor),
		agents:     make(map[string]TransportAgent),
	}
}

// RegisterDataStorage registers the storage of a resource type
func (h *ComponentHolder) RegisterDataStorage(resourceType string, storage DataStorage) {
	h.mu.Lock()
	h.storages[resourceType] = storage
	h.mu.Unlock()
}

// RegisterDataProcessor registers a processor under its process type
func (h *ComponentHolder) RegisterDataProcessor(processor DataProcessor) {
	h.mu.Lock()
	h.processors[processor.ProcessType()] = processor
	h.mu.Unlock()
}

// RegisterTransportAgent registers the agent of a resource type
func (h *ComponentHolder) RegisterTransportAgent(resourceType string, agent TransportAgent) {
	h.mu.Lock()
	h.agents[resourceType] = agent
	h.mu.Unlock()
}

// FindDataStorage returns the storage of a resource type or nil
func (h *ComponentHolder) FindDataStorage(resourceType string) DataStorage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.storages[resourceType]
}

// FindDataProcessor returns the processor of a resource type or nil
func (h *ComponentHolder) FindDataProcessor(resourceType string) DataProcessor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processors[resourceType]
}

// FindTransportAgent returns the agent of a resource type or nil
func (h *ComponentHolder) FindTransportAgent(resourceType string) TransportAgent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.agents[resourceType]
}

// DataStorageTypes returns the sorted resource types that have a storage
func (h *ComponentHolder) DataStorageTypes() []string {
	h.mu.RLock()
	types := make([]string, 0, len(h.storages))
	for resourceType := range h.storages {
		types = append(types, resourceType)
	}
	h.mu.RUnlock()
	slices.Sort(types)
	return types
}

// FinishInitial reports whether every storage completed its initial load
func (h *ComponentHolder) FinishInitial() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, storage := range h.storages {
		if !storage.IsFinishInitial() {
			return false
		}
	}
	return true
}
