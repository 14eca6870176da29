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
	"sync"

	"github.com/stretchr/testify/mock"
	"go.uber.org/atomic"
)

type mockAgent struct {
	mock.Mock
	callback bool

	mu       sync.Mutex
	recorded []recordedCall
}

type recordedCall struct {
	method string
	data   *Data
}

func (m *mockAgent) record(method string, data *Data) {
	m.mu.Lock()
	m.recorded = append(m.recorded, recordedCall{method: method, data: data})
	m.mu.Unlock()
}

// count returns the number of calls of the method, safe to use while calls
// are still in flight
func (m *mockAgent) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, call := range m.recorded {
		if call.method == method {
			total++
		}
	}
	return total
}

func (m *mockAgent) lastData(method string) *Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.recorded) - 1; i >= 0; i-- {
		if m.recorded[i].method == method {
			return m.recorded[i].data
		}
	}
	return nil
}

// contents returns the content of every Data sent with the method, in call
// order
func (m *mockAgent) contents(method string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var contents []string
	for _, call := range m.recorded {
		if call.method == method {
			contents = append(contents, string(call.data.Content))
		}
	}
	return contents
}

var _ TransportAgent = (*mockAgent)(nil)

func (m *mockAgent) SupportCallback() bool {
	return m.callback
}

func (m *mockAgent) SyncData(ctx context.Context, data *Data, target string) bool {
	m.record("SyncData", data)
	args := m.Called(ctx, data, target)
	return args.Bool(0)
}

func (m *mockAgent) SyncDataWithCallback(ctx context.Context, data *Data, target string, callback Callback) {
	m.record("SyncDataWithCallback", data)
	m.Called(ctx, data, target, callback)
}

func (m *mockAgent) SyncVerifyData(ctx context.Context, data *Data, target string) bool {
	m.record("SyncVerifyData", data)
	args := m.Called(ctx, data, target)
	return args.Bool(0)
}

func (m *mockAgent) SyncVerifyDataWithCallback(ctx context.Context, data *Data, target string, callback Callback) {
	m.record("SyncVerifyDataWithCallback", data)
	m.Called(ctx, data, target, callback)
}

func (m *mockAgent) GetData(ctx context.Context, key Key, target string) (*Data, error) {
	args := m.Called(ctx, key, target)
	data, _ := args.Get(0).(*Data)
	return data, args.Error(1)
}

func (m *mockAgent) GetDatumSnapshot(ctx context.Context, target string) (*Data, error) {
	args := m.Called(ctx, target)
	data, _ := args.Get(0).(*Data)
	return data, args.Error(1)
}

type fakeStorage struct {
	mu       sync.Mutex
	finished *atomic.Bool
	verify   []*Data
	data     map[string][]byte
}

var _ DataStorage = (*fakeStorage)(nil)

func newFakeStorage(finished bool) *fakeStorage {
	return &fakeStorage{
		finished: atomic.NewBool(finished),
		data:     make(map[string][]byte),
	}
}

func (f *fakeStorage) put(key string, content []byte) {
	f.mu.Lock()
	f.data[key] = content
	f.mu.Unlock()
}

func (f *fakeStorage) GetDistroData(key Key) (*Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.data[key.ResourceKey]
	if !ok {
		return nil, nil
	}
	return NewData(key, Change, content), nil
}

func (f *fakeStorage) GetDatumSnapshot() (*Data, error) {
	return NewData(NewKey("", testType), Snapshot, []byte("snapshot")), nil
}

func (f *fakeStorage) GetVerifyData() []*Data {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verify
}

func (f *fakeStorage) IsFinishInitial() bool {
	return f.finished.Load()
}

func (f *fakeStorage) FinishInitial() {
	f.finished.Store(true)
}

type fakeProcessor struct {
	mu        sync.Mutex
	received  []*Data
	verified  map[string]bool
	snapshots int
	accept    bool
}

var _ DataProcessor = (*fakeProcessor)(nil)

func newFakeProcessor(accept bool) *fakeProcessor {
	return &fakeProcessor{verified: make(map[string]bool), accept: accept}
}

func (f *fakeProcessor) ProcessType() string {
	return testType
}

func (f *fakeProcessor) ProcessData(data *Data) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, data)
	return true
}

func (f *fakeProcessor) ProcessVerifyData(data *Data, source string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verified[data.Key.ResourceKey]
}

func (f *fakeProcessor) ProcessSnapshot(*Data) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	return f.accept
}

func (f *fakeProcessor) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots
}
