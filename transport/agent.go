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

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/tochemey/distro/distro"
	derrors "github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/codec"
	"github.com/tochemey/distro/internal/compression"
)

// Agent is the distro.TransportAgent of one resource type over NATS
type Agent struct {
	*options
	conn         *nats.Conn
	self         string
	resourceType string
	wg           sync.WaitGroup
}

var _ distro.TransportAgent = (*Agent)(nil)

// NewAgent creates an Agent sending on behalf of the member self
func NewAgent(conn *nats.Conn, self, resourceType string, opts ...Option) *Agent {
	return &Agent{
		options:      newOptions(opts...),
		conn:         conn,
		self:         self,
		resourceType: resourceType,
	}
}

// SupportCallback implements distro.TransportAgent
func (a *Agent) SupportCallback() bool {
	return a.callback
}

// SyncData implements distro.TransportAgent
func (a *Agent) SyncData(ctx context.Context, data *distro.Data, target string) bool {
	if _, err := a.request(ctx, target, opSync, data.ToEnvelope(a.self)); err != nil {
		a.logger.Warnf("failed to sync key=(%s) to member=(%s): %v", data.Key, target, err)
		return false
	}
	return true
}

// SyncDataWithCallback implements distro.TransportAgent
func (a *Agent) SyncDataWithCallback(ctx context.Context, data *distro.Data, target string, callback distro.Callback) {
	a.async(ctx, target, opSync, data.ToEnvelope(a.self), callback)
}

// SyncVerifyData implements distro.TransportAgent
func (a *Agent) SyncVerifyData(ctx context.Context, data *distro.Data, target string) bool {
	if _, err := a.request(ctx, target, opVerify, data.ToEnvelope(a.self)); err != nil {
		a.logger.Debugf("failed to verify key=(%s) with member=(%s): %v", data.Key, target, err)
		return false
	}
	return true
}

// SyncVerifyDataWithCallback implements distro.TransportAgent
func (a *Agent) SyncVerifyDataWithCallback(ctx context.Context, data *distro.Data, target string, callback distro.Callback) {
	a.async(ctx, target, opVerify, data.ToEnvelope(a.self), callback)
}

// GetData implements distro.TransportAgent. It returns nil when the target
// does not hold the key.
func (a *Agent) GetData(ctx context.Context, key distro.Key, target string) (*distro.Data, error) {
	envelope := &distro.Envelope{
		Type:         distro.Query,
		ResourceType: key.ResourceType,
		ResourceKey:  key.ResourceKey,
		Source:       a.self,
	}

	resp, err := a.request(ctx, target, opQuery, envelope)
	if err != nil {
		return nil, err
	}

	if len(resp.Payload) == 0 {
		return nil, nil
	}
	return distro.NewData(key, distro.Change, resp.Payload), nil
}

// GetDatumSnapshot implements distro.TransportAgent
func (a *Agent) GetDatumSnapshot(ctx context.Context, target string) (*distro.Data, error) {
	envelope := &distro.Envelope{
		Type:         distro.Snapshot,
		ResourceType: a.resourceType,
		Source:       a.self,
	}

	resp, err := a.request(ctx, target, opSnapshot, envelope)
	if err != nil {
		return nil, err
	}

	compressor, err := compression.New(resp.Compression)
	if err != nil {
		return nil, err
	}

	content, err := compressor.Decompress(resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress the snapshot of member=(%s): %w", target, err)
	}
	return distro.NewData(distro.NewKey("", a.resourceType), distro.Snapshot, content), nil
}

// Close waits for the in-flight callback calls
func (a *Agent) Close() {
	a.wg.Wait()
}

func (a *Agent) async(ctx context.Context, target, op string, envelope *distro.Envelope, callback distro.Callback) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if _, err := a.request(ctx, target, op, envelope); err != nil {
			callback.OnFailed(err)
			return
		}
		callback.OnSuccess()
	}()
}

func (a *Agent) request(ctx context.Context, target, op string, envelope *distro.Envelope) (*response, error) {
	if a.conn == nil || !a.conn.IsConnected() {
		return nil, derrors.ErrNotConnected
	}

	payload, err := codec.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg, err := a.conn.RequestWithContext(ctx, Subject(target, op), payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, derrors.NewErrMemberNotFound(target)
		}
		return nil, err
	}

	resp := new(response)
	if err := codec.Unmarshal(msg.Data, resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, derrors.NewErrRemoteCallFailed(target, resp.Error)
	}
	return resp, nil
}
