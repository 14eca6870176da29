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
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/tochemey/distro/distro"
	"github.com/tochemey/distro/internal/codec"
)

// Handler answers the distro requests of the peers. distro.Protocol is a
// Handler.
type Handler interface {
	OnReceive(data *distro.Data) bool
	OnVerify(data *distro.Data, source string) bool
	OnQuery(key distro.Key) (*distro.Data, error)
	OnSnapshot(resourceType string) (*distro.Data, error)
}

// Server dispatches the requests sent to the local member to a Handler
type Server struct {
	*options
	conn    *nats.Conn
	self    string
	handler Handler

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewServer creates a Server for the member self
func NewServer(conn *nats.Conn, self string, handler Handler, opts ...Option) *Server {
	return &Server{
		options: newOptions(opts...),
		conn:    conn,
		self:    self,
		handler: handler,
	}
}

// Start subscribes to the subjects of the local member
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	sub, err := s.conn.Subscribe(Subject(s.self, "*"), s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe the distro subjects of member=(%s): %w", s.self, err)
	}

	s.sub = sub
	s.logger.Infof("distro transport of member=(%s) listening on %s", s.self, sub.Subject)
	return nil
}

// Stop unsubscribes and lets the in-flight requests complete
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}

	err := s.sub.Drain()
	s.sub = nil
	return err
}

func (s *Server) handle(msg *nats.Msg) {
	op := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]

	envelope := new(distro.Envelope)
	if err := codec.Unmarshal(msg.Data, envelope); err != nil {
		s.logger.Warnf("failed to decode a distro %s request: %v", op, err)
		s.reply(msg, &response{Error: err.Error()})
		return
	}

	var resp *response
	switch op {
	case opSync:
		resp = &response{Success: s.handler.OnReceive(envelope.Data())}
	case opVerify:
		resp = &response{Success: s.handler.OnVerify(envelope.Data(), envelope.Source)}
	case opQuery:
		resp = s.query(envelope)
	case opSnapshot:
		resp = s.snapshot(envelope)
	default:
		resp = &response{Error: fmt.Sprintf("unknown operation %s", op)}
	}
	s.reply(msg, resp)
}

func (s *Server) query(envelope *distro.Envelope) *response {
	data, err := s.handler.OnQuery(distro.NewKey(envelope.ResourceKey, envelope.ResourceType))
	if err != nil {
		return &response{Error: err.Error()}
	}

	resp := &response{Success: true}
	if data != nil {
		resp.Payload = data.Content
	}
	return resp
}

func (s *Server) snapshot(envelope *distro.Envelope) *response {
	data, err := s.handler.OnSnapshot(envelope.ResourceType)
	if err != nil {
		return &response{Error: err.Error()}
	}

	payload, err := s.compressor.Compress(data.Content)
	if err != nil {
		return &response{Error: err.Error()}
	}
	return &response{Success: true, Compression: s.compressor.Name(), Payload: payload}
}

func (s *Server) reply(msg *nats.Msg, resp *response) {
	bytea, err := codec.Marshal(resp)
	if err != nil {
		s.logger.Errorf("failed to encode a distro response: %v", err)
		return
	}

	if err := msg.Respond(bytea); err != nil {
		s.logger.Warnf("failed to respond to a distro request: %v", err)
	}
}
