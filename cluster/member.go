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
	"net"
	"strconv"
	"time"

	"github.com/tochemey/distro/internal/codec"
)

// Member specifies a cluster member
type Member struct {
	// Name is the member name, unique within the cluster
	Name string `json:"name"`
	// Host is the member host
	Host string `json:"host"`
	// GossipPort is the port the member gossips on
	GossipPort int `json:"gossipPort"`
	// TransportPort is the port peers reach the member's distro transport on
	TransportPort int `json:"transportPort"`
	// CreatedAt is the member start time
	CreatedAt time.Time `json:"createdAt"`
}

// NewMember creates a Member named after its transport address
func NewMember(host string, gossipPort, transportPort int) Member {
	return Member{
		Name:          net.JoinHostPort(host, strconv.Itoa(transportPort)),
		Host:          host,
		GossipPort:    gossipPort,
		TransportPort: transportPort,
		CreatedAt:     time.Now().UTC(),
	}
}

// Address returns the host:port distro peers use to reach the member
func (m Member) Address() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.TransportPort))
}

// GossipAddress returns the host:port the member gossips on
func (m Member) GossipAddress() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.GossipPort))
}

// memberFromMeta returns a Member record from a node metadata
func memberFromMeta(meta []byte) (Member, error) {
	var member Member
	if err := codec.Unmarshal(meta, &member); err != nil {
		return Member{}, err
	}
	return member, nil
}
