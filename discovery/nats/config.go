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

package nats

import (
	"time"

	"github.com/tochemey/distro/internal/validation"
)

// Config represents the nats provider configuration
type Config struct {
	// Server defines the nats server in the format nats://host:port
	Server string
	// ClusterName is the name of the distro cluster. It scopes the announcement subject.
	ClusterName string
	// Host is the hostname or IP address of the member.
	Host string
	// GossipPort is the port the member gossips on.
	GossipPort int
	// Timeout defines how long DiscoverPeers collects announcements
	Timeout time.Duration
	// MaxJoinAttempts bounds the connection attempts
	MaxJoinAttempts int
	// ReconnectWait is the delay between two connection attempts
	ReconnectWait time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Validate checks whether the given discovery configuration is valid
func (x *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Server", x.Server)).
		AddValidator(validation.NewEmptyStringValidator("ClusterName", x.ClusterName)).
		AddValidator(validation.NewEmptyStringValidator("Host", x.Host)).
		AddAssertion(x.GossipPort > 0, "GossipPort is invalid").
		Validate()
}

// subject returns the subject members announce themselves on
func (x *Config) subject() string {
	return "distro.discovery." + x.ClusterName
}
