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

package etcd

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/tochemey/distro/internal/validation"
)

const (
	// DefaultTTL is the member lease time-to-live in seconds
	DefaultTTL int64 = 30
	// DefaultDialTimeout bounds the initial connection to etcd
	DefaultDialTimeout = 5 * time.Second
	// DefaultTimeout bounds every lease and key-value call
	DefaultTimeout = 5 * time.Second
)

// Config holds configuration for etcd service discovery
type Config struct {
	// Context is the parent of every etcd call. Defaults to context.Background().
	Context context.Context
	// Endpoints of the etcd cluster
	Endpoints []string
	// ClusterName namespaces the member keys, so several distro
	// clusters can share one etcd.
	ClusterName string
	// Host and GossipPort identify the member
	Host       string
	GossipPort int
	// TTL of the member lease in seconds
	TTL int64
	// TLS configuration (optional)
	TLS *tls.Config
	// DialTimeout for etcd client connections
	DialTimeout time.Duration
	// Username and Password for etcd authentication (optional)
	Username string
	Password string
	// Timeout for etcd operations
	Timeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.AllErrors()).
		AddAssertion(len(c.Endpoints) > 0, "Endpoints must not be empty").
		AddValidator(validation.NewEmptyStringValidator("ClusterName", c.ClusterName)).
		AddValidator(validation.NewEmptyStringValidator("Host", c.Host)).
		AddAssertion(c.GossipPort > 0, "GossipPort is invalid").
		AddAssertion(c.TTL > 0, "TTL must be greater than 0").
		Validate()
}

func (c *Config) applyDefaults() {
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

func (c *Config) prefix() string {
	return "distro/" + c.ClusterName + "/members/"
}
