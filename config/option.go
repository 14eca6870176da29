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

package config

import "time"

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Config)

// Apply applies the option
func (f OptionFunc) Apply(c *Config) {
	f(c)
}

// WithLogLevel overrides the log level
func WithLogLevel(level string) Option {
	return OptionFunc(func(c *Config) {
		c.Log.Level = level
	})
}

// WithHost overrides the host and the ports of the member
func WithHost(host string, gossipPort, transportPort int) Option {
	return OptionFunc(func(c *Config) {
		c.Cluster.Host = host
		c.Cluster.GossipPort = gossipPort
		c.Cluster.TransportPort = transportPort
	})
}

// WithNatsURL overrides the url of the NATS server
func WithNatsURL(url string) Option {
	return OptionFunc(func(c *Config) {
		c.Cluster.NatsURL = url
	})
}

// WithStaticPeers switches to the static discovery of the given seeds
func WithStaticPeers(hosts ...string) Option {
	return OptionFunc(func(c *Config) {
		c.Cluster.Discovery = "static"
		c.Cluster.Static.Hosts = hosts
	})
}

// WithMaxTimeDiff overrides the conflict window of the resolver
func WithMaxTimeDiff(window time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.Server.MaxTimeDiff = window
	})
}
