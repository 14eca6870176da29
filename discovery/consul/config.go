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

package consul

import (
	"context"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/tochemey/distro/internal/validation"
)

const (
	// DefaultAddress is the local consul agent
	DefaultAddress = "127.0.0.1:8500"
	// DefaultServiceName is the consul service every member registers under
	DefaultServiceName = "distro"
	// DefaultTimeout bounds a catalog query
	DefaultTimeout = 10 * time.Second
)

// Config defines the configuration options for the Consul provider.
type Config struct {
	// Context is the parent of every catalog query. Defaults to context.Background().
	Context context.Context
	// Address of the Consul agent. Defaults to DefaultAddress.
	Address string
	// Datacenter to use. Empty means the agent's datacenter.
	Datacenter string
	// Token is the ACL token used for authenticated requests.
	Token string
	// Timeout of a catalog query. Defaults to DefaultTimeout.
	Timeout time.Duration
	// ServiceName is the consul service name. Defaults to DefaultServiceName.
	ServiceName string
	// ClusterName tags the registration so several distro clusters can
	// share one consul service.
	ClusterName string
	// Host and GossipPort identify the member
	Host       string
	GossipPort int
	// OnlyPassing restricts discovery to members with a passing health check.
	OnlyPassing bool
	// HealthCheck configures a TCP check on the gossip port. Nil disables it.
	HealthCheck *HealthCheck
}

// HealthCheck configures the TCP check Consul runs against the gossip port
type HealthCheck struct {
	Interval time.Duration
	Timeout  time.Duration
	// DeregisterAfter removes a member whose check stays critical that long.
	// Zero keeps critical members in the catalog.
	DeregisterAfter time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the defaults of unset fields.
func (config *Config) Sanitize() {
	if config.Context == nil {
		config.Context = context.Background()
	}
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
}

// Validate checks if the configuration is valid.
func (config *Config) Validate() error {
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("ClusterName", config.ClusterName)).
		AddValidator(validation.NewEmptyStringValidator("Host", config.Host)).
		AddAssertion(config.GossipPort > 0, "GossipPort is invalid")
	if check := config.HealthCheck; check != nil {
		chain.AddValidator(validation.NewPositiveDurationValidator("HealthCheck.Interval", check.Interval)).
			AddValidator(validation.NewPositiveDurationValidator("HealthCheck.Timeout", check.Timeout)).
			AddAssertion(check.DeregisterAfter >= 0, "HealthCheck.DeregisterAfter must not be negative")
	}
	return chain.Validate()
}

func (config *Config) clientConfig() *api.Config {
	cfg := api.DefaultConfig()
	cfg.Address = config.Address
	cfg.Datacenter = config.Datacenter
	cfg.Token = config.Token
	return cfg
}

func (check *HealthCheck) agentCheck(target string) *api.AgentServiceCheck {
	if check == nil {
		return nil
	}
	out := &api.AgentServiceCheck{
		TCP:      target,
		Interval: check.Interval.String(),
		Timeout:  check.Timeout.String(),
	}
	if check.DeregisterAfter > 0 {
		out.DeregisterCriticalServiceAfter = check.DeregisterAfter.String()
	}
	return out
}
