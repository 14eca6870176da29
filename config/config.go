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

// Package config holds the configuration of a distro member and of its
// naming clients.
package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tochemey/distro/consistency"
	"github.com/tochemey/distro/discovery"
	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/compression"
	"github.com/tochemey/distro/internal/validation"
	"github.com/tochemey/distro/log"
)

// Config is the configuration of a distro member
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Cluster ClusterConfig `yaml:"cluster"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the replication protocol
type ServerConfig struct {
	VerifyInterval     time.Duration `yaml:"verifyInterval"`
	VerifyInitialDelay time.Duration `yaml:"verifyInitialDelay"`
	SyncDelay          time.Duration `yaml:"syncDelay"`
	SyncRetryDelay     time.Duration `yaml:"syncRetryDelay"`
	LoadRetryDelay     time.Duration `yaml:"loadRetryDelay"`
	LoadMaxAttempts    int           `yaml:"loadMaxAttempts"`
	// MaxTimeDiff is the conflict window of the resolver
	MaxTimeDiff     time.Duration `yaml:"maxTimeDiff"`
	ResolverPolicy  string        `yaml:"resolverPolicy"`
	EngineWorkers   int           `yaml:"engineWorkers"`
	EngineQueueSize int           `yaml:"engineQueueSize"`
	// Compression of the snapshot payloads: zstd, br or none
	Compression   string        `yaml:"compression"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// ClientConfig configures the redo of the naming clients
type ClientConfig struct {
	RedoDelay   time.Duration `yaml:"redoDelay"`
	RedoWorkers int           `yaml:"redoWorkers"`
}

// ClusterConfig configures the membership of the local member
type ClusterConfig struct {
	Host              string        `yaml:"host"`
	GossipPort        int           `yaml:"gossipPort"`
	TransportPort     int           `yaml:"transportPort"`
	NatsURL           string        `yaml:"natsUrl"`
	Discovery         string        `yaml:"discovery"`
	JoinTimeout       time.Duration `yaml:"joinTimeout"`
	JoinRetryInterval time.Duration `yaml:"joinRetryInterval"`
	MaxJoinAttempts   int           `yaml:"maxJoinAttempts"`

	Static     StaticConfig     `yaml:"static"`
	Etcd       EtcdConfig       `yaml:"etcd"`
	Consul     ConsulConfig     `yaml:"consul"`
	Nats       NatsConfig       `yaml:"nats"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// StaticConfig lists the gossip addresses of the seeds
type StaticConfig struct {
	Hosts []string `yaml:"hosts"`
}

// EtcdConfig configures the etcd discovery
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	ClusterName string        `yaml:"clusterName"`
	TTL         int64         `yaml:"ttl"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
}

// ConsulConfig configures the consul discovery
type ConsulConfig struct {
	Address     string `yaml:"address"`
	Datacenter  string `yaml:"datacenter"`
	Token       string `yaml:"token"`
	ClusterName string `yaml:"clusterName"`
	OnlyPassing bool   `yaml:"onlyPassing"`
}

// NatsConfig configures the nats discovery. Server defaults to
// ClusterConfig.NatsURL.
type NatsConfig struct {
	Server      string `yaml:"server"`
	ClusterName string `yaml:"clusterName"`
}

// KubernetesConfig configures the kubernetes discovery
type KubernetesConfig struct {
	Namespace      string            `yaml:"namespace"`
	PodLabels      map[string]string `yaml:"podLabels"`
	GossipPortName string            `yaml:"gossipPortName"`
	PodName        string            `yaml:"podName"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultClusterName scopes the discovery registrations of a member
const DefaultClusterName = "distro"

// Default returns the default configuration of a lone member
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			VerifyInterval:     5 * time.Second,
			VerifyInitialDelay: 5 * time.Second,
			SyncDelay:          time.Second,
			SyncRetryDelay:     3 * time.Second,
			LoadRetryDelay:     30 * time.Second,
			LoadMaxAttempts:    5,
			MaxTimeDiff:        consistency.DefaultWindow,
			ResolverPolicy:     consistency.UnionPolicy,
			EngineWorkers:      runtime.NumCPU(),
			EngineQueueSize:    1024,
			Compression:        compression.Zstd,
			SweepInterval:      30 * time.Second,
		},
		Client: ClientConfig{
			RedoDelay:   3 * time.Second,
			RedoWorkers: 1,
		},
		Cluster: ClusterConfig{
			Host:              "127.0.0.1",
			GossipPort:        7946,
			TransportPort:     7848,
			NatsURL:           "nats://127.0.0.1:4222",
			Discovery:         discovery.ProviderStatic,
			JoinTimeout:       10 * time.Second,
			JoinRetryInterval: time.Second,
			MaxJoinAttempts:   5,
			Etcd:              EtcdConfig{ClusterName: DefaultClusterName},
			Consul:            ConsulConfig{ClusterName: DefaultClusterName},
			Nats:              NatsConfig{ClusterName: DefaultClusterName},
		},
		Log: LogConfig{
			Level: log.InfoLevel.String(),
		},
	}
}

// Load reads the YAML file at path on top of the default configuration
func Load(path string, opts ...Option) (*Config, error) {
	bytea, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(bytea, config); err != nil {
		return nil, errors.NewErrInvalidConfig(err)
	}

	for _, opt := range opts {
		opt.Apply(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// TransportAddress returns the address the peers reach the member on
func (c *Config) TransportAddress() string {
	return net.JoinHostPort(c.Cluster.Host, strconv.Itoa(c.Cluster.TransportPort))
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() log.Level {
	return log.ParseLevel(c.Log.Level)
}

// Validate checks the whole configuration and reports every violation
func (c *Config) Validate() error {
	server := c.Server
	cluster := c.Cluster
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewPositiveDurationValidator("server.verifyInterval", server.VerifyInterval)).
		AddValidator(validation.NewPositiveDurationValidator("server.verifyInitialDelay", server.VerifyInitialDelay)).
		AddValidator(validation.NewPositiveDurationValidator("server.syncDelay", server.SyncDelay)).
		AddValidator(validation.NewPositiveDurationValidator("server.syncRetryDelay", server.SyncRetryDelay)).
		AddValidator(validation.NewPositiveDurationValidator("server.loadRetryDelay", server.LoadRetryDelay)).
		AddValidator(validation.NewPositiveDurationValidator("server.maxTimeDiff", server.MaxTimeDiff)).
		AddValidator(validation.NewPositiveDurationValidator("server.sweepInterval", server.SweepInterval)).
		AddAssertion(server.LoadMaxAttempts > 0, "server.loadMaxAttempts must be greater than zero").
		AddAssertion(server.EngineWorkers > 0, "server.engineWorkers must be greater than zero").
		AddAssertion(server.EngineQueueSize > 0, "server.engineQueueSize must be greater than zero").
		AddValidator(validation.NewOneOfValidator("server.resolverPolicy", server.ResolverPolicy, consistency.Policies()...)).
		AddValidator(validation.NewOneOfValidator("server.compression", server.Compression, compression.Names()...)).
		AddValidator(validation.NewPositiveDurationValidator("client.redoDelay", c.Client.RedoDelay)).
		AddAssertion(c.Client.RedoWorkers > 0, "client.redoWorkers must be greater than zero").
		AddValidator(validation.NewEmptyStringValidator("cluster.host", cluster.Host)).
		AddAssertion(validPort(cluster.GossipPort), "cluster.gossipPort is invalid").
		AddAssertion(validPort(cluster.TransportPort), "cluster.transportPort is invalid").
		AddValidator(validation.NewEmptyStringValidator("cluster.natsUrl", cluster.NatsURL)).
		AddValidator(validation.NewOneOfValidator("cluster.discovery", cluster.Discovery,
			discovery.ProviderStatic,
			discovery.ProviderEtcd,
			discovery.ProviderConsul,
			discovery.ProviderNats,
			discovery.ProviderKubernetes)).
		AddAssertion(c.LogLevel() != log.InvalidLevel, fmt.Sprintf("log.level %q is invalid", c.Log.Level))

	chain.When(cluster.Discovery == discovery.ProviderEtcd,
		validation.NewBooleanValidator(len(cluster.Etcd.Endpoints) > 0, "cluster.etcd.endpoints is required"),
		validation.NewEmptyStringValidator("cluster.etcd.clusterName", cluster.Etcd.ClusterName)).
		When(cluster.Discovery == discovery.ProviderConsul,
			validation.NewEmptyStringValidator("cluster.consul.address", cluster.Consul.Address),
			validation.NewEmptyStringValidator("cluster.consul.clusterName", cluster.Consul.ClusterName)).
		When(cluster.Discovery == discovery.ProviderNats,
			validation.NewEmptyStringValidator("cluster.nats.clusterName", cluster.Nats.ClusterName)).
		When(cluster.Discovery == discovery.ProviderKubernetes,
			validation.NewEmptyStringValidator("cluster.kubernetes.namespace", cluster.Kubernetes.Namespace),
			validation.NewEmptyStringValidator("cluster.kubernetes.gossipPortName", cluster.Kubernetes.GossipPortName))

	if err := chain.Validate(); err != nil {
		return errors.NewErrInvalidConfig(err)
	}
	return nil
}

func validPort(port int) bool {
	return port > 0 && port < 65536
}
