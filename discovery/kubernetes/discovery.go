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

// Package kubernetes discovers cluster members from the running and ready
// pods matching a label selector.
package kubernetes

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/tochemey/distro/discovery"
	"github.com/tochemey/distro/log"
)

// Discovery represents the kubernetes discovery
type Discovery struct {
	config *Config
	client kubernetes.Interface
	mu     sync.Mutex

	initialized *atomic.Bool
	registered  *atomic.Bool
	logger      log.Logger
}

// enforce compilation error
var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery returns an instance of the kubernetes discovery provider
func NewDiscovery(config *Config, opts ...Option) *Discovery {
	d := &Discovery{
		config:      config,
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
		logger:      log.DefaultLogger,
	}
	for _, opt := range opts {
		opt.Apply(d)
	}
	return d
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return discovery.ProviderKubernetes
}

// Initialize creates the in-cluster client unless one is provided
func (d *Discovery) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}

	if err := d.config.Validate(); err != nil {
		return discovery.NewErrInvalidConfig(err)
	}

	if d.config.Context == nil {
		d.config.Context = context.Background()
	}

	if d.config.Timeout <= 0 {
		d.config.Timeout = 5 * time.Second
	}

	if d.client == nil {
		config, err := rest.InClusterConfig()
		if err != nil {
			return errors.Wrap(err, "failed to get the in-cluster config of the kubernetes provider")
		}

		client, err := kubernetes.NewForConfig(config)
		if err != nil {
			return errors.Wrap(err, "failed to create the kubernetes client api")
		}
		d.client = client
	}

	d.initialized.Store(true)
	return nil
}

// Register is a no-op: pods are registered by the kubernetes control plane
func (d *Discovery) Register() error {
	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if d.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}
	d.registered.Store(true)
	return nil
}

// Deregister is a no-op: pods are removed by the kubernetes control plane
func (d *Discovery) Deregister() error {
	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if !d.registered.Load() {
		return discovery.ErrNotRegistered
	}
	d.registered.Store(false)
	return nil
}

// DiscoverPeers returns the gossip addresses of the running and ready pods
func (d *Discovery) DiscoverPeers() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized.Load() {
		return nil, discovery.ErrNotInitialized
	}

	if !d.registered.Load() {
		return nil, discovery.ErrNotRegistered
	}

	ctx, cancel := context.WithTimeout(d.config.Context, d.config.Timeout)
	defer cancel()

	pods, err := d.client.CoreV1().Pods(d.config.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(d.config.PodLabels).String(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch kubernetes pods")
	}

	peers := goset.NewSet[string]()

MainLoop:
	for _, pod := range pods.Items {
		if pod.Name == d.config.Self || pod.Status.Phase != corev1.PodRunning || pod.Status.PodIP == "" {
			continue
		}

		// a pod without a Ready condition is accepted
		for _, condition := range pod.Status.Conditions {
			if condition.Type == corev1.PodReady && condition.Status != corev1.ConditionTrue {
				d.logger.Debugf("pod=%s is not ready", pod.GetName())
				continue MainLoop
			}
		}

		if port, ok := d.gossipPort(&pod); ok {
			peers.Add(net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(int(port))))
		}
	}

	return peers.ToSlice(), nil
}

// Close closes the provider
func (d *Discovery) Close() error {
	d.initialized.Store(false)
	d.registered.Store(false)
	return nil
}

func (d *Discovery) gossipPort(pod *corev1.Pod) (int32, bool) {
	for _, container := range pod.Spec.Containers {
		for _, port := range container.Ports {
			if port.Name == d.config.GossipPortName {
				return port.ContainerPort, true
			}
		}
	}
	return 0, false
}
