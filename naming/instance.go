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

// Package naming implements the ephemeral service registry replicated by
// the distro protocol.
package naming

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/validation"
)

const (
	// DefaultNamespace is used when a key does not name its namespace
	DefaultNamespace = "public"
	// DefaultGroup is used when a key does not name its group
	DefaultGroup = "DEFAULT_GROUP"
	// DefaultCluster is the cluster name of an instance that has none
	DefaultCluster = "DEFAULT"

	keySeparator = "@@"
)

// Instance is a service instance reported by a client
type Instance struct {
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	ClusterName string            `json:"clusterName"`
	Weight      float64           `json:"weight"`
	Healthy     bool              `json:"healthy"`
	Enabled     bool              `json:"enabled"`
	Ephemeral   bool              `json:"ephemeral"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewInstance creates a healthy, enabled, ephemeral Instance with weight 1
func NewInstance(ip string, port int) Instance {
	return Instance{
		IP:          ip,
		Port:        port,
		ClusterName: DefaultCluster,
		Weight:      1,
		Healthy:     true,
		Enabled:     true,
		Ephemeral:   true,
	}
}

// Identity returns ip#port#cluster
func (i Instance) Identity() string {
	return i.IP + "#" + strconv.Itoa(i.Port) + "#" + i.cluster()
}

// Digest renders every field that takes part in the checksum
func (i Instance) Digest() string {
	var builder strings.Builder
	builder.WriteString(i.Identity())
	builder.WriteString(fmt.Sprintf("|%g|%t|%t", i.Weight, i.Healthy, i.Enabled))

	keys := make([]string, 0, len(i.Metadata))
	for key := range i.Metadata {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		builder.WriteString("|" + key + "=" + i.Metadata[key])
	}
	return builder.String()
}

// Address returns the instance host:port
func (i Instance) Address() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// Validate checks the instance can be registered
func (i Instance) Validate() error {
	err := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("ip", i.IP)).
		AddAssertion(i.Port > 0 && i.Port <= 65535, "port must be between 1 and 65535").
		AddAssertion(i.Weight >= 0, "weight must not be negative").
		Validate()
	if err != nil {
		return errors.NewErrInvalidRecord(err)
	}
	return nil
}

func (i Instance) cluster() string {
	if i.ClusterName == "" {
		return DefaultCluster
	}
	return i.ClusterName
}

// ServiceKey returns the key of a service: namespace@@group@@service
func ServiceKey(namespace, group, service string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if group == "" {
		group = DefaultGroup
	}
	return namespace + keySeparator + group + keySeparator + service
}

// ParseServiceKey splits a service key into its namespace, group and service
func ParseServiceKey(key string) (namespace, group, service string, err error) {
	parts := strings.Split(key, keySeparator)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid service key=(%s)", key)
	}
	return parts[0], parts[1], parts[2], nil
}
