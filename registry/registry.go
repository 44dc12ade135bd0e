// Package registry tells clients where election-rpc servers run.
package registry

import "errors"

// ErrNotFound is returned by Discover when no instance serves the service.
var ErrNotFound = errors.New("registry: no instance registered")

type ServiceInstance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight,omitempty"` // used by the weighted random balancer
	Version string `json:"version,omitempty"`
}

type Registry interface {
	// Register announces instance under serviceName. ttl is in seconds and is
	// ignored by registries without leases.
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	// Watch emits the full instance list every time it changes.
	Watch(serviceName string) <-chan []ServiceInstance
}
