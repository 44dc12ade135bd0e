// Package loadbalance picks the server instance that receives a call.
//
//   - RoundRobin:      equal-capacity instances
//   - WeightedRandom:  instances of different capacity
//   - ConsistentHash:  all calls with the same routing key (the region id) reach
//     the same instance while the instance set is stable
package loadbalance

import (
	"errors"
	"fmt"

	"election-rpc/registry"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer is called before every call and must be safe for concurrent use.
type Balancer interface {
	// Pick selects one of instances. key is the routing key of the call and may be
	// empty; only key-aware strategies look at it.
	Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer registered under name.
func New(name string) (Balancer, error) {
	switch name {
	case "", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash":
		return NewConsistentHashBalancer(), nil
	}
	return nil, fmt.Errorf("loadbalance: unknown balancer %q", name)
}
