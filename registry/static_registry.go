package registry

import (
	"slices"
	"sync"
)

// StaticRegistry keeps instances in memory. The command line client uses it to reach
// a server at a fixed address without a discovery backend.
type StaticRegistry struct {
	mu        sync.RWMutex
	instances map[string][]ServiceInstance
	watchers  map[string][]chan []ServiceInstance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		instances: make(map[string][]ServiceInstance),
		watchers:  make(map[string][]chan []ServiceInstance),
	}
}

// NewStaticRegistryFor registers addr as the only instance of serviceName.
func NewStaticRegistryFor(serviceName, addr string) *StaticRegistry {
	r := NewStaticRegistry()
	r.Register(serviceName, ServiceInstance{Addr: addr, Weight: 1}, 0)
	return r
}

func (r *StaticRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	insts := slices.DeleteFunc(r.instances[serviceName], func(i ServiceInstance) bool {
		return i.Addr == instance.Addr
	})
	r.instances[serviceName] = append(insts, instance)
	r.notifyLocked(serviceName)
	return nil
}

func (r *StaticRegistry) Deregister(serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[serviceName] = slices.DeleteFunc(r.instances[serviceName], func(i ServiceInstance) bool {
		return i.Addr == addr
	})
	r.notifyLocked(serviceName)
	return nil
}

func (r *StaticRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	insts := r.instances[serviceName]
	if len(insts) == 0 {
		return nil, ErrNotFound
	}
	return slices.Clone(insts), nil
}

// Watch returns a channel primed with the current instance list. Slow readers only
// ever see the latest list.
func (r *StaticRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan []ServiceInstance, 1)
	ch <- slices.Clone(r.instances[serviceName])
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	return ch
}

func (r *StaticRegistry) notifyLocked(serviceName string) {
	snapshot := r.instances[serviceName]
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- slices.Clone(snapshot)
	}
}
