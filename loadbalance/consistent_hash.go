package loadbalance

import (
	"hash/crc32"
	"slices"
	"strconv"
	"strings"
	"sync"

	"election-rpc/registry"
)

const defaultReplicas = 100

// ConsistentHashBalancer places every instance on a crc32 hash ring through a number
// of virtual nodes and routes a key to the first node clockwise from its hash.
// The ring is rebuilt whenever Pick sees a different instance set.
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.Mutex
	ring  []uint32          // sorted virtual node hashes
	nodes map[uint32]string // virtual node hash -> instance address
	set   string            // addresses the ring was built from
}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: defaultReplicas,
		nodes:    make(map[uint32]string),
	}
}

func (b *ConsistentHashBalancer) Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	b.rebuildLocked(instances)
	hash := crc32.ChecksumIEEE([]byte(key))
	idx, _ := slices.BinarySearch(b.ring, hash)
	if idx == len(b.ring) {
		idx = 0
	}
	addr := b.nodes[b.ring[idx]]
	b.mu.Unlock()

	for i := range instances {
		if instances[i].Addr == addr {
			return &instances[i], nil
		}
	}
	return &instances[0], nil
}

func (b *ConsistentHashBalancer) rebuildLocked(instances []registry.ServiceInstance) {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	slices.Sort(addrs)
	set := strings.Join(addrs, ",")
	if set == b.set {
		return
	}

	b.set = set
	b.ring = b.ring[:0]
	clear(b.nodes)
	for _, addr := range addrs {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(addr + "#" + strconv.Itoa(i)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = addr
		}
	}
	slices.Sort(b.ring)
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent-hash"
}
