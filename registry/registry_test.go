package registry

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const service = "ElectionDataService"

func TestStaticRegisterAndDiscover(t *testing.T) {
	reg := NewStaticRegistry()

	_, err := reg.Discover(service)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, reg.Register(service, ServiceInstance{Addr: "127.0.0.1:50051", Weight: 10}, 10))
	require.NoError(t, reg.Register(service, ServiceInstance{Addr: "127.0.0.1:50052", Weight: 5}, 10))
	// re-registering an address replaces it
	require.NoError(t, reg.Register(service, ServiceInstance{Addr: "127.0.0.1:50052", Weight: 7}, 10))

	instances, err := reg.Discover(service)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, 7, instances[1].Weight)

	require.NoError(t, reg.Deregister(service, "127.0.0.1:50051"))
	instances, err = reg.Discover(service)
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{{Addr: "127.0.0.1:50052", Weight: 7}}, instances)
}

func TestStaticRegistryFor(t *testing.T) {
	instances, err := NewStaticRegistryFor(service, "localhost:50051").Discover(service)
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{{Addr: "localhost:50051", Weight: 1}}, instances)
}

func TestStaticWatch(t *testing.T) {
	reg := NewStaticRegistryFor(service, "a:1")
	ch := reg.Watch(service)

	assert.Equal(t, []ServiceInstance{{Addr: "a:1", Weight: 1}}, <-ch)

	require.NoError(t, reg.Register(service, ServiceInstance{Addr: "b:2"}, 0))
	require.NoError(t, reg.Deregister(service, "a:1"))

	// only the latest list is kept for a reader that fell behind
	assert.Equal(t, []ServiceInstance{{Addr: "b:2"}}, <-ch)
}

// Needs a running etcd, e.g. ETCD_ENDPOINTS=127.0.0.1:2379.
func TestEtcdRegisterAndDiscover(t *testing.T) {
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ETCD_ENDPOINTS not set")
	}

	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reg.Close()

	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}
	require.NoError(t, reg.Register(service, inst1, 10))
	require.NoError(t, reg.Register(service, inst2, 10))

	instances, err := reg.Discover(service)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ServiceInstance{inst1, inst2}, instances)

	require.NoError(t, reg.Deregister(service, inst1.Addr))
	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover(service)
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{inst2}, instances)

	require.NoError(t, reg.Deregister(service, inst2.Addr))
}
