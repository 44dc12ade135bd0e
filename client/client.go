// Package client calls mini-rpc services found through a registry.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"election-rpc/codec"
	"election-rpc/loadbalance"
	"election-rpc/registry"
	"election-rpc/transport"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

var (
	ErrInvalidServiceMethod = errors.New("client: service method must look like Service.Method")
	ErrClientClosed         = errors.New("client: closed")
)

// ServerError is an error string returned by the remote side.
type ServerError string

func (e ServerError) Error() string {
	return "server error: " + string(e)
}

type routingKey struct{}

// WithRoutingKey attaches the key that key-aware balancers (consistent hash) route on.
func WithRoutingKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, routingKey{}, key)
}

// Client keeps a pool of multiplexed transports per server address. Every call
// borrows one transport and returns it when the reply arrives.
type Client struct {
	registry  registry.Registry
	balancer  loadbalance.Balancer
	codecType codec.CodecType
	poolSize  int
	dialer    net.Dialer

	mu     sync.Mutex
	pools  map[string]*connPool
	all    []*transport.ClientTransport
	closed bool
}

// connPool holds the idle transports of one address. Sends and the close of ch happen
// under Client.mu, and a pool never holds more than poolSize transports, so a send
// never blocks. A closed pool tells its waiters to start over.
type connPool struct {
	ch     chan *transport.ClientTransport
	closed bool
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, codecType codec.CodecType, poolSize int) *Client {
	if bal == nil {
		bal = &loadbalance.RoundRobinBalancer{}
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Client{
		registry:  reg,
		balancer:  bal,
		codecType: codecType,
		poolSize:  poolSize,
		pools:     make(map[string]*connPool),
	}
}

// getTransport borrows a transport for addr, dialing the pool on first use. The
// pool is returned so the transport goes back where it came from. A waiter whose
// pool is dropped retries with a fresh one.
func (c *Client) getTransport(ctx context.Context, addr string) (*transport.ClientTransport, *connPool, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, nil, ErrClientClosed
		}
		pool, ok := c.pools[addr]
		if !ok {
			pool = &connPool{ch: make(chan *transport.ClientTransport, c.poolSize)}
			c.pools[addr] = pool
		}
		c.mu.Unlock()

		if !ok {
			if err := c.fillPool(ctx, addr, pool); err != nil {
				return nil, nil, err
			}
		}

		select {
		case t, ok := <-pool.ch:
			if ok {
				return t, pool, nil
			}
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// fillPool dials poolSize connections. On failure the pool is dropped so callers
// waiting on it give up or redial.
func (c *Client) fillPool(ctx context.Context, addr string, pool *connPool) error {
	for i := 0; i < c.poolSize; i++ {
		conn, err := c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			c.mu.Lock()
			c.dropPoolLocked(addr, pool)
			c.mu.Unlock()
			return fmt.Errorf("client: dial %s: %w", addr, err)
		}
		c.put(pool, c.track(transport.NewClientTransport(conn, c.codecType)))
	}
	return nil
}

func (c *Client) track(t *transport.ClientTransport) *transport.ClientTransport {
	c.mu.Lock()
	c.all = append(c.all, t)
	c.mu.Unlock()
	return t
}

// put hands t to pool, or closes it when the pool is gone.
func (c *Client) put(pool *connPool, t *transport.ClientTransport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || pool.closed {
		t.Close()
		return
	}
	pool.ch <- t
}

// dropPoolLocked forgets pool and closes it, waking every caller blocked on it.
func (c *Client) dropPoolLocked(addr string, pool *connPool) {
	if c.pools[addr] == pool {
		delete(c.pools, addr)
	}
	if !pool.closed {
		pool.closed = true
		close(pool.ch)
	}
}

// putTransport returns t to pool, replacing it with a fresh connection if it broke.
// When the redial fails the whole pool is dropped.
func (c *Client) putTransport(addr string, pool *connPool, t *transport.ClientTransport) {
	if t.Err() != nil {
		t.Close()
		conn, err := c.dialer.Dial("tcp", addr)
		if err != nil {
			c.mu.Lock()
			c.dropPoolLocked(addr, pool)
			c.mu.Unlock()
			return
		}
		t = c.track(transport.NewClientTransport(conn, c.codecType))
	}
	c.put(pool, t)
}

// Call invokes serviceMethod ("Service.Method") with args and decodes the result into
// reply. It blocks until the reply arrives or ctx is done.
func (c *Client) Call(ctx context.Context, serviceMethod string, args any, reply any) error {
	serviceName, _, ok := strings.Cut(serviceMethod, ".")
	if !ok || serviceName == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServiceMethod, serviceMethod)
	}

	instances, err := c.registry.Discover(serviceName)
	if err != nil {
		return fmt.Errorf("client: discover %s: %w", serviceName, err)
	}
	key, _ := ctx.Value(routingKey{}).(string)
	instance, err := c.balancer.Pick(key, instances)
	if err != nil {
		return err
	}

	t, pool, err := c.getTransport(ctx, instance.Addr)
	if err != nil {
		return err
	}
	defer c.putTransport(instance.Addr, pool, t)

	seq, ch, err := t.Send(serviceMethod, uuid.NewString(), args)
	if err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if err := t.Err(); err != nil && resp.ServiceMethod == "" {
			return err
		}
		if resp.Failed() {
			return ServerError(resp.Error)
		}
		if len(resp.Payload) == 0 {
			return nil
		}
		return codec.UnmarshalPayload(c.codecType, resp.Payload, reply)
	case <-ctx.Done():
		t.Cancel(seq)
		return ctx.Err()
	}
}

// Close closes every connection the client opened. Calls waiting for a transport
// return ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	for addr, pool := range c.pools {
		c.dropPoolLocked(addr, pool)
	}
	all := c.all
	c.all = nil
	c.mu.Unlock()

	var errs error
	for _, t := range all {
		if err := t.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
