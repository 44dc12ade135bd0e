package main

import (
	"context"
	"net"
	"testing"
	"time"

	"election-rpc/client"
	"election-rpc/codec"
	"election-rpc/election"
	"election-rpc/grpcapi"
	"election-rpc/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func serve(t *testing.T, opts *options) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts, zaptest.NewLogger(t)) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestRunGRPC(t *testing.T) {
	opts := &options{addr: freeAddr(t), transport: "grpc"}
	cancel, done := serve(t, opts)

	conn, err := grpcapi.Dial(opts.addr)
	require.NoError(t, err)
	defer conn.Close()
	cli := grpcapi.NewElectionDataClient(conn)

	require.Eventually(t, func() bool {
		resp, err := cli.SendElectionData(context.Background(), election.SampleRequest())
		return err == nil && resp.Status == election.StatusReceived
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not stop")
	}
}

func TestRunMini(t *testing.T) {
	opts := &options{addr: freeAddr(t), transport: "mini", rateLimit: 1000, burst: 10, timeout: time.Second}
	cancel, done := serve(t, opts)

	cli := client.NewClient(registry.NewStaticRegistryFor(grpcapi.ServiceName, opts.addr), nil, codec.CodecTypeProto, 1)
	defer cli.Close()

	require.Eventually(t, func() bool {
		resp := &election.ElectionResponse{}
		err := cli.Call(context.Background(), grpcapi.ServiceName+".SendElectionData", election.SampleRequest(), resp)
		return err == nil && resp.Status == election.StatusReceived
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not stop")
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, run(ctx, &options{addr: freeAddr(t), transport: "udp"}, zaptest.NewLogger(t)))
	assert.Error(t, run(ctx, &options{addr: "not-an-address", transport: "grpc"}, zaptest.NewLogger(t)))
}

func TestFlagDefaults(t *testing.T) {
	cmd := newCommand()
	assert.Equal(t, ":50051", cmd.Flags().Lookup("addr").DefValue)
	assert.Equal(t, "grpc", cmd.Flags().Lookup("transport").DefValue)
	assert.Equal(t, "info", cmd.Flags().Lookup("log-level").DefValue)
}
