// Command election-server accepts election data over gRPC (default) or mini-rpc and
// logs what it receives.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"election-rpc/election"
	"election-rpc/grpcapi"
	"election-rpc/logging"
	"election-rpc/middleware"
	"election-rpc/registry"
	"election-rpc/server"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	addr      string
	transport string
	advertise string
	etcd      string
	rateLimit float64
	burst     int
	timeout   time.Duration
	logLevel  string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "election-server",
		Short:        "Receive election data and log it",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", ":50051", "listen address")
	f.StringVar(&opts.transport, "transport", "grpc", "transport: grpc or mini")
	f.StringVar(&opts.advertise, "advertise", "", "address announced in the registry (mini only, defaults to the listen address)")
	f.StringVar(&opts.etcd, "etcd", "", "comma separated etcd endpoints to register with (mini only)")
	f.Float64Var(&opts.rateLimit, "rate-limit", 0, "requests per second, 0 disables (mini only)")
	f.IntVar(&opts.burst, "burst", 10, "rate limiter burst (mini only)")
	f.DurationVar(&opts.timeout, "timeout", 0, "per request timeout, 0 disables (mini only)")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, opts *options, logger *zap.Logger) error {
	svc := election.NewElectionDataService(logger)
	switch opts.transport {
	case "grpc":
		return runGRPC(ctx, opts, logger, svc)
	case "mini":
		return runMini(ctx, opts, logger, svc)
	}
	return fmt.Errorf("unknown transport %q", opts.transport)
}

func runGRPC(ctx context.Context, opts *options, logger *zap.Logger, svc *election.ElectionDataService) error {
	lis, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return err
	}
	srv := grpcapi.NewServer(logger, svc)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(lis) }()
	logger.Info("server started", zap.String("transport", "grpc"), zap.Stringer("addr", lis.Addr()))

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		srv.Stop()
	}
	if err := <-served; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runMini(ctx context.Context, opts *options, logger *zap.Logger, svc *election.ElectionDataService) (err error) {
	srv := server.NewServer(logger)
	srv.Use(middleware.LoggingMiddleware(logger))
	srv.Use(middleware.Optional(opts.timeout > 0, func() middleware.Middleware {
		return middleware.TimeOutMiddleware(opts.timeout)
	}))
	srv.Use(middleware.Optional(opts.rateLimit > 0, func() middleware.Middleware {
		return middleware.RateLimitMiddleware(opts.rateLimit, opts.burst)
	}))
	if err := srv.Register(svc); err != nil {
		return err
	}

	var reg registry.Registry
	if opts.etcd != "" {
		etcdReg, err := registry.NewEtcdRegistry(strings.Split(opts.etcd, ","), logger)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, etcdReg.Close()) }()
		reg = etcdReg
	}

	lis, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return err
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(lis, opts.advertise, reg) }()
	logger.Info("server started", zap.String("transport", "mini"), zap.Stringer("addr", lis.Addr()))

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	return multierr.Append(srv.Shutdown(shutdownTimeout), <-served)
}
