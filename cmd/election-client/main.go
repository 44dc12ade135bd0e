// Command election-client sends the sample election request once and logs the
// server's answer.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"election-rpc/client"
	"election-rpc/codec"
	"election-rpc/election"
	"election-rpc/grpcapi"
	"election-rpc/loadbalance"
	"election-rpc/logging"
	"election-rpc/registry"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"
)

const sendElectionData = grpcapi.ServiceName + ".SendElectionData"

type options struct {
	addr      string
	transport string
	codec     string
	balancer  string
	etcd      string
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
		Use:          "election-client",
		Short:        "Send the sample election data to a server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return run(cmd.Context(), opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", "localhost:50051", "server address")
	f.StringVar(&opts.transport, "transport", "grpc", "transport: grpc or mini")
	f.StringVar(&opts.codec, "codec", "proto", "mini-rpc codec: json, binary or proto")
	f.StringVar(&opts.balancer, "balancer", "round-robin", "mini-rpc balancer: round-robin, weighted-random or consistent-hash")
	f.StringVar(&opts.etcd, "etcd", "", "comma separated etcd endpoints to discover servers from, replaces --addr (mini only)")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, opts *options, logger *zap.Logger) error {
	req := election.SampleRequest()

	var resp *election.ElectionResponse
	var err error
	switch opts.transport {
	case "grpc":
		resp, err = sendGRPC(ctx, opts, logger, req)
	case "mini":
		resp, err = sendMini(ctx, opts, logger, req)
	default:
		err = fmt.Errorf("unknown transport %q", opts.transport)
	}
	if err != nil {
		return err
	}
	logger.Info("Server response: " + resp.Status)
	return nil
}

func sendGRPC(ctx context.Context, opts *options, logger *zap.Logger, req *election.ElectionRequest) (*election.ElectionResponse, error) {
	conn, err := grpcapi.Dial(opts.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := grpcapi.NewElectionDataClient(conn).SendElectionData(ctx, req)
	if err != nil {
		st := status.Convert(err)
		logger.Error("RPC failed", zap.Stringer("code", st.Code()), zap.String("details", st.Message()))
		return nil, err
	}
	return resp, nil
}

func sendMini(ctx context.Context, opts *options, logger *zap.Logger, req *election.ElectionRequest) (resp *election.ElectionResponse, err error) {
	ct, err := codec.ParseCodecType(opts.codec)
	if err != nil {
		return nil, err
	}
	bal, err := loadbalance.New(opts.balancer)
	if err != nil {
		return nil, err
	}

	var reg registry.Registry = registry.NewStaticRegistryFor(grpcapi.ServiceName, opts.addr)
	if opts.etcd != "" {
		etcdReg, err := registry.NewEtcdRegistry(strings.Split(opts.etcd, ","), logger)
		if err != nil {
			return nil, err
		}
		defer func() { err = multierr.Append(err, etcdReg.Close()) }()
		reg = etcdReg
	}

	cli := client.NewClient(reg, bal, ct, 1)
	defer func() { err = multierr.Append(err, cli.Close()) }()

	ctx = client.WithRoutingKey(ctx, strconv.Itoa(int(req.GetRegion().GetRegionID())))
	resp = &election.ElectionResponse{}
	if err := cli.Call(ctx, sendElectionData, req, resp); err != nil {
		logger.Error("RPC failed", zap.String("codec", ct.String()), zap.String("balancer", bal.Name()), zap.Error(err))
		return nil, err
	}
	return resp, nil
}
