// Package grpcapi serves and calls ElectionDataService over gRPC.
//
// The service descriptor is written by hand against the protobuf contract:
//
//	service ElectionDataService {
//	  rpc sendElectionData (ElectionRequest) returns (ElectionResponse);
//	}
package grpcapi

import (
	"context"

	"election-rpc/election"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName                    = "ElectionDataService"
	SendElectionDataMethod         = "sendElectionData"
	SendElectionDataFullMethodName = "/" + ServiceName + "/" + SendElectionDataMethod
)

type ElectionDataServer interface {
	SendElectionData(ctx context.Context, req *election.ElectionRequest) (*election.ElectionResponse, error)
}

// NewElectionDataServer exposes svc as an ElectionDataServer.
func NewElectionDataServer(svc *election.ElectionDataService) ElectionDataServer {
	return &electionDataServer{svc: svc}
}

type electionDataServer struct {
	svc *election.ElectionDataService
}

func (s *electionDataServer) SendElectionData(_ context.Context, req *election.ElectionRequest) (*election.ElectionResponse, error) {
	resp := &election.ElectionResponse{}
	if err := s.svc.SendElectionData(req, resp); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func RegisterElectionDataServer(s grpc.ServiceRegistrar, srv ElectionDataServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func sendElectionDataHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(election.ElectionRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, status.Convert(err).Message())
	}
	if interceptor == nil {
		return srv.(ElectionDataServer).SendElectionData(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendElectionDataFullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ElectionDataServer).SendElectionData(ctx, req.(*election.ElectionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ElectionDataServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: SendElectionDataMethod,
			Handler:    sendElectionDataHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "election/election.proto",
}

// NewServer returns a gRPC server with the election service registered, the wire
// codec forced and call logging installed. Extra options are appended.
func NewServer(logger *zap.Logger, svc *election.ElectionDataService, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(wireCodec{}),
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(logger)),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterElectionDataServer(s, NewElectionDataServer(svc))
	return s
}
