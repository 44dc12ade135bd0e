package grpcapi

import (
	"context"

	"election-rpc/election"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type ElectionDataClient interface {
	SendElectionData(ctx context.Context, in *election.ElectionRequest, opts ...grpc.CallOption) (*election.ElectionResponse, error)
}

type electionDataClient struct {
	cc grpc.ClientConnInterface
}

func NewElectionDataClient(cc grpc.ClientConnInterface) ElectionDataClient {
	return &electionDataClient{cc: cc}
}

func (c *electionDataClient) SendElectionData(ctx context.Context, in *election.ElectionRequest, opts ...grpc.CallOption) (*election.ElectionResponse, error) {
	out := new(election.ElectionResponse)
	opts = append([]grpc.CallOption{grpc.ForceCodec(wireCodec{})}, opts...)
	if err := c.cc.Invoke(ctx, SendElectionDataFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Dial opens a plaintext client connection to target. The connection is established
// lazily on the first call.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(target, opts...)
}
