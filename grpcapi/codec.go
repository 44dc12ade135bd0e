package grpcapi

import (
	"fmt"

	"election-rpc/codec"
)

// codecName matches the content subtype of the default gRPC protobuf codec, so
// peers built from the .proto contract see ordinary "application/grpc+proto" calls.
const codecName = "proto"

// wireCodec is a grpc encoding.Codec over codec.WireMessage.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(codec.WireMessage)
	if !ok {
		return nil, fmt.Errorf("grpcapi: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(codec.WireMessage)
	if !ok {
		return fmt.Errorf("grpcapi: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func (wireCodec) Name() string {
	return codecName
}
