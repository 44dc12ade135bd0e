// Package codec serializes RPC envelopes and call payloads.
//
// The envelope codec is chosen per transport and travels in every frame header, so a
// server answers each request with the codec the client picked.
package codec

import (
	"fmt"
	"strings"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
	CodecTypeProto  CodecType = 2
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

// WireMessage is implemented by messages that know their protobuf wire encoding.
type WireMessage interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(data []byte) error
}

func GetCodec(codecType CodecType) Codec {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}
	case CodecTypeProto:
		return &ProtoCodec{}
	default:
		return &BinaryCodec{}
	}
}

// ParseCodecType maps a flag value ("json", "binary", "proto") to a CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch strings.ToLower(name) {
	case "json":
		return CodecTypeJSON, nil
	case "binary":
		return CodecTypeBinary, nil
	case "proto", "protobuf":
		return CodecTypeProto, nil
	}
	return 0, fmt.Errorf("codec: unknown codec %q", name)
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	case CodecTypeProto:
		return "proto"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// MarshalPayload encodes call args or replies. Envelopes framed with the proto codec
// carry protobuf wire payloads; the other codecs carry JSON payloads.
func MarshalPayload(codecType CodecType, v any) ([]byte, error) {
	if codecType != CodecTypeProto {
		return (&JSONCodec{}).Encode(v)
	}
	m, ok := v.(WireMessage)
	if !ok {
		return nil, fmt.Errorf("codec: %T does not support the proto codec", v)
	}
	return m.MarshalWire()
}

// UnmarshalPayload is the inverse of MarshalPayload. v must be a pointer.
func UnmarshalPayload(codecType CodecType, data []byte, v any) error {
	if codecType != CodecTypeProto {
		return (&JSONCodec{}).Decode(data, v)
	}
	m, ok := v.(WireMessage)
	if !ok {
		return fmt.Errorf("codec: %T does not support the proto codec", v)
	}
	return m.UnmarshalWire(data)
}
