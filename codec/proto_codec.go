package codec

import (
	"fmt"

	"election-rpc/message"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope field numbers for the proto codec.
const (
	fieldServiceMethod protowire.Number = 1
	fieldRequestID     protowire.Number = 2
	fieldError         protowire.Number = 3
	fieldPayload       protowire.Number = 4
)

// ProtoCodec encodes the envelope in protobuf wire format:
//
//	message RPCMessage {
//	  string service_method = 1;
//	  string request_id     = 2;
//	  string error          = 3;
//	  bytes  payload        = 4;
//	}
type ProtoCodec struct{}

func (c *ProtoCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return nil, errNotEnvelope
	}
	var b []byte
	b = AppendString(b, fieldServiceMethod, msg.ServiceMethod)
	b = AppendString(b, fieldRequestID, msg.RequestID)
	b = AppendString(b, fieldError, msg.Error)
	if len(msg.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, msg.Payload)
	}
	return b, nil
}

func (c *ProtoCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return errNotEnvelope
	}
	*msg = message.RPCMessage{}
	return ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.BytesType {
			return 0
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n
		}
		switch num {
		case fieldServiceMethod:
			msg.ServiceMethod = string(v)
		case fieldRequestID:
			msg.RequestID = string(v)
		case fieldError:
			msg.Error = string(v)
		case fieldPayload:
			msg.Payload = append([]byte(nil), v...)
		default:
			return 0
		}
		return n
	})
}

func (c *ProtoCodec) Type() CodecType {
	return CodecTypeProto
}

// AppendString appends a proto3 string field, skipping the empty string.
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendInt32 appends a proto3 int32 field, skipping zero.
func AppendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// AppendMessage appends an embedded message field.
func AppendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// FieldFunc consumes the value of one field from b and returns the number of bytes
// consumed or a negative protowire error code. Returning 0 leaves the field to
// ConsumeFields, which skips it.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) int

// ConsumeFields walks every field in data and hands it to fn. Unknown fields and
// fields with an unexpected wire type are skipped.
func ConsumeFields(data []byte, fn FieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("codec: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		n = fn(num, typ, data)
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("codec: bad field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return nil
}
