package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"election-rpc/message"
)

var errNotEnvelope = errors.New("codec: v must be *message.RPCMessage")

// BinaryCodec writes the envelope as length-prefixed fields, big-endian:
//
//	uint16 len | ServiceMethod | uint16 len | RequestID | uint32 len | Payload | uint16 len | Error
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return nil, errNotEnvelope
	}
	for _, s := range []string{msg.ServiceMethod, msg.RequestID, msg.Error} {
		if len(s) > 0xffff {
			return nil, fmt.Errorf("codec: envelope field of %d bytes exceeds 65535", len(s))
		}
	}

	buf := make([]byte, 0, 2+len(msg.ServiceMethod)+2+len(msg.RequestID)+4+len(msg.Payload)+2+len(msg.Error))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.ServiceMethod)))
	buf = append(buf, msg.ServiceMethod...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.RequestID)))
	buf = append(buf, msg.RequestID...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Payload)))
	buf = append(buf, msg.Payload...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Error)))
	buf = append(buf, msg.Error...)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return errNotEnvelope
	}

	r := binaryReader{data: data}
	msg.ServiceMethod = string(r.next(r.uint16()))
	msg.RequestID = string(r.next(r.uint16()))
	payload := r.next(r.uint32())
	msg.Error = string(r.next(r.uint16()))
	if r.err != nil {
		return r.err
	}

	msg.Payload = nil
	if len(payload) > 0 {
		msg.Payload = make([]byte, len(payload))
		copy(msg.Payload, payload)
	}
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// binaryReader walks a buffer and remembers the first short read.
type binaryReader struct {
	data []byte
	off  int
	err  error
}

func (r *binaryReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("codec: truncated binary envelope at offset %d", r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *binaryReader) uint16() int {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint16(b))
}

func (r *binaryReader) uint32() int {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint32(b))
}
