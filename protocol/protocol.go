// Package protocol implements the frame format of the mini-rpc transport.
//
// Every frame is a fixed 14-byte header followed by a body of BodyLen bytes, so the
// receiver always knows where one message ends and the next begins on the TCP stream.
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│   seq   │ bodyLen │    body ...    │
//	│ elr  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	MagicNumber byte = 0x65 // 'e'
	MagicByte2  byte = 0x6c // 'l'
	MagicByte3  byte = 0x72 // 'r'
	Version     byte = 0x01
	HeaderSize  int  = 14

	// MaxBodyLen bounds the allocation made for a single frame body.
	MaxBodyLen uint32 = 16 << 20
)

type MsgType byte

const (
	MsgTypeRequest   MsgType = 0
	MsgTypeResponse  MsgType = 1
	MsgTypeHeartbeat MsgType = 2 // no body
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeRequest:
		return "request"
	case MsgTypeResponse:
		return "response"
	case MsgTypeHeartbeat:
		return "heartbeat"
	}
	return fmt.Sprintf("msgtype(%d)", byte(t))
}

// Codec type values, kept in sync with the codec package (which imports message,
// so the protocol package stays free of it).
const (
	CodecTypeJSON   byte = 0
	CodecTypeBinary byte = 1
	CodecTypeProto  byte = 2
)

var (
	ErrInvalidMagic       = errors.New("protocol: invalid magic number")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrUnsupportedCodec   = errors.New("protocol: unsupported codec type")
	ErrUnsupportedMsgType = errors.New("protocol: unsupported message type")
	ErrBodyTooLarge       = errors.New("protocol: body too large")
)

// Header is the fixed part of a frame.
type Header struct {
	CodecType byte
	MsgType   MsgType
	Seq       uint32 // matches a response to its request on a multiplexed connection
	BodyLen   uint32
}

// Encode writes header and body as one frame. BodyLen is taken from body.
// Writers shared between goroutines must be locked by the caller, otherwise frames
// interleave.
func Encode(w io.Writer, h *Header, body []byte) error {
	if uint64(len(body)) > uint64(MaxBodyLen) {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}
	h.BodyLen = uint32(len(body))

	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	buf[0], buf[1], buf[2] = MagicNumber, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], h.BodyLen)
	buf = append(buf, body...)

	_, err := w.Write(buf)
	return err
}

// Decode reads exactly one frame from r.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("%w: %x", ErrInvalidMagic, headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, headerBuf[3])
	}
	if headerBuf[4] > CodecTypeProto {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedCodec, headerBuf[4])
	}
	msgType := MsgType(headerBuf[5])
	if msgType > MsgTypeHeartbeat {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedMsgType, headerBuf[5])
	}

	h := &Header{
		CodecType: headerBuf[4],
		MsgType:   msgType,
		Seq:       binary.BigEndian.Uint32(headerBuf[6:10]),
		BodyLen:   binary.BigEndian.Uint32(headerBuf[10:14]),
	}
	if h.BodyLen > MaxBodyLen {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, h.BodyLen)
	}

	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}
	return h, body, nil
}
