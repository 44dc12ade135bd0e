// Package transport implements the client side of a mini-rpc connection.
//
// A ClientTransport multiplexes concurrent calls over one TCP connection: every
// request gets a sequence number, and a single receive loop routes each response to
// the channel of the caller waiting for that sequence number.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ one TCP conn ──→ server
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop: response(seq=2) → pending[2] → goroutine-2
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"election-rpc/codec"
	"election-rpc/message"
	"election-rpc/protocol"
)

const DefaultHeartbeatInterval = 30 * time.Second

var ErrClosed = errors.New("transport: connection closed")

type ClientTransport struct {
	conn  net.Conn
	codec codec.CodecType

	sending sync.Mutex // serializes whole frames on conn
	seq     uint32     // guarded by sending

	mu      sync.Mutex
	pending map[uint32]chan *message.RPCMessage
	err     error // set once the connection is unusable

	done      chan struct{}
	closeOnce sync.Once
}

// NewClientTransport takes ownership of conn and starts the receive and heartbeat loops.
func NewClientTransport(conn net.Conn, codecType codec.CodecType) *ClientTransport {
	return newClientTransport(conn, codecType, DefaultHeartbeatInterval)
}

func newClientTransport(conn net.Conn, codecType codec.CodecType, heartbeat time.Duration) *ClientTransport {
	t := &ClientTransport{
		conn:    conn,
		codec:   codecType,
		pending: make(map[uint32]chan *message.RPCMessage),
		done:    make(chan struct{}),
	}
	go t.recvLoop()
	go t.heartbeatLoop(heartbeat)
	return t
}

// Send writes one request and returns its sequence number and the channel that
// receives the response. If the connection breaks first, the channel receives an
// envelope carrying the connection error.
func (t *ClientTransport) Send(serviceMethod, requestID string, args any) (uint32, <-chan *message.RPCMessage, error) {
	payload, err := codec.MarshalPayload(t.codec, args)
	if err != nil {
		return 0, nil, err
	}
	body, err := codec.GetCodec(t.codec).Encode(&message.RPCMessage{
		ServiceMethod: serviceMethod,
		RequestID:     requestID,
		Payload:       payload,
	})
	if err != nil {
		return 0, nil, err
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	t.seq++
	seq := t.seq

	// register before writing so recvLoop can never see a response without a waiter
	respChan := make(chan *message.RPCMessage, 1)
	t.mu.Lock()
	if t.err != nil {
		err := t.err
		t.mu.Unlock()
		return 0, nil, err
	}
	t.pending[seq] = respChan
	t.mu.Unlock()

	header := protocol.Header{
		CodecType: byte(t.codec),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
	}
	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.Cancel(seq)
		return 0, nil, fmt.Errorf("transport: write request: %w", err)
	}
	return seq, respChan, nil
}

// Cancel forgets a pending call; a late response for seq is dropped.
func (t *ClientTransport) Cancel(seq uint32) {
	t.mu.Lock()
	delete(t.pending, seq)
	t.mu.Unlock()
}

// Err returns the error that made the transport unusable, or nil.
func (t *ClientTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.fail(err)
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		resp := &message.RPCMessage{}
		if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, resp); err != nil {
			resp = &message.RPCMessage{Error: fmt.Sprintf("transport: malformed response: %v", err)}
		}

		t.mu.Lock()
		ch, ok := t.pending[header.Seq]
		delete(t.pending, header.Seq)
		t.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// fail marks the transport broken and wakes every pending caller.
func (t *ClientTransport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		select {
		case <-t.done:
			t.err = ErrClosed
		default:
			t.err = fmt.Errorf("%w: %v", ErrClosed, err)
		}
	}
	pending := t.pending
	t.pending = make(map[uint32]chan *message.RPCMessage)
	errText := t.err.Error()
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- &message.RPCMessage{Error: errText}
	}
}

// heartbeatLoop sends an empty heartbeat frame every interval so idle connections
// are noticed when they break.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{CodecType: byte(t.codec), MsgType: protocol.MsgTypeHeartbeat}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}

// Close stops the background loops and closes the connection. Pending calls fail
// with ErrClosed.
func (t *ClientTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}
