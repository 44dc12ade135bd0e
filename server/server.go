// Package server implements the mini-rpc server: service registration, a middleware
// chain around a reflective dispatcher, and graceful shutdown.
//
// Request pipeline:
//
//	Accept conn → handleConn (one goroutine reads frames)
//	  → per request: go handleRequest
//	    → envelope decode → middleware chain → businessHandler (reflect call) → envelope encode → write
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"election-rpc/codec"
	"election-rpc/message"
	"election-rpc/middleware"
	"election-rpc/protocol"
	"election-rpc/registry"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// registrationTTL is the lease, in seconds, of instances announced to a registry.
const registrationTTL = 10

var ErrServerClosed = errors.New("rpc: server closed")

type codecKey struct{}

type Server struct {
	logger *zap.Logger

	mu            sync.RWMutex
	serviceMap    map[string]*service
	listener      net.Listener
	conns         map[net.Conn]struct{}
	registry      registry.Registry
	advertiseAddr string

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	wg       sync.WaitGroup // in-flight requests and handlers they detached
	connWg   sync.WaitGroup // connection readers
	shutdown atomic.Bool
}

func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:     logger.Named("server"),
		serviceMap: make(map[string]*service),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Register makes the exported methods of rcvr callable as "TypeName.Method".
func (svr *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if _, dup := svr.serviceMap[svc.name]; dup {
		return fmt.Errorf("rpc: service already defined: %s", svc.name)
	}
	svr.serviceMap[svc.name] = svc
	svr.logger.Debug("service registered", zap.String("service", svc.name), zap.Int("methods", len(svc.method)))
	return nil
}

// Use appends a middleware. Middlewares run in the order they were added and must
// be added before Serve.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// ListenAndServe listens on address and calls Serve.
func (svr *Server) ListenAndServe(network, address, advertiseAddr string, reg registry.Registry) error {
	lis, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.Serve(lis, advertiseAddr, reg)
}

// Serve accepts connections on lis until Shutdown. When reg is not nil every
// registered service is announced under advertiseAddr, the routable address of lis.
// Serve returns nil after a Shutdown.
func (svr *Server) Serve(lis net.Listener, advertiseAddr string, reg registry.Registry) error {
	svr.handler = middleware.Chain(svr.middlewares...)(svr.businessHandler)
	if advertiseAddr == "" {
		advertiseAddr = lis.Addr().String()
	}

	svr.mu.Lock()
	if svr.shutdown.Load() {
		svr.mu.Unlock()
		lis.Close()
		return ErrServerClosed
	}
	svr.listener = lis
	svr.advertiseAddr = advertiseAddr
	svr.registry = reg
	names := make([]string, 0, len(svr.serviceMap))
	for name := range svr.serviceMap {
		names = append(names, name)
	}
	svr.mu.Unlock()

	if reg != nil {
		for i, name := range names {
			if err := reg.Register(name, registry.ServiceInstance{Addr: advertiseAddr, Weight: 1}, registrationTTL); err != nil {
				err = fmt.Errorf("rpc: register %s: %w", name, err)
				// withdraw what was already announced
				for _, announced := range names[:i] {
					err = multierr.Append(err, reg.Deregister(announced, advertiseAddr))
				}
				svr.mu.Lock()
				svr.registry = nil
				svr.mu.Unlock()
				lis.Close()
				return err
			}
		}
	}
	svr.logger.Info("serving", zap.String("addr", lis.Addr().String()), zap.Strings("services", names))

	for {
		conn, err := lis.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		if !svr.trackConn(conn) {
			conn.Close()
			continue
		}
		go svr.handleConn(conn)
	}
}

// Addr returns the listener address, or nil before Serve.
func (svr *Server) Addr() net.Addr {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

func (svr *Server) trackConn(conn net.Conn) bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.conns[conn] = struct{}{}
	svr.connWg.Add(1)
	return true
}

func (svr *Server) untrackConn(conn net.Conn) {
	svr.mu.Lock()
	delete(svr.conns, conn)
	svr.mu.Unlock()
}

// handleConn reads frames sequentially and dispatches each request to its own
// goroutine. writeMu serializes the responses written back on this connection.
func (svr *Server) handleConn(conn net.Conn) {
	defer func() {
		svr.untrackConn(conn)
		conn.Close()
		svr.connWg.Done()
	}()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !svr.shutdown.Load() {
				svr.logger.Debug("connection closed", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if header.MsgType != protocol.MsgTypeRequest {
			continue
		}
		if !svr.beginRequest() {
			continue
		}
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// beginRequest counts a request as in flight unless Shutdown has started. The read
// lock orders it against Shutdown setting the flag.
func (svr *Server) beginRequest() bool {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.wg.Add(1)
	return true
}

func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	ct := codec.CodecType(header.CodecType)
	cdc := codec.GetCodec(ct)

	var reply *message.RPCMessage
	req := &message.RPCMessage{}
	if err := cdc.Decode(body, req); err != nil {
		reply = message.ErrorReply(nil, fmt.Sprintf("rpc: malformed request envelope: %v", err))
	} else {
		ctx := context.WithValue(context.Background(), codecKey{}, ct)
		ctx = middleware.WithInflight(ctx, &svr.wg)
		reply = svr.handler(ctx, req)
	}

	result, err := cdc.Encode(reply)
	if err != nil {
		svr.logger.Error("encode reply", zap.String("serviceMethod", req.ServiceMethod), zap.Error(err))
		return
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
	}
	writeMu.Lock()
	err = protocol.Encode(conn, &replyHeader, result)
	writeMu.Unlock()
	if err != nil {
		svr.logger.Warn("write reply", zap.Uint32("seq", header.Seq), zap.Error(err))
	}
}

// Shutdown deregisters the services, stops accepting connections and waits up to
// timeout for in-flight requests, including handlers still running after their
// call timed out, before closing the remaining connections.
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.mu.Lock()
	svr.shutdown.Store(true)
	lis, reg, addr := svr.listener, svr.registry, svr.advertiseAddr
	names := make([]string, 0, len(svr.serviceMap))
	for name := range svr.serviceMap {
		names = append(names, name)
	}
	svr.mu.Unlock()

	var errs error
	if reg != nil {
		for _, name := range names {
			errs = multierr.Append(errs, reg.Deregister(name, addr))
		}
	}
	if lis != nil {
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		errs = multierr.Append(errs, fmt.Errorf("rpc: timeout waiting for in-flight requests after %s", timeout))
	}

	svr.mu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.mu.Unlock()
	svr.connWg.Wait()

	svr.logger.Info("server stopped")
	return errs
}

// businessHandler dispatches an envelope to the registered method. It is the
// innermost handler of the middleware chain.
func (svr *Server) businessHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	serviceName, methodName, ok := strings.Cut(req.ServiceMethod, ".")
	if !ok || serviceName == "" || methodName == "" || strings.Contains(methodName, ".") {
		return message.ErrorReply(req, fmt.Sprintf("rpc: service/method ill-formed: %q", req.ServiceMethod))
	}

	svr.mu.RLock()
	svc := svr.serviceMap[serviceName]
	svr.mu.RUnlock()
	if svc == nil {
		return message.ErrorReply(req, "rpc: can't find service "+serviceName)
	}
	method := svc.method[methodName]
	if method == nil {
		return message.ErrorReply(req, "rpc: can't find method "+req.ServiceMethod)
	}

	ct, _ := ctx.Value(codecKey{}).(codec.CodecType)
	argv := reflect.New(method.ArgType)
	replyv := reflect.New(method.ReplyType)
	if len(req.Payload) > 0 {
		if err := codec.UnmarshalPayload(ct, req.Payload, argv.Interface()); err != nil {
			return message.ErrorReply(req, fmt.Sprintf("rpc: decode args: %v", err))
		}
	}

	reply := &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		RequestID:     req.RequestID,
	}
	if err := svc.call(method, argv, replyv); err != nil {
		reply.Error = err.Error()
		return reply
	}

	payload, err := codec.MarshalPayload(ct, replyv.Interface())
	if err != nil {
		reply.Error = fmt.Sprintf("rpc: encode reply: %v", err)
		return reply
	}
	reply.Payload = payload
	return reply
}
