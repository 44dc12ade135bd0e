package middleware

import (
	"context"
	"sync"
	"time"

	"election-rpc/message"
)

const errTimedOut = "request timed out"

type inflightKey struct{}

// WithInflight returns a context whose TimeOutMiddleware registers handlers it
// detaches in wg. A server waiting on wg then also waits for late handlers.
func WithInflight(ctx context.Context, wg *sync.WaitGroup) context.Context {
	return context.WithValue(ctx, inflightKey{}, wg)
}

// TimeOutMiddleware answers with an error once timeout elapses. The handler keeps
// running in the background and its late reply is dropped.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			// the caller is still counted in wg here, so Add cannot race a Wait at zero
			wg, _ := ctx.Value(inflightKey{}).(*sync.WaitGroup)
			if wg != nil {
				wg.Add(1)
			}
			done := make(chan *message.RPCMessage, 1)
			go func() {
				if wg != nil {
					defer wg.Done()
				}
				done <- next(ctx, req)
			}()

			select {
			case reply := <-done:
				return reply
			case <-ctx.Done():
				return message.ErrorReply(req, errTimedOut)
			}
		}
	}
}
