// Package middleware wraps the server's business handler with cross-cutting behavior.
package middleware

import (
	"context"

	"election-rpc/message"
)

type HandlerFunc func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so that the first one given runs outermost:
// Chain(A, B)(h) == A(B(h)). Nil entries are skipped, which lets callers pass
// middlewares that a flag turned off.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] == nil {
				continue
			}
			next = middlewares[i](next)
		}
		return next
	}
}

// Optional returns mw when enabled and nil otherwise.
func Optional(enabled bool, mw func() Middleware) Middleware {
	if !enabled {
		return nil
	}
	return mw()
}
