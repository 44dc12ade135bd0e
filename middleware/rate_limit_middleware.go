package middleware

import (
	"context"

	"election-rpc/message"

	"golang.org/x/time/rate"
)

const errRateLimited = "rate limit exceeded"

// RateLimitMiddleware rejects calls beyond r per second with bursts of burst, using a
// token bucket shared by all connections of the server.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if !limiter.Allow() {
				return message.ErrorReply(req, errRateLimited)
			}
			return next(ctx, req)
		}
	}
}
