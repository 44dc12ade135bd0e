package middleware

import (
	"context"
	"time"

	"election-rpc/message"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoggingMiddleware logs every call with its request id and duration. Requests that
// arrive without an id get a fresh UUID so server logs can still be correlated.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	logger = logger.Named("rpc")
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if req.RequestID == "" {
				req.RequestID = uuid.NewString()
			}
			start := time.Now()
			reply := next(ctx, req)

			fields := []zap.Field{
				zap.String("requestID", req.RequestID),
				zap.String("serviceMethod", req.ServiceMethod),
				zap.Duration("duration", time.Since(start)),
			}
			if reply.Failed() {
				logger.Warn("call failed", append(fields, zap.String("error", reply.Error))...)
			} else {
				logger.Info("call handled", fields...)
			}
			return reply
		}
	}
}
