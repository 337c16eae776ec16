package grpcserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	logpkg "github.com/rzbill/tbx/pkg/log"
)

// RequestIDKey is the metadata key carrying the request id.
const RequestIDKey = "x-request-id"

// unaryLogging assigns a request id (reusing an incoming one) and logs each
// call with its status code and latency.
func unaryLogging(logger logpkg.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		reqID, auth := "", ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDKey); len(v) > 0 {
				reqID = v[0]
			}
			if v := md.Get("authorization"); len(v) > 0 {
				auth = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, reqID))
		ctx = context.WithValue(ctx, logpkg.RequestIDKey, reqID)

		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []logpkg.Field{
			logpkg.Str("method", info.FullMethod),
			logpkg.Str("code", status.Code(err).String()),
			logpkg.Duration("elapsed", time.Since(start)),
		}
		if auth != "" {
			fields = append(fields, logpkg.Str("authorization", auth))
		}
		l := logger.WithContext(ctx)
		if err != nil {
			l.Warn("rpc failed", append(fields, logpkg.Err(err))...)
		} else {
			l.Debug("rpc", fields...)
		}
		return resp, err
	}
}
