// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcserver "github.com/rzbill/tbx/internal/server/grpc"
)

// GrpcTransport implements IngestTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli grpcserver.IngestClient) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(grpcserver.NewIngestClient(conn))
}

// Append sends one encoded event via gRPC.
func (t *GrpcTransport) Append(ctx context.Context, run string, payload []byte) error {
	return t.withClient(ctx, func(cli grpcserver.IngestClient) error {
		if run != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, grpcserver.RunMetadataKey, run)
		}
		_, err := cli.Append(ctx, wrapperspb.Bytes(payload))
		return err
	})
}

// Flush asks the server to flush and index.
func (t *GrpcTransport) Flush(ctx context.Context) error {
	return t.withClient(ctx, func(cli grpcserver.IngestClient) error {
		_, err := cli.Flush(ctx, &emptypb.Empty{})
		return err
	})
}
