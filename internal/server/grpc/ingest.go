package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Ingest service wire contract. Messages are well-known types, so no
// generated package is needed: Append carries one encoded Event in a
// BytesValue and names its run in the RunMetadataKey header.
const (
	IngestServiceName = "tbx.v1.Ingest"
	RunMetadataKey    = "tbx-run"

	appendMethod = "/" + IngestServiceName + "/Append"
	flushMethod  = "/" + IngestServiceName + "/Flush"
)

// IngestServer is the server API for the Ingest service.
type IngestServer interface {
	Append(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Flush(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterIngestServer registers srv on s.
func RegisterIngestServer(s grpc.ServiceRegistrar, srv IngestServer) {
	s.RegisterService(&ingestServiceDesc, srv)
}

func appendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).Append(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: appendMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServer).Append(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func flushHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).Flush(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: flushMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServer).Flush(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var ingestServiceDesc = grpc.ServiceDesc{
	ServiceName: IngestServiceName,
	HandlerType: (*IngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Append", Handler: appendHandler},
		{MethodName: "Flush", Handler: flushHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tbx/v1/ingest.proto",
}

// IngestClient is the client API for the Ingest service.
type IngestClient interface {
	Append(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Flush(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type ingestClient struct {
	cc grpc.ClientConnInterface
}

// NewIngestClient returns a client bound to cc.
func NewIngestClient(cc grpc.ClientConnInterface) IngestClient {
	return &ingestClient{cc: cc}
}

func (c *ingestClient) Append(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, appendMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ingestClient) Flush(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, flushMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
