package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/runtime"
	"github.com/rzbill/tbx/pkg/summary"
)

type ingestSvc struct {
	rt *runtime.Runtime
}

func runFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(RunMetadataKey); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *ingestSvc) Append(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	ev, err := event.Decode(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.rt.Writer().WriteEvent(runFromContext(ctx), ev); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Flush makes everything appended so far durable and queryable.
func (s *ingestSvc) Flush(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.rt.Sync(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// toStatus maps writer errors to gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, event.ErrMalformed), errors.Is(err, summary.ErrInvalidRun):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, summary.ErrWriterClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
