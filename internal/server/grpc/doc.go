// Package grpcserver hosts the gRPC ingest endpoint for tbx. It registers the
// tbx.v1.Ingest service, which appends encoded events to a run of the
// runtime's writer, and the standard gRPC health service.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := grpcserver.New(rt)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
//
// Clients name the run in the "tbx-run" metadata header:
//
//	ctx = metadata.AppendToOutgoingContext(ctx, grpcserver.RunMetadataKey, "train")
//	_, err := grpcserver.NewIngestClient(conn).Append(ctx, wrapperspb.Bytes(event.Encode(ev)))
package grpcserver
