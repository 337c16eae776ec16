// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the tbx runtime with gRPC and HTTP ingest servers, handling lifecycle and
// shutdown.
//
// Example:
//
//	cfg := config.Default()
//	cfg.GRPCAddr, cfg.HTTPAddr = ":50051", ":8080"
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
