// Package client provides the `tbx` command-line client.
//
// The commands work on event files directly (inspect, verify, recover), on
// the Pebble scalar index (index build|query|tags), or talk to a running
// server over gRPC (push).
//
// # Configuration
//
// Every command resolves its configuration the same way: the file named by
// --config (JSON, YAML or TOML), then TBX_* environment variables, then the
// --log-dir, --index-dir and --log-level flags. The gRPC address for push is
// --addr, else TBX_GRPC (default 127.0.0.1:50051).
//
// Usage
//
//	tbx demo --out /tmp/tensorboardx
//
//	tbx inspect /tmp/tensorboardx --filter 'kind == "scalar" && step % 10 == 0'
//	tbx inspect run/events.out.tfevents.* --format yaml --limit 20
//
//	tbx verify /tmp/tensorboardx
//	tbx recover --dry-run /tmp/tensorboardx
//
//	tbx index build --log-dir /tmp/tensorboardx
//	tbx index query --run . --tag scalar/scalar --reverse --limit 5
//
//	tbx push scalar --run train --tag loss --value 0.25 --step 100 --flush
//
//	tbx config show --format yaml
package client
