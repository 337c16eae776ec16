package transports

import "context"

// IngestTransport sends encoded events to a running tbx server.
type IngestTransport interface {
	// Append writes one encoded Event to run ("" is the log directory).
	Append(ctx context.Context, run string, payload []byte) error
	// Flush asks the server to make appended events durable and indexed.
	Flush(ctx context.Context) error
}
