package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transports "github.com/rzbill/tbx/internal/cmd/client/transports"
	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/pkg/summary"
)

// grpcAddr returns --addr, else TBX_GRPC, else the local default.
func grpcAddr(cmd *cobra.Command) string {
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		return v
	}
	if addr := os.Getenv("TBX_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

func getTransport(addr string) transports.IngestTransport {
	return transports.NewGrpcTransport(func(ctx context.Context) (*grpc.ClientConn, error) {
		return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	})
}

// NewPushCommand constructs the `push` command group.
func NewPushCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "push", Short: "Send events to a running tbx server"}
	cmd.PersistentFlags().String("addr", "", "gRPC address (default $TBX_GRPC or 127.0.0.1:50051)")
	cmd.PersistentFlags().String("run", "", "Run, relative to the server's log directory")
	cmd.PersistentFlags().Int64("step", 0, "Global step")
	cmd.PersistentFlags().Bool("flush", false, "Flush and index after sending")
	cmd.AddCommand(newPushScalarCommand(), newPushTextCommand())
	return cmd
}

func pushValue(cmd *cobra.Command, v event.Value) error {
	run, _ := cmd.Flags().GetString("run")
	step, _ := cmd.Flags().GetInt64("step")
	flush, _ := cmd.Flags().GetBool("flush")

	s := &event.Summary{}
	s.Set(v)
	ev := event.Event{WallTime: float64(time.Now().UnixNano()) / 1e9, Step: step, Summary: s}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	tr := getTransport(grpcAddr(cmd))
	if err := tr.Append(ctx, run, event.Encode(ev)); err != nil {
		return err
	}
	if flush {
		if err := tr.Flush(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "status: ok (%s step=%d)\n", v.Tag, step)
	return nil
}

func newPushScalarCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scalar",
		Short: "Send one scalar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tag, _ := cmd.Flags().GetString("tag")
			value, _ := cmd.Flags().GetFloat64("value")
			if tag == "" {
				return fmt.Errorf("--tag is required")
			}
			return pushValue(cmd, event.Scalar(summary.CleanTag(tag), value))
		},
	}
	cmd.Flags().String("tag", "", "Scalar tag")
	cmd.Flags().Float64("value", 0, "Scalar value")
	return cmd
}

func newPushTextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Send one text summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tag, _ := cmd.Flags().GetString("tag")
			text, _ := cmd.Flags().GetString("text")
			if tag == "" {
				return fmt.Errorf("--tag is required")
			}
			return pushValue(cmd, event.Text(summary.CleanTag(tag), text))
		},
	}
	cmd.Flags().String("tag", "", "Text tag")
	cmd.Flags().String("text", "", "Text body")
	return cmd
}
