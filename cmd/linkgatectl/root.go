package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/parsascontentcorner/linkgate/internal/grpc"
)

// clientConfig holds the connection flags shared by every RPC subcommand.
type clientConfig struct {
	addr     string
	token    string
	insecure bool
	timeout  time.Duration

	// dial opens the connection; tests replace it with an in-memory listener.
	dial func(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error)
}

// NewRootCmd creates the root command for linkgatectl.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&clientConfig{dial: grpc.NewClient})
}

func newRootCmd(cfg *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkgatectl",
		Short: "Operate a linkgate service",
		Long: `linkgatectl talks to the linkgate LinkService over gRPC: inspect a player's
links, issue link URLs, review pending tickets and record bot-verified links.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.addr, "addr", "localhost:50051", "LinkService gRPC address")
	flags.StringVar(&cfg.token, "token", os.Getenv("LINKGATE_TOKEN"), "service bearer token (default $LINKGATE_TOKEN)")
	flags.BoolVar(&cfg.insecure, "insecure", false, "use a plaintext connection")
	flags.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "per-call timeout")

	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newStatusCmd(cfg))
	cmd.AddCommand(newPreLoginCmd(cfg))
	cmd.AddCommand(newLinkURLCmd(cfg))
	cmd.AddCommand(newReviewCmd(cfg))
	cmd.AddCommand(newLinkCmd(cfg))

	return cmd
}

// call dials the service, runs one RPC and prints the response as JSON
func (c *clientConfig) call(cmd *cobra.Command, rpc func(context.Context, *grpcserver.LinkServiceClient) (*structpb.Struct, error)) error {
	if c.token == "" {
		return fmt.Errorf("a service token is required (--token or $LINKGATE_TOKEN)")
	}

	transport := grpc.WithTransportCredentials(credentials.NewTLS(nil))
	if c.insecure {
		transport = grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	conn, err := c.dial(c.addr, transport, grpcserver.BearerCredentials(c.token, c.insecure))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	resp, err := rpc(ctx, grpcserver.NewLinkServiceClient(conn))
	if err != nil {
		return err
	}

	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func request(fields map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return req, nil
}
