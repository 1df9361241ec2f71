package main

import (
	"context"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/parsascontentcorner/linkgate/internal/grpc"
)

func newStatusCmd(cc *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "status <player-id>",
		Short: "Show which accounts a player has linked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.call(cmd, func(ctx context.Context, c *grpcserver.LinkServiceClient) (*structpb.Struct, error) {
				req, err := request(map[string]interface{}{"playerId": args[0]})
				if err != nil {
					return nil, err
				}
				return c.GetLinkStatus(ctx, req)
			})
		},
	}
}

func newPreLoginCmd(cc *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "prelogin <player-id>",
		Short: "Show the admission decision for a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.call(cmd, func(ctx context.Context, c *grpcserver.LinkServiceClient) (*structpb.Struct, error) {
				req, err := request(map[string]interface{}{"playerId": args[0]})
				if err != nil {
					return nil, err
				}
				return c.PreLogin(ctx, req)
			})
		},
	}
}

type linkURLConfig struct {
	provider  string
	username  string
	discordID string
}

func newLinkURLCmd(cc *clientConfig) *cobra.Command {
	cfg := &linkURLConfig{}

	cmd := &cobra.Command{
		Use:   "link-url <player-id>",
		Short: "Issue a signed authorization URL for a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.call(cmd, func(ctx context.Context, c *grpcserver.LinkServiceClient) (*structpb.Struct, error) {
				fields := map[string]interface{}{
					"playerId": args[0],
					"provider": cfg.provider,
					"username": cfg.username,
				}
				if cfg.discordID != "" {
					fields["discordId"] = cfg.discordID
				}
				req, err := request(fields)
				if err != nil {
					return nil, err
				}
				return c.IssueLinkURL(ctx, req)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.provider, "provider", "discord", "provider to link")
	cmd.Flags().StringVar(&cfg.username, "username", "", "player name shown on the confirmation page")
	cmd.Flags().StringVar(&cfg.discordID, "discord-id", "", "linked Discord id, looked up when empty")

	return cmd
}

type reviewConfig struct {
	deny       bool
	reason     string
	canReapply bool
}

func newReviewCmd(cc *clientConfig) *cobra.Command {
	cfg := &reviewConfig{}

	cmd := &cobra.Command{
		Use:   "review <player-id>",
		Short: "Approve or deny a player's pending link ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.call(cmd, func(ctx context.Context, c *grpcserver.LinkServiceClient) (*structpb.Struct, error) {
				req, err := request(map[string]interface{}{
					"playerId":   args[0],
					"approve":    !cfg.deny,
					"reason":     cfg.reason,
					"canReapply": cfg.canReapply,
				})
				if err != nil {
					return nil, err
				}
				return c.ReviewTicket(ctx, req)
			})
		},
	}

	cmd.Flags().BoolVar(&cfg.deny, "deny", false, "deny instead of approving")
	cmd.Flags().StringVar(&cfg.reason, "reason", "", "reason shown to the player on denial")
	cmd.Flags().BoolVar(&cfg.canReapply, "can-reapply", false, "let a denied player link again")

	return cmd
}

type linkConfig struct {
	username string
	source   string
	invited  string
	sponsor  string
}

func newLinkCmd(cc *clientConfig) *cobra.Command {
	cfg := &linkConfig{}

	cmd := &cobra.Command{
		Use:   "link <player-id> <discord-id>",
		Short: "Record a Discord link verified outside the OAuth flow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.call(cmd, func(ctx context.Context, c *grpcserver.LinkServiceClient) (*structpb.Struct, error) {
				req, err := request(map[string]interface{}{
					"playerId":  args[0],
					"discordId": args[1],
					"username":  cfg.username,
					"source":    cfg.source,
					"invitedBy": cfg.invited,
					"sponsorId": cfg.sponsor,
				})
				if err != nil {
					return nil, err
				}
				return c.CreateLink(ctx, req)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.username, "username", "", "player name")
	cmd.Flags().StringVar(&cfg.source, "source", "operator", "where the link came from")
	cmd.Flags().StringVar(&cfg.invited, "invited-by", "", "inviting member")
	cmd.Flags().StringVar(&cfg.sponsor, "sponsor", "", "sponsoring member id")

	return cmd
}
