package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/parsascontentcorner/linkgate/internal/auth"
)

// tokenEnv is the part of the service environment needed to sign tokens
type tokenEnv struct {
	Secret string `env:"SERVICE_TOKEN_SECRET,required"`
}

type tokenConfig struct {
	subject string
	scopes  []string
	ttl     time.Duration
}

func newTokenCmd() *cobra.Command {
	cfg := &tokenConfig{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token",
		Long: `Issue an HS256 service token signed with SERVICE_TOKEN_SECRET, read from the
environment or a .env file. Hand it to the chat bot or pass it to --token.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.subject, "subject", "", "client name, e.g. discord-bot")
	cmd.Flags().StringSliceVar(&cfg.scopes, "scope",
		[]string{auth.ScopeLinksRead}, "granted scopes (links:read, links:write, links:review or *)")
	cmd.Flags().DurationVar(&cfg.ttl, "ttl", 365*24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runToken(cmd *cobra.Command, cfg *tokenConfig) error {
	_ = godotenv.Load()

	var e tokenEnv
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if len(e.Secret) < 32 {
		return fmt.Errorf("SERVICE_TOKEN_SECRET must be at least 32 characters")
	}
	if cfg.ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	token, err := auth.NewServiceTokens([]byte(e.Secret)).Issue(cfg.subject, cfg.scopes, cfg.ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
