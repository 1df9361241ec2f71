package testutil

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/parsascontentcorner/linkgate/internal/config"
)

// GenerateStateSecret generates a 32-byte state signing secret for testing.
func GenerateStateSecret() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("failed to generate state secret: %v", err))
	}
	return key
}

// GenerateTestConfig creates a test configuration with valid values.
// Provider endpoints point at baseURL when it is non-empty.
func GenerateTestConfig(baseURL string) *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{
			HTTPPort:      "8080",
			GRPCPort:      "50051",
			Host:          "localhost",
			Env:           "test",
			PublicBaseURL: "http://localhost:8080",
		},
		Discord: config.DiscordConfig{
			ClientID:     "test_client_id",
			ClientSecret: "test_client_secret",
			RedirectURI:  "http://localhost:8080/link/discord/callback",
			Scopes:       []string{"identify"},
		},
		Rank: config.RankConfig{
			Provider:     "osu",
			ClientID:     "test_rank_client_id",
			ClientSecret: "test_rank_client_secret",
			RedirectURI:  "http://localhost:8080/link/osu/callback",
			AuthURL:      "https://osu.ppy.sh/oauth/authorize",
			TokenURL:     "https://osu.ppy.sh/oauth/token",
			APIURL:       "https://osu.ppy.sh/api/v2",
			Scopes:       []string{"identify"},
			Optional:     true,
		},
		Database: config.DatabaseConfig{
			Driver:         "sqlite",
			Path:           ":memory:",
			MaxOpenConns:   1,
			MaxIdleConns:   1,
			ConnectRetries: 1,
		},
		Security: config.SecurityConfig{
			StateSecret:        GenerateStateSecret(),
			StateSecretVersion: "v1",
			StateExpiryMinutes: 10,
			ServiceTokenSecret: strings.Repeat("s", 32),
			CallbackRateLimit:  30,
		},
		Link: config.LinkConfig{
			TicketTTL:       30 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Gate: config.GateConfig{
			CheckTimeout:    time.Second,
			ReturnDelay:     10 * time.Millisecond,
			SnapshotMaxAge:  time.Hour,
			SandboxWorld:    "limbo",
			SandboxY:        64,
			SandboxRadius:   8,
			AllowedCommands: []string{"link", "skiplink", "help"},
			SkipCommand:     "skiplink",
			LoopQueueSize:   64,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}

	if baseURL != "" {
		cfg.Rank.TokenURL = baseURL + "/oauth/token"
		cfg.Rank.APIURL = baseURL
	}

	return cfg
}
