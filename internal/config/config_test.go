package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStateSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" // 32 bytes

func requiredEnv() map[string]string {
	return map[string]string{
		"DISCORD_CLIENT_ID":     "discord_client_123",
		"DISCORD_CLIENT_SECRET": "discord_secret_456",
		"DISCORD_REDIRECT_URI":  "http://localhost:8080/link/discord/callback",
		"RANK_CLIENT_ID":        "rank_client_789",
		"RANK_CLIENT_SECRET":    "rank_secret_012",
		"RANK_REDIRECT_URI":     "http://localhost:8080/link/osu/callback",
		"DB_PASSWORD":           "test_db_password",
		"STATE_SECRET":          testStateSecret,
		"SERVICE_TOKEN_SECRET":  "service-token-secret-of-at-least-32-chars",
	}
}

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// validConfig mirrors the defaults plus the required variables
func validConfig() *Config {
	return &Config{
		Discord: DiscordConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://localhost/cb"},
		Rank: RankConfig{
			Provider: "osu", ClientID: "id", ClientSecret: "secret", RedirectURI: "http://localhost/rank",
		},
		Database: DatabaseConfig{Driver: "postgres", User: "linkgate", Password: "pw", Name: "linkgate_db"},
		Security: SecurityConfig{
			StateSecret:        make([]byte, 32),
			StateSecretVersion: "v1",
			StateExpiryMinutes: 10,
			ServiceTokenSecret: strings.Repeat("s", 32),
			CallbackRateLimit:  30,
		},
		Link: LinkConfig{TicketTTL: time.Hour, CleanupInterval: time.Minute},
		Gate: GateConfig{
			CheckTimeout: time.Second, SandboxRadius: 8, SkipCommand: "skiplink", LoopQueueSize: 16,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, requiredEnv())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "50051", cfg.Server.GRPCPort)
	assert.Equal(t, "development", cfg.Server.Env)

	assert.Equal(t, []string{"identify"}, cfg.Discord.Scopes)
	assert.Equal(t, "osu", cfg.Rank.Provider)
	assert.True(t, cfg.Rank.Optional)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "linkgate", cfg.Database.User)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, uint64(5), cfg.Database.ConnectRetries)

	assert.Len(t, cfg.Security.StateSecret, 32)
	assert.Equal(t, "v1", cfg.Security.StateSecretVersion)
	assert.Equal(t, 10*time.Minute, cfg.Security.StateExpiry())
	assert.Equal(t, 30, cfg.Security.CallbackRateLimit)

	assert.Equal(t, 720*time.Hour, cfg.Link.TicketTTL)
	assert.False(t, cfg.Link.RequireReview)
	assert.Equal(t, time.Hour, cfg.Link.CleanupInterval)

	assert.Equal(t, 5*time.Second, cfg.Gate.CheckTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Gate.ReturnDelay)
	assert.Equal(t, "limbo", cfg.Gate.SandboxWorld)
	assert.Equal(t, 64.0, cfg.Gate.SandboxY)
	assert.Equal(t, []string{"link", "skiplink", "help"}, cfg.Gate.AllowedCommands)
	assert.Equal(t, "skiplink", cfg.Gate.SkipCommand)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Overrides(t *testing.T) {
	vars := requiredEnv()
	vars["HTTP_PORT"] = "9090"
	vars["RANK_PROVIDER"] = "anilist"
	vars["RANK_LINK_OPTIONAL"] = "false"
	vars["DISCORD_OAUTH_SCOPES"] = "identify email"
	vars["LINK_REQUIRE_REVIEW"] = "true"
	vars["LINK_TICKET_TTL"] = "48h"
	vars["GATE_ALLOWED_COMMANDS"] = "link,rules"
	vars["GATE_SANDBOX_WORLD"] = "lobby"
	vars["DB_DRIVER"] = "sqlite"
	vars["DB_PATH"] = "/tmp/linkgate.db"
	vars["LOG_FORMAT"] = "console"
	setEnv(t, vars)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.HTTPPort)
	assert.Equal(t, "anilist", cfg.Rank.Provider)
	assert.False(t, cfg.Rank.Optional)
	assert.Equal(t, []string{"identify", "email"}, cfg.Discord.Scopes)
	assert.True(t, cfg.Link.RequireReview)
	assert.Equal(t, 48*time.Hour, cfg.Link.TicketTTL)
	assert.Equal(t, []string{"link", "rules"}, cfg.Gate.AllowedCommands)
	assert.Equal(t, "lobby", cfg.Gate.SandboxWorld)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_InvalidStateSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		errMsg string
	}{
		{"not hex", strings.Repeat("zz", 32), "must be a hex-encoded string"},
		{"too short", "0123456789abcdef", "at least 32 bytes"},
		{"missing", "", "at least 32 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := requiredEnv()
			vars["STATE_SECRET"] = tt.secret
			setEnv(t, vars)

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	vars := requiredEnv()
	vars["GATE_CHECK_TIMEOUT"] = "soon"
	setEnv(t, vars)

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing discord client id", func(c *Config) { c.Discord.ClientID = "" }, "DISCORD_CLIENT_ID is required"},
		{"missing discord secret", func(c *Config) { c.Discord.ClientSecret = "" }, "DISCORD_CLIENT_SECRET is required"},
		{"missing discord redirect", func(c *Config) { c.Discord.RedirectURI = "" }, "DISCORD_REDIRECT_URI is required"},
		{"missing rank provider", func(c *Config) { c.Rank.Provider = "" }, "RANK_PROVIDER is required"},
		{"rank provider is discord", func(c *Config) { c.Rank.Provider = "discord" }, "must not be discord"},
		{"missing rank credentials", func(c *Config) { c.Rank.ClientSecret = "" }, "RANK_CLIENT_ID, RANK_CLIENT_SECRET"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "DB_DRIVER must be one of"},
		{"postgres without password", func(c *Config) { c.Database.Password = "" }, "DB_PASSWORD is required"},
		{"postgres without user", func(c *Config) { c.Database.User = "" }, "DB_USER is required"},
		{"postgres without name", func(c *Config) { c.Database.Name = "" }, "DB_NAME is required"},
		{"sqlite without path", func(c *Config) {
			c.Database.Driver = "sqlite"
			c.Database.Path = ""
		}, "DB_PATH is required"},
		{"sqlite ignores postgres fields", func(c *Config) {
			c.Database.Driver = "sqlite"
			c.Database.Path = "linkgate.db"
			c.Database.Password = ""
		}, ""},
		{"short state secret", func(c *Config) { c.Security.StateSecret = make([]byte, 16) }, "STATE_SECRET must be at least 32 bytes"},
		{"missing secret version", func(c *Config) { c.Security.StateSecretVersion = "" }, "STATE_SECRET_VERSION is required"},
		{"zero state expiry", func(c *Config) { c.Security.StateExpiryMinutes = 0 }, "STATE_EXPIRY_MINUTES must be positive"},
		{"short service token secret", func(c *Config) { c.Security.ServiceTokenSecret = "short" }, "SERVICE_TOKEN_SECRET"},
		{"zero callback rate", func(c *Config) { c.Security.CallbackRateLimit = 0 }, "CALLBACK_RATE_LIMIT_PER_MINUTE"},
		{"zero ticket ttl", func(c *Config) { c.Link.TicketTTL = 0 }, "LINK_TICKET_TTL must be positive"},
		{"zero cleanup interval", func(c *Config) { c.Link.CleanupInterval = 0 }, "LINK_CLEANUP_INTERVAL must be positive"},
		{"zero check timeout", func(c *Config) { c.Gate.CheckTimeout = 0 }, "GATE_CHECK_TIMEOUT must be positive"},
		{"negative radius", func(c *Config) { c.Gate.SandboxRadius = -1 }, "GATE_SANDBOX_RADIUS must be positive"},
		{"missing skip command", func(c *Config) { c.Gate.SkipCommand = "" }, "GATE_SKIP_COMMAND is required"},
		{"zero loop queue", func(c *Config) { c.Gate.LoopQueueSize = 0 }, "GATE_LOOP_QUEUE_SIZE must be positive"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "LOG_LEVEL must be one of"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGetDSN(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		db := DatabaseConfig{
			Driver: "postgres", Host: "db.internal", Port: "5433",
			User: "linkgate", Password: "pw", Name: "links", SSLMode: "require",
		}

		assert.Equal(t, "host=db.internal port=5433 user=linkgate password=pw dbname=links sslmode=require", db.GetDSN())
	})

	t.Run("sqlite", func(t *testing.T) {
		db := DatabaseConfig{Driver: "sqlite", Path: "/var/lib/linkgate.db"}

		dsn := db.GetDSN()

		assert.True(t, strings.HasPrefix(dsn, "file:/var/lib/linkgate.db?"))
		assert.Contains(t, dsn, "busy_timeout(5000)")
		assert.Contains(t, dsn, "journal_mode(WAL)")
	})
}

func TestStateExpiry(t *testing.T) {
	sec := SecurityConfig{StateExpiryMinutes: 15}

	assert.Equal(t, 15*time.Minute, sec.StateExpiry())
}
