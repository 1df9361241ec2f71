// Package config provides application configuration management using environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Discord  DiscordConfig
	Rank     RankConfig
	Database DatabaseConfig
	Security SecurityConfig
	Link     LinkConfig
	Gate     GateConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort      string `env:"GRPC_PORT" envDefault:"50051"`
	Host          string `env:"SERVER_HOST" envDefault:"localhost"`
	Env           string `env:"ENVIRONMENT" envDefault:"development"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
}

// DiscordConfig holds Discord OAuth configuration
type DiscordConfig struct {
	ClientID     string   `env:"DISCORD_CLIENT_ID"`
	ClientSecret string   `env:"DISCORD_CLIENT_SECRET"`
	RedirectURI  string   `env:"DISCORD_REDIRECT_URI"`
	Scopes       []string `env:"DISCORD_OAUTH_SCOPES" envSeparator:" " envDefault:"identify"`
	InviteURL    string   `env:"DISCORD_INVITE_URL"`
}

// RankConfig holds the game-rank provider OAuth configuration
type RankConfig struct {
	Provider     string   `env:"RANK_PROVIDER" envDefault:"osu"`
	ClientID     string   `env:"RANK_CLIENT_ID"`
	ClientSecret string   `env:"RANK_CLIENT_SECRET"`
	RedirectURI  string   `env:"RANK_REDIRECT_URI"`
	AuthURL      string   `env:"RANK_AUTH_URL" envDefault:"https://osu.ppy.sh/oauth/authorize"`
	TokenURL     string   `env:"RANK_TOKEN_URL" envDefault:"https://osu.ppy.sh/oauth/token"`
	APIURL       string   `env:"RANK_API_URL" envDefault:"https://osu.ppy.sh/api/v2"`
	Scopes       []string `env:"RANK_OAUTH_SCOPES" envSeparator:" " envDefault:"identify"`
	Optional     bool     `env:"RANK_LINK_OPTIONAL" envDefault:"true"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver         string `env:"DB_DRIVER" envDefault:"postgres"`
	Host           string `env:"DB_HOST" envDefault:"localhost"`
	Port           string `env:"DB_PORT" envDefault:"5432"`
	User           string `env:"DB_USER" envDefault:"linkgate"`
	Password       string `env:"DB_PASSWORD"`
	Name           string `env:"DB_NAME" envDefault:"linkgate_db"`
	SSLMode        string `env:"DB_SSLMODE" envDefault:"disable"`
	Path           string `env:"DB_PATH" envDefault:"linkgate.db"`
	MaxOpenConns   int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns   int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnectRetries uint64 `env:"DB_CONNECT_RETRIES" envDefault:"5"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	StateSecret        []byte
	StateSecretHex     string `env:"STATE_SECRET"`
	StateSecretVersion string `env:"STATE_SECRET_VERSION" envDefault:"v1"`
	StateExpiryMinutes int    `env:"STATE_EXPIRY_MINUTES" envDefault:"10"`
	ServiceTokenSecret string `env:"SERVICE_TOKEN_SECRET"`
	CallbackRateLimit  int    `env:"CALLBACK_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
}

// LinkConfig holds account-linking behaviour
type LinkConfig struct {
	TicketTTL       time.Duration `env:"LINK_TICKET_TTL" envDefault:"720h"`
	RequireReview   bool          `env:"LINK_REQUIRE_REVIEW" envDefault:"false"`
	CleanupInterval time.Duration `env:"LINK_CLEANUP_INTERVAL" envDefault:"1h"`
}

// GateConfig holds in-world quarantine behaviour
type GateConfig struct {
	CheckTimeout    time.Duration `env:"GATE_CHECK_TIMEOUT" envDefault:"5s"`
	ReturnDelay     time.Duration `env:"GATE_RETURN_DELAY" envDefault:"250ms"`
	SnapshotMaxAge  time.Duration `env:"GATE_SNAPSHOT_MAX_AGE" envDefault:"6h"`
	SandboxWorld    string        `env:"GATE_SANDBOX_WORLD" envDefault:"limbo"`
	SandboxX        float64       `env:"GATE_SANDBOX_X" envDefault:"0"`
	SandboxY        float64       `env:"GATE_SANDBOX_Y" envDefault:"64"`
	SandboxZ        float64       `env:"GATE_SANDBOX_Z" envDefault:"0"`
	SandboxRadius   float64       `env:"GATE_SANDBOX_RADIUS" envDefault:"8"`
	AllowedCommands []string      `env:"GATE_ALLOWED_COMMANDS" envSeparator:"," envDefault:"link,skiplink,help"`
	SkipCommand     string        `env:"GATE_SKIP_COMMAND" envDefault:"skiplink"`
	LoopQueueSize   int           `env:"GATE_LOOP_QUEUE_SIZE" envDefault:"1024"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	secret, err := hex.DecodeString(cfg.Security.StateSecretHex)
	if err != nil {
		return nil, fmt.Errorf("invalid STATE_SECRET: must be a hex-encoded string: %w", err)
	}
	cfg.Security.StateSecret = secret

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate Discord Config
	if c.Discord.ClientID == "" {
		return fmt.Errorf("DISCORD_CLIENT_ID is required")
	}
	if c.Discord.ClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_SECRET is required")
	}
	if c.Discord.RedirectURI == "" {
		return fmt.Errorf("DISCORD_REDIRECT_URI is required")
	}

	// Validate Rank Config
	if c.Rank.Provider == "" {
		return fmt.Errorf("RANK_PROVIDER is required")
	}
	if c.Rank.Provider == "discord" {
		return fmt.Errorf("RANK_PROVIDER must not be discord")
	}
	if c.Rank.ClientID == "" || c.Rank.ClientSecret == "" || c.Rank.RedirectURI == "" {
		return fmt.Errorf("RANK_CLIENT_ID, RANK_CLIENT_SECRET and RANK_REDIRECT_URI are required")
	}

	// Validate Database Config
	switch c.Database.Driver {
	case "postgres":
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: postgres, sqlite")
	}

	// Validate Security Config
	if len(c.Security.StateSecret) < 32 {
		return fmt.Errorf("STATE_SECRET must be at least 32 bytes (64 hex characters)")
	}
	if c.Security.StateSecretVersion == "" {
		return fmt.Errorf("STATE_SECRET_VERSION is required")
	}
	if c.Security.StateExpiryMinutes <= 0 {
		return fmt.Errorf("STATE_EXPIRY_MINUTES must be positive")
	}
	if len(c.Security.ServiceTokenSecret) < 32 {
		return fmt.Errorf("SERVICE_TOKEN_SECRET must be at least 32 characters")
	}
	if c.Security.CallbackRateLimit <= 0 {
		return fmt.Errorf("CALLBACK_RATE_LIMIT_PER_MINUTE must be positive")
	}

	// Validate Link Config
	if c.Link.TicketTTL <= 0 {
		return fmt.Errorf("LINK_TICKET_TTL must be positive")
	}
	if c.Link.CleanupInterval <= 0 {
		return fmt.Errorf("LINK_CLEANUP_INTERVAL must be positive")
	}

	// Validate Gate Config
	if c.Gate.CheckTimeout <= 0 {
		return fmt.Errorf("GATE_CHECK_TIMEOUT must be positive")
	}
	if c.Gate.SandboxRadius <= 0 {
		return fmt.Errorf("GATE_SANDBOX_RADIUS must be positive")
	}
	if c.Gate.SkipCommand == "" {
		return fmt.Errorf("GATE_SKIP_COMMAND is required")
	}
	if c.Gate.LoopQueueSize <= 0 {
		return fmt.Errorf("GATE_LOOP_QUEUE_SIZE must be positive")
	}

	// Validate Logging Config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// StateExpiry returns the state token lifetime
func (c *SecurityConfig) StateExpiry() time.Duration {
	return time.Duration(c.StateExpiryMinutes) * time.Minute
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", c.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
