package auth

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/linkgate/internal/config"
	"github.com/parsascontentcorner/linkgate/internal/models"
	"github.com/parsascontentcorner/linkgate/internal/ratelimit"
)

const (
	discordAPIEndpoint = "https://discord.com/api/v10"
	discordAuthURL     = "https://discord.com/oauth2/authorize"
	discordTokenURL    = "https://discord.com/api/oauth2/token" //nolint:gosec // Not a hardcoded credential, just an API endpoint URL
)

// DiscordUser represents a Discord user from the API
type DiscordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// DiscordClient handles Discord OAuth operations
type DiscordClient struct {
	config *oauth2.Config
	api    *apiClient
	logger *zap.Logger
}

var _ Provider = (*DiscordClient)(nil)

// NewDiscordClient creates a new Discord OAuth client
func NewDiscordClient(cfg *config.DiscordConfig, logger *zap.Logger) *DiscordClient {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  discordAuthURL,
			TokenURL: discordTokenURL,
		},
	}

	return &DiscordClient{
		config: oauthConfig,
		api: &apiClient{
			provider:   ProviderDiscord,
			baseURL:    discordAPIEndpoint,
			httpClient: &http.Client{},
			logger:     logger,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (dc *DiscordClient) Name() string {
	return ProviderDiscord
}

// AuthURL constructs the Discord OAuth authorization URL
func (dc *DiscordClient) AuthURL(state string) string {
	return dc.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

// ExchangeCode exchanges an authorization code for an access token
func (dc *DiscordClient) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := dc.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	dc.logger.Debug("successfully exchanged code for token",
		zap.String("provider", ProviderDiscord),
		zap.String("token_type", token.TokenType),
		zap.Time("expiry", token.Expiry),
	)

	return token, nil
}

// GetUserInfo fetches user information from Discord API
func (dc *DiscordClient) GetUserInfo(ctx context.Context, accessToken string) (*DiscordUser, error) {
	var user DiscordUser
	if err := dc.api.getJSON(ctx, "/users/@me", accessToken, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("discord user info is missing an id")
	}

	dc.logger.Debug("fetched user info from Discord",
		zap.String("discord_id", user.ID),
		zap.String("username", user.Username),
	)

	return &user, nil
}

// ExchangeForProfile exchanges a code and returns the Discord identity behind it.
// The access token is used once and never stored.
func (dc *DiscordClient) ExchangeForProfile(ctx context.Context, code string) (*models.ExternalProfile, error) {
	token, err := dc.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := dc.GetUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	username := user.Username
	if user.Discriminator != "" && user.Discriminator != "0" {
		username = user.Username + "#" + user.Discriminator
	}

	return &models.ExternalProfile{
		Provider: ProviderDiscord,
		UserID:   user.ID,
		Username: username,
	}, nil
}

// SetRateLimiter sets the rate limiter for the Discord client
func (dc *DiscordClient) SetRateLimiter(rl *ratelimit.RateLimiter) {
	dc.api.rateLimiter = rl
}

// SetBaseURL sets the base URL for the Discord API (used for testing)
func (dc *DiscordClient) SetBaseURL(url string) {
	dc.api.baseURL = url
	dc.config.Endpoint.TokenURL = url + "/oauth2/token"
}
