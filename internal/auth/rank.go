package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/linkgate/internal/config"
	"github.com/parsascontentcorner/linkgate/internal/models"
	"github.com/parsascontentcorner/linkgate/internal/ratelimit"
)

// RankUser is the subset of the rank provider's /me response we keep
type RankUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	CountryCode string `json:"country_code"`
	Statistics  struct {
		GlobalRank *int `json:"global_rank"`
	} `json:"statistics"`
}

// RankClient exchanges codes against the game-rank provider (osu! API v2 shape)
type RankClient struct {
	name   string
	config *oauth2.Config
	api    *apiClient
	logger *zap.Logger
}

var _ Provider = (*RankClient)(nil)

// NewRankClient creates a new rank provider OAuth client
func NewRankClient(cfg *config.RankConfig, logger *zap.Logger) *RankClient {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &RankClient{
		name:   cfg.Provider,
		config: oauthConfig,
		api: &apiClient{
			provider:   cfg.Provider,
			baseURL:    strings.TrimSuffix(cfg.APIURL, "/"),
			httpClient: &http.Client{},
			logger:     logger,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (rc *RankClient) Name() string {
	return rc.name
}

// AuthURL constructs the provider authorization URL
func (rc *RankClient) AuthURL(state string) string {
	return rc.config.AuthCodeURL(state)
}

// ExchangeForProfile exchanges a code and returns the ranked identity behind it
func (rc *RankClient) ExchangeForProfile(ctx context.Context, code string) (*models.ExternalProfile, error) {
	token, err := rc.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	var user RankUser
	if err := rc.api.getJSON(ctx, "/me", token.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%s user info is missing an id", rc.name)
	}

	profile := &models.ExternalProfile{
		Provider: rc.name,
		UserID:   strconv.FormatInt(user.ID, 10),
		Username: user.Username,
		Country:  user.CountryCode,
	}
	if user.Statistics.GlobalRank != nil {
		profile.Rank = *user.Statistics.GlobalRank
	}

	rc.logger.Debug("fetched rank profile",
		zap.String("provider", rc.name),
		zap.String("user_id", profile.UserID),
		zap.Int("rank", profile.Rank),
	)

	return profile, nil
}

// SetRateLimiter sets the rate limiter for the rank client
func (rc *RankClient) SetRateLimiter(rl *ratelimit.RateLimiter) {
	rc.api.rateLimiter = rl
}

// SetBaseURL points the API and token endpoint at a test server
func (rc *RankClient) SetBaseURL(url string) {
	rc.api.baseURL = url
	rc.config.Endpoint.TokenURL = url + "/oauth/token"
}
