// Package auth verifies external identities for account linking: signed state tokens
// carried across the OAuth redirect, provider code exchange, and service bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/models"
	"github.com/parsascontentcorner/linkgate/internal/ratelimit"
)

// ProviderDiscord is the name of the mandatory chat-platform provider
const ProviderDiscord = "discord"

// Provider exchanges an OAuth authorization code for the identity behind it.
type Provider interface {
	Name() string
	AuthURL(state string) string
	ExchangeForProfile(ctx context.Context, code string) (*models.ExternalProfile, error)
}

// Providers indexes providers by name
type Providers map[string]Provider

// NewProviders creates a provider index
func NewProviders(providers ...Provider) Providers {
	index := make(Providers, len(providers))
	for _, p := range providers {
		index[p.Name()] = p
	}
	return index
}

// Get returns the named provider
func (p Providers) Get(name string) (Provider, bool) {
	provider, ok := p[name]
	return provider, ok
}

// Names returns the registered provider names in order
func (p Providers) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apiClient performs rate-limited, bearer-authenticated JSON requests against a provider API
type apiClient struct {
	provider    string
	baseURL     string
	httpClient  *http.Client
	rateLimiter *ratelimit.RateLimiter
	logger      *zap.Logger
}

func (c *apiClient) getJSON(ctx context.Context, endpoint, accessToken string, dst any) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, c.provider+endpoint); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeaders(c.provider+endpoint, resp.Header)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if c.rateLimiter != nil {
			_ = c.rateLimiter.HandleRateLimitResponse(c.provider+endpoint, resp.Header)
		}
		return fmt.Errorf("rate limited by %s API", c.provider)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s API returned status %d: %s", c.provider, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.provider, err)
	}
	return nil
}
