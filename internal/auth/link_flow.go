package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/linking"
	"github.com/parsascontentcorner/linkgate/internal/models"
)

var (
	// ErrUnknownProvider is returned for callbacks naming an unregistered provider.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrInvalidState is returned for missing, tampered or foreign-version state tokens.
	ErrInvalidState = errors.New("invalid state")
	// ErrStateExpired is returned for state tokens older than the state lifetime.
	ErrStateExpired = errors.New("state has expired")
	// ErrIdentityMismatch is returned when the proven Discord account differs from the one the state was issued for.
	ErrIdentityMismatch = errors.New("authorized account does not match link request")
	// ErrExchangeFailed is returned when the provider rejects the code or the profile lookup fails.
	ErrExchangeFailed = errors.New("code exchange failed")
	// ErrPersistence is returned when the link could not be stored.
	ErrPersistence = errors.New("failed to persist link")
)

// Linker persists verified links
type Linker interface {
	CreateLink(ctx context.Context, req linking.LinkRequest) (models.LinkResult, error)
}

// CallbackResult describes a completed callback
type CallbackResult struct {
	State   models.LinkState
	Profile *models.ExternalProfile
	Result  models.LinkResult
}

// LinkFlow turns an OAuth callback into a link: it verifies the state token, exchanges
// the code with the provider and hands the proven identity to the link service.
type LinkFlow struct {
	codec     *StateCodec
	providers Providers
	linker    Linker
	stateTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewLinkFlow creates a new callback flow
func NewLinkFlow(codec *StateCodec, providers Providers, linker Linker, stateTTL time.Duration, logger *zap.Logger) *LinkFlow {
	return &LinkFlow{
		codec:     codec,
		providers: providers,
		linker:    linker,
		stateTTL:  stateTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleCallback processes a provider callback. Conflicts come back as LinkRejected in
// the result; errors wrap one of the package sentinels.
func (lf *LinkFlow) HandleCallback(ctx context.Context, providerName, code, token string) (*CallbackResult, error) {
	provider, ok := lf.providers.Get(providerName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}
	if token == "" {
		return nil, ErrInvalidState
	}
	if code == "" {
		return nil, ErrMissingCode
	}

	state, ok := lf.codec.Decode(token)
	if !ok {
		lf.logger.Warn("rejected state token", zap.String("provider", providerName))
		return nil, ErrInvalidState
	}
	if !Fresh(state, lf.now(), lf.stateTTL) {
		lf.logger.Info("expired state token",
			zap.String("provider", providerName),
			zap.String("player_id", state.PlayerID.String()),
			zap.Time("issued_at", state.IssuedAt),
		)
		return nil, ErrStateExpired
	}

	profile, err := provider.ExchangeForProfile(ctx, code)
	if err != nil {
		lf.logger.Error("failed to exchange code",
			zap.String("provider", providerName),
			zap.String("player_id", state.PlayerID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	callback := &CallbackResult{State: state, Profile: profile}

	req := linking.LinkRequest{
		PlayerID:  state.PlayerID,
		DiscordID: state.DiscordID,
		Username:  state.Username,
		Source:    providerName,
	}
	if providerName == ProviderDiscord {
		if state.DiscordID != "" && state.DiscordID != profile.UserID {
			lf.logger.Warn("discord account mismatch",
				zap.String("player_id", state.PlayerID.String()),
				zap.String("expected_discord_id", state.DiscordID),
				zap.String("actual_discord_id", profile.UserID),
			)
			return nil, ErrIdentityMismatch
		}
		req.DiscordID = profile.UserID
	} else {
		if state.DiscordID == "" {
			callback.Result = models.LinkRejected{Reason: models.RejectMissingDiscordLink}
			return callback, nil
		}
		req.Profile = profile
	}

	result, err := lf.linker.CreateLink(ctx, req)
	if err != nil {
		lf.logger.Error("failed to create link",
			zap.String("provider", providerName),
			zap.String("player_id", state.PlayerID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	callback.Result = result

	lf.logger.Info("link callback completed",
		zap.String("provider", providerName),
		zap.String("player_id", state.PlayerID.String()),
		zap.String("discord_id", req.DiscordID),
	)

	return callback, nil
}
