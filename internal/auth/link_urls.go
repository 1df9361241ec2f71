package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/linkgate/internal/models"
)

// LinkURLs builds provider authorization URLs carrying fresh state tokens
type LinkURLs struct {
	codec     *StateCodec
	providers Providers
	now       func() time.Time
}

// NewLinkURLs creates a URL builder
func NewLinkURLs(codec *StateCodec, providers Providers) *LinkURLs {
	return &LinkURLs{
		codec:     codec,
		providers: providers,
		now:       time.Now,
	}
}

// URL returns the authorization URL for a player. discordID may be empty for the
// Discord step, where the identity is proven by the exchange itself.
func (lu *LinkURLs) URL(providerName string, playerID uuid.UUID, discordID, username string) (string, error) {
	provider, ok := lu.providers.Get(providerName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}
	if playerID == uuid.Nil {
		return "", fmt.Errorf("player id is required")
	}

	token, err := lu.codec.Encode(models.LinkState{
		DiscordID: discordID,
		PlayerID:  playerID,
		Username:  username,
		IssuedAt:  lu.now(),
	})
	if err != nil {
		return "", err
	}

	return provider.AuthURL(token), nil
}
