package gate

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/auth"
	"github.com/parsascontentcorner/linkgate/internal/models"
	"github.com/parsascontentcorner/linkgate/internal/world"
)

// Messages are the player-facing texts shown by the gate
type Messages struct {
	Quarantined string
	CheckFailed string
	Blocked     string
	LinkDiscord string
	// LinkRank takes the rank provider name.
	LinkRank string
	// SkipHint takes the rank provider name and the skip command.
	SkipHint string
	// SkipConfirm takes the skip command and the confirmation step.
	SkipConfirm     string
	SkipUnavailable string
	// Skipped takes the rank provider name.
	Skipped  string
	Released string
}

// DefaultMessages returns the built-in English messages
func DefaultMessages() Messages {
	return Messages{
		Quarantined:     "You need to link your accounts before you can play.",
		CheckFailed:     "We could not check your link status. Please rejoin in a moment.",
		Blocked:         "Link your accounts to do that.",
		LinkDiscord:     "Click to link your Discord account",
		LinkRank:        "Click to link your %s account",
		SkipHint:        "Linking %s is optional. Type /%s to skip it.",
		SkipConfirm:     "Type /%s again to confirm (%d/3).",
		SkipUnavailable: "There is nothing to skip right now.",
		Skipped:         "Skipping %s linking.",
		Released:        "Your accounts are linked. Welcome!",
	}
}

type linkPrompt struct {
	label string
	url   string
}

// prompt is built off the loop and shown on it
type prompt struct {
	headline string
	links    []linkPrompt
	skipHint string
}

// URLBuilder creates provider authorization URLs for a player
type URLBuilder interface {
	URL(providerName string, playerID uuid.UUID, discordID, username string) (string, error)
}

func (g *Gate) buildPrompt(conn *connection, decision models.PreLoginDecision, status models.LinkStatus, failed bool) prompt {
	msgs := g.cfg.Messages
	if failed {
		return prompt{headline: msgs.CheckFailed}
	}

	p := prompt{headline: msgs.Quarantined}
	if deny, ok := decision.(models.Deny); ok && deny.Message != "" {
		p.headline = deny.Message
	}

	switch {
	case !status.Discord:
		if url, ok := g.linkURL(conn, auth.ProviderDiscord, ""); ok {
			p.links = append(p.links, linkPrompt{label: msgs.LinkDiscord, url: url})
		}
	case !status.Rank:
		if url, ok := g.linkURL(conn, g.cfg.RankProvider, status.DiscordID); ok {
			p.links = append(p.links, linkPrompt{label: fmt.Sprintf(msgs.LinkRank, g.cfg.RankProvider), url: url})
		}
		if g.cfg.RankOptional && admits(decision) {
			p.skipHint = fmt.Sprintf(msgs.SkipHint, g.cfg.RankProvider, g.cfg.SkipCommand)
		}
	}

	return p
}

func (g *Gate) linkURL(conn *connection, provider, discordID string) (string, bool) {
	url, err := g.urls.URL(provider, conn.playerID, discordID, conn.username)
	if err != nil {
		g.logger.Error("failed to build link url",
			zap.String("provider", provider),
			zap.String("player_id", conn.playerID.String()),
			zap.Error(err),
		)
		return "", false
	}
	return url, true
}

func showPrompt(p world.Player, pr prompt) {
	p.SendMessage(pr.headline)
	for _, link := range pr.links {
		p.SendLink(link.label, link.url)
	}
	if pr.skipHint != "" {
		p.SendMessage(pr.skipHint)
	}
}
