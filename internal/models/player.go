package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerRecord is the durable player document stored at players/{playerId}.
type PlayerRecord struct {
	PlayerID  uuid.UUID                  `json:"uuid"`
	Username  string                     `json:"username"`
	DiscordID string                     `json:"discordId,omitempty"`
	Profiles  map[string]ExternalProfile `json:"profiles,omitempty"`
	Linking   *Linking                   `json:"linking,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

// Linking is the staging namespace written once per consumed ticket.
type Linking struct {
	DiscordID string                     `json:"discordId"`
	Profiles  map[string]ExternalProfile `json:"profiles,omitempty"`
	Source    string                     `json:"source,omitempty"`
	InvitedBy string                     `json:"invitedBy,omitempty"`
	SponsorID string                     `json:"sponsorId,omitempty"`
	LinkedAt  time.Time                  `json:"linkedAt"`
}

// Profile returns the durable profile for a provider, if any
func (p *PlayerRecord) Profile(provider string) (ExternalProfile, bool) {
	if p == nil || p.Profiles == nil {
		return ExternalProfile{}, false
	}
	profile, ok := p.Profiles[provider]
	return profile, ok && profile.UserID != ""
}

// Status reports which links are present in the durable record
func (p *PlayerRecord) Status(rankProvider string) LinkStatus {
	if p == nil {
		return LinkStatus{}
	}
	_, rank := p.Profile(rankProvider)
	return LinkStatus{
		Discord:   p.DiscordID != "",
		Rank:      rank,
		DiscordID: p.DiscordID,
	}
}

// LinkStatus reports which external identities a player has durably linked.
type LinkStatus struct {
	Discord bool `json:"discord"`
	Rank    bool `json:"rank"`
	// DiscordID is the linked Discord account, needed to sign rank link state.
	DiscordID string `json:"discordId,omitempty"`
}

// Complete reports whether every required link is present
func (s LinkStatus) Complete(rankOptional bool) bool {
	return s.Discord && (s.Rank || rankOptional)
}
