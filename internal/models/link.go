// Package models defines data structures for account linking and access gating.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTicketTTL is how long a link ticket stays valid without being consumed.
const DefaultTicketTTL = 30 * 24 * time.Hour

// LinkState is the payload of a signed state token. It is never persisted.
type LinkState struct {
	DiscordID     string
	PlayerID      uuid.UUID
	Username      string
	IssuedAt      time.Time
	SecretVersion string
}

// ExternalProfile is the identity asserted by an external provider after a code exchange.
type ExternalProfile struct {
	Provider string `json:"provider"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Rank     int    `json:"rank,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Equal reports whether two profiles describe the same provider account state.
func (p *ExternalProfile) Equal(other *ExternalProfile) bool {
	if p == nil || other == nil {
		return p == other
	}
	return *p == *other
}

// TicketStatus is the review state of a link ticket
type TicketStatus string

// TicketStatus constants
const (
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusApproved TicketStatus = "APPROVED"
	TicketStatusDenied   TicketStatus = "DENIED"
)

// LinkTicket is a pending link for a player that has not been admitted yet.
// Stored at link_requests/{playerId}.
type LinkTicket struct {
	PlayerID        uuid.UUID        `json:"playerId"`
	DiscordID       string           `json:"discordId"`
	Username        string           `json:"username"`
	ExternalProfile *ExternalProfile `json:"externalProfile,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	Source          string           `json:"source,omitempty"`
	InvitedBy       string           `json:"invitedBy,omitempty"`
	SponsorID       string           `json:"sponsorId,omitempty"`
	Status          TicketStatus     `json:"status"`
	CanReapply      bool             `json:"canReapply"`
	DecisionReason  string           `json:"decisionReason,omitempty"`
}

// IsExpired checks if the ticket is older than ttl at the given time
func (t *LinkTicket) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.After(t.CreatedAt.Add(ttl))
}

// DiscordLink is the reverse mapping discord_links/{discordId} -> player.
type DiscordLink struct {
	PlayerID  uuid.UUID `json:"uuid"`
	Username  string    `json:"username"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ApplicationStatus is the state of a manually reviewed application
type ApplicationStatus string

// ApplicationStatus constants
const (
	ApplicationInReview ApplicationStatus = "IN_REVIEW"
	ApplicationAccepted ApplicationStatus = "ACCEPTED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// Application is a whitelist application under manual review, stored at applications/{playerId}.
type Application struct {
	PlayerID  uuid.UUID         `json:"playerId"`
	Status    ApplicationStatus `json:"status"`
	Stage     int               `json:"stage"`
	Stages    int               `json:"stages"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
