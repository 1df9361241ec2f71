// Package linking manages the lifecycle of account links: creating tickets from verified
// external identities, deciding admission before login, and promoting tickets into
// durable player records once a player is admitted.
//
// The backing document store offers no cross-document transactions. Every write sequence
// here is best effort, and every read path recomputes its answer from whatever partial
// state is present.
package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parsascontentcorner/linkgate/internal/database"
	"github.com/parsascontentcorner/linkgate/internal/metrics"
	"github.com/parsascontentcorner/linkgate/internal/models"
)

var (
	// ErrInvalidRequest is returned for link requests missing a player or Discord id.
	ErrInvalidRequest = errors.New("invalid link request")
	// ErrTicketNotFound is returned when reviewing a player without a ticket.
	ErrTicketNotFound = errors.New("link ticket not found")
)

// Config controls ticket lifetime and admission policy
type Config struct {
	TicketTTL     time.Duration
	RequireReview bool
	RankProvider  string
	RankOptional  bool
	Messages      Messages
}

// LinkRequest is a verified assertion that a player owns an external identity.
type LinkRequest struct {
	PlayerID  uuid.UUID
	DiscordID string
	Username  string
	// Profile is the rank provider profile, if this request carries one.
	Profile   *models.ExternalProfile
	Source    string
	InvitedBy string
	SponsorID string
}

// Service is the account link service.
type Service struct {
	repo    repository
	cfg     Config
	events  *Broadcaster
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records link outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new account link service
func NewService(store database.DocumentStore, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg.TicketTTL <= 0 {
		cfg.TicketTTL = models.DefaultTicketTTL
	}
	if cfg.Messages == (Messages{}) {
		cfg.Messages = DefaultMessages()
	}

	s := &Service{
		repo:   repository{store: store},
		cfg:    cfg,
		events: NewBroadcaster(logger),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the broadcaster carrying link lifecycle events
func (s *Service) Events() *Broadcaster {
	return s.events
}

// RankProvider returns the configured rank provider name
func (s *Service) RankProvider() string {
	return s.cfg.RankProvider
}

// RankOptional reports whether the rank link may be skipped
func (s *Service) RankOptional() bool {
	return s.cfg.RankOptional
}

// CreateLink binds a player to a Discord identity (and optionally a rank profile) by
// persisting a ticket and the reverse mapping. Conflicts are reported as LinkRejected;
// an error means the store failed and the caller may retry.
func (s *Service) CreateLink(ctx context.Context, req LinkRequest) (models.LinkResult, error) {
	if req.PlayerID == uuid.Nil || req.DiscordID == "" {
		return nil, fmt.Errorf("%w: player and discord ids are required", ErrInvalidRequest)
	}
	if req.Profile != nil {
		profile := *req.Profile
		if profile.Provider == "" {
			profile.Provider = s.cfg.RankProvider
		}
		req.Profile = &profile
	}

	var (
		record  *models.PlayerRecord
		ticket  *models.LinkTicket
		mapping *models.DiscordLink
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = s.repo.player(gctx, req.PlayerID)
		return err
	})
	g.Go(func() error {
		var err error
		ticket, err = s.repo.ticket(gctx, req.PlayerID)
		return err
	})
	g.Go(func() error {
		var err error
		mapping, err = s.repo.mapping(gctx, req.DiscordID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load link state: %w", err)
	}

	now := s.now()
	if ticket != nil && ticket.IsExpired(now, s.cfg.TicketTTL) {
		if err := s.repo.deleteTicket(ctx, req.PlayerID); err != nil {
			return nil, fmt.Errorf("failed to delete expired ticket: %w", err)
		}
		ticket = nil
	}
	if ticket != nil && ticket.Status == models.TicketStatusDenied && ticket.CanReapply {
		s.logger.Info("replacing denied ticket",
			zap.String("player_id", req.PlayerID.String()),
			zap.String("previous_discord_id", ticket.DiscordID),
		)
		ticket = nil
	}

	if record != nil && record.DiscordID != "" && record.DiscordID != req.DiscordID {
		return s.reject(req, models.RejectAlreadyLinked), nil
	}
	if ticket != nil && ticket.DiscordID != req.DiscordID {
		return s.reject(req, models.RejectPendingForAnother), nil
	}

	if mapping != nil && mapping.PlayerID != req.PlayerID {
		stolen, err := s.releaseStaleLink(ctx, mapping.PlayerID, req.DiscordID)
		if err != nil {
			return nil, err
		}
		if stolen {
			s.logger.Info("discord identity moved to another player",
				zap.String("discord_id", req.DiscordID),
				zap.String("from_player_id", mapping.PlayerID.String()),
				zap.String("to_player_id", req.PlayerID.String()),
			)
			s.events.Publish(Event{Kind: EventLinkStolen, PlayerID: mapping.PlayerID, DiscordID: req.DiscordID, At: now})
		}
	}

	next := s.nextTicket(req, ticket, record != nil, now)
	if ticket == nil || !sameTicket(ticket, next) {
		if err := s.repo.saveTicket(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to save ticket: %w", err)
		}
	}

	if err := s.repo.saveMapping(ctx, req.DiscordID, &models.DiscordLink{
		PlayerID:  req.PlayerID,
		Username:  next.Username,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to save discord mapping: %w", err)
	}

	s.logger.Info("link ticket stored",
		zap.String("player_id", req.PlayerID.String()),
		zap.String("discord_id", req.DiscordID),
		zap.String("status", string(next.Status)),
		zap.Bool("returning", record != nil),
		zap.Bool("has_profile", next.ExternalProfile != nil),
	)
	s.metrics.RecordLinkResult("success")
	s.events.Publish(Event{
		Kind:      EventTicketCreated,
		PlayerID:  req.PlayerID,
		DiscordID: req.DiscordID,
		Returning: record != nil,
		At:        now,
	})

	return models.LinkSuccess{Ticket: next, Returning: record != nil}, nil
}

func (s *Service) reject(req LinkRequest, reason models.RejectReason) models.LinkResult {
	s.logger.Info("link rejected",
		zap.String("player_id", req.PlayerID.String()),
		zap.String("discord_id", req.DiscordID),
		zap.String("reason", string(reason)),
	)
	s.metrics.RecordLinkResult("rejected")
	return models.LinkRejected{Reason: reason}
}

// nextTicket builds the ticket to persist. A live ticket for the same Discord id is
// merged so repeated requests keep its creation time and review status.
func (s *Service) nextTicket(req LinkRequest, existing *models.LinkTicket, returning bool, now time.Time) *models.LinkTicket {
	if existing != nil {
		next := *existing
		if req.Username != "" {
			next.Username = req.Username
		}
		if req.Profile != nil {
			profile := *req.Profile
			next.ExternalProfile = &profile
		}
		next.Source = firstNonEmpty(next.Source, req.Source)
		next.InvitedBy = firstNonEmpty(next.InvitedBy, req.InvitedBy)
		next.SponsorID = firstNonEmpty(next.SponsorID, req.SponsorID)
		if !sameTicket(existing, &next) {
			next.UpdatedAt = now
		}
		return &next
	}

	status := models.TicketStatusApproved
	if s.cfg.RequireReview && !returning {
		status = models.TicketStatusPending
	}

	ticket := &models.LinkTicket{
		PlayerID:  req.PlayerID,
		DiscordID: req.DiscordID,
		Username:  req.Username,
		CreatedAt: now,
		UpdatedAt: now,
		Source:    req.Source,
		InvitedBy: req.InvitedBy,
		SponsorID: req.SponsorID,
		Status:    status,
	}
	if req.Profile != nil {
		profile := *req.Profile
		ticket.ExternalProfile = &profile
	}
	return ticket
}

// releaseStaleLink unwinds another player's binding to discordID so it can move to a new
// player. It reports false when the other player no longer exists (stale mapping).
func (s *Service) releaseStaleLink(ctx context.Context, otherID uuid.UUID, discordID string) (bool, error) {
	record, err := s.repo.player(ctx, otherID)
	if err != nil {
		return false, fmt.Errorf("failed to load previous owner: %w", err)
	}
	ticket, err := s.repo.ticket(ctx, otherID)
	if err != nil {
		return false, fmt.Errorf("failed to load previous owner ticket: %w", err)
	}
	if record == nil && ticket == nil {
		return false, nil
	}

	if record != nil {
		changed := false
		if record.Linking != nil {
			record.Linking = nil
			changed = true
		}
		if record.DiscordID == discordID {
			record.DiscordID = ""
			changed = true
		}
		if changed {
			record.UpdatedAt = s.now()
			if err := s.repo.savePlayer(ctx, record); err != nil {
				return false, fmt.Errorf("failed to clear previous owner link: %w", err)
			}
		}
	}

	if ticket != nil {
		if err := s.repo.deleteTicket(ctx, otherID); err != nil {
			return false, fmt.Errorf("failed to delete previous owner ticket: %w", err)
		}
	}

	return true, nil
}

func sameTicket(a, b *models.LinkTicket) bool {
	return a.DiscordID == b.DiscordID &&
		a.Username == b.Username &&
		a.ExternalProfile.Equal(b.ExternalProfile) &&
		a.Source == b.Source &&
		a.InvitedBy == b.InvitedBy &&
		a.SponsorID == b.SponsorID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
