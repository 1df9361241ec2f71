package linking

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/models"
)

// PreLoginDecision decides whether a player may be admitted to the world.
// It never returns Allow on a read failure.
func (s *Service) PreLoginDecision(ctx context.Context, playerID uuid.UUID) models.PreLoginDecision {
	decision := s.decide(ctx, playerID)

	s.metrics.RecordDecision(models.DecisionName(decision))
	s.logger.Debug("pre-login decision",
		zap.String("player_id", playerID.String()),
		zap.String("decision", models.DecisionName(decision)),
	)
	return decision
}

func (s *Service) decide(ctx context.Context, playerID uuid.UUID) models.PreLoginDecision {
	msgs := s.cfg.Messages

	app, err := s.repo.application(ctx, playerID)
	if err != nil {
		return s.unavailable(playerID, err)
	}
	if app != nil && app.Status == models.ApplicationInReview {
		return models.Deny{Reason: models.DenyApplicationInReview, Message: msgs.applicationInReview(app)}
	}

	record, err := s.repo.player(ctx, playerID)
	if err != nil {
		return s.unavailable(playerID, err)
	}
	// An optional rank link is still confirmed in-world, so only a complete record admits directly.
	if record.Status(s.cfg.RankProvider).Complete(false) {
		return models.Allow{}
	}

	ticket, err := s.repo.ticket(ctx, playerID)
	if err != nil {
		return s.unavailable(playerID, err)
	}
	if ticket != nil && ticket.IsExpired(s.now(), s.cfg.TicketTTL) {
		if err := s.repo.deleteTicket(ctx, playerID); err != nil {
			s.logger.Warn("failed to delete expired ticket",
				zap.String("player_id", playerID.String()),
				zap.Error(err),
			)
		}
		ticket = nil
	}

	if ticket != nil {
		switch ticket.Status {
		case models.TicketStatusDenied:
			return models.Deny{Reason: models.DenyTicketDenied, Message: msgs.ticketDenied(ticket)}
		case models.TicketStatusApproved:
			return models.AllowWithTicket{Ticket: ticket}
		default:
			return models.Deny{Reason: models.DenyUnderReview, Message: msgs.UnderReview}
		}
	}

	if record != nil && record.DiscordID != "" {
		return models.Deny{Reason: models.DenyRankNotLinked, Message: msgs.RankNotLinked}
	}
	if record != nil {
		return models.Deny{Reason: models.DenyRelinkRequired, Message: msgs.RelinkRequired}
	}
	return models.Deny{Reason: models.DenyNotLinked, Message: msgs.NotLinked}
}

func (s *Service) unavailable(playerID uuid.UUID, err error) models.PreLoginDecision {
	s.logger.Error("pre-login check failed",
		zap.String("player_id", playerID.String()),
		zap.Error(err),
	)
	return models.Deny{Reason: models.DenyUnavailable, Message: s.cfg.Messages.Unavailable}
}
