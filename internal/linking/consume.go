package linking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/models"
)

// ConsumeTicket promotes an approved ticket into the player's durable record and deletes
// the ticket. It reports whether a ticket was consumed; calling it again is a no-op.
func (s *Service) ConsumeTicket(ctx context.Context, playerID uuid.UUID) (bool, error) {
	ticket, err := s.repo.ticket(ctx, playerID)
	if err != nil {
		return false, err
	}
	if ticket == nil {
		return false, nil
	}

	now := s.now()
	if ticket.IsExpired(now, s.cfg.TicketTTL) || ticket.Status != models.TicketStatusApproved {
		return false, nil
	}

	record, err := s.repo.player(ctx, playerID)
	if err != nil {
		return false, err
	}
	if record == nil {
		record = &models.PlayerRecord{
			PlayerID:  playerID,
			CreatedAt: now,
		}
	}

	linking := &models.Linking{
		DiscordID: ticket.DiscordID,
		Source:    ticket.Source,
		InvitedBy: ticket.InvitedBy,
		SponsorID: ticket.SponsorID,
		LinkedAt:  now,
	}
	if record.Linking != nil && record.Linking.DiscordID == ticket.DiscordID {
		linking.Profiles = record.Linking.Profiles
	}
	if ticket.ExternalProfile != nil {
		profile := *ticket.ExternalProfile
		linking.Profiles = withProfile(linking.Profiles, profile)
		record.Profiles = withProfile(record.Profiles, profile)
	}

	record.Linking = linking
	record.DiscordID = ticket.DiscordID
	if ticket.Username != "" {
		record.Username = ticket.Username
	}
	record.UpdatedAt = now

	if err := s.repo.savePlayer(ctx, record); err != nil {
		return false, fmt.Errorf("failed to save player record: %w", err)
	}
	if err := s.repo.deleteTicket(ctx, playerID); err != nil {
		return false, fmt.Errorf("failed to delete consumed ticket: %w", err)
	}

	s.logger.Info("link ticket consumed",
		zap.String("player_id", playerID.String()),
		zap.String("discord_id", ticket.DiscordID),
	)
	s.metrics.RecordTicketConsumed()
	s.events.Publish(Event{Kind: EventTicketConsumed, PlayerID: playerID, DiscordID: ticket.DiscordID, At: now})

	return true, nil
}

// LinkStatus reports which links are present in the player's durable record
func (s *Service) LinkStatus(ctx context.Context, playerID uuid.UUID) (models.LinkStatus, error) {
	record, err := s.repo.player(ctx, playerID)
	if err != nil {
		return models.LinkStatus{}, err
	}
	return record.Status(s.cfg.RankProvider), nil
}

// ReviewDecision is a reviewer's verdict on a pending ticket.
type ReviewDecision struct {
	Approve    bool
	Reason     string
	CanReapply bool
}

// ReviewTicket records a reviewer's decision on a player's ticket
func (s *Service) ReviewTicket(ctx context.Context, playerID uuid.UUID, review ReviewDecision) error {
	ticket, err := s.repo.ticket(ctx, playerID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return ErrTicketNotFound
	}

	ticket.Status = models.TicketStatusDenied
	if review.Approve {
		ticket.Status = models.TicketStatusApproved
	}
	ticket.DecisionReason = review.Reason
	ticket.CanReapply = review.CanReapply && !review.Approve
	ticket.UpdatedAt = s.now()

	if err := s.repo.saveTicket(ctx, ticket); err != nil {
		return fmt.Errorf("failed to save reviewed ticket: %w", err)
	}

	s.logger.Info("link ticket reviewed",
		zap.String("player_id", playerID.String()),
		zap.String("status", string(ticket.Status)),
	)
	s.events.Publish(Event{Kind: EventTicketReviewed, PlayerID: playerID, DiscordID: ticket.DiscordID, At: ticket.UpdatedAt})

	return nil
}

func withProfile(profiles map[string]models.ExternalProfile, profile models.ExternalProfile) map[string]models.ExternalProfile {
	merged := make(map[string]models.ExternalProfile, len(profiles)+1)
	for k, v := range profiles {
		merged[k] = v
	}
	merged[profile.Provider] = profile
	return merged
}
