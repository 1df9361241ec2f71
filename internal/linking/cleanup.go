package linking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/database"
	"github.com/parsascontentcorner/linkgate/internal/models"
)

// ExpireTickets deletes every ticket older than the configured TTL
func (s *Service) ExpireTickets(ctx context.Context) (int, error) {
	docs, err := s.repo.store.All(ctx, database.CollectionLinkRequests)
	if err != nil {
		return 0, fmt.Errorf("failed to list tickets: %w", err)
	}

	now := s.now()
	expired := 0
	for _, doc := range docs {
		var ticket models.LinkTicket
		if err := doc.Decode(&ticket); err != nil {
			s.logger.Warn("skipping undecodable ticket", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		if !ticket.IsExpired(now, s.cfg.TicketTTL) {
			continue
		}
		if err := s.repo.store.Delete(ctx, database.CollectionLinkRequests, doc.ID); err != nil {
			return expired, fmt.Errorf("failed to delete expired ticket %s: %w", doc.ID, err)
		}
		expired++
	}

	if expired > 0 {
		s.metrics.RecordTicketsExpired(expired)
	}
	s.logger.Debug("expired link tickets", zap.Int("count", expired))
	return expired, nil
}

// StartCleanupJob starts a background job to periodically delete expired tickets
func (s *Service) StartCleanupJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := s.ExpireTickets(ctx); err != nil {
					s.logger.Error("failed to expire link tickets", zap.Error(err))
				}
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()

	s.logger.Info("started ticket cleanup job", zap.Duration("interval", interval))
}
