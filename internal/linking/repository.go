package linking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/linkgate/internal/database"
	"github.com/parsascontentcorner/linkgate/internal/models"
)

// repository gives typed access to the link collections. Missing documents load as nil.
type repository struct {
	store database.DocumentStore
}

func (r repository) player(ctx context.Context, playerID uuid.UUID) (*models.PlayerRecord, error) {
	var record models.PlayerRecord
	if err := r.load(ctx, database.CollectionPlayers, playerID.String(), &record); err != nil {
		return nil, err
	}
	if record.PlayerID == uuid.Nil {
		return nil, nil
	}
	return &record, nil
}

func (r repository) ticket(ctx context.Context, playerID uuid.UUID) (*models.LinkTicket, error) {
	var ticket models.LinkTicket
	if err := r.load(ctx, database.CollectionLinkRequests, playerID.String(), &ticket); err != nil {
		return nil, err
	}
	if ticket.PlayerID == uuid.Nil {
		return nil, nil
	}
	return &ticket, nil
}

func (r repository) mapping(ctx context.Context, discordID string) (*models.DiscordLink, error) {
	var link models.DiscordLink
	if err := r.load(ctx, database.CollectionDiscordLinks, discordID, &link); err != nil {
		return nil, err
	}
	if link.PlayerID == uuid.Nil {
		return nil, nil
	}
	return &link, nil
}

func (r repository) application(ctx context.Context, playerID uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.load(ctx, database.CollectionApplications, playerID.String(), &app); err != nil {
		return nil, err
	}
	if app.Status == "" {
		return nil, nil
	}
	return &app, nil
}

func (r repository) savePlayer(ctx context.Context, record *models.PlayerRecord) error {
	return r.store.Overwrite(ctx, database.CollectionPlayers, record.PlayerID.String(), record)
}

func (r repository) saveTicket(ctx context.Context, ticket *models.LinkTicket) error {
	return r.store.Overwrite(ctx, database.CollectionLinkRequests, ticket.PlayerID.String(), ticket)
}

func (r repository) saveMapping(ctx context.Context, discordID string, link *models.DiscordLink) error {
	return r.store.Overwrite(ctx, database.CollectionDiscordLinks, discordID, link)
}

func (r repository) deleteTicket(ctx context.Context, playerID uuid.UUID) error {
	return r.store.Delete(ctx, database.CollectionLinkRequests, playerID.String())
}

// load treats ErrNotFound as an empty document
func (r repository) load(ctx context.Context, collection, id string, dst any) error {
	err := r.store.Load(ctx, collection, id, dst)
	if err == nil || errors.Is(err, database.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to load %s/%s: %w", collection, id, err)
}
