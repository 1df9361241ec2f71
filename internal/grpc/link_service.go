// Package grpc exposes the link service to the chat bot and login proxies.
package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/parsascontentcorner/linkgate/internal/auth"
	"github.com/parsascontentcorner/linkgate/internal/linking"
	"github.com/parsascontentcorner/linkgate/internal/models"
)

// Linker is the part of the link service exposed over gRPC
type Linker interface {
	CreateLink(ctx context.Context, req linking.LinkRequest) (models.LinkResult, error)
	PreLoginDecision(ctx context.Context, playerID uuid.UUID) models.PreLoginDecision
	LinkStatus(ctx context.Context, playerID uuid.UUID) (models.LinkStatus, error)
	ReviewTicket(ctx context.Context, playerID uuid.UUID, review linking.ReviewDecision) error
}

// URLBuilder creates provider authorization URLs
type URLBuilder interface {
	URL(providerName string, playerID uuid.UUID, discordID, username string) (string, error)
}

// LinkServer implements LinkService
type LinkServer struct {
	linker Linker
	urls   URLBuilder
	logger *zap.Logger
}

// NewLinkServer creates a new gRPC link server
func NewLinkServer(linker Linker, urls URLBuilder, logger *zap.Logger) *LinkServer {
	return &LinkServer{
		linker: linker,
		urls:   urls,
		logger: logger,
	}
}

// IssueLinkURL returns a signed authorization URL for a player.
// Request: playerId, username, provider (default discord), discordId (rank provider only).
func (s *LinkServer) IssueLinkURL(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	playerID, err := playerIDField(req)
	if err != nil {
		return nil, err
	}
	provider := stringField(req, "provider")
	if provider == "" {
		provider = auth.ProviderDiscord
	}

	discordID := stringField(req, "discordId")
	if provider == auth.ProviderDiscord {
		discordID = ""
	} else if discordID == "" {
		linkStatus, err := s.linker.LinkStatus(ctx, playerID)
		if err != nil {
			s.logger.Error("failed to load link status", zap.String("player_id", playerID.String()), zap.Error(err))
			return nil, status.Errorf(codes.Unavailable, "failed to load link status")
		}
		if linkStatus.DiscordID == "" {
			return nil, status.Errorf(codes.FailedPrecondition, "discord account must be linked first")
		}
		discordID = linkStatus.DiscordID
	}

	url, err := s.urls.URL(provider, playerID, discordID, stringField(req, "username"))
	if err != nil {
		if errors.Is(err, auth.ErrUnknownProvider) {
			return nil, status.Errorf(codes.InvalidArgument, "unknown provider %q", provider)
		}
		s.logger.Error("failed to issue link url", zap.String("player_id", playerID.String()), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "failed to issue link url")
	}

	return structpb.NewStruct(map[string]interface{}{
		"url":      url,
		"provider": provider,
	})
}

// GetLinkStatus reports which accounts are linked in the player's durable record
func (s *LinkServer) GetLinkStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	playerID, err := playerIDField(req)
	if err != nil {
		return nil, err
	}

	linkStatus, err := s.linker.LinkStatus(ctx, playerID)
	if err != nil {
		s.logger.Error("failed to load link status", zap.String("player_id", playerID.String()), zap.Error(err))
		return nil, status.Errorf(codes.Unavailable, "failed to load link status")
	}

	return structpb.NewStruct(map[string]interface{}{
		"discord":   linkStatus.Discord,
		"rank":      linkStatus.Rank,
		"discordId": linkStatus.DiscordID,
	})
}

// PreLogin runs the pre-login check for proxies that gate before the game server
func (s *LinkServer) PreLogin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	playerID, err := playerIDField(req)
	if err != nil {
		return nil, err
	}

	decision := s.linker.PreLoginDecision(ctx, playerID)
	resp := map[string]interface{}{
		"decision": models.DecisionName(decision),
		"allowed":  false,
	}
	switch d := decision.(type) {
	case models.Allow:
		resp["allowed"] = true
	case models.AllowWithTicket:
		resp["allowed"] = true
		if d.Ticket != nil {
			resp["discordId"] = d.Ticket.DiscordID
		}
	case models.Deny:
		resp["reason"] = string(d.Reason)
		resp["message"] = d.Message
	}

	return structpb.NewStruct(resp)
}

// ReviewTicket records a reviewer's verdict. Request: playerId, approve, reason, canReapply.
func (s *LinkServer) ReviewTicket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	playerID, err := playerIDField(req)
	if err != nil {
		return nil, err
	}

	review := linking.ReviewDecision{
		Approve:    boolField(req, "approve"),
		Reason:     stringField(req, "reason"),
		CanReapply: boolField(req, "canReapply"),
	}
	if err := s.linker.ReviewTicket(ctx, playerID, review); err != nil {
		if errors.Is(err, linking.ErrTicketNotFound) {
			return nil, status.Errorf(codes.NotFound, "no link ticket for player %s", playerID)
		}
		s.logger.Error("failed to review ticket", zap.String("player_id", playerID.String()), zap.Error(err))
		return nil, status.Errorf(codes.Unavailable, "failed to review ticket")
	}

	return structpb.NewStruct(map[string]interface{}{
		"playerId": playerID.String(),
		"approved": review.Approve,
	})
}

// CreateLink records a Discord link asserted by the bot, which has already verified
// the Discord account. Request: playerId, discordId, username, source, invitedBy, sponsorId.
func (s *LinkServer) CreateLink(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	playerID, err := playerIDField(req)
	if err != nil {
		return nil, err
	}
	discordID := stringField(req, "discordId")
	if discordID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "discordId is required")
	}

	source := stringField(req, "source")
	if source == "" {
		source = "bot"
	}

	result, err := s.linker.CreateLink(ctx, linking.LinkRequest{
		PlayerID:  playerID,
		DiscordID: discordID,
		Username:  stringField(req, "username"),
		Source:    source,
		InvitedBy: stringField(req, "invitedBy"),
		SponsorID: stringField(req, "sponsorId"),
	})
	if err != nil {
		if errors.Is(err, linking.ErrInvalidRequest) {
			return nil, status.Errorf(codes.InvalidArgument, "%v", err)
		}
		s.logger.Error("failed to create link", zap.String("player_id", playerID.String()), zap.Error(err))
		return nil, status.Errorf(codes.Unavailable, "failed to create link")
	}

	switch r := result.(type) {
	case models.LinkSuccess:
		resp := map[string]interface{}{
			"result":    "success",
			"returning": r.Returning,
		}
		if r.Ticket != nil {
			resp["ticketStatus"] = string(r.Ticket.Status)
		}
		return structpb.NewStruct(resp)
	case models.LinkRejected:
		return structpb.NewStruct(map[string]interface{}{
			"result": "rejected",
			"reason": string(r.Reason),
		})
	default:
		return nil, status.Errorf(codes.Internal, "unexpected link result")
	}
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

func playerIDField(req *structpb.Struct) (uuid.UUID, error) {
	raw := stringField(req, "playerId")
	if raw == "" {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "playerId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "playerId must be a uuid")
	}
	return id, nil
}
