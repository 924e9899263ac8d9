// Package ingress is the push side of email sources: inbound mail
// addressed to a source's routing token is archived, split into items
// by the enricher, and fed into the normal enrich pipeline as NEW items.
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
)

// Store is the slice of persistence the ingress uses.
type Store interface {
	ArchiveInboundEmail(ctx context.Context, email models.InboundEmail) error
	GetSourceByRoutingToken(ctx context.Context, token string) (*models.Source, error)
	GetBriefing(ctx context.Context, id string) (*models.Briefing, error)
	InsertItem(ctx context.Context, item models.Item) (bool, error)
}

// CreditGate answers whether a user can still spend on extraction.
type CreditGate interface {
	HasCredit(ctx context.Context, userID string) (bool, error)
}

// Mail is one inbound message as handed over by the mail receiver.
type Mail struct {
	RoutingToken string
	MessageID    string
	Subject      string
	Body         string
}

// Service processes inbound mail. The raw message is always archived,
// before any routing or credit decision; extraction only runs for a
// resolvable source whose owner has balance.
type Service struct {
	store    Store
	gate     CreditGate
	enricher enrichment.Enricher
	maxItems int
	logger   *slog.Logger
}

// NewService creates the ingress service.
func NewService(st Store, gate CreditGate, enricher enrichment.Enricher, maxItems int, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		gate:     gate,
		enricher: enricher,
		maxItems: maxItems,
		logger:   logger,
	}
}

// Receive handles one inbound mail. The returned error covers only the
// archival step; everything downstream is logged and swallowed so the
// mail receiver never bounces on pipeline trouble.
func (s *Service) Receive(ctx context.Context, mail Mail) error {
	logger := s.logger.With("routing_token", mail.RoutingToken, "message_id", mail.MessageID)

	source, err := s.store.GetSourceByRoutingToken(ctx, mail.RoutingToken)
	if err != nil {
		source = nil
	}

	archived := models.InboundEmail{
		ID:           uuid.NewString(),
		RoutingToken: mail.RoutingToken,
		MessageID:    mail.MessageID,
		Subject:      mail.Subject,
		RawBody:      mail.Body,
		ReceivedAt:   time.Now(),
	}
	if source != nil {
		archived.SourceID = source.ID
	}
	if err := s.store.ArchiveInboundEmail(ctx, archived); err != nil {
		return fmt.Errorf("archive inbound email: %w", err)
	}

	if source == nil || source.Type != models.SourceTypeEmail {
		logger.Info("inbound email without a matching source, archived only")
		return nil
	}

	briefing, err := s.store.GetBriefing(ctx, source.BriefingID)
	if err != nil {
		logger.Warn("owning briefing not found, archived only", "source_id", source.ID, "error", err)
		return nil
	}

	funded, err := s.gate.HasCredit(ctx, briefing.UserID)
	if err != nil {
		logger.Error("credit check failed, archived only", "user_id", briefing.UserID, "error", err)
		return nil
	}
	if !funded {
		logger.Info("user out of credits, archived only", "user_id", briefing.UserID)
		return nil
	}

	caller := enrichment.Caller{UserID: briefing.UserID, Trace: uuid.NewString()}
	extracted, err := s.enricher.ExtractFromEmail(ctx, caller, mail.Subject, mail.Body, s.maxItems)
	if err != nil {
		logger.Warn("email extraction failed, archived only", "error", err)
		return nil
	}

	now := time.Now()
	inserted := 0
	for i, rec := range extracted {
		publishedAt := now
		ok, err := s.store.InsertItem(ctx, models.Item{
			SourceID:    source.ID,
			GUID:        fmt.Sprintf("%s#%d", mail.MessageID, i),
			Title:       rec.Title,
			Link:        rec.URL,
			PublishedAt: &publishedAt,
			RawContent:  rec.Summary,
			Status:      models.ItemStatusNew,
		})
		if err != nil {
			logger.Warn("failed to insert extracted item", "index", i, "error", err)
			continue
		}
		if ok {
			inserted++
		}
	}

	logger.Info("inbound email processed",
		"source_id", source.ID,
		"extracted", len(extracted),
		"inserted", inserted,
		"trace", caller.Trace)
	return nil
}
