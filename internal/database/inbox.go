package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/briefmill/briefmill/internal/models"
)

// ArchiveInboundEmail persists a raw inbound mail.
func (p *Postgres) ArchiveInboundEmail(ctx context.Context, email models.InboundEmail) error {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO inbound_emails (id, source_id, routing_token, message_id,
			subject, raw_body, received_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`,
		email.ID, email.SourceID, email.RoutingToken, email.MessageID,
		email.Subject, email.RawBody, email.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to archive inbound email: %w", err)
	}
	return nil
}

// InsertUsageRecord appends one language-model usage row.
func (p *Postgres) InsertUsageRecord(ctx context.Context, record models.UsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, user_id, feature, model, prompt_tokens,
			completion_tokens, total_tokens, success, error_message, duration_ms,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		record.ID, record.UserID, record.Feature, record.Model,
		record.PromptTokens, record.CompletionTokens, record.TotalTokens,
		record.Success, record.ErrorMessage, record.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}
