package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

const briefingColumns = `id, user_id, title, briefing_criteria, frequency,
	day_of_week, local_time, timezone, status, last_executed_at,
	email_delivery_enabled, position, queued_at, processing_started_at,
	error_message, created_at, updated_at`

// CreateBriefing persists a new briefing.
func (p *Postgres) CreateBriefing(ctx context.Context, briefing models.Briefing) error {
	if briefing.ID == "" {
		briefing.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO briefings (id, user_id, title, briefing_criteria, frequency,
			day_of_week, local_time, timezone, status, last_executed_at,
			email_delivery_enabled, position, queued_at, processing_started_at,
			error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())`,
		briefing.ID, briefing.UserID, briefing.Title, briefing.BriefingCriteria,
		briefing.Frequency, briefing.DayOfWeek, briefing.LocalTime, briefing.Timezone,
		briefing.Status, briefing.LastExecutedAt, briefing.EmailDeliveryEnabled,
		briefing.Position, briefing.QueuedAt, briefing.ProcessingStartedAt,
		briefing.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert briefing: %w", err)
	}
	return nil
}

// GetBriefing retrieves a briefing by id.
func (p *Postgres) GetBriefing(ctx context.Context, id string) (*models.Briefing, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+briefingColumns+` FROM briefings WHERE id = $1`, id)
	return scanBriefing(row)
}

// ListActiveBriefings returns all briefings with status ACTIVE.
func (p *Postgres) ListActiveBriefings(ctx context.Context) ([]models.Briefing, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+briefingColumns+` FROM briefings WHERE status = 'ACTIVE' ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active briefings: %w", err)
	}
	defer rows.Close()

	var briefings []models.Briefing
	for rows.Next() {
		briefing, err := scanBriefing(rows)
		if err != nil {
			return nil, err
		}
		briefings = append(briefings, *briefing)
	}
	return briefings, rows.Err()
}

// MarkBriefingQueued transitions ACTIVE -> QUEUED.
func (p *Postgres) MarkBriefingQueued(ctx context.Context, id string) (bool, error) {
	return p.execCAS(ctx, `
		UPDATE briefings SET status = 'QUEUED', queued_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'`, id)
}

// MarkBriefingProcessing transitions QUEUED -> PROCESSING.
func (p *Postgres) MarkBriefingProcessing(ctx context.Context, id string) (bool, error) {
	return p.execCAS(ctx, `
		UPDATE briefings SET status = 'PROCESSING', processing_started_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'QUEUED'`, id)
}

// RequeueBriefingActive reverts a briefing to ACTIVE after a failed offer.
func (p *Postgres) RequeueBriefingActive(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE briefings SET status = 'ACTIVE', queued_at = NULL,
			processing_started_at = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revert briefing to active: %w", err)
	}
	return nil
}

// CompleteBriefingRun finishes a run in one transaction: persists the
// report and its items (when non-nil), advances last_executed_at, and
// returns the briefing to ACTIVE.
func (p *Postgres) CompleteBriefingRun(ctx context.Context, briefingID string, report *models.Report, executedAt time.Time) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if report != nil {
			reportID := report.ID
			if reportID == "" {
				reportID = uuid.NewString()
			}
			generatedAt := report.GeneratedAt
			if generatedAt.IsZero() {
				generatedAt = executedAt
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reports (id, briefing_id, generated_at)
				VALUES ($1, $2, $3)`,
				reportID, briefingID, generatedAt)
			if err != nil {
				return fmt.Errorf("insert report: %w", err)
			}
			for _, ri := range report.Items {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO report_items (report_id, item_id, score, position)
					VALUES ($1, $2, $3, $4)`,
					reportID, ri.ItemID, ri.Score, ri.Position)
				if err != nil {
					return fmt.Errorf("insert report item %d: %w", ri.Position, err)
				}
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE briefings SET status = 'ACTIVE', last_executed_at = $2,
				error_message = '', queued_at = NULL, processing_started_at = NULL,
				updated_at = NOW()
			WHERE id = $1`, briefingID, executedAt)
		if err != nil {
			return fmt.Errorf("update briefing: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// FailBriefing records a failed run.
func (p *Postgres) FailBriefing(ctx context.Context, id, message string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE briefings SET status = 'ERROR', error_message = $2,
			queued_at = NULL, processing_started_at = NULL, updated_at = NOW()
		WHERE id = $1`, id, store.TruncateError(message))
	if err != nil {
		return fmt.Errorf("failed to mark briefing errored: %w", err)
	}
	return nil
}

// ResetStuckBriefings heals briefings stuck in QUEUED or PROCESSING.
func (p *Postgres) ResetStuckBriefings(ctx context.Context, threshold time.Duration) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE briefings SET status = 'ACTIVE', queued_at = NULL,
			processing_started_at = NULL, updated_at = NOW()
		WHERE status IN ('QUEUED', 'PROCESSING')
		  AND updated_at < NOW() - $1 * interval '1 second'`,
		threshold.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck briefings: %w", err)
	}
	return res.RowsAffected()
}

func scanBriefing(row interface{ Scan(...any) error }) (*models.Briefing, error) {
	var briefing models.Briefing
	err := row.Scan(
		&briefing.ID,
		&briefing.UserID,
		&briefing.Title,
		&briefing.BriefingCriteria,
		&briefing.Frequency,
		&briefing.DayOfWeek,
		&briefing.LocalTime,
		&briefing.Timezone,
		&briefing.Status,
		&briefing.LastExecutedAt,
		&briefing.EmailDeliveryEnabled,
		&briefing.Position,
		&briefing.QueuedAt,
		&briefing.ProcessingStartedAt,
		&briefing.ErrorMessage,
		&briefing.CreatedAt,
		&briefing.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan briefing: %w", err)
	}
	return &briefing, nil
}
