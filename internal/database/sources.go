package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

const sourceColumns = `id, briefing_id, type, url, name, extraction_prompt,
	refresh_interval_minutes, status, fetch_status, last_fetched_at, etag,
	last_modified, error_message, queued_at, fetch_started_at, created_at, updated_at`

// CreateSource persists a new source.
func (p *Postgres) CreateSource(ctx context.Context, source models.Source) error {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sources (id, briefing_id, type, url, name, extraction_prompt,
			refresh_interval_minutes, status, fetch_status, last_fetched_at, etag,
			last_modified, error_message, queued_at, fetch_started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())`,
		source.ID, source.BriefingID, source.Type, source.URL, source.Name,
		source.ExtractionPrompt, source.RefreshIntervalMinutes, source.Status,
		source.FetchStatus, source.LastFetchedAt, source.ETag, source.LastModified,
		source.ErrorMessage, source.QueuedAt, source.FetchStartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

// GetSource retrieves a source by id.
func (p *Postgres) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	return scanSource(row)
}

// GetSourceByRoutingToken resolves an EMAIL source by its routing token.
func (p *Postgres) GetSourceByRoutingToken(ctx context.Context, token string) (*models.Source, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE type = $1 AND url = $2 LIMIT 1`,
		models.SourceTypeEmail, token)
	return scanSource(row)
}

// ListSourcesEligibleForFetch returns sources due for a refresh whose
// owning user is in userIDs, never-fetched first, then least recently
// updated.
func (p *Postgres) ListSourcesEligibleForFetch(ctx context.Context, userIDs []string, limit int) ([]models.Source, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+prefixColumns("s", sourceColumns)+`
		FROM sources s
		JOIN briefings b ON b.id = s.briefing_id
		WHERE s.status <> 'PAUSED'
		  AND s.fetch_status = 'IDLE'
		  AND s.refresh_interval_minutes > 0
		  AND (s.last_fetched_at IS NULL
		       OR s.last_fetched_at + s.refresh_interval_minutes * interval '1 minute' <= NOW())
		  AND b.user_id = ANY($1)
		ORDER BY s.last_fetched_at ASC NULLS FIRST, s.updated_at ASC
		LIMIT $2`,
		pq.Array(userIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}
	return sources, rows.Err()
}

// MarkSourceQueued transitions IDLE -> QUEUED.
func (p *Postgres) MarkSourceQueued(ctx context.Context, id string) (bool, error) {
	return p.execCAS(ctx, `
		UPDATE sources SET fetch_status = 'QUEUED', queued_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND fetch_status = 'IDLE'`, id)
}

// MarkSourceFetching transitions QUEUED -> FETCHING.
func (p *Postgres) MarkSourceFetching(ctx context.Context, id string) (bool, error) {
	return p.execCAS(ctx, `
		UPDATE sources SET fetch_status = 'FETCHING', fetch_started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND fetch_status = 'QUEUED'`, id)
}

// RequeueSourceIdle reverts a source to IDLE after a failed queue offer.
func (p *Postgres) RequeueSourceIdle(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE sources SET fetch_status = 'IDLE', queued_at = NULL,
			fetch_started_at = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revert source to idle: %w", err)
	}
	return nil
}

// CompleteSourceFetch applies a successful fetch in one transaction:
// inserts non-duplicate items, advances last_fetched_at, updates the
// caching headers (empty values leave the stored ones untouched),
// clears the error state, and returns the source to ACTIVE/IDLE.
func (p *Postgres) CompleteSourceFetch(ctx context.Context, result store.SourceFetchResult) (int, error) {
	inserted := 0
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range result.Items {
			item.SourceID = result.SourceID
			ok, err := insertItemTx(ctx, tx, item)
			if err != nil {
				return fmt.Errorf("insert item %q: %w", item.GUID, err)
			}
			if ok {
				inserted++
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE sources SET
				last_fetched_at = $2,
				etag = CASE WHEN $3 <> '' THEN $3 ELSE etag END,
				last_modified = CASE WHEN $4 <> '' THEN $4 ELSE last_modified END,
				error_message = '',
				status = 'ACTIVE',
				fetch_status = 'IDLE',
				queued_at = NULL,
				fetch_started_at = NULL,
				updated_at = NOW()
			WHERE id = $1`,
			result.SourceID, result.FetchedAt, result.ETag, result.LastModified)
		if err != nil {
			return fmt.Errorf("update source: %w", err)
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
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// FailSourceFetch records a failed fetch and returns the source to IDLE.
func (p *Postgres) FailSourceFetch(ctx context.Context, id, message string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE sources SET status = 'ERROR', error_message = $2,
			fetch_status = 'IDLE', queued_at = NULL, fetch_started_at = NULL,
			updated_at = NOW()
		WHERE id = $1`, id, store.TruncateError(message))
	if err != nil {
		return fmt.Errorf("failed to mark source errored: %w", err)
	}
	return nil
}

// ResetStuckSources heals sources stuck in QUEUED or FETCHING.
func (p *Postgres) ResetStuckSources(ctx context.Context, threshold time.Duration) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sources SET fetch_status = 'IDLE', queued_at = NULL,
			fetch_started_at = NULL, updated_at = NOW()
		WHERE fetch_status IN ('QUEUED', 'FETCHING')
		  AND updated_at < NOW() - $1 * interval '1 second'`,
		threshold.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck sources: %w", err)
	}
	return res.RowsAffected()
}

func scanSource(row interface{ Scan(...any) error }) (*models.Source, error) {
	var source models.Source
	err := row.Scan(
		&source.ID,
		&source.BriefingID,
		&source.Type,
		&source.URL,
		&source.Name,
		&source.ExtractionPrompt,
		&source.RefreshIntervalMinutes,
		&source.Status,
		&source.FetchStatus,
		&source.LastFetchedAt,
		&source.ETag,
		&source.LastModified,
		&source.ErrorMessage,
		&source.QueuedAt,
		&source.FetchStartedAt,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}
	return &source, nil
}

// execCAS runs a compare-and-swap update and reports whether a row
// actually transitioned.
func (p *Postgres) execCAS(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("status transition failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
