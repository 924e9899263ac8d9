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

const itemColumns = `id, source_id, guid, title, link, author, published_at,
	raw_content, clean_content, web_content, summary, topics, people, companies,
	technologies, sentiment, score, score_reasoning, status, error_message,
	read_at, saved, created_at, updated_at`

// InsertItem persists a single item, skipping silently when the
// (source, guid) pair already exists.
func (p *Postgres) InsertItem(ctx context.Context, item models.Item) (bool, error) {
	var inserted bool
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := insertItemTx(ctx, tx, item)
		inserted = ok
		return err
	})
	return inserted, err
}

// insertItemTx inserts one item inside an existing transaction. The
// unique (source_id, guid) index makes duplicates a silent no-op.
func insertItemTx(ctx context.Context, tx *sql.Tx, item models.Item) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO items (id, source_id, guid, title, link, author, published_at,
			raw_content, clean_content, web_content, summary, topics, people,
			companies, technologies, sentiment, score, score_reasoning, status,
			error_message, read_at, saved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, NOW(), NOW())
		ON CONFLICT (source_id, guid) DO NOTHING`,
		item.ID, item.SourceID, item.GUID, item.Title, item.Link, item.Author,
		item.PublishedAt, item.RawContent, item.CleanContent, item.WebContent,
		item.Summary, item.Topics, item.People, item.Companies, item.Technologies,
		item.Sentiment, item.Score, item.ScoreReasoning, item.Status,
		item.ErrorMessage, item.ReadAt, item.Saved)
	if err != nil {
		return false, fmt.Errorf("failed to insert item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ItemExists reports whether an item with the guid exists for the source.
func (p *Postgres) ItemExists(ctx context.Context, sourceID, guid string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM items WHERE source_id = $1 AND guid = $2)",
		sourceID, guid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return exists, nil
}

// GetItem retrieves an item by id.
func (p *Postgres) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	return scanItem(row)
}

// GetItemContext loads an item together with its briefing attribution.
func (p *Postgres) GetItemContext(ctx context.Context, id string) (*store.ItemContext, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+prefixColumns("i", itemColumns)+`,
			s.name, s.type, s.url, b.id, b.user_id, b.briefing_criteria
		FROM items i
		JOIN sources s ON s.id = i.source_id
		JOIN briefings b ON b.id = s.briefing_id
		WHERE i.id = $1`, id)

	var (
		itemCtx    store.ItemContext
		sourceName string
		sourceType models.SourceType
		sourceURL  string
	)
	dest := itemScanDest(&itemCtx.Item)
	dest = append(dest, &sourceName, &sourceType, &sourceURL,
		&itemCtx.BriefingID, &itemCtx.UserID, &itemCtx.BriefingCriteria)
	err := row.Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item context: %w", err)
	}

	if sourceName != "" {
		itemCtx.SourceName = sourceName
	} else {
		itemCtx.SourceName = string(sourceType) + " " + sourceURL
	}
	return &itemCtx, nil
}

// ListEnrichCandidates returns NEW items belonging to the given users,
// oldest first.
func (p *Postgres) ListEnrichCandidates(ctx context.Context, userIDs []string, limit int) ([]store.EnrichCandidate, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT i.id, b.user_id
		FROM items i
		JOIN sources s ON s.id = i.source_id
		JOIN briefings b ON b.id = s.briefing_id
		WHERE i.status = 'NEW' AND b.user_id = ANY($1)
		ORDER BY i.created_at ASC
		LIMIT $2`,
		pq.Array(userIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrich candidates: %w", err)
	}
	defer rows.Close()

	var candidates []store.EnrichCandidate
	for rows.Next() {
		var c store.EnrichCandidate
		if err := rows.Scan(&c.ItemID, &c.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan enrich candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// MarkItemPending transitions NEW -> PENDING.
func (p *Postgres) MarkItemPending(ctx context.Context, id string) (bool, error) {
	return p.execCAS(ctx, `
		UPDATE items SET status = 'PENDING', updated_at = NOW()
		WHERE id = $1 AND status = 'NEW'`, id)
}

// MarkItemProcessing transitions PENDING -> PROCESSING.
func (p *Postgres) MarkItemProcessing(ctx context.Context, id string) (bool, error) {
	return p.execCAS(ctx, `
		UPDATE items SET status = 'PROCESSING', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`, id)
}

// RequeueItemNew reverts a pending item to NEW after a failed queue offer.
func (p *Postgres) RequeueItemNew(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE items SET status = 'NEW', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revert item to new: %w", err)
	}
	return nil
}

// SetItemWebContent stores the readability extraction for an item.
func (p *Postgres) SetItemWebContent(ctx context.Context, id, webContent string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE items SET web_content = $2, updated_at = NOW() WHERE id = $1`,
		id, webContent)
	if err != nil {
		return fmt.Errorf("failed to store web content: %w", err)
	}
	return nil
}

// CompleteItemEnrichment writes the enrichment fields, transitions the
// item to DONE, withdraws one credit and appends the ledger row, all in
// one transaction. An exhausted balance rolls everything back.
func (p *Postgres) CompleteItemEnrichment(ctx context.Context, itemID, userID string, enrichment models.Enrichment) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE credit_balances SET balance = balance - 1, updated_at = NOW()
			WHERE user_id = $1 AND balance >= 1`, userID)
		if err != nil {
			return fmt.Errorf("withdraw credit: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrInsufficientCredits
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO credit_ledger (id, user_id, item_id, amount, used_at)
			VALUES ($1, $2, $3, 1, NOW())`,
			uuid.NewString(), userID, itemID)
		if err != nil {
			return fmt.Errorf("insert ledger row: %w", err)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE items SET
				summary = $2, topics = $3, people = $4, companies = $5,
				technologies = $6, sentiment = $7, score = $8,
				score_reasoning = $9, status = 'DONE', error_message = '',
				updated_at = NOW()
			WHERE id = $1`,
			itemID, enrichment.Summary, models.StringList(enrichment.Topics),
			models.StringList(enrichment.People), models.StringList(enrichment.Companies),
			models.StringList(enrichment.Technologies), enrichment.Sentiment,
			enrichment.Score, enrichment.ScoreReasoning)
		if err != nil {
			return fmt.Errorf("write enrichment: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// FailItem records a failed enrichment.
func (p *Postgres) FailItem(ctx context.Context, id, message string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE items SET status = 'ERROR', error_message = $2, updated_at = NOW()
		WHERE id = $1`, id, store.TruncateError(message))
	if err != nil {
		return fmt.Errorf("failed to mark item errored: %w", err)
	}
	return nil
}

// ErrorStuckItems dead-letters items stuck in PENDING or PROCESSING.
func (p *Postgres) ErrorStuckItems(ctx context.Context, threshold time.Duration) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE items SET status = 'ERROR', error_message = 'stuck recovery',
			updated_at = NOW()
		WHERE status IN ('PENDING', 'PROCESSING')
		  AND updated_at < NOW() - $1 * interval '1 second'`,
		threshold.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to dead-letter stuck items: %w", err)
	}
	return res.RowsAffected()
}

// TopScoredItemsSince returns DONE, scored items for a briefing
// published after since, best score first, then newest first.
func (p *Postgres) TopScoredItemsSince(ctx context.Context, briefingID string, since time.Time, limit int) ([]models.Item, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+prefixColumns("i", itemColumns)+`
		FROM items i
		JOIN sources s ON s.id = i.source_id
		WHERE s.briefing_id = $1
		  AND i.status = 'DONE'
		  AND i.score IS NOT NULL
		  AND i.published_at > $2
		ORDER BY i.score DESC, i.published_at DESC
		LIMIT $3`,
		briefingID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top scored items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	var item models.Item
	err := row.Scan(itemScanDest(&item)...)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return &item, nil
}

// itemScanDest returns the scan targets matching itemColumns order.
func itemScanDest(item *models.Item) []any {
	return []any{
		&item.ID,
		&item.SourceID,
		&item.GUID,
		&item.Title,
		&item.Link,
		&item.Author,
		&item.PublishedAt,
		&item.RawContent,
		&item.CleanContent,
		&item.WebContent,
		&item.Summary,
		&item.Topics,
		&item.People,
		&item.Companies,
		&item.Technologies,
		&item.Sentiment,
		&item.Score,
		&item.ScoreReasoning,
		&item.Status,
		&item.ErrorMessage,
		&item.ReadAt,
		&item.Saved,
		&item.CreatedAt,
		&item.UpdatedAt,
	}
}
