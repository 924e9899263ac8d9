package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

// GetReport retrieves a report with its items, ordered by position.
func (p *Postgres) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := p.db.QueryRowContext(ctx,
		"SELECT id, briefing_id, generated_at FROM reports WHERE id = $1", id).
		Scan(&report.ID, &report.BriefingID, &report.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	items, err := p.reportItems(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	report.Items = items
	return &report, nil
}

// ListReportsByBriefing returns a briefing's reports, newest first.
func (p *Postgres) ListReportsByBriefing(ctx context.Context, briefingID string) ([]models.Report, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, briefing_id, generated_at FROM reports
		WHERE briefing_id = $1
		ORDER BY generated_at DESC`, briefingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var report models.Report
		if err := rows.Scan(&report.ID, &report.BriefingID, &report.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reports {
		items, err := p.reportItems(ctx, reports[i].ID)
		if err != nil {
			return nil, err
		}
		reports[i].Items = items
	}
	return reports, nil
}

func (p *Postgres) reportItems(ctx context.Context, reportID string) ([]models.ReportItem, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT item_id, score, position FROM report_items
		WHERE report_id = $1
		ORDER BY position ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report items: %w", err)
	}
	defer rows.Close()

	var items []models.ReportItem
	for rows.Next() {
		var ri models.ReportItem
		if err := rows.Scan(&ri.ItemID, &ri.Score, &ri.Position); err != nil {
			return nil, fmt.Errorf("failed to scan report item: %w", err)
		}
		items = append(items, ri)
	}
	return items, rows.Err()
}
