// Package mailer is the outbound boundary for report delivery. The core
// only ever talks to the ReportMailer interface; delivery failures are
// logged by the caller and never fail a briefing run.
package mailer

import (
	"context"
	"log/slog"

	"github.com/briefmill/briefmill/internal/models"
)

// ReportMailer delivers one materialized report to its briefing's owner.
type ReportMailer interface {
	Deliver(ctx context.Context, briefing models.Briefing, report models.Report, subject, body string) error
}

// LogMailer writes deliveries to the log instead of sending mail. It is
// the default when no mail transport is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Deliver logs the delivery and succeeds.
func (m *LogMailer) Deliver(ctx context.Context, briefing models.Briefing, report models.Report, subject, body string) error {
	m.logger.Info("report delivery (log only)",
		"briefing_id", briefing.ID,
		"report_id", report.ID,
		"user_id", briefing.UserID,
		"subject", subject,
		"items", len(report.Items),
		"body_chars", len(body))
	return nil
}
