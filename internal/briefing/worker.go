package briefing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/mailer"
	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

// Store is the slice of persistence the brief worker uses.
type Store interface {
	MarkBriefingProcessing(ctx context.Context, id string) (bool, error)
	GetBriefing(ctx context.Context, id string) (*models.Briefing, error)
	TopScoredItemsSince(ctx context.Context, briefingID string, since time.Time, limit int) ([]models.Item, error)
	CompleteBriefingRun(ctx context.Context, briefingID string, report *models.Report, executedAt time.Time) error
	FailBriefing(ctx context.Context, id, message string) error
}

// Worker materializes one report per queued briefing: the top-scored
// items since the previous run, positions 1..N. Mail delivery happens
// after the run committed; its failures are logged and swallowed.
type Worker struct {
	store    Store
	enricher enrichment.Enricher
	mailer   mailer.ReportMailer
	maxItems int
	now      func() time.Time
	logger   *slog.Logger
}

// NewWorker creates a brief worker. enricher and reportMailer are
// optional; without a mailer no delivery is attempted, without an
// enricher the delivery mail gets a plain generated subject. A nil now
// uses the wall clock.
func NewWorker(st Store, enricher enrichment.Enricher, reportMailer mailer.ReportMailer, maxItems int, now func() time.Time, logger *slog.Logger) *Worker {
	if now == nil {
		now = time.Now
	}
	return &Worker{
		store:    st,
		enricher: enricher,
		mailer:   reportMailer,
		maxItems: maxItems,
		now:      now,
		logger:   logger,
	}
}

// Process runs one queued briefing.
func (w *Worker) Process(ctx context.Context, briefingID string) {
	logger := w.logger.With("briefing_id", briefingID)

	claimed, err := w.store.MarkBriefingProcessing(ctx, briefingID)
	if err != nil {
		logger.Error("failed to claim briefing", "error", err)
		return
	}
	if !claimed {
		logger.Debug("briefing no longer queued, dropping")
		return
	}

	b, err := w.store.GetBriefing(ctx, briefingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Debug("briefing disappeared mid-run, dropping")
			return
		}
		w.fail(ctx, logger, briefingID, fmt.Sprintf("load briefing: %v", err))
		return
	}

	now := w.now()
	since := SinceWindow(*b, now)

	items, err := w.store.TopScoredItemsSince(ctx, briefingID, since, w.maxItems)
	if err != nil {
		w.fail(ctx, logger, briefingID, fmt.Sprintf("select items: %v", err))
		return
	}

	if len(items) == 0 {
		// Nothing to brief: record the run without materializing a
		// report so the briefing is not retried all day.
		if err := w.store.CompleteBriefingRun(ctx, briefingID, nil, now); err != nil {
			w.fail(ctx, logger, briefingID, fmt.Sprintf("record empty run: %v", err))
			return
		}
		logger.Info("briefing run empty", "since", since)
		return
	}

	report := models.Report{
		ID:          uuid.NewString(),
		BriefingID:  briefingID,
		GeneratedAt: now,
		Items:       make([]models.ReportItem, 0, len(items)),
	}
	for i, item := range items {
		score := 0
		if item.Score != nil {
			score = *item.Score
		}
		report.Items = append(report.Items, models.ReportItem{
			ItemID:   item.ID,
			Score:    score,
			Position: i + 1,
		})
	}

	if err := w.store.CompleteBriefingRun(ctx, briefingID, &report, now); err != nil {
		w.fail(ctx, logger, briefingID, fmt.Sprintf("persist report: %v", err))
		return
	}

	logger.Info("report generated",
		"report_id", report.ID,
		"items", len(report.Items),
		"since", since)

	if b.EmailDeliveryEnabled && w.mailer != nil {
		w.deliver(ctx, logger, *b, report, items)
	}
}

// deliver sends the report mail. The run has already committed, so
// nothing here can fail the briefing.
func (w *Worker) deliver(ctx context.Context, logger *slog.Logger, b models.Briefing, report models.Report, items []models.Item) {
	formatted := FormatItems(items)
	subject := fmt.Sprintf("%s: %d new items", b.Title, len(items))
	body := formatted

	if w.enricher != nil {
		caller := enrichment.Caller{UserID: b.UserID, Trace: uuid.NewString()}
		email, err := w.enricher.GenerateReportEmail(ctx, caller, b.Title, b.BriefingCriteria, formatted)
		if err != nil {
			logger.Warn("report email generation failed, using plain subject", "error", err)
		} else {
			subject = email.Subject
			body = email.Summary + "\n\n" + formatted
		}
	}

	if err := w.mailer.Deliver(ctx, b, report, subject, body); err != nil {
		logger.Warn("report delivery failed", "report_id", report.ID, "error", err)
		return
	}
	logger.Info("report delivered", "report_id", report.ID)
}

// FormatItems renders report items as the plain-text list used in
// delivery mails and in the report-email prompt.
func FormatItems(items []models.Item) string {
	var sb strings.Builder
	for i, item := range items {
		score := 0
		if item.Score != nil {
			score = *item.Score
		}
		fmt.Fprintf(&sb, "%d. %s (score %d)\n", i+1, item.Title, score)
		if item.Summary != "" {
			sb.WriteString(item.Summary)
			sb.WriteString("\n")
		}
		if item.Link != "" {
			sb.WriteString(item.Link)
			sb.WriteString("\n")
		}
		if i < len(items)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, briefingID, message string) {
	logger.Warn("briefing run failed", "reason", message)
	if err := w.store.FailBriefing(ctx, briefingID, store.TruncateError(message)); err != nil {
		logger.Error("failed to mark briefing errored", "error", err)
	}
}
