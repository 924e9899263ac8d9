// Package store defines the persistence contract shared by the three
// pipelines. The Postgres implementation lives in internal/database; the
// in-memory implementation below backs tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/briefmill/briefmill/internal/models"
)

// ErrNotFound is returned when an entity disappeared mid-pipeline.
// Workers treat it as a silent drop.
var ErrNotFound = errors.New("not found")

// ErrInsufficientCredits is returned by CompleteItemEnrichment when the
// transactional withdraw finds an empty balance. The whole transaction
// rolls back.
var ErrInsufficientCredits = errors.New("insufficient credits")

// MaxErrorMessageLen bounds the error text persisted onto entities.
const MaxErrorMessageLen = 1024

// TruncateError trims an error message to the persisted bound.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	return msg[:MaxErrorMessageLen]
}

// SourceFetchResult is the delta a fetch worker applies after a successful
// fetch: the new items plus caching-header updates. Empty header values
// leave the stored values unchanged (a 304 must never clobber them).
type SourceFetchResult struct {
	SourceID     string
	Items        []models.Item
	ETag         string
	LastModified string
	FetchedAt    time.Time
}

// EnrichCandidate pairs a NEW item with its owning user so the enrich
// scheduler can filter by credit without loading full rows.
type EnrichCandidate struct {
	ItemID string
	UserID string
}

// ItemContext is everything an enrich worker needs for one item: the item
// itself plus the source and briefing it rolls up to. Ids are resolved
// here, at the store boundary, instead of navigating object graphs.
type ItemContext struct {
	Item             models.Item
	SourceName       string
	BriefingID       string
	UserID           string
	BriefingCriteria string
}

// SourceStore is the fetch pipeline's view of persistence.
type SourceStore interface {
	// CreateSource persists a new source.
	CreateSource(ctx context.Context, source models.Source) error

	// GetSource retrieves a source by id, ErrNotFound when missing.
	GetSource(ctx context.Context, id string) (*models.Source, error)

	// GetSourceByRoutingToken resolves an EMAIL source by its routing token.
	GetSourceByRoutingToken(ctx context.Context, token string) (*models.Source, error)

	// ListSourcesEligibleForFetch returns sources due for a refresh whose
	// owning user is in userIDs, ordered never-fetched first, then least
	// recently updated.
	ListSourcesEligibleForFetch(ctx context.Context, userIDs []string, limit int) ([]models.Source, error)

	// MarkSourceQueued transitions IDLE -> QUEUED, stamping queued_at.
	// Returns false when the source was not IDLE.
	MarkSourceQueued(ctx context.Context, id string) (bool, error)

	// MarkSourceFetching transitions QUEUED -> FETCHING, stamping
	// fetch_started_at. Returns false when the source was not QUEUED.
	MarkSourceFetching(ctx context.Context, id string) (bool, error)

	// RequeueSourceIdle reverts a queued source to IDLE. Compensation for
	// a failed queue offer.
	RequeueSourceIdle(ctx context.Context, id string) error

	// CompleteSourceFetch applies a successful fetch in one transaction:
	// inserts non-duplicate items, advances last_fetched_at, updates
	// caching headers, clears the error state, and returns the source to
	// ACTIVE/IDLE. Returns how many items were inserted; duplicate guids
	// are skipped silently.
	CompleteSourceFetch(ctx context.Context, result SourceFetchResult) (int, error)

	// FailSourceFetch records a failed fetch: status ERROR with the
	// truncated message, fetch status back to IDLE.
	FailSourceFetch(ctx context.Context, id, message string) error

	// ResetStuckSources returns sources stuck in QUEUED or FETCHING longer
	// than threshold to IDLE, reporting how many were healed.
	ResetStuckSources(ctx context.Context, threshold time.Duration) (int64, error)
}

// ItemStore is the enrich pipeline's view of persistence.
type ItemStore interface {
	// InsertItem persists a single item, skipping silently when the
	// (source, guid) pair already exists. Returns whether it was inserted.
	InsertItem(ctx context.Context, item models.Item) (bool, error)

	// ItemExists reports whether an item with the guid exists for the source.
	ItemExists(ctx context.Context, sourceID, guid string) (bool, error)

	// GetItem retrieves an item by id, ErrNotFound when missing.
	GetItem(ctx context.Context, id string) (*models.Item, error)

	// GetItemContext loads an item together with its briefing attribution.
	GetItemContext(ctx context.Context, id string) (*ItemContext, error)

	// ListEnrichCandidates returns NEW items belonging to the given
	// users, oldest-first. The scheduler passes the funded users so
	// unpayable work never enters the queue.
	ListEnrichCandidates(ctx context.Context, userIDs []string, limit int) ([]EnrichCandidate, error)

	// MarkItemPending transitions NEW -> PENDING.
	MarkItemPending(ctx context.Context, id string) (bool, error)

	// MarkItemProcessing transitions PENDING -> PROCESSING.
	MarkItemProcessing(ctx context.Context, id string) (bool, error)

	// RequeueItemNew reverts a pending item to NEW. Compensation for a
	// failed queue offer.
	RequeueItemNew(ctx context.Context, id string) error

	// SetItemWebContent stores the readability extraction for an item.
	SetItemWebContent(ctx context.Context, id, webContent string) error

	// CompleteItemEnrichment writes the enrichment fields, transitions the
	// item to DONE, withdraws one credit from the user and appends the
	// ledger row, all in one transaction. Returns ErrInsufficientCredits
	// (nothing persisted) when the balance is empty.
	CompleteItemEnrichment(ctx context.Context, itemID, userID string, enrichment models.Enrichment) error

	// FailItem records a failed enrichment: status ERROR with the
	// truncated message.
	FailItem(ctx context.Context, id, message string) error

	// ErrorStuckItems dead-letters items stuck in PENDING or PROCESSING
	// longer than threshold, reporting how many were moved to ERROR.
	ErrorStuckItems(ctx context.Context, threshold time.Duration) (int64, error)

	// TopScoredItemsSince returns DONE, scored items for a briefing
	// published after since, best score first, then newest first.
	TopScoredItemsSince(ctx context.Context, briefingID string, since time.Time, limit int) ([]models.Item, error)
}

// BriefingStore is the brief pipeline's view of persistence.
type BriefingStore interface {
	// CreateBriefing persists a new briefing.
	CreateBriefing(ctx context.Context, briefing models.Briefing) error

	// GetBriefing retrieves a briefing by id, ErrNotFound when missing.
	GetBriefing(ctx context.Context, id string) (*models.Briefing, error)

	// ListActiveBriefings returns all briefings with status ACTIVE.
	ListActiveBriefings(ctx context.Context) ([]models.Briefing, error)

	// MarkBriefingQueued transitions ACTIVE -> QUEUED, stamping queued_at.
	MarkBriefingQueued(ctx context.Context, id string) (bool, error)

	// MarkBriefingProcessing transitions QUEUED -> PROCESSING, stamping
	// processing_started_at.
	MarkBriefingProcessing(ctx context.Context, id string) (bool, error)

	// RequeueBriefingActive reverts a queued briefing to ACTIVE.
	RequeueBriefingActive(ctx context.Context, id string) error

	// CompleteBriefingRun finishes a run in one transaction: persists the
	// report when non-nil, advances last_executed_at, and returns the
	// briefing to ACTIVE. A nil report records an empty run (nothing to
	// brief) without materializing a report.
	CompleteBriefingRun(ctx context.Context, briefingID string, report *models.Report, executedAt time.Time) error

	// FailBriefing records a failed run: status ERROR with the truncated
	// message.
	FailBriefing(ctx context.Context, id, message string) error

	// ResetStuckBriefings returns briefings stuck in QUEUED or PROCESSING
	// longer than threshold to ACTIVE.
	ResetStuckBriefings(ctx context.Context, threshold time.Duration) (int64, error)
}

// ReportStore exposes materialized reports.
type ReportStore interface {
	// GetReport retrieves a report with its items, ErrNotFound when missing.
	GetReport(ctx context.Context, id string) (*models.Report, error)

	// ListReportsByBriefing returns a briefing's reports, newest first.
	ListReportsByBriefing(ctx context.Context, briefingID string) ([]models.Report, error)
}

// CreditStore exposes user balances. The withdraw itself lives inside
// CompleteItemEnrichment so it can share the item's transaction.
type CreditStore interface {
	// CreditBalance returns the user's current balance (0 for unknown users).
	CreditBalance(ctx context.Context, userID string) (int, error)

	// UsersWithBalance returns the set of users with a positive balance.
	UsersWithBalance(ctx context.Context) (map[string]bool, error)

	// AddCredits grants credits to a user. Invoked by the external
	// subscription renewal service, and by tests.
	AddCredits(ctx context.Context, userID string, amount int) error

	// ListCreditLedger returns a user's spend history, newest first.
	ListCreditLedger(ctx context.Context, userID string) ([]models.CreditLedgerEntry, error)
}

// EmailStore archives inbound mail for the push ingress.
type EmailStore interface {
	// ArchiveInboundEmail persists a raw inbound mail. Called before any
	// credit or routing decision.
	ArchiveInboundEmail(ctx context.Context, email models.InboundEmail) error
}

// UsageStore persists language-model usage rows.
type UsageStore interface {
	// InsertUsageRecord appends one usage row.
	InsertUsageRecord(ctx context.Context, record models.UsageRecord) error
}

// Store is the full persistence contract, implemented by
// database.Postgres and by Memory.
type Store interface {
	SourceStore
	ItemStore
	BriefingStore
	ReportStore
	CreditStore
	EmailStore
	UsageStore
}
