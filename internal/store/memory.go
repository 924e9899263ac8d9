package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/briefmill/briefmill/internal/models"
)

// Memory implements Store with mutex-guarded maps for testing/development.
// All transactional guarantees of the Postgres implementation hold under
// the single lock, including the credit withdraw inside
// CompleteItemEnrichment.
type Memory struct {
	mu        sync.Mutex
	sources   map[string]models.Source
	items     map[string]models.Item
	itemGuids map[string]map[string]string // sourceID -> guid -> itemID
	briefings map[string]models.Briefing
	reports   map[string]models.Report
	balances  map[string]int
	ledger    []models.CreditLedgerEntry
	emails    []models.InboundEmail
	usage     []models.UsageRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sources:   make(map[string]models.Source),
		items:     make(map[string]models.Item),
		itemGuids: make(map[string]map[string]string),
		briefings: make(map[string]models.Briefing),
		reports:   make(map[string]models.Report),
		balances:  make(map[string]int),
	}
}

// CreateSource persists a new source.
func (m *Memory) CreateSource(ctx context.Context, source models.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	if source.UpdatedAt.IsZero() {
		source.UpdatedAt = now
	}
	m.sources[source.ID] = source
	return nil
}

// GetSource retrieves a source by id.
func (m *Memory) GetSource(ctx context.Context, id string) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &source, nil
}

// GetSourceByRoutingToken resolves an EMAIL source by its routing token.
func (m *Memory) GetSourceByRoutingToken(ctx context.Context, token string) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, source := range m.sources {
		if source.Type == models.SourceTypeEmail && source.URL == token {
			s := source
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

// ListSourcesEligibleForFetch returns due sources owned by the given users,
// never-fetched first, then least recently updated.
func (m *Memory) ListSourcesEligibleForFetch(ctx context.Context, userIDs []string, limit int) ([]models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = true
	}

	now := time.Now()
	eligible := make([]models.Source, 0)
	for _, source := range m.sources {
		if !source.DueForFetch(now) {
			continue
		}
		briefing, ok := m.briefings[source.BriefingID]
		if !ok || !allowed[briefing.UserID] {
			continue
		}
		eligible = append(eligible, source)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		switch {
		case a.LastFetchedAt == nil && b.LastFetchedAt != nil:
			return true
		case a.LastFetchedAt != nil && b.LastFetchedAt == nil:
			return false
		case a.LastFetchedAt != nil && b.LastFetchedAt != nil && !a.LastFetchedAt.Equal(*b.LastFetchedAt):
			return a.LastFetchedAt.Before(*b.LastFetchedAt)
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

// MarkSourceQueued transitions IDLE -> QUEUED.
func (m *Memory) MarkSourceQueued(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[id]
	if !ok || source.FetchStatus != models.FetchStatusIdle {
		return false, nil
	}

	now := time.Now()
	source.FetchStatus = models.FetchStatusQueued
	source.QueuedAt = &now
	source.UpdatedAt = now
	m.sources[id] = source
	return true, nil
}

// MarkSourceFetching transitions QUEUED -> FETCHING.
func (m *Memory) MarkSourceFetching(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[id]
	if !ok || source.FetchStatus != models.FetchStatusQueued {
		return false, nil
	}

	now := time.Now()
	source.FetchStatus = models.FetchStatusFetching
	source.FetchStartedAt = &now
	source.UpdatedAt = now
	m.sources[id] = source
	return true, nil
}

// RequeueSourceIdle reverts a source to IDLE after a failed queue offer.
func (m *Memory) RequeueSourceIdle(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[id]
	if !ok {
		return ErrNotFound
	}

	source.FetchStatus = models.FetchStatusIdle
	source.QueuedAt = nil
	source.FetchStartedAt = nil
	source.UpdatedAt = time.Now()
	m.sources[id] = source
	return nil
}

// CompleteSourceFetch applies a successful fetch delta atomically.
func (m *Memory) CompleteSourceFetch(ctx context.Context, result SourceFetchResult) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[result.SourceID]
	if !ok {
		return 0, ErrNotFound
	}

	now := time.Now()
	inserted := 0
	for _, item := range result.Items {
		if m.guidExistsLocked(result.SourceID, item.GUID) {
			continue
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.SourceID = result.SourceID
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = now
		}
		m.insertItemLocked(item)
		inserted++
	}

	fetchedAt := result.FetchedAt
	source.LastFetchedAt = &fetchedAt
	if result.ETag != "" {
		source.ETag = result.ETag
	}
	if result.LastModified != "" {
		source.LastModified = result.LastModified
	}
	source.ErrorMessage = ""
	source.Status = models.SourceStatusActive
	source.FetchStatus = models.FetchStatusIdle
	source.QueuedAt = nil
	source.FetchStartedAt = nil
	source.UpdatedAt = now
	m.sources[result.SourceID] = source

	return inserted, nil
}

// FailSourceFetch records a failed fetch and returns the source to IDLE.
func (m *Memory) FailSourceFetch(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[id]
	if !ok {
		return ErrNotFound
	}

	source.Status = models.SourceStatusError
	source.ErrorMessage = TruncateError(message)
	source.FetchStatus = models.FetchStatusIdle
	source.QueuedAt = nil
	source.FetchStartedAt = nil
	source.UpdatedAt = time.Now()
	m.sources[id] = source
	return nil
}

// ResetStuckSources heals sources stuck in QUEUED or FETCHING.
func (m *Memory) ResetStuckSources(ctx context.Context, threshold time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-threshold)
	var count int64
	for id, source := range m.sources {
		if source.FetchStatus != models.FetchStatusQueued && source.FetchStatus != models.FetchStatusFetching {
			continue
		}
		if !source.UpdatedAt.Before(cutoff) {
			continue
		}
		source.FetchStatus = models.FetchStatusIdle
		source.QueuedAt = nil
		source.FetchStartedAt = nil
		source.UpdatedAt = now
		m.sources[id] = source
		count++
	}
	return count, nil
}

// InsertItem persists one item unless its guid already exists for the source.
func (m *Memory) InsertItem(ctx context.Context, item models.Item) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.guidExistsLocked(item.SourceID, item.GUID) {
		return false, nil
	}

	now := time.Now()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	m.insertItemLocked(item)
	return true, nil
}

// ItemExists reports whether the (source, guid) pair is taken.
func (m *Memory) ItemExists(ctx context.Context, sourceID, guid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guidExistsLocked(sourceID, guid), nil
}

// GetItem retrieves an item by id.
func (m *Memory) GetItem(ctx context.Context, id string) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

// GetItemContext loads an item with its briefing attribution.
func (m *Memory) GetItemContext(ctx context.Context, id string) (*ItemContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	source, ok := m.sources[item.SourceID]
	if !ok {
		return nil, ErrNotFound
	}
	briefing, ok := m.briefings[source.BriefingID]
	if !ok {
		return nil, ErrNotFound
	}

	return &ItemContext{
		Item:             item,
		SourceName:       source.DisplayName(),
		BriefingID:       briefing.ID,
		UserID:           briefing.UserID,
		BriefingCriteria: briefing.BriefingCriteria,
	}, nil
}

// ListEnrichCandidates returns NEW items owned by the given users,
// oldest-first.
func (m *Memory) ListEnrichCandidates(ctx context.Context, userIDs []string, limit int) ([]EnrichCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = true
	}

	type candidate struct {
		item   models.Item
		userID string
	}
	matching := make([]candidate, 0)
	for _, item := range m.items {
		if item.Status != models.ItemStatusNew {
			continue
		}
		source, ok := m.sources[item.SourceID]
		if !ok {
			continue
		}
		briefing, ok := m.briefings[source.BriefingID]
		if !ok || !allowed[briefing.UserID] {
			continue
		}
		matching = append(matching, candidate{item: item, userID: briefing.UserID})
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].item.CreatedAt.Before(matching[j].item.CreatedAt)
	})

	if limit > 0 && len(matching) > limit {
		matching = matching[:limit]
	}

	result := make([]EnrichCandidate, 0, len(matching))
	for _, c := range matching {
		result = append(result, EnrichCandidate{ItemID: c.item.ID, UserID: c.userID})
	}
	return result, nil
}

// MarkItemPending transitions NEW -> PENDING.
func (m *Memory) MarkItemPending(ctx context.Context, id string) (bool, error) {
	return m.casItemStatus(id, models.ItemStatusNew, models.ItemStatusPending)
}

// MarkItemProcessing transitions PENDING -> PROCESSING.
func (m *Memory) MarkItemProcessing(ctx context.Context, id string) (bool, error) {
	return m.casItemStatus(id, models.ItemStatusPending, models.ItemStatusProcessing)
}

// RequeueItemNew reverts a pending item to NEW after a failed queue offer.
func (m *Memory) RequeueItemNew(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}

	item.Status = models.ItemStatusNew
	item.UpdatedAt = time.Now()
	m.items[id] = item
	return nil
}

// SetItemWebContent stores the readability extraction for an item.
func (m *Memory) SetItemWebContent(ctx context.Context, id, webContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}

	item.WebContent = webContent
	item.UpdatedAt = time.Now()
	m.items[id] = item
	return nil
}

// CompleteItemEnrichment applies enrichment, DONE, and the credit withdraw
// as one atomic step.
func (m *Memory) CompleteItemEnrichment(ctx context.Context, itemID, userID string, enrichment models.Enrichment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return ErrNotFound
	}

	if m.balances[userID] < 1 {
		return ErrInsufficientCredits
	}

	now := time.Now()
	score := enrichment.Score
	item.Summary = enrichment.Summary
	item.Topics = enrichment.Topics
	item.People = enrichment.People
	item.Companies = enrichment.Companies
	item.Technologies = enrichment.Technologies
	item.Sentiment = enrichment.Sentiment
	item.Score = &score
	item.ScoreReasoning = enrichment.ScoreReasoning
	item.Status = models.ItemStatusDone
	item.ErrorMessage = ""
	item.UpdatedAt = now
	m.items[itemID] = item

	m.balances[userID]--
	m.ledger = append(m.ledger, models.CreditLedgerEntry{
		ID:     uuid.NewString(),
		UserID: userID,
		ItemID: itemID,
		Amount: 1,
		UsedAt: now,
	})
	return nil
}

// FailItem records a failed enrichment.
func (m *Memory) FailItem(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}

	item.Status = models.ItemStatusError
	item.ErrorMessage = TruncateError(message)
	item.UpdatedAt = time.Now()
	m.items[id] = item
	return nil
}

// ErrorStuckItems dead-letters items stuck in PENDING or PROCESSING.
func (m *Memory) ErrorStuckItems(ctx context.Context, threshold time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-threshold)
	var count int64
	for id, item := range m.items {
		if item.Status != models.ItemStatusPending && item.Status != models.ItemStatusProcessing {
			continue
		}
		if !item.UpdatedAt.Before(cutoff) {
			continue
		}
		item.Status = models.ItemStatusError
		item.ErrorMessage = "stuck recovery"
		item.UpdatedAt = now
		m.items[id] = item
		count++
	}
	return count, nil
}

// TopScoredItemsSince returns scored DONE items for a briefing, best first.
func (m *Memory) TopScoredItemsSince(ctx context.Context, briefingID string, since time.Time, limit int) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matching := make([]models.Item, 0)
	for _, item := range m.items {
		if item.Status != models.ItemStatusDone || item.Score == nil {
			continue
		}
		if item.PublishedAt == nil || !item.PublishedAt.After(since) {
			continue
		}
		source, ok := m.sources[item.SourceID]
		if !ok || source.BriefingID != briefingID {
			continue
		}
		matching = append(matching, item)
	}

	sort.Slice(matching, func(i, j int) bool {
		if *matching[i].Score != *matching[j].Score {
			return *matching[i].Score > *matching[j].Score
		}
		return matching[i].PublishedAt.After(*matching[j].PublishedAt)
	})

	if limit > 0 && len(matching) > limit {
		matching = matching[:limit]
	}
	return matching, nil
}

// CreateBriefing persists a new briefing.
func (m *Memory) CreateBriefing(ctx context.Context, briefing models.Briefing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if briefing.ID == "" {
		briefing.ID = uuid.NewString()
	}
	if briefing.CreatedAt.IsZero() {
		briefing.CreatedAt = now
	}
	if briefing.UpdatedAt.IsZero() {
		briefing.UpdatedAt = now
	}
	m.briefings[briefing.ID] = briefing
	return nil
}

// GetBriefing retrieves a briefing by id.
func (m *Memory) GetBriefing(ctx context.Context, id string) (*models.Briefing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	briefing, ok := m.briefings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &briefing, nil
}

// ListActiveBriefings returns all briefings in ACTIVE status.
func (m *Memory) ListActiveBriefings(ctx context.Context) ([]models.Briefing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.Briefing, 0)
	for _, briefing := range m.briefings {
		if briefing.Status == models.BriefingStatusActive {
			result = append(result, briefing)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// MarkBriefingQueued transitions ACTIVE -> QUEUED.
func (m *Memory) MarkBriefingQueued(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	briefing, ok := m.briefings[id]
	if !ok || briefing.Status != models.BriefingStatusActive {
		return false, nil
	}

	now := time.Now()
	briefing.Status = models.BriefingStatusQueued
	briefing.QueuedAt = &now
	briefing.UpdatedAt = now
	m.briefings[id] = briefing
	return true, nil
}

// MarkBriefingProcessing transitions QUEUED -> PROCESSING.
func (m *Memory) MarkBriefingProcessing(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	briefing, ok := m.briefings[id]
	if !ok || briefing.Status != models.BriefingStatusQueued {
		return false, nil
	}

	now := time.Now()
	briefing.Status = models.BriefingStatusProcessing
	briefing.ProcessingStartedAt = &now
	briefing.UpdatedAt = now
	m.briefings[id] = briefing
	return true, nil
}

// RequeueBriefingActive reverts a briefing to ACTIVE after a failed offer.
func (m *Memory) RequeueBriefingActive(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	briefing, ok := m.briefings[id]
	if !ok {
		return ErrNotFound
	}

	briefing.Status = models.BriefingStatusActive
	briefing.QueuedAt = nil
	briefing.ProcessingStartedAt = nil
	briefing.UpdatedAt = time.Now()
	m.briefings[id] = briefing
	return nil
}

// CompleteBriefingRun persists the report (when non-nil) and returns the
// briefing to ACTIVE with an advanced last_executed_at, atomically.
func (m *Memory) CompleteBriefingRun(ctx context.Context, briefingID string, report *models.Report, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	briefing, ok := m.briefings[briefingID]
	if !ok {
		return ErrNotFound
	}

	if report != nil {
		stored := *report
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.BriefingID = briefingID
		if stored.GeneratedAt.IsZero() {
			stored.GeneratedAt = executedAt
		}
		m.reports[stored.ID] = stored
	}

	executed := executedAt
	briefing.LastExecutedAt = &executed
	briefing.Status = models.BriefingStatusActive
	briefing.ErrorMessage = ""
	briefing.QueuedAt = nil
	briefing.ProcessingStartedAt = nil
	briefing.UpdatedAt = time.Now()
	m.briefings[briefingID] = briefing
	return nil
}

// FailBriefing records a failed run.
func (m *Memory) FailBriefing(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	briefing, ok := m.briefings[id]
	if !ok {
		return ErrNotFound
	}

	briefing.Status = models.BriefingStatusError
	briefing.ErrorMessage = TruncateError(message)
	briefing.QueuedAt = nil
	briefing.ProcessingStartedAt = nil
	briefing.UpdatedAt = time.Now()
	m.briefings[id] = briefing
	return nil
}

// ResetStuckBriefings heals briefings stuck in QUEUED or PROCESSING.
func (m *Memory) ResetStuckBriefings(ctx context.Context, threshold time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-threshold)
	var count int64
	for id, briefing := range m.briefings {
		if briefing.Status != models.BriefingStatusQueued && briefing.Status != models.BriefingStatusProcessing {
			continue
		}
		if !briefing.UpdatedAt.Before(cutoff) {
			continue
		}
		briefing.Status = models.BriefingStatusActive
		briefing.QueuedAt = nil
		briefing.ProcessingStartedAt = nil
		briefing.UpdatedAt = now
		m.briefings[id] = briefing
		count++
	}
	return count, nil
}

// GetReport retrieves a report by id.
func (m *Memory) GetReport(ctx context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &report, nil
}

// ListReportsByBriefing returns a briefing's reports, newest first.
func (m *Memory) ListReportsByBriefing(ctx context.Context, briefingID string) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.Report, 0)
	for _, report := range m.reports {
		if report.BriefingID == briefingID {
			result = append(result, report)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].GeneratedAt.After(result[j].GeneratedAt)
	})
	return result, nil
}

// CreditBalance returns the user's current balance.
func (m *Memory) CreditBalance(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

// UsersWithBalance returns users with a positive balance.
func (m *Memory) UsersWithBalance(ctx context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]bool)
	for userID, balance := range m.balances {
		if balance > 0 {
			result[userID] = true
		}
	}
	return result, nil
}

// AddCredits grants credits to a user.
func (m *Memory) AddCredits(ctx context.Context, userID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return nil
}

// ListCreditLedger returns a user's spend history, newest first.
func (m *Memory) ListCreditLedger(ctx context.Context, userID string) ([]models.CreditLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.CreditLedgerEntry, 0)
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].UserID == userID {
			result = append(result, m.ledger[i])
		}
	}
	return result, nil
}

// ArchiveInboundEmail persists a raw inbound mail.
func (m *Memory) ArchiveInboundEmail(ctx context.Context, email models.InboundEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = time.Now()
	}
	m.emails = append(m.emails, email)
	return nil
}

// InsertUsageRecord appends one usage row.
func (m *Memory) InsertUsageRecord(ctx context.Context, record models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	m.usage = append(m.usage, record)
	return nil
}

// ArchivedEmails returns all archived inbound mails, oldest first.
func (m *Memory) ArchivedEmails() []models.InboundEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.InboundEmail(nil), m.emails...)
}

// UsageRecords returns all persisted usage rows, oldest first.
func (m *Memory) UsageRecords() []models.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UsageRecord(nil), m.usage...)
}

func (m *Memory) casItemStatus(id string, from, to models.ItemStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok || item.Status != from {
		return false, nil
	}

	item.Status = to
	item.UpdatedAt = time.Now()
	m.items[id] = item
	return true, nil
}

func (m *Memory) guidExistsLocked(sourceID, guid string) bool {
	guids, ok := m.itemGuids[sourceID]
	if !ok {
		return false
	}
	_, exists := guids[guid]
	return exists
}

func (m *Memory) insertItemLocked(item models.Item) {
	m.items[item.ID] = item
	guids, ok := m.itemGuids[item.SourceID]
	if !ok {
		guids = make(map[string]string)
		m.itemGuids[item.SourceID] = guids
	}
	guids[item.GUID] = item.ID
}
