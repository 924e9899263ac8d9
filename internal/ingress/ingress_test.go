package ingress

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/briefmill/briefmill/internal/credit"
	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubEnricher struct {
	items       []enrichment.EmailItem
	err         error
	calls       int
	lastSubject string
}

func (e *stubEnricher) EnrichAndScore(ctx context.Context, caller enrichment.Caller, input enrichment.EnrichInput) (*models.Enrichment, error) {
	return nil, errors.New("not used")
}

func (e *stubEnricher) ExtractFromWeb(ctx context.Context, caller enrichment.Caller, markdown, instructions string, maxItems int) ([]enrichment.WebItem, error) {
	return nil, errors.New("not used")
}

func (e *stubEnricher) ExtractFromEmail(ctx context.Context, caller enrichment.Caller, subject, body string, maxItems int) ([]enrichment.EmailItem, error) {
	e.calls++
	e.lastSubject = subject
	return e.items, e.err
}

func (e *stubEnricher) GenerateReportEmail(ctx context.Context, caller enrichment.Caller, briefingTitle, briefingDescription, formattedItems string) (*enrichment.ReportEmail, error) {
	return nil, errors.New("not used")
}

func seedEmailSource(t *testing.T, m *store.Memory, token string) {
	t.Helper()
	ctx := context.Background()
	err := m.CreateBriefing(ctx, models.Briefing{
		ID:     "b1",
		UserID: "u1",
		Status: models.BriefingStatusActive,
	})
	if err != nil {
		t.Fatalf("CreateBriefing() error = %v", err)
	}
	err = m.CreateSource(ctx, models.Source{
		ID:         "s1",
		BriefingID: "b1",
		Type:       models.SourceTypeEmail,
		URL:        token,
		Name:       "Newsletter",
		Status:     models.SourceStatusActive,
	})
	if err != nil {
		t.Fatalf("CreateSource() error = %v", err)
	}
}

func TestReceiveExtractsItems(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedEmailSource(t, m, "tok-1")
	if err := m.AddCredits(ctx, "u1", 3); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	enricher := &stubEnricher{items: []enrichment.EmailItem{
		{Title: "Story one", Summary: "First.", URL: "https://example.com/1"},
		{Title: "Story two", Summary: "Second."},
	}}
	svc := NewService(m, credit.NewGate(m), enricher, 5, testLogger())

	err := svc.Receive(ctx, Mail{
		RoutingToken: "tok-1",
		MessageID:    "<msg-1@mail>",
		Subject:      "Weekly digest",
		Body:         "Lots of stories.",
	})
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	if enricher.calls != 1 {
		t.Fatalf("extraction calls = %d, want 1", enricher.calls)
	}
	if enricher.lastSubject != "Weekly digest" {
		t.Errorf("subject = %q, want mail subject", enricher.lastSubject)
	}

	// Extracted entries become NEW items, deduped by message id + index.
	for _, guid := range []string{"<msg-1@mail>#0", "<msg-1@mail>#1"} {
		exists, _ := m.ItemExists(ctx, "s1", guid)
		if !exists {
			t.Errorf("item %s not inserted", guid)
		}
	}
	candidates, _ := m.ListEnrichCandidates(ctx, []string{"u1"}, 10)
	if len(candidates) != 2 {
		t.Errorf("enrich candidates = %d, want 2", len(candidates))
	}

	emails := m.ArchivedEmails()
	if len(emails) != 1 {
		t.Fatalf("archived emails = %d, want 1", len(emails))
	}
	if emails[0].SourceID != "s1" {
		t.Errorf("archived SourceID = %q, want s1", emails[0].SourceID)
	}
}

func TestReceiveUnknownTokenArchivesOnly(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	enricher := &stubEnricher{}
	svc := NewService(m, credit.NewGate(m), enricher, 5, testLogger())

	err := svc.Receive(ctx, Mail{RoutingToken: "nobody", MessageID: "<m@mail>", Body: "spam"})
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	if enricher.calls != 0 {
		t.Errorf("extraction calls = %d, want 0 for unroutable mail", enricher.calls)
	}
	emails := m.ArchivedEmails()
	if len(emails) != 1 {
		t.Fatalf("archived emails = %d, want 1 even when unroutable", len(emails))
	}
	if emails[0].SourceID != "" {
		t.Errorf("archived SourceID = %q, want empty", emails[0].SourceID)
	}
}

func TestReceiveWithoutCreditArchivesOnly(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedEmailSource(t, m, "tok-1")

	enricher := &stubEnricher{items: []enrichment.EmailItem{{Title: "Story"}}}
	svc := NewService(m, credit.NewGate(m), enricher, 5, testLogger())

	err := svc.Receive(ctx, Mail{RoutingToken: "tok-1", MessageID: "<m@mail>", Body: "stories"})
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	if enricher.calls != 0 {
		t.Errorf("extraction calls = %d, want 0 without balance", enricher.calls)
	}
	if len(m.ArchivedEmails()) != 1 {
		t.Errorf("archived emails = %d, want 1", len(m.ArchivedEmails()))
	}
	candidates, _ := m.ListEnrichCandidates(ctx, []string{"u1"}, 10)
	if len(candidates) != 0 {
		t.Errorf("enrich candidates = %d, want 0", len(candidates))
	}
}

func TestReceiveExtractionFailureArchivesOnly(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedEmailSource(t, m, "tok-1")
	if err := m.AddCredits(ctx, "u1", 3); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	enricher := &stubEnricher{err: errors.New("model down")}
	svc := NewService(m, credit.NewGate(m), enricher, 5, testLogger())

	// Extraction trouble never bounces the mail receiver.
	err := svc.Receive(ctx, Mail{RoutingToken: "tok-1", MessageID: "<m@mail>", Body: "stories"})
	if err != nil {
		t.Fatalf("Receive() error = %v, want nil", err)
	}
	if len(m.ArchivedEmails()) != 1 {
		t.Errorf("archived emails = %d, want 1", len(m.ArchivedEmails()))
	}
}

func TestReceiveDuplicateMessageIsDeduped(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedEmailSource(t, m, "tok-1")
	if err := m.AddCredits(ctx, "u1", 3); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	enricher := &stubEnricher{items: []enrichment.EmailItem{{Title: "Story"}}}
	svc := NewService(m, credit.NewGate(m), enricher, 5, testLogger())

	mail := Mail{RoutingToken: "tok-1", MessageID: "<m@mail>", Body: "stories"}
	for i := 0; i < 2; i++ {
		if err := svc.Receive(ctx, mail); err != nil {
			t.Fatalf("Receive() #%d error = %v", i+1, err)
		}
	}

	candidates, _ := m.ListEnrichCandidates(ctx, []string{"u1"}, 10)
	if len(candidates) != 1 {
		t.Errorf("enrich candidates = %d, want 1 after redelivery", len(candidates))
	}
}
