package credit

import (
	"context"
	"testing"

	"github.com/briefmill/briefmill/internal/store"
)

func TestHasCredit(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if err := m.AddCredits(ctx, "funded", 1); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	gate := NewGate(m)

	ok, err := gate.HasCredit(ctx, "funded")
	if err != nil {
		t.Fatalf("HasCredit() error = %v", err)
	}
	if !ok {
		t.Error("HasCredit(funded) = false, want true")
	}

	ok, err = gate.HasCredit(ctx, "unknown")
	if err != nil {
		t.Fatalf("HasCredit() error = %v", err)
	}
	if ok {
		t.Error("HasCredit(unknown) = true, want false")
	}
}

func TestFundedUsers(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	for _, id := range []string{"zed", "alice", "mia"} {
		if err := m.AddCredits(ctx, id, 2); err != nil {
			t.Fatalf("AddCredits() error = %v", err)
		}
	}
	if err := m.AddCredits(ctx, "broke", 0); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	gate := NewGate(m)
	ids, err := gate.FundedUsers(ctx)
	if err != nil {
		t.Fatalf("FundedUsers() error = %v", err)
	}

	want := []string{"alice", "mia", "zed"}
	if len(ids) != len(want) {
		t.Fatalf("FundedUsers() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("FundedUsers()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
