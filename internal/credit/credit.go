// Package credit gates model spend on user balances. The actual
// withdraw happens atomically in the store when an enrichment lands;
// the gate only answers the cheaper question of whether an expensive
// call is worth starting.
package credit

import (
	"context"
	"fmt"
	"sort"
)

// BalanceStore is the slice of the store the gate reads.
type BalanceStore interface {
	CreditBalance(ctx context.Context, userID string) (int, error)
	UsersWithBalance(ctx context.Context) (map[string]bool, error)
}

// Gate answers credit questions for the pipelines.
type Gate struct {
	store BalanceStore
}

// NewGate creates a gate over the given balance store.
func NewGate(store BalanceStore) *Gate {
	return &Gate{store: store}
}

// HasCredit reports whether the user can afford one enrichment. A false
// result is advisory: the store re-checks inside the enrichment
// transaction, so a balance spent between check and withdraw still
// cannot go negative.
func (g *Gate) HasCredit(ctx context.Context, userID string) (bool, error) {
	balance, err := g.store.CreditBalance(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check credit balance: %w", err)
	}
	return balance > 0, nil
}

// FundedUsers returns the ids of all users holding a positive balance,
// sorted for deterministic scheduling.
func (g *Gate) FundedUsers(ctx context.Context) ([]string, error) {
	users, err := g.store.UsersWithBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("list funded users: %w", err)
	}

	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
