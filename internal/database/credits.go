package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/briefmill/briefmill/internal/models"
)

// CreditBalance returns the user's current balance, 0 for unknown users.
func (p *Postgres) CreditBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := p.db.QueryRowContext(ctx,
		"SELECT balance FROM credit_balances WHERE user_id = $1", userID).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return balance, nil
}

// UsersWithBalance returns the set of users with a positive balance.
func (p *Postgres) UsersWithBalance(ctx context.Context) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT user_id FROM credit_balances WHERE balance > 0")
	if err != nil {
		return nil, fmt.Errorf("failed to query funded users: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		result[userID] = true
	}
	return result, rows.Err()
}

// AddCredits grants credits to a user, creating the balance row when
// missing. Invoked by the external subscription renewal service.
func (p *Postgres) AddCredits(ctx context.Context, userID string, amount int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO credit_balances (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET balance = credit_balances.balance + EXCLUDED.balance,
			updated_at = NOW()`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	return nil
}

// ListCreditLedger returns a user's spend history, newest first.
func (p *Postgres) ListCreditLedger(ctx context.Context, userID string) ([]models.CreditLedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, item_id, amount, used_at FROM credit_ledger
		WHERE user_id = $1
		ORDER BY used_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.CreditLedgerEntry
	for rows.Next() {
		var entry models.CreditLedgerEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ItemID, &entry.Amount, &entry.UsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
