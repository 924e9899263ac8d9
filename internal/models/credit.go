package models

import (
	"time"
)

// CreditLedgerEntry records one unit of credit spent on a successful
// enrichment. The ledger insert, the balance decrement, and the item's
// transition to DONE commit in the same transaction.
type CreditLedgerEntry struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	ItemID string    `json:"item_id,omitempty"`
	Amount int       `json:"amount"` // always 1 today
	UsedAt time.Time `json:"used_at"`
}
