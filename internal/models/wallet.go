package models

import "time"

// Wallet holds the exchange credit balance for one user. The balance is a
// plain non-negative integer; exactly one unit moves per completed deal.
type Wallet struct {
	UserID    int64     `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
