package wallet

import "errors"

// InitialCredit is the balance granted at registration so a new user can
// transact immediately.
const InitialCredit = 1

var (
	// ErrNotFound indicates no wallet exists for the user.
	ErrNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds indicates the balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
