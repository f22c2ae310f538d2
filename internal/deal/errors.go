package deal

import "errors"

// Transition preconditions are re-validated against current rows inside the
// enclosing transaction; each failure below rolls the whole unit back.
var (
	ErrDealNotFound = errors.New("deal not found")

	// ErrForbidden indicates the caller is not the party allowed to perform
	// the transition.
	ErrForbidden = errors.New("caller is not a party to this transition")

	ErrBookNotFound      = errors.New("book not found")
	ErrCannotDealOwnBook = errors.New("cannot open a deal on your own book")
	ErrBookNotAvailable  = errors.New("book is not available")
	ErrDealAlreadyExists = errors.New("book already has an active deal")

	ErrDealNotPending      = errors.New("deal is not pending")
	ErrBookNotReserved     = errors.New("book is not reserved")
	ErrNotOwner            = errors.New("seller no longer owns the book")
	ErrBuyerWalletNotFound = errors.New("buyer wallet not found")

	ErrDealNotAccepted     = errors.New("deal is not accepted")
	ErrPickupNotSelected   = errors.New("pickup point has not been selected")
	ErrPickupPointRequired = errors.New("pickup point is required before shipping")
	ErrDealNotShipped      = errors.New("deal is not shipped")

	// ErrShippingUnavailable wraps gateway failures when resolving a pickup
	// point; the transition aborts before any row is touched.
	ErrShippingUnavailable = errors.New("shipping gateway unavailable")
)
