package models

import "time"

// DealStatus is the lifecycle state of a deal. Transitions outside the fixed
// sequence are rejected with a typed conflict.
type DealStatus string

const (
	DealPending        DealStatus = "pending"
	DealAccepted       DealStatus = "accepted"
	DealPickupSelected DealStatus = "pickup_selected"
	DealShipped        DealStatus = "shipped"
	DealCompleted      DealStatus = "completed"
	DealRejected       DealStatus = "rejected"
	DealCancelled      DealStatus = "cancelled"
)

// Active reports whether the status still blocks the book from new deals.
// Completed, rejected and cancelled deals are terminal history.
func (s DealStatus) Active() bool {
	switch s {
	case DealPending, DealAccepted, DealPickupSelected, DealShipped:
		return true
	}
	return false
}

// ActiveDealStatuses lists the non-terminal states, in transition order.
func ActiveDealStatuses() []DealStatus {
	return []DealStatus{DealPending, DealAccepted, DealPickupSelected, DealShipped}
}

// Deal is one negotiated exchange of a book between a buyer and a seller.
// BookID, BuyerID and SellerID are fixed at creation; everything else mutates
// only through the transition operations. Deals are never deleted.
type Deal struct {
	ID       int64      `json:"id"`
	BookID   int64      `json:"book_id"`
	SellerID int64      `json:"seller_id"`
	BuyerID  int64      `json:"buyer_id"`
	Status   DealStatus `json:"status"`

	// EscrowHeld is the credit taken from the buyer at accept and not yet
	// released to the seller. Non-zero only between accept and receive.
	EscrowHeld int64 `json:"escrow_held"`

	PickupPointID  string `json:"pickup_point_id,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	SellerShippedAt *time.Time `json:"seller_shipped_at,omitempty"`
	BuyerReceivedAt *time.Time `json:"buyer_received_at,omitempty"`
}
