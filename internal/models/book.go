package models

import "time"

// BookStatus is the lifecycle state of a listed book.
type BookStatus string

const (
	// BookAvailable marks a book open for new deals.
	BookAvailable BookStatus = "available"
	// BookReserved marks a book held by an active deal.
	BookReserved BookStatus = "reserved"
	// BookExchanged marks a book handed over through a completed deal.
	BookExchanged BookStatus = "exchanged"
)

// Valid reports whether s is one of the known statuses.
func (s BookStatus) Valid() bool {
	switch s {
	case BookAvailable, BookReserved, BookExchanged:
		return true
	}
	return false
}

// Book is a physical book listed for exchange. Ownership changes only through
// a completed deal.
type Book struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Description string     `json:"description,omitempty"`
	ISBN        string     `json:"isbn,omitempty"`
	Category    string     `json:"category,omitempty"`
	Condition   string     `json:"condition,omitempty"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Status      BookStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
