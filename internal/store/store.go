package store

import (
	"context"
	"errors"

	"github.com/bookswap/bookswap/internal/models"
)

// ErrNotFound is returned by entity lookups when no row exists. Services map
// it onto their own sentinels.
var ErrNotFound = errors.New("row not found")

// ErrAlreadyExists is returned by row creation when a conflicting row exists.
var ErrAlreadyExists = errors.New("row already exists")

// Tx is the view of the store inside one atomic unit. Every multi-entity
// mutation (book+deal, deal+wallet, deal+book+wallet) goes through it: reads
// return the authoritative current row, locked against concurrent writers
// until the unit commits or rolls back.
//
// Lock ordering is deal row first, then book and wallet rows in whatever
// order the transition needs them. Deadlock is impossible because every
// transition serializes on the deal row and a book has at most one active
// deal.
type Tx interface {
	BookForUpdate(ctx context.Context, id int64) (models.Book, error)
	SaveBook(ctx context.Context, b models.Book) error
	DeleteBook(ctx context.Context, id int64) error

	CreateDeal(ctx context.Context, d models.Deal) (models.Deal, error)
	DealForUpdate(ctx context.Context, id int64) (models.Deal, error)
	SaveDeal(ctx context.Context, d models.Deal) error
	// HasActiveDeal reports whether any deal in a non-terminal status
	// references the book.
	HasActiveDeal(ctx context.Context, bookID int64) (bool, error)

	WalletForUpdate(ctx context.Context, userID int64) (models.Wallet, error)
	SaveWallet(ctx context.Context, w models.Wallet) error
}

// Store persists books, deals and wallets. WithinTx runs fn inside one atomic
// unit: all effects commit together or none do. The remaining methods are
// single-row reads and inserts with no cross-entity invariants.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateBook(ctx context.Context, b models.Book) (models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	ListBooksByOwner(ctx context.Context, ownerID int64) ([]models.Book, error)

	GetDeal(ctx context.Context, id int64) (models.Deal, error)
	ListDealsByBuyer(ctx context.Context, buyerID int64) ([]models.Deal, error)
	ListDealsBySeller(ctx context.Context, sellerID int64) ([]models.Deal, error)
	ListDealsByUser(ctx context.Context, userID int64) ([]models.Deal, error)

	CreateWallet(ctx context.Context, w models.Wallet) error
	GetWallet(ctx context.Context, userID int64) (models.Wallet, error)
}
