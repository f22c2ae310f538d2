package store

import (
	"context"
	"sort"
	"sync"

	"github.com/bookswap/bookswap/internal/models"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory store for tests and credential-less environments.
// One mutex held for the whole atomic unit serializes concurrent transitions,
// matching the exactly-one-winner behaviour of the Postgres row locks. Writes
// are staged and applied only when the unit's function returns nil.
type Memory struct {
	mu         sync.Mutex
	books      map[int64]models.Book
	deals      map[int64]models.Deal
	wallets    map[int64]models.Wallet
	nextBookID int64
	nextDealID int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		books:   make(map[int64]models.Book),
		deals:   make(map[int64]models.Deal),
		wallets: make(map[int64]models.Wallet),
	}
}

// WithinTx runs fn under the store mutex with staged writes. An error from fn
// discards every staged effect.
func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		m:           m,
		books:       make(map[int64]models.Book),
		bookDeletes: make(map[int64]struct{}),
		deals:       make(map[int64]models.Deal),
		wallets:     make(map[int64]models.Wallet),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, b := range tx.books {
		m.books[id] = b
	}
	for id := range tx.bookDeletes {
		delete(m.books, id)
	}
	for id, d := range tx.deals {
		m.deals[id] = d
	}
	for id, w := range tx.wallets {
		m.wallets[id] = w
	}
	return nil
}

// CreateBook inserts a book and assigns the next identifier.
func (m *Memory) CreateBook(_ context.Context, b models.Book) (models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBookID++
	b.ID = m.nextBookID
	m.books[b.ID] = b
	return b, nil
}

// GetBook fetches a book by identifier.
func (m *Memory) GetBook(_ context.Context, id int64) (models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return models.Book{}, ErrNotFound
	}
	return b, nil
}

// ListBooks returns all books, newest first.
func (m *Memory) ListBooks(_ context.Context) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var books []models.Book
	for _, b := range m.books {
		books = append(books, b)
	}
	sortBooks(books)
	return books, nil
}

// ListBooksByOwner returns the owner's books, newest first.
func (m *Memory) ListBooksByOwner(_ context.Context, ownerID int64) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var books []models.Book
	for _, b := range m.books {
		if b.OwnerID == ownerID {
			books = append(books, b)
		}
	}
	sortBooks(books)
	return books, nil
}

// GetDeal fetches a deal by identifier.
func (m *Memory) GetDeal(_ context.Context, id int64) (models.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return models.Deal{}, ErrNotFound
	}
	return d, nil
}

// ListDealsByBuyer returns deals where the user is the buyer, newest first.
func (m *Memory) ListDealsByBuyer(_ context.Context, buyerID int64) ([]models.Deal, error) {
	return m.listDeals(func(d models.Deal) bool { return d.BuyerID == buyerID })
}

// ListDealsBySeller returns deals where the user is the seller, newest first.
func (m *Memory) ListDealsBySeller(_ context.Context, sellerID int64) ([]models.Deal, error) {
	return m.listDeals(func(d models.Deal) bool { return d.SellerID == sellerID })
}

// ListDealsByUser returns deals where the user is either party, newest first.
func (m *Memory) ListDealsByUser(_ context.Context, userID int64) ([]models.Deal, error) {
	return m.listDeals(func(d models.Deal) bool { return d.BuyerID == userID || d.SellerID == userID })
}

func (m *Memory) listDeals(match func(models.Deal) bool) ([]models.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deals []models.Deal
	for _, d := range m.deals {
		if match(d) {
			deals = append(deals, d)
		}
	}
	sort.Slice(deals, func(i, j int) bool {
		if deals[i].CreatedAt.Equal(deals[j].CreatedAt) {
			return deals[i].ID > deals[j].ID
		}
		return deals[i].CreatedAt.After(deals[j].CreatedAt)
	})
	return deals, nil
}

// CreateWallet inserts a wallet keyed by user.
func (m *Memory) CreateWallet(_ context.Context, w models.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[w.UserID]; ok {
		return ErrAlreadyExists
	}
	m.wallets[w.UserID] = w
	return nil
}

// GetWallet fetches a wallet by user identifier.
func (m *Memory) GetWallet(_ context.Context, userID int64) (models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return models.Wallet{}, ErrNotFound
	}
	return w, nil
}

type memTx struct {
	m           *Memory
	books       map[int64]models.Book
	bookDeletes map[int64]struct{}
	deals       map[int64]models.Deal
	wallets     map[int64]models.Wallet
}

func (t *memTx) BookForUpdate(_ context.Context, id int64) (models.Book, error) {
	if _, deleted := t.bookDeletes[id]; deleted {
		return models.Book{}, ErrNotFound
	}
	if b, ok := t.books[id]; ok {
		return b, nil
	}
	b, ok := t.m.books[id]
	if !ok {
		return models.Book{}, ErrNotFound
	}
	return b, nil
}

func (t *memTx) SaveBook(_ context.Context, b models.Book) error {
	if _, deleted := t.bookDeletes[b.ID]; deleted {
		return ErrNotFound
	}
	if _, ok := t.m.books[b.ID]; !ok {
		if _, staged := t.books[b.ID]; !staged {
			return ErrNotFound
		}
	}
	t.books[b.ID] = b
	return nil
}

func (t *memTx) DeleteBook(_ context.Context, id int64) error {
	if _, ok := t.m.books[id]; !ok {
		return ErrNotFound
	}
	delete(t.books, id)
	t.bookDeletes[id] = struct{}{}
	return nil
}

func (t *memTx) CreateDeal(_ context.Context, d models.Deal) (models.Deal, error) {
	t.m.nextDealID++
	d.ID = t.m.nextDealID
	t.deals[d.ID] = d
	return d, nil
}

func (t *memTx) DealForUpdate(_ context.Context, id int64) (models.Deal, error) {
	if d, ok := t.deals[id]; ok {
		return d, nil
	}
	d, ok := t.m.deals[id]
	if !ok {
		return models.Deal{}, ErrNotFound
	}
	return d, nil
}

func (t *memTx) SaveDeal(_ context.Context, d models.Deal) error {
	if _, ok := t.deals[d.ID]; !ok {
		if _, ok := t.m.deals[d.ID]; !ok {
			return ErrNotFound
		}
	}
	t.deals[d.ID] = d
	return nil
}

func (t *memTx) HasActiveDeal(_ context.Context, bookID int64) (bool, error) {
	for _, d := range t.deals {
		if d.BookID == bookID && d.Status.Active() {
			return true, nil
		}
	}
	for id, d := range t.m.deals {
		if _, staged := t.deals[id]; staged {
			continue
		}
		if d.BookID == bookID && d.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) WalletForUpdate(_ context.Context, userID int64) (models.Wallet, error) {
	if w, ok := t.wallets[userID]; ok {
		return w, nil
	}
	w, ok := t.m.wallets[userID]
	if !ok {
		return models.Wallet{}, ErrNotFound
	}
	return w, nil
}

func (t *memTx) SaveWallet(_ context.Context, w models.Wallet) error {
	if _, ok := t.wallets[w.UserID]; !ok {
		if _, ok := t.m.wallets[w.UserID]; !ok {
			return ErrNotFound
		}
	}
	t.wallets[w.UserID] = w
	return nil
}

func sortBooks(books []models.Book) {
	sort.Slice(books, func(i, j int) bool {
		if books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].ID > books[j].ID
		}
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
}
