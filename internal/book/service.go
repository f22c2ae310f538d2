package book

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bookswap/bookswap/internal/models"
	"github.com/bookswap/bookswap/internal/store"
)

// Service owns book records outside deal transitions. Update, delete and
// relist re-read the row inside a transaction so a deal created concurrently
// is always observed.
type Service struct {
	store store.Store
}

// NewService builds a book registry service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateInput captures the fields a new listing may set.
type CreateInput struct {
	Title       string
	Author      string
	Description string
	ISBN        string
	Category    string
	Condition   string
	CoverURL    string
}

// Create lists a new book owned by the caller.
func (s *Service) Create(ctx context.Context, ownerID int64, input CreateInput) (models.Book, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return models.Book{}, ErrTitleRequired
	}

	b := models.Book{
		OwnerID:     ownerID,
		Title:       title,
		Author:      strings.TrimSpace(input.Author),
		Description: strings.TrimSpace(input.Description),
		ISBN:        strings.TrimSpace(input.ISBN),
		Category:    strings.TrimSpace(input.Category),
		Condition:   strings.TrimSpace(input.Condition),
		CoverURL:    strings.TrimSpace(input.CoverURL),
		Status:      models.BookAvailable,
		CreatedAt:   time.Now().UTC(),
	}
	return s.store.CreateBook(ctx, b)
}

// Update applies a partial update. Reserved books are frozen until their
// active deal resolves.
func (s *Service) Update(ctx context.Context, callerID, bookID int64, patch UpdatePatch) (models.Book, error) {
	var updated models.Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.BookForUpdate(ctx, bookID)
		if err != nil {
			return mapNotFound(err)
		}
		if b.OwnerID != callerID {
			return ErrForbidden
		}
		if b.Status == models.BookReserved {
			return ErrNotEditable
		}

		if patch.Title.Set {
			if patch.Title.Null {
				return ErrTitleRequired
			}
			title := strings.TrimSpace(patch.Title.Value)
			if title == "" {
				return ErrTitleRequired
			}
			b.Title = title
		}
		applyField(&b.Author, patch.Author)
		applyField(&b.Description, patch.Description)
		applyField(&b.ISBN, patch.ISBN)
		applyField(&b.Category, patch.Category)
		applyField(&b.Condition, patch.Condition)
		applyField(&b.CoverURL, patch.CoverURL)

		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return models.Book{}, err
	}
	return updated, nil
}

// Delete removes a listing. Guarded both by the reserved status and by an
// explicit active-deal check, in case the status is stale.
func (s *Service) Delete(ctx context.Context, callerID, bookID int64) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.BookForUpdate(ctx, bookID)
		if err != nil {
			return mapNotFound(err)
		}
		if b.OwnerID != callerID {
			return ErrForbidden
		}
		if b.Status == models.BookReserved {
			return ErrNotDeletable
		}
		active, err := tx.HasActiveDeal(ctx, bookID)
		if err != nil {
			return err
		}
		if active {
			return ErrHasActiveDeal
		}
		return tx.DeleteBook(ctx, bookID)
	})
}

// Relist puts an exchanged book back on the market for its current owner.
func (s *Service) Relist(ctx context.Context, callerID, bookID int64) (models.Book, error) {
	var relisted models.Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.BookForUpdate(ctx, bookID)
		if err != nil {
			return mapNotFound(err)
		}
		if b.OwnerID != callerID {
			return ErrForbidden
		}
		if b.Status != models.BookExchanged {
			return ErrNotExchanged
		}
		active, err := tx.HasActiveDeal(ctx, bookID)
		if err != nil {
			return err
		}
		if active {
			return ErrHasActiveDeal
		}

		b.Status = models.BookAvailable
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		relisted = b
		return nil
	})
	if err != nil {
		return models.Book{}, err
	}
	return relisted, nil
}

// Get returns one book.
func (s *Service) Get(ctx context.Context, bookID int64) (models.Book, error) {
	b, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return models.Book{}, mapNotFound(err)
	}
	return b, nil
}

// List returns the full catalogue, newest first.
func (s *Service) List(ctx context.Context) ([]models.Book, error) {
	return s.store.ListBooks(ctx)
}

// Mine returns the caller's books, newest first.
func (s *Service) Mine(ctx context.Context, ownerID int64) ([]models.Book, error) {
	return s.store.ListBooksByOwner(ctx, ownerID)
}

func applyField(dst *string, f Field[string]) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = ""
		return
	}
	*dst = strings.TrimSpace(f.Value)
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
