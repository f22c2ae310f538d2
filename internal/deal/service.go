package deal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookswap/bookswap/internal/models"
	"github.com/bookswap/bookswap/internal/notification"
	"github.com/bookswap/bookswap/internal/shipping"
	"github.com/bookswap/bookswap/internal/store"
	"github.com/bookswap/bookswap/internal/wallet"
)

// dealValue is the number of credits exchanged per completed deal.
const dealValue = 1

// Service is the deal state machine. Every transition runs as one atomic
// store unit: it re-reads the current rows under lock, validates the
// precondition against what it read, and either commits all effects or rolls
// the whole unit back with a typed conflict.
type Service struct {
	store    store.Store
	shipping shipping.Provider
	notifier notification.Notifier
}

// NewService builds the deal engine.
func NewService(st store.Store, provider shipping.Provider, notifier notification.Notifier) *Service {
	return &Service{store: st, shipping: provider, notifier: notifier}
}

// Create opens a pending deal on an available book and reserves the book.
// When two buyers race on one book, the row lock makes the loser observe
// either the reserved status or the winner's active deal.
func (s *Service) Create(ctx context.Context, buyerID, bookID int64) (models.Deal, error) {
	var created models.Deal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.BookForUpdate(ctx, bookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if b.OwnerID == buyerID {
			return ErrCannotDealOwnBook
		}
		if b.Status != models.BookAvailable {
			return ErrBookNotAvailable
		}

		active, err := tx.HasActiveDeal(ctx, bookID)
		if err != nil {
			return err
		}
		if active {
			return ErrDealAlreadyExists
		}

		created, err = tx.CreateDeal(ctx, models.Deal{
			BookID:    bookID,
			SellerID:  b.OwnerID,
			BuyerID:   buyerID,
			Status:    models.DealPending,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		b.Status = models.BookReserved
		return tx.SaveBook(ctx, b)
	})
	if err != nil {
		return models.Deal{}, err
	}

	s.notify(ctx, notification.KindDealCreated, created.SellerID,
		fmt.Sprintf("New deal %d opened on your book %d", created.ID, created.BookID))
	return created, nil
}

// Accept moves a pending deal to accepted and debits one credit from the
// buyer into escrow. The debit and the status change commit together or not
// at all.
func (s *Service) Accept(ctx context.Context, sellerID, dealID int64) (models.Deal, error) {
	var accepted models.Deal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := s.dealForParty(ctx, tx, dealID, sellerID, roleSeller)
		if err != nil {
			return err
		}
		if d.Status != models.DealPending {
			return ErrDealNotPending
		}

		b, err := tx.BookForUpdate(ctx, d.BookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if b.OwnerID != sellerID {
			return ErrNotOwner
		}
		if b.Status != models.BookReserved {
			return ErrBookNotReserved
		}

		w, err := tx.WalletForUpdate(ctx, d.BuyerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBuyerWalletNotFound
			}
			return err
		}
		if w.Balance < dealValue {
			return wallet.ErrInsufficientFunds
		}

		now := time.Now().UTC()
		w.Balance -= dealValue
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		d.Status = models.DealAccepted
		d.EscrowHeld = dealValue
		d.AcceptedAt = &now
		if err := tx.SaveDeal(ctx, d); err != nil {
			return err
		}
		accepted = d
		return nil
	})
	if err != nil {
		return models.Deal{}, err
	}

	s.notify(ctx, notification.KindDealAccepted, accepted.BuyerID,
		fmt.Sprintf("Deal %d was accepted by the seller", accepted.ID))
	return accepted, nil
}

// Reject lets the seller decline a pending deal; the book returns to the
// market. No wallet is touched.
func (s *Service) Reject(ctx context.Context, sellerID, dealID int64) (models.Deal, error) {
	return s.closePending(ctx, sellerID, dealID, roleSeller, models.DealRejected)
}

// Cancel lets the buyer withdraw a pending deal; the book returns to the
// market. No wallet is touched.
func (s *Service) Cancel(ctx context.Context, buyerID, dealID int64) (models.Deal, error) {
	return s.closePending(ctx, buyerID, dealID, roleBuyer, models.DealCancelled)
}

func (s *Service) closePending(ctx context.Context, callerID, dealID int64, role party, terminal models.DealStatus) (models.Deal, error) {
	var closed models.Deal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := s.dealForParty(ctx, tx, dealID, callerID, role)
		if err != nil {
			return err
		}
		if d.Status != models.DealPending {
			return ErrDealNotPending
		}

		b, err := tx.BookForUpdate(ctx, d.BookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		d.Status = terminal
		if err := tx.SaveDeal(ctx, d); err != nil {
			return err
		}

		b.Status = models.BookAvailable
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		closed = d
		return nil
	})
	if err != nil {
		return models.Deal{}, err
	}
	return closed, nil
}

// SelectPickup resolves the pickup point through the shipping gateway and
// records it on an accepted deal. A gateway failure aborts the transition
// before any row is touched.
func (s *Service) SelectPickup(ctx context.Context, buyerID, dealID int64, pickupCode string) (models.Deal, error) {
	pickupCode = strings.TrimSpace(pickupCode)
	if pickupCode == "" {
		return models.Deal{}, ErrPickupPointRequired
	}

	if _, err := s.shipping.PickupPointByCode(ctx, pickupCode); err != nil {
		if errors.Is(err, shipping.ErrPickupPointNotFound) {
			return models.Deal{}, shipping.ErrPickupPointNotFound
		}
		return models.Deal{}, fmt.Errorf("%w: %v", ErrShippingUnavailable, err)
	}

	var updated models.Deal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := s.dealForParty(ctx, tx, dealID, buyerID, roleBuyer)
		if err != nil {
			return err
		}
		if d.Status != models.DealAccepted {
			return ErrDealNotAccepted
		}

		d.Status = models.DealPickupSelected
		d.PickupPointID = pickupCode
		if err := tx.SaveDeal(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return models.Deal{}, err
	}
	return updated, nil
}

// Ship marks the deal shipped. The tracking number is the caller-supplied
// value, else whatever the deal already carries, else a generated fallback.
func (s *Service) Ship(ctx context.Context, sellerID, dealID int64, trackingNumber string) (models.Deal, error) {
	var shipped models.Deal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := s.dealForParty(ctx, tx, dealID, sellerID, roleSeller)
		if err != nil {
			return err
		}
		if d.Status != models.DealPickupSelected {
			return ErrPickupNotSelected
		}
		if d.PickupPointID == "" {
			return ErrPickupPointRequired
		}

		tn := strings.TrimSpace(trackingNumber)
		if tn == "" {
			tn = d.TrackingNumber
		}
		if tn == "" {
			tn = fallbackTrackingNumber()
		}

		now := time.Now().UTC()
		d.Status = models.DealShipped
		d.TrackingNumber = tn
		d.SellerShippedAt = &now
		if err := tx.SaveDeal(ctx, d); err != nil {
			return err
		}
		shipped = d
		return nil
	})
	if err != nil {
		return models.Deal{}, err
	}

	s.notify(ctx, notification.KindDealShipped, shipped.BuyerID,
		fmt.Sprintf("Deal %d shipped, tracking %s", shipped.ID, shipped.TrackingNumber))
	return shipped, nil
}

// Receive completes the deal: the escrowed credit moves to the seller, the
// book changes owner and becomes exchanged.
func (s *Service) Receive(ctx context.Context, buyerID, dealID int64) (models.Deal, error) {
	var completed models.Deal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := s.dealForParty(ctx, tx, dealID, buyerID, roleBuyer)
		if err != nil {
			return err
		}
		if d.Status != models.DealShipped {
			return ErrDealNotShipped
		}

		w, err := tx.WalletForUpdate(ctx, d.SellerID)
		if err != nil {
			return fmt.Errorf("seller wallet: %w", err)
		}

		now := time.Now().UTC()
		w.Balance += dealValue
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		d.Status = models.DealCompleted
		d.EscrowHeld = 0
		d.BuyerReceivedAt = &now
		if err := tx.SaveDeal(ctx, d); err != nil {
			return err
		}

		b, err := tx.BookForUpdate(ctx, d.BookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		b.OwnerID = d.BuyerID
		b.Status = models.BookExchanged
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		completed = d
		return nil
	})
	if err != nil {
		return models.Deal{}, err
	}

	s.notify(ctx, notification.KindDealCompleted, completed.SellerID,
		fmt.Sprintf("Deal %d completed, 1 credit released to you", completed.ID))
	return completed, nil
}

// Mine returns the caller's deals as buyer, newest first.
func (s *Service) Mine(ctx context.Context, buyerID int64) ([]models.Deal, error) {
	return s.store.ListDealsByBuyer(ctx, buyerID)
}

// Incoming returns the caller's deals as seller, newest first.
func (s *Service) Incoming(ctx context.Context, sellerID int64) ([]models.Deal, error) {
	return s.store.ListDealsBySeller(ctx, sellerID)
}

// ForUser returns deals where the user is either party, newest first.
func (s *Service) ForUser(ctx context.Context, userID int64) ([]models.Deal, error) {
	return s.store.ListDealsByUser(ctx, userID)
}

type party int

const (
	roleBuyer party = iota
	roleSeller
)

// dealForParty locks the deal row and checks the caller is the required side.
func (s *Service) dealForParty(ctx context.Context, tx store.Tx, dealID, callerID int64, role party) (models.Deal, error) {
	d, err := tx.DealForUpdate(ctx, dealID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Deal{}, ErrDealNotFound
		}
		return models.Deal{}, err
	}
	switch role {
	case roleBuyer:
		if d.BuyerID != callerID {
			return models.Deal{}, ErrForbidden
		}
	case roleSeller:
		if d.SellerID != callerID {
			return models.Deal{}, ErrForbidden
		}
	}
	return d, nil
}

func (s *Service) notify(ctx context.Context, kind string, userID int64, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, UserID: userID, Body: body})
}

// fallbackTrackingNumber mirrors the mock carrier format: MOCK plus the last
// eight digits of the millisecond clock.
func fallbackTrackingNumber() string {
	ms := time.Now().UnixMilli() % 100_000_000
	return fmt.Sprintf("MOCK%08d", ms)
}
