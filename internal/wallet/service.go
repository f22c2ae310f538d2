package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/bookswap/bookswap/internal/models"
	"github.com/bookswap/bookswap/internal/store"
)

// Service exposes wallet reads and provisioning. Balance mutations happen
// only inside deal transitions, never here.
type Service struct {
	store store.Store
}

// NewService builds a wallet service instance.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Provision creates the user's wallet with the initial credit. Registration
// seeds wallets through the identity repository; this is the seeding path
// for environments that create users out of band.
func (s *Service) Provision(ctx context.Context, userID int64) (models.Wallet, error) {
	w := models.Wallet{
		UserID:    userID,
		Balance:   InitialCredit,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateWallet(ctx, w); err != nil {
		return models.Wallet{}, err
	}
	return w, nil
}

// Get returns the user's wallet.
func (s *Service) Get(ctx context.Context, userID int64) (models.Wallet, error) {
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Wallet{}, ErrNotFound
		}
		return models.Wallet{}, err
	}
	return w, nil
}
