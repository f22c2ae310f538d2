package identity

import (
	"context"
	"sync"
	"time"

	"github.com/bookswap/bookswap/internal/models"
	"github.com/bookswap/bookswap/internal/store"
)

type memoryRepository struct {
	mu      sync.RWMutex
	users   map[int64]User
	nextID  int64
	wallets store.Store
}

// NewMemoryRepository builds an in-memory user store backed by the given
// store for wallet rows. For testing and credential-less environments.
func NewMemoryRepository(wallets store.Store) Repository {
	return &memoryRepository{users: make(map[int64]User), nextID: 1, wallets: wallets}
}

func (r *memoryRepository) Create(ctx context.Context, user User, initialCredit int64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return User{}, ErrEmailTaken
		}
	}
	user.ID = r.nextID

	// Seed the wallet before committing the user so a wallet failure leaves
	// no trace of the registration.
	if err := r.wallets.CreateWallet(ctx, models.Wallet{
		UserID:    user.ID,
		Balance:   initialCredit,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return User{}, err
	}

	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) UpdateDisplayName(_ context.Context, id int64, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.DisplayName = displayName
	r.users[id] = user
	return nil
}
