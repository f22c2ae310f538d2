package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/bookswap/bookswap/internal/models"
	"github.com/bookswap/bookswap/internal/store"
	"github.com/bookswap/bookswap/internal/wallet"
)

func newTestService() (*Service, *wallet.Service) {
	st := store.NewMemory()
	return NewService(NewMemoryRepository(st)), wallet.NewService(st)
}

func TestRegisterProvisionsWallet(t *testing.T) {
	svc, wallets := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{
		Email:       "Reader@Example.com",
		Password:    "correct horse",
		DisplayName: "  Reader  ",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "reader@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.DisplayName != "Reader" || user.Role != roleUser {
		t.Fatalf("unexpected user: %+v", user)
	}

	w, err := wallets.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Balance != wallet.InitialCredit {
		t.Fatalf("expected starting credit %d, got %d", wallet.InitialCredit, w.Balance)
	}
}

func TestRegisterRollsBackUserWhenWalletFails(t *testing.T) {
	st := store.NewMemory()
	repo := NewMemoryRepository(st)
	svc := NewService(repo)
	ctx := context.Background()

	// Occupy the wallet slot the first registration would claim, forcing the
	// wallet insert to fail mid-registration.
	if err := st.CreateWallet(ctx, models.Wallet{UserID: 1, Balance: 5}); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	creds := Credentials{Email: "bob@example.com", Password: "long enough"}
	if _, err := svc.Register(ctx, creds); err == nil {
		t.Fatal("expected registration to fail")
	}

	// The failed attempt must leave nothing behind: no user row, and the
	// email stays free for a retry.
	if _, err := repo.FindByEmail(ctx, "bob@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no user after failed registration, got %v", err)
	}
	if _, err := svc.Register(ctx, creds); errors.Is(err, ErrEmailTaken) {
		t.Fatal("retry must not be blocked by ErrEmailTaken")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "not-an-email", Password: "long enough"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "short"}); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if _, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "long enough"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Email: "A@B.com", Password: "long enough"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterDefaultDisplayName(t *testing.T) {
	svc, _ := newTestService()

	user, err := svc.Register(context.Background(), Credentials{Email: "swapper@example.com", Password: "long enough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.DisplayName != "swapper" {
		t.Fatalf("expected local part as default name, got %q", user.DisplayName)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "long enough"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Authenticate(ctx, "a@b.com", "long enough")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "a@b.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.Authenticate(ctx, "a@b.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "missing@b.com", "long enough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email must not be distinguishable, got %v", err)
	}
}

func TestRename(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "long enough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	profile, err := svc.Rename(ctx, user.ID, "  New Name ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if profile.DisplayName != "New Name" {
		t.Fatalf("expected trimmed name, got %q", profile.DisplayName)
	}

	if _, err := svc.Rename(ctx, user.ID, "   "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := svc.Rename(ctx, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
