package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bookswap/bookswap/internal/wallet"
)

const (
	roleUser  = "user"
	roleAdmin = "admin"

	minPasswordLen = 8
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNameRequired       = errors.New("display name is required")
)

// Service manages identity lifecycle. Registration provisions the user's
// wallet with the starting credit.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new user with a hashed password and opens their wallet.
// The repository commits both rows atomically, so no user can exist without
// a funded wallet.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, ErrInvalidEmail
	}
	if len(creds.Password) < minPasswordLen {
		return User{}, ErrPasswordTooShort
	}

	displayName := strings.TrimSpace(creds.DisplayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.Create(ctx, User{
		Email:        email,
		DisplayName:  displayName,
		Role:         roleUser,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}, wallet.InitialCredit)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the public view of a user.
func (s *Service) Profile(ctx context.Context, id int64) (Profile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return user.PublicProfile(), nil
}

// Rename updates the caller's display name.
func (s *Service) Rename(ctx context.Context, id int64, displayName string) (Profile, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Profile{}, ErrNameRequired
	}
	if err := s.repo.UpdateDisplayName(ctx, id, displayName); err != nil {
		return Profile{}, err
	}
	return s.Profile(ctx, id)
}
