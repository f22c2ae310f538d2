package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Repository persists users. Create also opens the user's wallet seeded with
// initialCredit: both rows commit or neither does, so a failed registration
// never leaves a walletless account behind.
type Repository interface {
	Create(ctx context.Context, user User, initialCredit int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	UpdateDisplayName(ctx context.Context, id int64, displayName string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the user and their wallet in one transaction and returns
// the user with the assigned id.
func (r *PostgresRepository) Create(ctx context.Context, user User, initialCredit int64) (User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `INSERT INTO users (email, password_hash, display_name, role, created_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		user.Email, string(user.PasswordHash), user.DisplayName, user.Role, user.CreatedAt.UTC())
	if err := row.Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, $3)`,
		user.ID, initialCredit, user.CreatedAt.UTC()); err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return user, nil
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, email, password_hash, display_name, role, created_at
        FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, email, password_hash, display_name, role, created_at
        FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateDisplayName stores a new display name.
func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, id int64, displayName string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET display_name = $1 WHERE id = $2`, displayName, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		hash      string
		createdAt time.Time
	)
	if err := row.Scan(&user.ID, &user.Email, &hash, &user.DisplayName, &user.Role, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.PasswordHash = []byte(hash)
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
