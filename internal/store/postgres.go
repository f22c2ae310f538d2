package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookswap/bookswap/internal/models"
)

// Ensure Postgres satisfies the Store interface at compile time.
var _ Store = (*Postgres)(nil)

// Postgres stores books, deals and wallets in PostgreSQL. Atomic units map to
// database transactions; row locks (SELECT ... FOR UPDATE) serialize
// concurrent transitions touching the same rows.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres builds a store backed by the provided pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate applies the schema. The partial unique index on active deals is
// defense-in-depth: the create transition already checks inside its
// transaction, the index makes a second active deal per book impossible even
// for out-of-band writes.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS wallets (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			author TEXT,
			description TEXT,
			isbn TEXT,
			category TEXT,
			condition TEXT,
			cover_url TEXT,
			status TEXT NOT NULL DEFAULT 'available',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS deals (
			id BIGSERIAL PRIMARY KEY,
			book_id BIGINT NOT NULL REFERENCES books(id),
			seller_id BIGINT NOT NULL REFERENCES users(id),
			buyer_id BIGINT NOT NULL REFERENCES users(id),
			status TEXT NOT NULL,
			escrow_held BIGINT NOT NULL DEFAULT 0,
			pickup_point_id TEXT,
			tracking_number TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			accepted_at TIMESTAMPTZ,
			seller_shipped_at TIMESTAMPTZ,
			buyer_received_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS books_owner_idx ON books (owner_id);`,
		`CREATE INDEX IF NOT EXISTS deals_buyer_idx ON deals (buyer_id);`,
		`CREATE INDEX IF NOT EXISTS deals_seller_idx ON deals (seller_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS deals_active_book_idx ON deals (book_id)
			WHERE status IN ('pending', 'accepted', 'pickup_selected', 'shipped');`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// WithinTx runs fn inside one database transaction. Row locks taken by the Tx
// view are held until commit or rollback.
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const bookColumns = `id, owner_id, title,
	COALESCE(author, ''), COALESCE(description, ''), COALESCE(isbn, ''),
	COALESCE(category, ''), COALESCE(condition, ''), COALESCE(cover_url, ''),
	status, created_at`

const dealColumns = `id, book_id, seller_id, buyer_id, status, escrow_held,
	COALESCE(pickup_point_id, ''), COALESCE(tracking_number, ''),
	created_at, accepted_at, seller_shipped_at, buyer_received_at`

// CreateBook inserts a book row and returns it with the assigned identifier.
func (p *Postgres) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	row := p.pool.QueryRow(ctx, `INSERT INTO books
		(owner_id, title, author, description, isbn, category, condition, cover_url, status, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10)
		RETURNING `+bookColumns,
		b.OwnerID, b.Title, b.Author, b.Description, b.ISBN, b.Category, b.Condition, b.CoverURL,
		b.Status, b.CreatedAt.UTC())
	return scanBook(row)
}

// GetBook fetches a book without locking it.
func (p *Postgres) GetBook(ctx context.Context, id int64) (models.Book, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	return scanBook(row)
}

// ListBooks returns all books ordered by creation time, newest first.
func (p *Postgres) ListBooks(ctx context.Context) ([]models.Book, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListBooksByOwner returns the owner's books, newest first.
func (p *Postgres) ListBooksByOwner(ctx context.Context, ownerID int64) ([]models.Book, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

// GetDeal fetches a deal without locking it.
func (p *Postgres) GetDeal(ctx context.Context, id int64) (models.Deal, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	return scanDeal(row)
}

// ListDealsByBuyer returns deals where the user is the buyer, newest first.
func (p *Postgres) ListDealsByBuyer(ctx context.Context, buyerID int64) ([]models.Deal, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE buyer_id = $1 ORDER BY created_at DESC, id DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeals(rows)
}

// ListDealsBySeller returns deals where the user is the seller, newest first.
func (p *Postgres) ListDealsBySeller(ctx context.Context, sellerID int64) ([]models.Deal, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE seller_id = $1 ORDER BY created_at DESC, id DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeals(rows)
}

// ListDealsByUser returns deals where the user is either party, newest first.
func (p *Postgres) ListDealsByUser(ctx context.Context, userID int64) ([]models.Deal, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeals(rows)
}

// CreateWallet inserts a wallet row.
func (p *Postgres) CreateWallet(ctx context.Context, w models.Wallet) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, $3)`,
		w.UserID, w.Balance, w.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// GetWallet fetches a wallet without locking it.
func (p *Postgres) GetWallet(ctx context.Context, userID int64) (models.Wallet, error) {
	row := p.pool.QueryRow(ctx, `SELECT user_id, balance, updated_at FROM wallets WHERE user_id = $1`, userID)
	var w models.Wallet
	if err := row.Scan(&w.UserID, &w.Balance, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Wallet{}, ErrNotFound
		}
		return models.Wallet{}, err
	}
	return w, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) BookForUpdate(ctx context.Context, id int64) (models.Book, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id)
	return scanBook(row)
}

func (t *pgTx) SaveBook(ctx context.Context, b models.Book) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE books SET
		owner_id = $2, title = $3, author = NULLIF($4, ''), description = NULLIF($5, ''),
		isbn = NULLIF($6, ''), category = NULLIF($7, ''), condition = NULLIF($8, ''),
		cover_url = NULLIF($9, ''), status = $10
		WHERE id = $1`,
		b.ID, b.OwnerID, b.Title, b.Author, b.Description, b.ISBN, b.Category, b.Condition, b.CoverURL, b.Status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteBook(ctx context.Context, id int64) error {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateDeal(ctx context.Context, d models.Deal) (models.Deal, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO deals
		(book_id, seller_id, buyer_id, status, escrow_held, pickup_point_id, tracking_number, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING `+dealColumns,
		d.BookID, d.SellerID, d.BuyerID, d.Status, d.EscrowHeld, d.PickupPointID, d.TrackingNumber, d.CreatedAt.UTC())
	return scanDeal(row)
}

func (t *pgTx) DealForUpdate(ctx context.Context, id int64) (models.Deal, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id)
	return scanDeal(row)
}

func (t *pgTx) SaveDeal(ctx context.Context, d models.Deal) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE deals SET
		status = $2, escrow_held = $3, pickup_point_id = NULLIF($4, ''), tracking_number = NULLIF($5, ''),
		accepted_at = $6, seller_shipped_at = $7, buyer_received_at = $8
		WHERE id = $1`,
		d.ID, d.Status, d.EscrowHeld, d.PickupPointID, d.TrackingNumber,
		d.AcceptedAt, d.SellerShippedAt, d.BuyerReceivedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) HasActiveDeal(ctx context.Context, bookID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM deals WHERE book_id = $1
		AND status IN ('pending', 'accepted', 'pickup_selected', 'shipped'))`, bookID).Scan(&exists)
	return exists, err
}

func (t *pgTx) WalletForUpdate(ctx context.Context, userID int64) (models.Wallet, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT user_id, balance, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	var w models.Wallet
	if err := row.Scan(&w.UserID, &w.Balance, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Wallet{}, ErrNotFound
		}
		return models.Wallet{}, err
	}
	return w, nil
}

func (t *pgTx) SaveWallet(ctx context.Context, w models.Wallet) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = $3 WHERE user_id = $1`,
		w.UserID, w.Balance, w.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBook(row pgx.Row) (models.Book, error) {
	var b models.Book
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.Description, &b.ISBN,
		&b.Category, &b.Condition, &b.CoverURL, &b.Status, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Book{}, ErrNotFound
		}
		return models.Book{}, err
	}
	return b, nil
}

func collectBooks(rows pgx.Rows) ([]models.Book, error) {
	var books []models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func scanDeal(row pgx.Row) (models.Deal, error) {
	var d models.Deal
	if err := row.Scan(&d.ID, &d.BookID, &d.SellerID, &d.BuyerID, &d.Status, &d.EscrowHeld,
		&d.PickupPointID, &d.TrackingNumber,
		&d.CreatedAt, &d.AcceptedAt, &d.SellerShippedAt, &d.BuyerReceivedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Deal{}, ErrNotFound
		}
		return models.Deal{}, err
	}
	return d, nil
}

func collectDeals(rows pgx.Rows) ([]models.Deal, error) {
	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}
