package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountCols = `id, email, pwd_hash, metadata, created_at`

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	md, err := encodeMetadata(a.Metadata)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO accounts (id, email, pwd_hash, metadata)
VALUES ($1, $2, $3, $4)`
	_, err = r.db.Pool.Exec(ctx, q, a.ID, a.Email, a.PwdHash, md)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE id=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects an account by login handle.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE email=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, email))
}

// MergeMetadata sets the given keys on the account metadata and returns the account.
func (r *AccountRepo) MergeMetadata(ctx context.Context, id uuid.UUID, md map[string]string) (*model.Account, error) {
	patch, err := encodeMetadata(md)
	if err != nil {
		return nil, err
	}
	const q = `
UPDATE accounts SET metadata = metadata || $2::jsonb
WHERE id=$1
RETURNING ` + accountCols
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id, patch))
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a  model.Account
		md []byte
	)
	if err := row.Scan(&a.ID, &a.Email, &a.PwdHash, &md, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	a.Metadata = map[string]string{}
	if len(md) > 0 {
		if err := json.Unmarshal(md, &a.Metadata); err != nil {
			return nil, fmt.Errorf("account metadata: %w", err)
		}
	}
	return &a, nil
}

func encodeMetadata(md map[string]string) ([]byte, error) {
	if md == nil {
		md = map[string]string{}
	}
	return json.Marshal(md)
}
