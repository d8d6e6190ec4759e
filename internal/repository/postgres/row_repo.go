package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/jackc/pgx/v5"
)

// RowRepo implements RowRepository using PostgreSQL.
type RowRepo struct{ db *DB }

// NewRowRepo constructs a row repository.
func NewRowRepo(db *DB) *RowRepo { return &RowRepo{db: db} }

// Get returns the row for (userUUID, dt).
func (r *RowRepo) Get(ctx context.Context, userUUID string, dt model.DataType) (*model.Row, error) {
	const q = `
SELECT user_uuid, data_type, data, updated_at
FROM user_data WHERE user_uuid=$1 AND data_type=$2`
	var (
		row  model.Row
		typ  string
		data []byte
	)
	err := r.db.Pool.QueryRow(ctx, q, userUUID, string(dt)).Scan(&row.UserUUID, &typ, &data, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	row.DataType = model.DataType(typ)
	row.Data = data
	return &row, nil
}

// Insert creates the row; the database assigns updated_at.
func (r *RowRepo) Insert(ctx context.Context, row model.Row) (model.Row, error) {
	const q = `
INSERT INTO user_data (user_uuid, data_type, data, updated_at)
VALUES ($1, $2, $3, now())
RETURNING updated_at`
	var at time.Time
	err := r.db.Pool.QueryRow(ctx, q, row.UserUUID, string(row.DataType), []byte(row.Data)).Scan(&at)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Row{}, errs.ErrAlreadyExists
		}
		return model.Row{}, err
	}
	row.UpdatedAt = at
	return row, nil
}

// Update replaces the row data under a row lock. updated_at advances by at least 1ms
// per write so millisecond comparisons on clients observe every write.
func (r *RowRepo) Update(ctx context.Context, row model.Row, base time.Time) (model.Row, error) {
	const sel = `SELECT updated_at FROM user_data WHERE user_uuid=$1 AND data_type=$2 FOR UPDATE`
	const upd = `
UPDATE user_data
SET data=$3, updated_at=GREATEST(now(), updated_at + interval '1 millisecond')
WHERE user_uuid=$1 AND data_type=$2
RETURNING updated_at`

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var cur time.Time
		if err := tx.QueryRow(ctx, sel, row.UserUUID, string(row.DataType)).Scan(&cur); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if !base.IsZero() && !cur.Equal(base) {
			return errs.ErrVersionConflict
		}
		var at time.Time
		if err := tx.QueryRow(ctx, upd, row.UserUUID, string(row.DataType), []byte(row.Data)).Scan(&at); err != nil {
			return err
		}
		row.UpdatedAt = at
		return nil
	})
	if err != nil {
		return model.Row{}, err
	}
	return row, nil
}

// Delete removes one row, or all rows of the user when dt is empty.
func (r *RowRepo) Delete(ctx context.Context, userUUID string, dt model.DataType) (int64, error) {
	var (
		q    = `DELETE FROM user_data WHERE user_uuid=$1`
		args = []any{userUUID}
	)
	if dt != "" {
		q += ` AND data_type=$2`
		args = append(args, string(dt))
	}
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Count returns the total number of rows.
func (r *RowRepo) Count(ctx context.Context) (int64, error) {
	const q = `SELECT count(*) FROM user_data`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
