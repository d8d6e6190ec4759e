package repository

import (
	"context"
	"time"

	"github.com/and161185/noteloom/internal/model"
)

// RowRepository provides access to synchronized documents, one per (user_uuid, data_type).
type RowRepository interface {
	// Get returns the row or errs.ErrNotFound.
	Get(ctx context.Context, userUUID string, dt model.DataType) (*model.Row, error)

	// Insert creates the row; errs.ErrAlreadyExists when present. updated_at is set by the store.
	Insert(ctx context.Context, row model.Row) (model.Row, error)

	// Update replaces data and bumps updated_at. A non-zero base must match the current
	// updated_at (errs.ErrVersionConflict otherwise); errs.ErrNotFound when absent.
	Update(ctx context.Context, row model.Row, base time.Time) (model.Row, error)

	// Delete removes the row of dt, or every row of userUUID when dt is empty.
	Delete(ctx context.Context, userUUID string, dt model.DataType) (int64, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int64, error)
}
