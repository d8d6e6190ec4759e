package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// RowService exposes synchronized documents to authenticated accounts.
type RowService interface {
	// Select returns the row or errs.ErrNotFound.
	Select(ctx context.Context, accountID uuid.UUID, userUUID string, dt model.DataType) (*model.Row, error)
	// Insert creates a row; errs.ErrAlreadyExists when present.
	Insert(ctx context.Context, accountID uuid.UUID, row model.Row) (model.Row, error)
	// Update replaces a row; a non-zero base enables the optimistic check.
	Update(ctx context.Context, accountID uuid.UUID, row model.Row, base time.Time) (model.Row, error)
	// Delete removes one row, or all rows of userUUID when dt is empty.
	Delete(ctx context.Context, accountID uuid.UUID, userUUID string, dt model.DataType) (int64, error)
	// Count returns the total number of rows.
	Count(ctx context.Context) (int64, error)
}

type RowServiceImpl struct {
	rows     repository.RowRepository
	accounts repository.AccountRepository
	maxBytes int
}

// NewRowService constructs RowService. maxBytes limits a row payload; <=0 selects 4 MiB.
func NewRowService(rows repository.RowRepository, accounts repository.AccountRepository, maxBytes int) *RowServiceImpl {
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	return &RowServiceImpl{rows: rows, accounts: accounts, maxBytes: maxBytes}
}

// authorize checks that userUUID is the one recorded on the caller's account.
func (s *RowServiceImpl) authorize(ctx context.Context, accountID uuid.UUID, userUUID string) error {
	if accountID == uuid.Nil {
		return errs.ErrUnauthorized
	}
	if userUUID == "" {
		return fmt.Errorf("%w: empty user_uuid", errs.ErrInvalid)
	}
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Metadata[model.MetaUserUUID] != userUUID {
		return errs.ErrForbidden
	}
	return nil
}

func (s *RowServiceImpl) validate(row model.Row) error {
	switch {
	case row.DataType == "":
		return fmt.Errorf("%w: empty data_type", errs.ErrInvalid)
	case len(row.Data) == 0 || !json.Valid(row.Data):
		return fmt.Errorf("%w: data is not valid JSON", errs.ErrInvalid)
	case len(row.Data) > s.maxBytes:
		return fmt.Errorf("%w: data too large (%d > %d)", errs.ErrInvalid, len(row.Data), s.maxBytes)
	}
	return nil
}

func (s *RowServiceImpl) Select(ctx context.Context, accountID uuid.UUID, userUUID string, dt model.DataType) (*model.Row, error) {
	if dt == "" {
		return nil, fmt.Errorf("%w: empty data_type", errs.ErrInvalid)
	}
	if err := s.authorize(ctx, accountID, userUUID); err != nil {
		return nil, err
	}
	return s.rows.Get(ctx, userUUID, dt)
}

func (s *RowServiceImpl) Insert(ctx context.Context, accountID uuid.UUID, row model.Row) (model.Row, error) {
	if err := s.validate(row); err != nil {
		return model.Row{}, err
	}
	if err := s.authorize(ctx, accountID, row.UserUUID); err != nil {
		return model.Row{}, err
	}
	return s.rows.Insert(ctx, row)
}

func (s *RowServiceImpl) Update(ctx context.Context, accountID uuid.UUID, row model.Row, base time.Time) (model.Row, error) {
	if err := s.validate(row); err != nil {
		return model.Row{}, err
	}
	if err := s.authorize(ctx, accountID, row.UserUUID); err != nil {
		return model.Row{}, err
	}
	return s.rows.Update(ctx, row, base)
}

func (s *RowServiceImpl) Delete(ctx context.Context, accountID uuid.UUID, userUUID string, dt model.DataType) (int64, error) {
	if err := s.authorize(ctx, accountID, userUUID); err != nil {
		return 0, err
	}
	return s.rows.Delete(ctx, userUUID, dt)
}

func (s *RowServiceImpl) Count(ctx context.Context) (int64, error) {
	return s.rows.Count(ctx)
}
