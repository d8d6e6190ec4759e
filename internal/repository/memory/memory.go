// Package memory provides in-process repositories for development servers and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// Accounts is a map-backed AccountRepository.
type Accounts struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*model.Account
}

var _ repository.AccountRepository = (*Accounts)(nil)

// NewAccounts returns an empty account store.
func NewAccounts() *Accounts { return &Accounts{byID: map[uuid.UUID]*model.Account{}} }

func clone(a *model.Account) *model.Account {
	c := *a
	c.Metadata = make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (s *Accounts) Create(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.byID {
		if cur.Email == a.Email {
			return errs.ErrAlreadyExists
		}
	}
	if _, ok := s.byID[a.ID]; ok {
		return errs.ErrAlreadyExists
	}
	s.byID[a.ID] = clone(a)
	return nil
}

func (s *Accounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return clone(a), nil
}

func (s *Accounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byID {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *Accounts) MergeMetadata(_ context.Context, id uuid.UUID, md map[string]string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if a.Metadata == nil {
		a.Metadata = map[string]string{}
	}
	for k, v := range md {
		a.Metadata[k] = v
	}
	return clone(a), nil
}

type rowKey struct {
	user string
	dt   model.DataType
}

// Rows is a map-backed RowRepository. Successive updated_at values of a row are at
// least one millisecond apart, like the PostgreSQL store.
type Rows struct {
	mu   sync.Mutex
	rows map[rowKey]model.Row
	now  func() time.Time
}

var _ repository.RowRepository = (*Rows)(nil)

// NewRows returns an empty row store stamped by the wall clock.
func NewRows() *Rows { return NewRowsWithClock(time.Now) }

// NewRowsWithClock returns an empty row store stamped by now.
func NewRowsWithClock(now func() time.Time) *Rows {
	return &Rows{rows: map[rowKey]model.Row{}, now: now}
}

func (s *Rows) stamp(prev time.Time) time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !prev.IsZero() && t.Sub(prev) < time.Millisecond {
		t = prev.Add(time.Millisecond)
	}
	return t
}

func copyRow(r model.Row) model.Row {
	r.Data = append([]byte(nil), r.Data...)
	return r
}

func (s *Rows) Get(_ context.Context, userUUID string, dt model.DataType) (*model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[rowKey{userUUID, dt}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := copyRow(r)
	return &out, nil
}

func (s *Rows) Insert(_ context.Context, row model.Row) (model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rowKey{row.UserUUID, row.DataType}
	if _, ok := s.rows[k]; ok {
		return model.Row{}, errs.ErrAlreadyExists
	}
	row = copyRow(row)
	row.UpdatedAt = s.stamp(time.Time{})
	s.rows[k] = row
	return copyRow(row), nil
}

func (s *Rows) Update(_ context.Context, row model.Row, base time.Time) (model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rowKey{row.UserUUID, row.DataType}
	cur, ok := s.rows[k]
	if !ok {
		return model.Row{}, errs.ErrNotFound
	}
	if !base.IsZero() && !base.Equal(cur.UpdatedAt) {
		return model.Row{}, errs.ErrVersionConflict
	}
	row = copyRow(row)
	row.UpdatedAt = s.stamp(cur.UpdatedAt)
	s.rows[k] = row
	return copyRow(row), nil
}

func (s *Rows) Delete(_ context.Context, userUUID string, dt model.DataType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.rows {
		if k.user == userUUID && (dt == "" || k.dt == dt) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *Rows) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}
