package service

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/limiter"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type fakeAccounts struct {
	mu      sync.Mutex
	byEmail map[string]*model.Account

	createErr error
	getErr    error
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func newFakeAccounts() *fakeAccounts { return &fakeAccounts{byEmail: map[string]*model.Account{}} }

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	c.Metadata = make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (f *fakeAccounts) Create(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[a.Email]; exists {
		return errs.ErrAlreadyExists
	}
	f.byEmail[a.Email] = cloneAccount(a)
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, a := range f.byEmail {
		if a.ID == id {
			return cloneAccount(a), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (f *fakeAccounts) MergeMetadata(_ context.Context, id uuid.UUID, md map[string]string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byEmail {
		if a.ID == id {
			for k, v := range md {
				a.Metadata[k] = v
			}
			return cloneAccount(a), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeAccounts) add(email, userUUID string) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	f.byEmail[email] = &model.Account{ID: id, Email: email, Metadata: map[string]string{model.MetaUserUUID: userUUID}}
	return id
}

type rowKey struct {
	user string
	dt   model.DataType
}

type fakeRows struct {
	mu    sync.Mutex
	rows  map[rowKey]model.Row
	clock time.Time
	err   error
}

var _ repository.RowRepository = (*fakeRows)(nil)

func newFakeRows() *fakeRows {
	return &fakeRows{rows: map[rowKey]model.Row{}, clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeRows) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRows) Get(_ context.Context, userUUID string, dt model.DataType) (*model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[rowKey{userUUID, dt}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRows) Insert(_ context.Context, row model.Row) (model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Row{}, f.err
	}
	k := rowKey{row.UserUUID, row.DataType}
	if _, ok := f.rows[k]; ok {
		return model.Row{}, errs.ErrAlreadyExists
	}
	row.UpdatedAt = f.tick()
	f.rows[k] = row
	return row, nil
}

func (f *fakeRows) Update(_ context.Context, row model.Row, base time.Time) (model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Row{}, f.err
	}
	k := rowKey{row.UserUUID, row.DataType}
	cur, ok := f.rows[k]
	if !ok {
		return model.Row{}, errs.ErrNotFound
	}
	if !base.IsZero() && !base.Equal(cur.UpdatedAt) {
		return model.Row{}, errs.ErrVersionConflict
	}
	row.UpdatedAt = f.tick()
	f.rows[k] = row
	return row, nil
}

func (f *fakeRows) Delete(_ context.Context, userUUID string, dt model.DataType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.rows {
		if k.user == userUUID && (dt == "" || k.dt == dt) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRows) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), f.err
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}
