// Package remote is the client side of the sync backend: sessions and row access.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
)

// Backend is the remote service the sync engine talks to. Implementations keep the
// current session; row calls run as the signed-in account.
type Backend interface {
	// CurrentUser returns the signed-in account, or nil when there is no valid session.
	CurrentUser(ctx context.Context) (*model.User, error)
	SignIn(ctx context.Context, email, password string) (model.Session, error)
	SignUp(ctx context.Context, email, password string, md map[string]string) (model.Session, error)
	// UpdateMetadata merges md into the signed-in account's metadata.
	UpdateMetadata(ctx context.Context, md map[string]string) (model.User, error)
	SignOut(ctx context.Context) error

	// Select returns the row or nil when absent.
	Select(ctx context.Context, userUUID string, dt model.DataType) (*model.Row, error)
	Insert(ctx context.Context, row model.Row) (model.Row, error)
	// Update replaces the row; a non-zero base makes it conditional (errs.ErrVersionConflict).
	Update(ctx context.Context, row model.Row, base time.Time) (model.Row, error)
	// Delete removes one row, or every row of userUUID when dt is empty.
	Delete(ctx context.Context, userUUID string, dt model.DataType) (int64, error)
	// Count returns the backend's row count; used as a connection test.
	Count(ctx context.Context) (int64, error)
}

// Disabled is the backend used when no URL/key is configured.
type Disabled struct{}

var _ Backend = Disabled{}

func (Disabled) CurrentUser(context.Context) (*model.User, error) { return nil, errs.ErrNotConfigured }
func (Disabled) SignIn(context.Context, string, string) (model.Session, error) {
	return model.Session{}, errs.ErrNotConfigured
}
func (Disabled) SignUp(context.Context, string, string, map[string]string) (model.Session, error) {
	return model.Session{}, errs.ErrNotConfigured
}
func (Disabled) UpdateMetadata(context.Context, map[string]string) (model.User, error) {
	return model.User{}, errs.ErrNotConfigured
}
func (Disabled) SignOut(context.Context) error { return errs.ErrNotConfigured }
func (Disabled) Select(context.Context, string, model.DataType) (*model.Row, error) {
	return nil, errs.ErrNotConfigured
}
func (Disabled) Insert(context.Context, model.Row) (model.Row, error) {
	return model.Row{}, errs.ErrNotConfigured
}
func (Disabled) Update(context.Context, model.Row, time.Time) (model.Row, error) {
	return model.Row{}, errs.ErrNotConfigured
}
func (Disabled) Delete(context.Context, string, model.DataType) (int64, error) {
	return 0, errs.ErrNotConfigured
}
func (Disabled) Count(context.Context) (int64, error) { return 0, errs.ErrNotConfigured }

// Upsert inserts row when absent and otherwise updates it conditionally on base.
// An insert that finds the row already created reports errs.ErrVersionConflict, so
// the caller refetches and merges instead of overwriting the other writer.
func Upsert(ctx context.Context, b Backend, row model.Row, exists bool, base time.Time) (model.Row, error) {
	if exists {
		return b.Update(ctx, row, base)
	}
	out, err := b.Insert(ctx, row)
	if isAlreadyExists(err) {
		return model.Row{}, fmt.Errorf("insert %s: %w", row.DataType, errs.ErrVersionConflict)
	}
	return out, err
}
