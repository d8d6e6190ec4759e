// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/noteloom/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository provides access to backend auth accounts.
type AccountRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByEmail loads an account by login handle.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// MergeMetadata sets the given metadata keys, keeping the others.
	MergeMetadata(ctx context.Context, id uuid.UUID, md map[string]string) (*model.Account, error)
}
