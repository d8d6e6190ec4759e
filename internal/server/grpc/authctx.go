package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type accountKey struct{}

// WithAccountID returns ctx carrying the authenticated account id.
func WithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey{}, id)
}

// AccountIDFrom reports the account id placed by AuthUnary.
func AccountIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
