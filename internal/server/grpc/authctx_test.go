package grpcserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestAccountIDFrom(t *testing.T) {
	t.Parallel()

	_, ok := AccountIDFrom(context.Background())
	require.False(t, ok)

	_, ok = AccountIDFrom(WithAccountID(context.Background(), uuid.Nil))
	require.False(t, ok, "nil id is not an account")

	want := uuid.Must(uuid.NewV4())
	got, ok := AccountIDFrom(WithAccountID(context.Background(), want))
	require.True(t, ok)
	require.Equal(t, want, got)
}
