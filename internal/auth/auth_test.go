package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/noteloom/internal/auth"
	"github.com/and161185/noteloom/internal/identity"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"github.com/and161185/noteloom/internal/remote/remotetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAuthenticate_SignUpThenSignIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := remotetest.Start(t)
	id := identity.Derive("alice", "secret1")

	a := auth.New(srv.Client(t), zaptest.NewLogger(t))
	require.True(t, a.Authenticate(ctx, "alice", "secret1", id), "first run signs up")
	require.True(t, a.Authenticate(ctx, "alice", "secret1", id), "idempotent with an active session")

	acc, err := srv.Accounts.GetByEmail(ctx, auth.Handle("alice"))
	require.NoError(t, err)
	require.Equal(t, id, acc.Metadata[model.MetaUserUUID])
	require.Equal(t, "alice", acc.Metadata[model.MetaUsername])

	other := auth.New(srv.Client(t), zaptest.NewLogger(t))
	require.True(t, other.Authenticate(ctx, "alice", "secret1", id), "second device signs in")

	fresh := auth.New(srv.Client(t), zaptest.NewLogger(t))
	require.False(t, fresh.Authenticate(ctx, "alice", "wrong-secret", id), "wrong secret: sign in and sign up both fail")
}

func TestAuthenticate_RepairsUserUUID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := remotetest.Start(t)
	c := srv.Client(t)

	_, err := c.SignUp(ctx, auth.Handle("bob"), "hunter22", map[string]string{model.MetaUserUUID: "stale"})
	require.NoError(t, err)

	id := identity.Derive("bob", "hunter22")
	require.True(t, auth.New(c, nil).Authenticate(ctx, "bob", "hunter22", id))

	acc, err := srv.Accounts.GetByEmail(ctx, auth.Handle("bob"))
	require.NoError(t, err)
	require.Equal(t, id, acc.Metadata[model.MetaUserUUID])
}

func TestAuthenticate_Rejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	require.False(t, auth.New(remote.Disabled{}, nil).Authenticate(ctx, "alice", "secret1", "id"), "unconfigured")

	srv := remotetest.Start(t)
	require.False(t, auth.New(srv.Client(t), nil).Authenticate(ctx, "alice", "short", "id"), "secret too short")
}

type brokenBackend struct {
	remote.Disabled
	current *model.User
	err     error
	calls   []string
}

func (b *brokenBackend) CurrentUser(context.Context) (*model.User, error) {
	b.calls = append(b.calls, "current")
	return b.current, b.err
}

func (b *brokenBackend) UpdateMetadata(context.Context, map[string]string) (model.User, error) {
	b.calls = append(b.calls, "update")
	return model.User{}, errors.New("write failed")
}

func TestAuthenticate_BackendFailuresReturnFalse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := &brokenBackend{err: errors.New("transport down")}
	require.False(t, auth.New(b, zaptest.NewLogger(t)).Authenticate(ctx, "alice", "secret1", "id"))
	require.Equal(t, []string{"current"}, b.calls)

	b = &brokenBackend{current: &model.User{Email: "ALICE@noteloom.local", Metadata: map[string]string{}}}
	require.False(t, auth.New(b, zaptest.NewLogger(t)).Authenticate(ctx, "alice", "secret1", "id"))
	require.Equal(t, []string{"current", "update"}, b.calls)
}
