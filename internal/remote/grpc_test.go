package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"github.com/and161185/noteloom/internal/remote/remotetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGRPC_SessionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := remotetest.Start(t)
	c := srv.Client(t)

	u, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, u)

	_, err = c.SignIn(ctx, "bob@noteloom.local", "hunter22")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	sess, err := c.SignUp(ctx, "bob@noteloom.local", "hunter22", map[string]string{model.MetaUsername: "bob"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.Equal(t, sess.AccessToken, c.Session().AccessToken)

	u, err = c.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "bob@noteloom.local", u.Email)

	got, err := c.UpdateMetadata(ctx, map[string]string{model.MetaUserUUID: "u-bob"})
	require.NoError(t, err)
	require.Equal(t, "u-bob", got.Metadata[model.MetaUserUUID])
	require.Equal(t, "bob", got.Metadata[model.MetaUsername])
	require.Equal(t, "u-bob", c.Session().User.Metadata[model.MetaUserUUID])

	require.NoError(t, c.SignOut(ctx))
	u, err = c.CurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, u)

	_, err = c.SignIn(ctx, "bob@noteloom.local", "hunter22")
	require.NoError(t, err)
}

func TestGRPC_Rows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := remotetest.Start(t)
	c := srv.Client(t)

	_, err := c.SignUp(ctx, "a@noteloom.local", "secret1", map[string]string{model.MetaUserUUID: "u-a"})
	require.NoError(t, err)

	row, err := c.Select(ctx, "u-a", model.DataSettings)
	require.NoError(t, err)
	require.Nil(t, row, "absent row is nil, nil")

	_, err = c.Select(ctx, "u-other", model.DataSettings)
	require.ErrorIs(t, err, errs.ErrForbidden)

	ins, err := remote.Upsert(ctx, c, model.Row{UserUUID: "u-a", DataType: model.DataSettings, Data: json.RawMessage(`{"theme":"dark"}`)}, false, time.Time{})
	require.NoError(t, err)
	require.False(t, ins.UpdatedAt.IsZero())

	// another writer created the row first: no overwrite
	_, err = remote.Upsert(ctx, c, model.Row{UserUUID: "u-a", DataType: model.DataSettings, Data: json.RawMessage(`{"theme":"blind"}`)}, false, time.Time{})
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	upd, err := remote.Upsert(ctx, c, model.Row{UserUUID: "u-a", DataType: model.DataSettings, Data: json.RawMessage(`{"theme":"light"}`)}, true, ins.UpdatedAt)
	require.NoError(t, err)
	require.True(t, upd.UpdatedAt.After(ins.UpdatedAt))

	_, err = c.Update(ctx, model.Row{UserUUID: "u-a", DataType: model.DataSettings, Data: json.RawMessage(`{}`)}, ins.UpdatedAt)
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	row, err = c.Select(ctx, "u-a", model.DataSettings)
	require.NoError(t, err)
	require.JSONEq(t, `{"theme":"light"}`, string(row.Data))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = c.Delete(ctx, "u-a", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestGRPC_Unavailable(t *testing.T) {
	t.Parallel()
	srv := remotetest.Start(t)
	c := srv.Client(t)
	srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Count(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrUnavailable), "got %v", err)
}

func TestDial_BadURL(t *testing.T) {
	t.Parallel()
	log := zaptest.NewLogger(t)
	for _, u := range []string{"", "localhost:8443", "http://localhost:8443", "grpc://"} {
		_, err := remote.Dial(u, "k", remote.DialOptions{}, log)
		require.ErrorIs(t, err, errs.ErrInvalid, u)
	}
	g, err := remote.Dial("grpc://localhost:8443", "k", remote.DialOptions{}, log)
	require.NoError(t, err)
	require.NoError(t, g.Close())
}

func TestDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var b remote.Backend = remote.Disabled{}

	_, err := b.CurrentUser(ctx)
	require.ErrorIs(t, err, errs.ErrNotConfigured)
	_, err = b.SignIn(ctx, "a", "b")
	require.ErrorIs(t, err, errs.ErrNotConfigured)
	_, err = b.Select(ctx, "u", model.DataProfiles)
	require.ErrorIs(t, err, errs.ErrNotConfigured)
	_, err = remote.Upsert(ctx, b, model.Row{}, true, time.Time{})
	require.ErrorIs(t, err, errs.ErrNotConfigured)
	_, err = b.Count(ctx)
	require.ErrorIs(t, err, errs.ErrNotConfigured)
}
