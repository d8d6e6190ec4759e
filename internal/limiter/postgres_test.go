package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePool struct {
	qrErr         error
	qrBlockedTill time.Time
	qrFailsRet    int

	lastExecSQL  string
	lastExecArgs []any
	execErr      error
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL = sql
	f.lastExecArgs = args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakePool) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT blocked_until"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}
			*(dest[0].(*time.Time)) = f.qrBlockedTill
			return nil
		}}
	case strings.Contains(sql, "RETURNING fail_count"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}
			*(dest[0].(*int)) = f.qrFailsRet
			return nil
		}}
	default:
		return fakeRow{scan: func(...any) error { return errors.New("unexpected query") }}
	}
}

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newPG(fp *fakePool, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	l := NewPGWithQuerier(fp, window, maxFails, blockFor)
	l.now = func() time.Time { return fixedNow }
	return l
}

func TestAllow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fp        *fakePool
		wantOK    bool
		wantRetry time.Duration
		wantErr   bool
	}{
		{name: "no row", fp: &fakePool{qrErr: pgx.ErrNoRows}, wantOK: true},
		{name: "blocked", fp: &fakePool{qrBlockedTill: fixedNow.Add(10 * time.Minute)}, wantRetry: 10 * time.Minute},
		{name: "block expired", fp: &fakePool{qrBlockedTill: fixedNow.Add(-time.Minute)}, wantOK: true},
		{name: "epoch", fp: &fakePool{qrBlockedTill: time.Unix(0, 0)}, wantOK: true},
		{name: "db error", fp: &fakePool{qrErr: errors.New("db boom")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := newPG(tt.fp, 15*time.Minute, 5, 15*time.Minute)
			ok, retry, err := l.Allow(context.Background(), "a@noteloom.local", []byte("h"))
			if tt.wantErr {
				require.Error(t, err)
				require.False(t, ok)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantRetry, retry)
		})
	}
}

func TestSuccess(t *testing.T) {
	t.Parallel()

	fp := &fakePool{}
	l := newPG(fp, 15*time.Minute, 5, 15*time.Minute)
	require.NoError(t, l.Success(context.Background(), "a@noteloom.local", []byte("h")))
	require.Contains(t, fp.lastExecSQL, "INSERT INTO signin_limiter")

	fp.execErr = errors.New("exec fail")
	require.Error(t, l.Success(context.Background(), "a@noteloom.local", []byte("h")))
}

func TestFailure_Increments_NoBlock(t *testing.T) {
	t.Parallel()

	fp := &fakePool{qrFailsRet: 2}
	l := newPG(fp, 5*time.Minute, 5, 15*time.Minute)

	blocked, dur, err := l.Failure(context.Background(), "a@noteloom.local", []byte("h"))
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, dur)
	require.Empty(t, fp.lastExecSQL)
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	t.Parallel()

	fp := &fakePool{qrFailsRet: 5}
	l := newPG(fp, 5*time.Minute, 5, 10*time.Minute)

	blocked, dur, err := l.Failure(context.Background(), "a@noteloom.local", []byte("h"))
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)
	require.Contains(t, fp.lastExecSQL, "UPDATE signin_limiter SET blocked_until")
	require.Equal(t, fixedNow.Add(10*time.Minute), fp.lastExecArgs[2])
}

func TestFailure_Errors(t *testing.T) {
	t.Parallel()

	l := newPG(&fakePool{qrErr: errors.New("query error")}, 5*time.Minute, 5, 10*time.Minute)
	_, _, err := l.Failure(context.Background(), "a@noteloom.local", []byte("h"))
	require.Error(t, err)

	l = newPG(&fakePool{qrFailsRet: 9, execErr: errors.New("exec")}, 5*time.Minute, 5, 10*time.Minute)
	_, _, err = l.Failure(context.Background(), "a@noteloom.local", []byte("h"))
	require.Error(t, err)
}

func TestHashIP_Determinism(t *testing.T) {
	t.Parallel()

	a := HashIP("1.2.3.4:123")
	require.Equal(t, a, HashIP("1.2.3.4:123"))
	require.NotEqual(t, a, HashIP("5.6.7.8:321"))
	require.Len(t, a, 32)
}

func TestNop(t *testing.T) {
	t.Parallel()

	var l Limiter = Nop{}
	ok, _, err := l.Allow(context.Background(), "", nil)
	require.NoError(t, err)
	require.True(t, ok)
	blocked, _, err := l.Failure(context.Background(), "", nil)
	require.NoError(t, err)
	require.False(t, blocked)
	require.NoError(t, l.Success(context.Background(), "", nil))
}
