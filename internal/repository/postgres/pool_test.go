package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestOpen_BadDSN(t *testing.T) {
	_, _, err := Open(context.Background(), "postgres://%zz", 0)
	require.Error(t, err)
}

func TestInTx_RollbackOnError(t *testing.T) {
	db, mock := newDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.inTx(context.Background(), func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_Commit(t *testing.T) {
	db, mock := newDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, db.inTx(context.Background(), func(pgx.Tx) error { return nil }))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("x")))
	require.False(t, isUniqueViolation(nil))
}
