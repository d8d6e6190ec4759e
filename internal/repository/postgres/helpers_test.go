package postgres

import (
	"regexp"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

// sqlRe quotes a query for the whitespace-insensitive regexp matcher.
func sqlRe(q string) string { return regexp.QuoteMeta(q) }
