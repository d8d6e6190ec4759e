package grpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func window(sub string, nbf time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(nbf),
		NotBefore: jwt.NewNumericDate(nbf),
		ExpiresAt: jwt.NewNumericDate(nbf.Add(ttl)),
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		ctx   context.Context
		want  string
		valid bool
	}{
		{"no metadata", context.Background(), "", false},
		{"no header", metadata.NewIncomingContext(context.Background(), metadata.MD{}), "", false},
		{"basic scheme", ctxHeader("Basic abc"), "", false},
		{"empty bearer", ctxHeader("Bearer   "), "", false},
		{"canonical", ctxHeader("Bearer abc"), "abc", true},
		{"lower case scheme", ctxHeader("  bearer xyz "), "xyz", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bearerToken(tc.ctx)
			if !tc.valid {
				require.ErrorIs(t, err, errs.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestAccountFromToken(t *testing.T) {
	t.Parallel()

	key := []byte("sign-key")
	s := &Server{signKey: key}
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	cases := []struct {
		name  string
		ctx   context.Context
		valid bool
	}{
		{"valid", ctxAuth(signed(t, jwt.SigningMethodHS256, key, window(id.String(), now.Add(-time.Second), time.Minute))), true},
		{"small clock skew", ctxAuth(signed(t, jwt.SigningMethodHS256, key, window(id.String(), now.Add(10*time.Second), time.Minute))), true},
		{"not yet valid", ctxAuth(signed(t, jwt.SigningMethodHS256, key, window(id.String(), now.Add(10*time.Minute), time.Hour))), false},
		{"expired", ctxAuth(signed(t, jwt.SigningMethodHS256, key, window(id.String(), now.Add(-2*time.Hour), time.Hour))), false},
		{"wrong key", ctxAuth(signed(t, jwt.SigningMethodHS256, []byte("other"), window(id.String(), now, time.Minute))), false},
		{"wrong alg", ctxAuth(signed(t, jwt.SigningMethodHS512, key, window(id.String(), now, time.Minute))), false},
		{"bad subject", ctxAuth(signed(t, jwt.SigningMethodHS256, key, window("not-a-uuid", now, time.Minute))), false},
		{"garbage", ctxAuth("a.b.c"), false},
		{"no metadata", context.Background(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.accountFromToken(tc.ctx)
			if !tc.valid {
				require.ErrorIs(t, err, errs.ErrUnauthorized)
				require.Equal(t, uuid.Nil, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, id, got)
		})
	}
}

func ctxHeader(v string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", v))
}
